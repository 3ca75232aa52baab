// Package rom models a single ROM artifact: where its bytes live (plain
// file, archive entry, or a virtual catalog reference) and how its content
// is identified (size, header offset, checksum map).
package rom

import (
	"fmt"
	"io"

	"github.com/sdalu/distillery/internal/checksum"
)

// SizeUnknown marks an absent size or offset. Only virtual ROMs coming
// from catalogs that omit the size carry it.
const SizeUnknown int64 = -1

// WarnFunc receives construction warnings (e.g. a catalog ROM without a
// size). The default discards them; the application may install a logger.
var WarnFunc = func(msg string, args ...any) {}

// ROM binds a path to the identity of its content.
type ROM struct {
	path      Path
	size      int64
	offset    int64
	checksums map[checksum.Kind][]byte
}

// New creates a ROM descriptor. size may be SizeUnknown only for paths
// without physical storage; offset must be defined whenever size is.
// Checksum values may be binary or hex and are canonicalized; values of a
// wrong width are rejected. A zero-size ROM acquires the full nil-content
// checksum map.
func New(path Path, size, offset int64, sums map[checksum.Kind][]byte) (*ROM, error) {
	if path == nil {
		return nil, fmt.Errorf("rom requires a path")
	}
	if size == SizeUnknown {
		offset = SizeUnknown
		WarnFunc("rom has no size", "name", path.Entry())
	} else {
		if size < 0 {
			return nil, fmt.Errorf("negative rom size %d", size)
		}
		if offset == SizeUnknown {
			offset = 0
		}
		if offset < 0 {
			return nil, fmt.Errorf("negative rom offset %d", offset)
		}
	}

	canonical := make(map[checksum.Kind][]byte, len(sums))
	for k, v := range sums {
		switch k {
		case checksum.SHA256, checksum.SHA1, checksum.MD5, checksum.CRC32:
		default:
			return nil, fmt.Errorf("unknown checksum kind %d", int(k))
		}
		if len(v) == 0 {
			continue
		}
		c, err := k.Canonical(v)
		if err != nil {
			return nil, err
		}
		canonical[k] = c
	}

	if size == 0 {
		for _, k := range checksum.ByStrength {
			canonical[k] = k.NilValue()
		}
	}

	return &ROM{path: path, size: size, offset: offset, checksums: canonical}, nil
}

// FromDigests creates a ROM from a streaming checksum pass.
func FromDigests(path Path, d *checksum.Digests) *ROM {
	r, err := New(path, d.Size, d.Offset, d.Map())
	if err != nil {
		// Digests are always well-formed; a failure here is a programming
		// error.
		panic(err)
	}
	return r
}

// Path returns the ROM's current path.
func (r *ROM) Path() Path { return r.path }

// Name returns the ROM's entry name.
func (r *ROM) Name() string { return r.path.Entry() }

// Size returns the content size in bytes, SizeUnknown when absent.
func (r *ROM) Size() int64 { return r.size }

// Offset returns the header length in bytes, SizeUnknown when absent.
func (r *ROM) Offset() int64 { return r.offset }

// Headered reports whether the physical file carries a stripped header.
func (r *ROM) Headered() bool { return r.offset > 0 }

// Checksum returns the canonical binary value of the given kind, nil when
// the ROM does not carry it.
func (r *ROM) Checksum(k checksum.Kind) []byte { return r.checksums[k] }

// ChecksumHex returns the lowercase hex value of the given kind, "" when
// absent.
func (r *ROM) ChecksumHex(k checksum.Kind) string {
	v := r.checksums[k]
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%x", v)
}

// Checksums returns the kinds the ROM carries, strongest first.
func (r *ROM) Checksums() []checksum.Kind {
	var kinds []checksum.Kind
	for _, k := range checksum.ByStrength {
		if r.checksums[k] != nil {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// HasChecksums reports whether every one of the required kinds is present.
func (r *ROM) HasChecksums(required ...checksum.Kind) bool {
	for _, k := range required {
		if r.checksums[k] == nil {
			return false
		}
	}
	return true
}

// Info returns the checksum map in hex plus size and offset, the shape
// serialized into indexes. Offset is omitted when zero.
type Info struct {
	SHA256 string `json:"sha256" yaml:"sha256"`
	SHA1   string `json:"sha1" yaml:"sha1"`
	MD5    string `json:"md5" yaml:"md5"`
	CRC32  string `json:"crc32" yaml:"crc32"`
	Size   int64  `json:"size" yaml:"size"`
	Offset int64  `json:"offset,omitempty" yaml:"offset,omitempty"`
}

// Info collects the ROM's identity attributes.
func (r *ROM) Info() Info {
	offset := r.offset
	if offset < 0 {
		offset = 0
	}
	return Info{
		SHA256: r.ChecksumHex(checksum.SHA256),
		SHA1:   r.ChecksumHex(checksum.SHA1),
		MD5:    r.ChecksumHex(checksum.MD5),
		CRC32:  r.ChecksumHex(checksum.CRC32),
		Size:   r.size,
		Offset: offset,
	}
}

// Header reads and returns the physical header bytes, nil for an
// unheadered ROM.
func (r *ROM) Header() ([]byte, error) {
	if !r.Headered() {
		return nil, nil
	}
	rd, err := r.path.Reader()
	if err != nil {
		return nil, err
	}
	defer rd.Close()
	buf := make([]byte, r.offset)
	if _, err := io.ReadFull(rd, buf); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	return buf, nil
}

// Part selects which byte range of the physical file a copy addresses.
type Part int

const (
	// PartAll copies the full physical file, header included.
	PartAll Part = iota
	// PartROM copies the content past the header.
	PartROM
	// PartHeader copies only the header bytes.
	PartHeader
)

// Copy materializes the selected part of the ROM at dst.
func (r *ROM) Copy(dst string, part Part, force, link bool) (bool, error) {
	switch part {
	case PartAll:
		return r.path.Copy(dst, CopyOptions{Length: -1, Force: force, Link: link})
	case PartROM:
		off := r.offset
		if off == SizeUnknown {
			off = 0
		}
		return r.path.Copy(dst, CopyOptions{Length: -1, Offset: off, Force: force, Link: link})
	case PartHeader:
		if !r.Headered() {
			return false, fmt.Errorf("rom %s has no header", r.Name())
		}
		return r.path.Copy(dst, CopyOptions{Length: r.offset, Force: force})
	default:
		return false, fmt.Errorf("unknown copy part %d", part)
	}
}

// Rename changes the ROM's entry name, moving the physical target when one
// exists.
func (r *ROM) Rename(newEntry string, force bool) (bool, error) {
	return r.path.Rename(newEntry, force)
}

// Delete removes the ROM's physical target and demotes the path to a
// virtual reference preserving the entry name.
func (r *ROM) Delete() (bool, error) {
	ok, err := r.path.Delete()
	if err != nil || !ok {
		return false, err
	}
	if _, virtual := r.path.(*VirtualPath); !virtual {
		r.path = NewVirtualPath(r.path.Entry())
	}
	return true, nil
}

// Reader opens the ROM's physical bytes.
func (r *ROM) Reader() (io.ReadCloser, error) { return r.path.Reader() }

// Same compares two ROMs by checksum, strongest kind first. ok is false
// when no checksum kind is defined on both sides; same is then
// meaningless. A match on only a weak checksum still counts.
func Same(a, b *ROM) (same, ok bool) {
	for _, k := range checksum.ByStrength {
		va, vb := a.checksums[k], b.checksums[k]
		if va == nil || vb == nil {
			continue
		}
		return string(va) == string(vb), true
	}
	return false, false
}
