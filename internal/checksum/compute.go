package checksum

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/sdalu/distillery/internal/header"
)

// ChunkSize is the read granularity of the streaming pass.
const ChunkSize = 32 * 1024

// Digests holds the result of one streaming pass over a source.
// Size and Offset are in bytes; Offset is the detected header length,
// zero when the content is unheadered.
type Digests struct {
	SHA256 []byte
	SHA1   []byte
	MD5    []byte
	CRC32  []byte
	Size   int64
	Offset int64
	System string
}

// Get returns the digest of the given kind.
func (d *Digests) Get(k Kind) []byte {
	switch k {
	case SHA256:
		return d.SHA256
	case SHA1:
		return d.SHA1
	case MD5:
		return d.MD5
	case CRC32:
		return d.CRC32
	}
	return nil
}

// Map returns the digests as a kind-keyed map.
func (d *Digests) Map() map[Kind][]byte {
	return map[Kind][]byte{
		SHA256: d.SHA256,
		SHA1:   d.SHA1,
		MD5:    d.MD5,
		CRC32:  d.CRC32,
	}
}

// Compute reads r to the end and returns the four digests of its content.
// The first chunk is run through the header detector; when a header is
// recognized the digests address only the bytes past it. A sample too
// short to decide a header rule counts as unheadered.
func Compute(r io.Reader) (*Digests, error) {
	sha256h := sha256.New()
	sha1h := sha1.New()
	md5h := md5.New()
	crc := crc32.NewIEEE()
	w := io.MultiWriter(sha256h, sha1h, md5h, crc)

	buf := make([]byte, ChunkSize)

	// First chunk: fill as much as possible so the header rules can see
	// their full range, then drop the header bytes before digesting.
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("reading first chunk: %w", err)
	}
	chunk := buf[:n]

	offset := int64(header.Length(chunk))
	system := ""
	if offset > 0 {
		system = header.System(chunk)
		if offset >= int64(len(chunk)) {
			// Header longer than the file: nothing left to digest.
			chunk = chunk[:0]
		} else {
			chunk = chunk[offset:]
		}
	}

	size := int64(len(chunk))
	if _, err := w.Write(chunk); err != nil {
		return nil, fmt.Errorf("digesting: %w", err)
	}

	for {
		n, err := r.Read(buf)
		if n > 0 {
			size += int64(n)
			if _, werr := w.Write(buf[:n]); werr != nil {
				return nil, fmt.Errorf("digesting: %w", werr)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading: %w", err)
		}
	}

	return &Digests{
		SHA256: sha256h.Sum(nil),
		SHA1:   sha1h.Sum(nil),
		MD5:    md5h.Sum(nil),
		CRC32:  crc.Sum(nil),
		Size:   size,
		Offset: offset,
		System: system,
	}, nil
}
