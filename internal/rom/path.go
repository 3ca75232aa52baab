package rom

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sdalu/distillery/internal/archive"
)

// Path locates a ROM's bytes. Exactly three variants exist: a plain file,
// an entry inside an archive, and a virtual reference that carries only a
// catalog name. The set is closed; operations dispatch per variant.
type Path interface {
	// File returns the filesystem target backing this path, "" when none.
	File() string
	// Storage returns the grouping container: the base directory for a
	// plain file, the archive file for an entry, "" for virtual.
	Storage() string
	// Entry returns the relative path or logical name of the ROM.
	Entry() string
	// Basename returns the last segment of the entry.
	Basename() string
	// Reader opens a read-only stream on the ROM's physical bytes.
	Reader() (io.ReadCloser, error)
	// Copy materializes the path's bytes at dst. It reports whether a
	// copy took place.
	Copy(dst string, opt CopyOptions) (bool, error)
	// Rename changes the entry, moving the physical target when one
	// exists. It reports whether the path now bears the new entry.
	Rename(newEntry string, force bool) (bool, error)
	// Delete removes the physical target. It reports whether the target
	// is gone (a virtual path trivially is).
	Delete() (bool, error)
	// String renders the path for display and index keys.
	String() string

	isPath()
}

// CopyOptions controls Path.Copy.
type CopyOptions struct {
	// Length limits the number of bytes copied; negative means all.
	Length int64
	// Offset skips that many leading bytes of the source.
	Offset int64
	// Force overwrites an existing target.
	Force bool
	// Link allows a hardlink instead of a byte copy when the copy is
	// whole-file and source and target share a device.
	Link bool
}

// FullCopy are the options for a plain whole-file copy.
func FullCopy(force bool) CopyOptions {
	return CopyOptions{Length: -1, Offset: 0, Force: force}
}

func (o CopyOptions) partial() bool { return o.Length >= 0 || o.Offset > 0 }

// ---------------------------------------------------------------- FilePath

// FilePath is a ROM stored as a plain file: an entry relative to an
// optional base directory.
type FilePath struct {
	entry   string
	basedir string
}

// NewFilePath creates a file path. entry must be relative.
func NewFilePath(entry, basedir string) (*FilePath, error) {
	if entry == "" {
		return nil, fmt.Errorf("empty file entry")
	}
	if strings.HasPrefix(entry, string(os.PathSeparator)) {
		return nil, fmt.Errorf("file entry must be relative: %s", entry)
	}
	return &FilePath{entry: filepath.Clean(entry), basedir: basedir}, nil
}

func (p *FilePath) isPath() {}

func (p *FilePath) File() string {
	if p.basedir == "" {
		return p.entry
	}
	return filepath.Join(p.basedir, p.entry)
}

func (p *FilePath) Storage() string  { return p.basedir }
func (p *FilePath) Entry() string    { return p.entry }
func (p *FilePath) Basename() string { return filepath.Base(p.entry) }
func (p *FilePath) String() string   { return p.File() }

func (p *FilePath) Reader() (io.ReadCloser, error) {
	return os.Open(p.File())
}

func (p *FilePath) Copy(dst string, opt CopyOptions) (bool, error) {
	src := p.File()
	if _, err := os.Stat(dst); err == nil && !opt.Force {
		return false, nil
	}

	if opt.Link && !opt.partial() {
		if linked, err := tryLink(src, dst, opt.Force); linked || err != nil {
			return linked, err
		}
	}

	f, err := os.Open(src)
	if err != nil {
		return false, fmt.Errorf("opening source: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if opt.Offset > 0 {
		if _, err := f.Seek(opt.Offset, io.SeekStart); err != nil {
			return false, fmt.Errorf("seeking past offset: %w", err)
		}
	}
	if opt.Length >= 0 {
		r = io.LimitReader(r, opt.Length)
	}
	if err := writeStream(dst, r); err != nil {
		return false, err
	}
	return true, nil
}

func (p *FilePath) Rename(newEntry string, force bool) (bool, error) {
	if newEntry == p.entry {
		return true, nil
	}
	src := p.File()
	dst := newEntry
	if p.basedir != "" {
		dst = filepath.Join(p.basedir, newEntry)
	}

	if _, err := os.Stat(dst); err == nil {
		same, err := sameContent(src, dst)
		if err != nil {
			return false, err
		}
		if same {
			// Target already holds the bytes; just drop the source.
			if err := os.Remove(src); err != nil {
				return false, fmt.Errorf("removing renamed duplicate: %w", err)
			}
			p.entry = filepath.Clean(newEntry)
			return true, nil
		}
		if !force {
			return false, nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return false, fmt.Errorf("creating target directory: %w", err)
	}
	if err := os.Rename(src, dst); err != nil {
		return false, fmt.Errorf("renaming: %w", err)
	}
	p.entry = filepath.Clean(newEntry)
	return true, nil
}

func (p *FilePath) Delete() (bool, error) {
	if err := os.Remove(p.File()); err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, fmt.Errorf("deleting: %w", err)
	}
	return true, nil
}

// --------------------------------------------------------------- EntryPath

// EntryPath is a ROM stored as a named entry inside an archive.
type EntryPath struct {
	archive *archive.Archive
	entry   string
}

// NewEntryPath creates an archive-entry path.
func NewEntryPath(a *archive.Archive, entry string) *EntryPath {
	return &EntryPath{archive: a, entry: entry}
}

func (p *EntryPath) isPath() {}

func (p *EntryPath) Archive() *archive.Archive { return p.archive }

func (p *EntryPath) File() string     { return p.archive.Path() }
func (p *EntryPath) Storage() string  { return p.archive.Path() }
func (p *EntryPath) Entry() string    { return p.entry }
func (p *EntryPath) Basename() string { return filepath.Base(p.entry) }
func (p *EntryPath) String() string   { return JoinArchivePath(p.archive.Path(), p.entry) }

func (p *EntryPath) Reader() (io.ReadCloser, error) {
	return p.archive.Reader(p.entry)
}

func (p *EntryPath) Copy(dst string, opt CopyOptions) (bool, error) {
	if _, err := os.Stat(dst); err == nil && !opt.Force {
		return false, nil
	}
	r, err := p.archive.Reader(p.entry)
	if err != nil {
		return false, fmt.Errorf("reading archive entry: %w", err)
	}
	defer r.Close()

	var src io.Reader = r
	if opt.Offset > 0 {
		if _, err := io.CopyN(io.Discard, src, opt.Offset); err != nil {
			return false, fmt.Errorf("skipping offset: %w", err)
		}
	}
	if opt.Length >= 0 {
		src = io.LimitReader(src, opt.Length)
	}
	if err := writeStream(dst, src); err != nil {
		return false, err
	}
	return true, nil
}

func (p *EntryPath) Rename(newEntry string, force bool) (bool, error) {
	if newEntry == p.entry {
		return true, nil
	}
	ok, err := p.archive.Rename(p.entry, newEntry, force)
	if err != nil || !ok {
		return false, err
	}
	p.entry = newEntry
	return true, nil
}

func (p *EntryPath) Delete() (bool, error) {
	if err := p.archive.Delete(p.entry); err != nil {
		return false, err
	}
	return true, nil
}

// ------------------------------------------------------------- VirtualPath

// VirtualPath is a catalog-only reference: it names a ROM that has no
// physical storage. Reads fail, copies do nothing, deletes trivially
// succeed.
type VirtualPath struct {
	entry string
}

// NewVirtualPath creates a virtual path carrying the given name.
func NewVirtualPath(entry string) *VirtualPath {
	return &VirtualPath{entry: entry}
}

func (p *VirtualPath) isPath() {}

func (p *VirtualPath) File() string     { return "" }
func (p *VirtualPath) Storage() string  { return "" }
func (p *VirtualPath) Entry() string    { return p.entry }
func (p *VirtualPath) Basename() string { return filepath.Base(p.entry) }
func (p *VirtualPath) String() string   { return p.entry }

func (p *VirtualPath) Reader() (io.ReadCloser, error) {
	return nil, fmt.Errorf("virtual path %q has no content", p.entry)
}

func (p *VirtualPath) Copy(string, CopyOptions) (bool, error) { return false, nil }

func (p *VirtualPath) Rename(newEntry string, _ bool) (bool, error) {
	p.entry = newEntry
	return true, nil
}

func (p *VirtualPath) Delete() (bool, error) { return true, nil }

// ----------------------------------------------------------------- helpers

// tryLink attempts a hardlink from src to dst. It reports (false, nil)
// when linking is not possible and a byte copy should be tried instead.
func tryLink(src, dst string, force bool) (bool, error) {
	if force {
		if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
			return false, fmt.Errorf("removing link target: %w", err)
		}
	}
	if err := os.Link(src, dst); err != nil {
		// Cross-device or unsupported: fall back to copying.
		return false, nil
	}
	return true, nil
}

// writeStream writes r to dst, creating parent directories, truncating any
// existing file.
func writeStream(dst string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("creating target directory: %w", err)
	}
	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating target: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(dst)
		return fmt.Errorf("writing target: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing target: %w", err)
	}
	return nil
}

// sameContent compares two files byte for byte.
func sameContent(a, b string) (bool, error) {
	fa, err := os.Open(a)
	if err != nil {
		return false, err
	}
	defer fa.Close()
	fb, err := os.Open(b)
	if err != nil {
		return false, err
	}
	defer fb.Close()
	return archive.SameReaders(fa, fb)
}
