package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
)

// Archive binds a container file path to its provider. Entry listings are
// cached and invalidated on mutation.
type Archive struct {
	path     string
	provider Provider

	entries []string
	listed  bool
}

// New resolves a provider for path through the process-wide registry.
func New(path string) (*Archive, error) {
	p := ForFile(path)
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return &Archive{path: path, provider: p}, nil
}

// NewWith binds path to an explicit provider.
func NewWith(path string, p Provider) *Archive {
	return &Archive{path: path, provider: p}
}

// Path returns the archive's filesystem path.
func (a *Archive) Path() string { return a.path }

// Provider returns the archive's provider.
func (a *Archive) Provider() Provider { return a.provider }

// Exist reports whether the archive file is present on disk.
func (a *Archive) Exist() bool {
	_, err := os.Stat(a.path)
	return err == nil
}

// Entries returns the archive's entry names in container order.
func (a *Archive) Entries() ([]string, error) {
	if !a.listed {
		entries, err := a.provider.List(a.path)
		if err != nil {
			return nil, err
		}
		a.entries = entries
		a.listed = true
	}
	return a.entries, nil
}

func (a *Archive) invalidate() {
	a.entries = nil
	a.listed = false
}

// Include reports whether the archive holds the named entry.
func (a *Archive) Include(entry string) (bool, error) {
	entries, err := a.Entries()
	if err != nil {
		return false, err
	}
	return slices.Contains(entries, entry), nil
}

// Empty reports whether the archive holds no entries.
func (a *Archive) Empty() (bool, error) {
	entries, err := a.Entries()
	if err != nil {
		return false, err
	}
	return len(entries) == 0, nil
}

// Each streams every entry in container order. The reader passed to fn is
// only valid during the call.
func (a *Archive) Each(fn func(entry string, r io.Reader) error) error {
	entries, err := a.Entries()
	if err != nil {
		return err
	}
	for _, entry := range entries {
		r, err := a.provider.Open(a.path, entry)
		if err != nil {
			return err
		}
		err = fn(entry, r)
		r.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// Reader streams one entry.
func (a *Archive) Reader(entry string) (io.ReadCloser, error) {
	return a.provider.Open(a.path, entry)
}

// Writer writes (or replaces) one entry; closing commits it.
func (a *Archive) Writer(entry string) (io.WriteCloser, error) {
	if !a.provider.WriteEnabled() {
		return nil, fmt.Errorf("%w: write via %s", ErrNotSupported, a.provider.Name())
	}
	w, err := a.provider.Create(a.path, entry)
	if err != nil {
		return nil, err
	}
	a.invalidate()
	return w, nil
}

// Delete removes the named entry. Removing the last entry unlinks the
// archive file itself. Providers without native removal are emulated by
// re-packing the archive sans the entry through a staging file.
func (a *Archive) Delete(entry string) error {
	err := a.provider.Remove(a.path, entry)
	if errors.Is(err, ErrNotSupported) {
		err = a.removeByRewrite(entry)
	}
	if err != nil {
		return err
	}
	a.invalidate()

	empty, err := a.Empty()
	if err != nil {
		return err
	}
	if empty {
		if err := os.Remove(a.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing emptied archive: %w", err)
		}
		a.invalidate()
	}
	return nil
}

// removeByRewrite emulates entry removal: the archive is copied entry by
// entry, minus one, to <file>.delete-<random>, which then atomically
// replaces the original. The staging file never survives a failure.
func (a *Archive) removeByRewrite(entry string) (err error) {
	if !a.provider.WriteEnabled() {
		return fmt.Errorf("%w: delete via %s", ErrNotSupported, a.provider.Name())
	}
	entries, err := a.Entries()
	if err != nil {
		return err
	}
	if !slices.Contains(entries, entry) {
		return fmt.Errorf("%w: no entry %q in %s", ErrProcessing, entry, a.path)
	}

	staging := a.path + ".delete-" + randomSuffix()
	defer func() {
		if err != nil {
			os.Remove(staging)
		}
	}()

	for _, e := range entries {
		if e == entry {
			continue
		}
		if err = a.copyEntryTo(staging, e); err != nil {
			return err
		}
	}

	if len(entries) == 1 {
		// Single-entry archive: nothing was staged, just drop the file.
		return os.Remove(a.path)
	}
	return os.Rename(staging, a.path)
}

func (a *Archive) copyEntryTo(file, entry string) error {
	r, err := a.provider.Open(a.path, entry)
	if err != nil {
		return err
	}
	defer r.Close()
	w, err := a.provider.Create(file, entry)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("staging entry %q: %w", entry, err)
	}
	return w.Close()
}

// Same compares two entries byte for byte.
func (a *Archive) Same(e1, e2 string) (bool, error) {
	r1, err := a.provider.Open(a.path, e1)
	if err != nil {
		return false, err
	}
	defer r1.Close()
	r2, err := a.provider.Open(a.path, e2)
	if err != nil {
		return false, err
	}
	defer r2.Close()
	return SameReaders(r1, r2)
}

// Copy duplicates entry src as dst within the archive. When dst already
// exists: identical content is a no-op success, differing content fails
// unless force. It reports whether dst now holds src's bytes.
func (a *Archive) Copy(src, dst string, force bool) (bool, error) {
	return a.transfer(src, dst, force, false)
}

// Rename moves entry src to dst. Uses the provider's native rename when
// available, copy + delete otherwise. Renaming an entry to itself is a
// successful no-op.
func (a *Archive) Rename(src, dst string, force bool) (bool, error) {
	if src == dst {
		return true, nil
	}
	if rn, ok := a.provider.(EntryRenamer); ok {
		exists, err := a.Include(dst)
		if err != nil {
			return false, err
		}
		if exists {
			same, err := a.Same(src, dst)
			if err != nil {
				return false, err
			}
			if same {
				if err := a.Delete(src); err != nil {
					return false, err
				}
				return true, nil
			}
			if !force {
				return false, nil
			}
			if err := a.Delete(dst); err != nil {
				return false, err
			}
		}
		err = rn.RenameEntry(a.path, src, dst)
		if err == nil {
			a.invalidate()
			return true, nil
		}
		if !errors.Is(err, ErrNotSupported) {
			return false, err
		}
	}
	return a.transfer(src, dst, force, true)
}

func (a *Archive) transfer(src, dst string, force, move bool) (bool, error) {
	exists, err := a.Include(dst)
	if err != nil {
		return false, err
	}
	if exists {
		same, err := a.Same(src, dst)
		if err != nil {
			return false, err
		}
		if same {
			if move && src != dst {
				if err := a.Delete(src); err != nil {
					return false, err
				}
			}
			return true, nil
		}
		if !force {
			return false, nil
		}
	}

	r, err := a.provider.Open(a.path, src)
	if err != nil {
		return false, err
	}
	// Buffer the source: writing into the archive may rewrite the very
	// container the reader is draining.
	var buf bytes.Buffer
	_, err = io.Copy(&buf, r)
	r.Close()
	if err != nil {
		return false, fmt.Errorf("reading entry %q: %w", src, err)
	}

	w, err := a.Writer(dst)
	if err != nil {
		return false, err
	}
	if _, err := io.Copy(w, &buf); err != nil {
		w.Close()
		return false, fmt.Errorf("writing entry %q: %w", dst, err)
	}
	if err := w.Close(); err != nil {
		return false, err
	}
	a.invalidate()

	if move {
		if err := a.Delete(src); err != nil {
			return false, err
		}
	}
	return true, nil
}

// SameReaders compares two streams byte for byte.
func SameReaders(a, b io.Reader) (bool, error) {
	const chunk = 32 * 1024
	ba := make([]byte, chunk)
	bb := make([]byte, chunk)
	for {
		na, ea := io.ReadFull(a, ba)
		nb, eb := io.ReadFull(b, bb)
		if na != nb || !bytes.Equal(ba[:na], bb[:nb]) {
			return false, nil
		}
		aDone := ea == io.EOF || ea == io.ErrUnexpectedEOF
		bDone := eb == io.EOF || eb == io.ErrUnexpectedEOF
		if ea != nil && !aDone {
			return false, ea
		}
		if eb != nil && !bDone {
			return false, eb
		}
		if aDone || bDone {
			return aDone == bDone, nil
		}
	}
}
