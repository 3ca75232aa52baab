package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"strings"
)

// ZipProvider is the built-in zip back-end on top of archive/zip.
// Mutations rewrite the container through a temp file that atomically
// replaces the original.
type ZipProvider struct{}

// NewZipProvider creates the built-in zip provider.
func NewZipProvider() *ZipProvider { return &ZipProvider{} }

func (*ZipProvider) Name() string         { return "zip" }
func (*ZipProvider) Extensions() []string { return []string{".zip"} }
func (*ZipProvider) MimeTypes() []string  { return []string{"application/zip"} }
func (*ZipProvider) WriteEnabled() bool   { return true }

func (*ZipProvider) List(file string) ([]string, error) {
	zr, err := zip.OpenReader(file)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrProcessing, file, err)
	}
	defer zr.Close()

	var entries []string
	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		entries = append(entries, f.Name)
	}
	return entries, nil
}

func (*ZipProvider) Open(file, entry string) (io.ReadCloser, error) {
	zr, err := zip.OpenReader(file)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrProcessing, file, err)
	}
	for _, f := range zr.File {
		if f.Name == entry {
			rc, err := f.Open()
			if err != nil {
				zr.Close()
				return nil, fmt.Errorf("%w: entry %q: %v", ErrProcessing, entry, err)
			}
			return &zipEntryReader{rc: rc, zr: zr}, nil
		}
	}
	zr.Close()
	return nil, fmt.Errorf("%w: no entry %q in %s", ErrProcessing, entry, file)
}

type zipEntryReader struct {
	rc io.ReadCloser
	zr *zip.ReadCloser
}

func (r *zipEntryReader) Read(p []byte) (int, error) { return r.rc.Read(p) }

func (r *zipEntryReader) Close() error {
	err := r.rc.Close()
	if cerr := r.zr.Close(); err == nil {
		err = cerr
	}
	return err
}

// Create writes an entry by rewriting the container: existing entries are
// raw-copied to a temp zip, the new entry is appended, and closing the
// returned writer renames the temp over the original.
func (p *ZipProvider) Create(file, entry string) (io.WriteCloser, error) {
	tmp := file + ".write-" + randomSuffix()
	out, err := os.Create(tmp)
	if err != nil {
		return nil, fmt.Errorf("creating staging zip: %w", err)
	}

	w := &zipEntryWriter{file: file, tmp: tmp, out: out, zw: zip.NewWriter(out)}

	if _, err := os.Stat(file); err == nil {
		zr, err := zip.OpenReader(file)
		if err != nil {
			w.abort()
			return nil, fmt.Errorf("%w: opening %s: %v", ErrProcessing, file, err)
		}
		for _, f := range zr.File {
			if f.Name == entry {
				continue
			}
			if err := w.zw.Copy(f); err != nil {
				zr.Close()
				w.abort()
				return nil, fmt.Errorf("%w: carrying entry %q: %v", ErrProcessing, f.Name, err)
			}
		}
		zr.Close()
	}

	ew, err := w.zw.Create(entry)
	if err != nil {
		w.abort()
		return nil, fmt.Errorf("%w: creating entry %q: %v", ErrProcessing, entry, err)
	}
	w.entry = ew
	return w, nil
}

type zipEntryWriter struct {
	file  string
	tmp   string
	out   *os.File
	zw    *zip.Writer
	entry io.Writer
}

func (w *zipEntryWriter) Write(p []byte) (int, error) { return w.entry.Write(p) }

func (w *zipEntryWriter) abort() {
	w.zw.Close()
	w.out.Close()
	os.Remove(w.tmp)
}

func (w *zipEntryWriter) Close() error {
	if err := w.zw.Close(); err != nil {
		w.out.Close()
		os.Remove(w.tmp)
		return fmt.Errorf("finishing zip: %w", err)
	}
	if err := w.out.Close(); err != nil {
		os.Remove(w.tmp)
		return fmt.Errorf("closing staging zip: %w", err)
	}
	if err := os.Rename(w.tmp, w.file); err != nil {
		os.Remove(w.tmp)
		return fmt.Errorf("committing zip: %w", err)
	}
	return nil
}

// Remove drops an entry by rewriting the container without it.
func (p *ZipProvider) Remove(file, entry string) error {
	return p.rewrite(file, func(name string) (string, bool) {
		if name == entry {
			return "", false
		}
		return name, true
	}, entry)
}

// RenameEntry moves an entry within the container in one rewrite.
func (p *ZipProvider) RenameEntry(file, from, to string) error {
	return p.rewrite(file, func(name string) (string, bool) {
		if name == from {
			return to, true
		}
		return name, true
	}, from)
}

// rewrite copies the container through a temp file, mapping entry names;
// must is an entry that has to be present for the operation to make sense.
func (*ZipProvider) rewrite(file string, mapName func(string) (string, bool), must string) (err error) {
	zr, err := zip.OpenReader(file)
	if err != nil {
		return fmt.Errorf("%w: opening %s: %v", ErrProcessing, file, err)
	}
	defer zr.Close()

	found := false
	for _, f := range zr.File {
		if f.Name == must {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: no entry %q in %s", ErrProcessing, must, file)
	}

	tmp := file + ".write-" + randomSuffix()
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating staging zip: %w", err)
	}
	defer func() {
		if err != nil {
			os.Remove(tmp)
		}
	}()

	zw := zip.NewWriter(out)
	for _, f := range zr.File {
		name, keep := mapName(f.Name)
		if !keep {
			continue
		}
		if name == f.Name {
			if err = zw.Copy(f); err != nil {
				zw.Close()
				out.Close()
				return fmt.Errorf("%w: carrying entry %q: %v", ErrProcessing, f.Name, err)
			}
			continue
		}
		rc, oerr := f.Open()
		if oerr != nil {
			zw.Close()
			out.Close()
			err = fmt.Errorf("%w: entry %q: %v", ErrProcessing, f.Name, oerr)
			return err
		}
		ew, cerr := zw.Create(name)
		if cerr == nil {
			_, cerr = io.Copy(ew, rc)
		}
		rc.Close()
		if cerr != nil {
			zw.Close()
			out.Close()
			err = fmt.Errorf("%w: rewriting entry %q: %v", ErrProcessing, f.Name, cerr)
			return err
		}
	}
	if err = zw.Close(); err != nil {
		out.Close()
		return fmt.Errorf("finishing zip: %w", err)
	}
	if err = out.Close(); err != nil {
		return fmt.Errorf("closing staging zip: %w", err)
	}
	if err = os.Rename(tmp, file); err != nil {
		return fmt.Errorf("committing zip: %w", err)
	}
	return nil
}

var _ Provider = (*ZipProvider)(nil)
var _ EntryRenamer = (*ZipProvider)(nil)
