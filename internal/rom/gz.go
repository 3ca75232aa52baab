package rom

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"
)

// GzPath decorates a FilePath whose target is a gzip-compressed file.
// Reads decompress transparently; seeking is emulated by discarding bytes.
type GzPath struct {
	*FilePath
}

// GzExtension is the suffix a GzPath target must carry.
const GzExtension = ".gz"

// NewGzPath wraps a gzip-compressed file.
func NewGzPath(entry, basedir string) (*GzPath, error) {
	if !strings.HasSuffix(entry, GzExtension) {
		return nil, fmt.Errorf("not a gzip file: %s", entry)
	}
	fp, err := NewFilePath(entry, basedir)
	if err != nil {
		return nil, err
	}
	return &GzPath{FilePath: fp}, nil
}

type gzReadCloser struct {
	*gzip.Reader
	f *os.File
}

func (r *gzReadCloser) Close() error {
	gzErr := r.Reader.Close()
	if err := r.f.Close(); err != nil {
		return err
	}
	return gzErr
}

func (p *GzPath) Reader() (io.ReadCloser, error) {
	f, err := os.Open(p.File())
	if err != nil {
		return nil, err
	}
	zr, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("opening gzip stream: %w", err)
	}
	return &gzReadCloser{Reader: zr, f: f}, nil
}

func (p *GzPath) Copy(dst string, opt CopyOptions) (bool, error) {
	if _, err := os.Stat(dst); err == nil && !opt.Force {
		return false, nil
	}
	r, err := p.Reader()
	if err != nil {
		return false, err
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

func (p *GzPath) Rename(newEntry string, force bool) (bool, error) {
	if !strings.HasSuffix(newEntry, GzExtension) {
		return false, fmt.Errorf("gzip path may only rename to a %s target", GzExtension)
	}
	return p.FilePath.Rename(newEntry, force)
}
