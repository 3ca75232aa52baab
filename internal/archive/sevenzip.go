package archive

import (
	"fmt"
	"io"
	"strings"

	"github.com/bodgit/sevenzip"
)

// SevenZipProvider reads 7z containers in-process. It is read-only;
// register an ExternalProvider over the same extension when 7z mutation is
// needed.
type SevenZipProvider struct{}

// NewSevenZipProvider creates the native 7z reader.
func NewSevenZipProvider() *SevenZipProvider { return &SevenZipProvider{} }

func (*SevenZipProvider) Name() string         { return "7z-native" }
func (*SevenZipProvider) Extensions() []string { return []string{".7z"} }
func (*SevenZipProvider) MimeTypes() []string  { return []string{"application/x-7z-compressed"} }
func (*SevenZipProvider) WriteEnabled() bool   { return false }

func (*SevenZipProvider) List(file string) ([]string, error) {
	r, err := sevenzip.OpenReader(file)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrProcessing, file, err)
	}
	defer r.Close()

	var entries []string
	for _, f := range r.File {
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			continue
		}
		entries = append(entries, f.Name)
	}
	return entries, nil
}

func (*SevenZipProvider) Open(file, entry string) (io.ReadCloser, error) {
	r, err := sevenzip.OpenReader(file)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrProcessing, file, err)
	}
	for _, f := range r.File {
		if f.Name == entry {
			rc, err := f.Open()
			if err != nil {
				r.Close()
				return nil, fmt.Errorf("%w: entry %q: %v", ErrProcessing, entry, err)
			}
			return &sevenzipEntryReader{rc: rc, r: r}, nil
		}
	}
	r.Close()
	return nil, fmt.Errorf("%w: no entry %q in %s", ErrProcessing, entry, file)
}

func (*SevenZipProvider) Create(string, string) (io.WriteCloser, error) {
	return nil, fmt.Errorf("%w: write via 7z-native", ErrNotSupported)
}

func (*SevenZipProvider) Remove(string, string) error {
	return fmt.Errorf("%w: delete via 7z-native", ErrNotSupported)
}

type sevenzipEntryReader struct {
	rc io.ReadCloser
	r  *sevenzip.ReadCloser
}

func (s *sevenzipEntryReader) Read(p []byte) (int, error) { return s.rc.Read(p) }

func (s *sevenzipEntryReader) Close() error {
	err := s.rc.Close()
	if cerr := s.r.Close(); err == nil {
		err = cerr
	}
	return err
}

var _ Provider = (*SevenZipProvider)(nil)
