// Package archive is a format-pluggable layer over container files. An
// Archive value binds a container path to a Provider; providers supply the
// format mechanics (built-in zip, native 7z reading, external tools) while
// Archive adds the uniform semantics: emptiness removal, copy/rename
// contracts, safe repacking.
package archive

import (
	"io"
	"math/rand"
)

// Provider implements the mechanics of one container format.
type Provider interface {
	// Name identifies the provider in logs and registry warnings.
	Name() string
	// Extensions lists the filename suffixes the provider claims,
	// lowercase with leading dot.
	Extensions() []string
	// MimeTypes lists the content types the provider claims.
	MimeTypes() []string
	// WriteEnabled reports whether Create works.
	WriteEnabled() bool

	// List returns the archive's entry names in container order.
	List(file string) ([]string, error)
	// Open streams one entry.
	Open(file, entry string) (io.ReadCloser, error)
	// Create writes (or replaces) one entry; closing the writer commits
	// it. Providers without write capability return ErrNotSupported.
	Create(file, entry string) (io.WriteCloser, error)
	// Remove drops one entry. Providers may return ErrNotSupported, in
	// which case Archive emulates removal through a staging file.
	Remove(file, entry string) error
}

// EntryRenamer is an optional Provider capability: a native in-container
// rename. Without it Archive renames by copy + delete.
type EntryRenamer interface {
	RenameEntry(file, from, to string) error
}

const suffixAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// randomSuffix returns a 10-character alphanumeric tag for staging files.
func randomSuffix() string {
	b := make([]byte, 10)
	for i := range b {
		b[i] = suffixAlphabet[rand.Intn(len(suffixAlphabet))]
	}
	return string(b)
}
