// Package distillery reconciles a vault of scanned ROMs against DAT
// catalogs: checking, validating, renaming, rebuilding per-game archives
// and cleaning extras. It orchestrates the lower layers and emits
// progress events; rendering is the CLI's concern.
package distillery

import (
	"github.com/sdalu/distillery/internal/vault"
)

// DefaultRootDirs are the storage basenames validate accepts as a ROM's
// rightful place when it does not sit in a per-game container.
var DefaultRootDirs = []string{"roms", "ROMs"}

// Storage binds a vault to the reconciliation context.
type Storage struct {
	vault    *vault.Vault
	rootDirs []string
	logger   Logger
}

// Option configures a Storage.
type Option func(*Storage)

// WithRootDirs sets the root ROM directory names used by the validate
// placement check. The list is context from the caller; it cannot be
// derived from the vault.
func WithRootDirs(dirs ...string) Option {
	return func(s *Storage) { s.rootDirs = dirs }
}

// WithLogger installs a logger.
func WithLogger(l Logger) Option {
	return func(s *Storage) { s.logger = l }
}

// NewStorage creates a Storage over the given vault.
func NewStorage(v *vault.Vault, opts ...Option) *Storage {
	s := &Storage{
		vault:    v,
		rootDirs: DefaultRootDirs,
		logger:   NewNopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Vault returns the underlying vault.
func (s *Storage) Vault() *vault.Vault { return s.vault }
