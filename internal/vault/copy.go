package vault

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sdalu/distillery/internal/checksum"
	"github.com/sdalu/distillery/internal/rom"
)

// CopyOptions controls Vault.CopyTo.
type CopyOptions struct {
	// Part selects which byte range of each ROM is copied.
	Part rom.Part
	// Group, when set, names a subdirectory for each ROM; HexGroup is
	// the usual choice.
	Group func(r *rom.ROM) string
	// Pristine removes the target directory before copying.
	Pristine bool
	// Force overwrites existing targets.
	Force bool
}

// HexGroup groups ROMs by the first n hex characters of their
// filesystem-naming checksum.
func HexGroup(n int) func(r *rom.ROM) string {
	return func(r *rom.ROM) string {
		hex := r.ChecksumHex(checksum.FSKind)
		if len(hex) < n {
			return hex
		}
		return hex[:n]
	}
}

// CopyTo materializes the vault's ROMs under dir, each named by its
// filesystem-naming checksum. ROMs without physical storage or without
// that checksum are skipped, as are already-present targets unless Force.
// It returns the number of ROMs copied.
func (v *Vault) CopyTo(ctx context.Context, dir string, opts CopyOptions) (int, error) {
	if opts.Pristine {
		if err := os.RemoveAll(dir); err != nil {
			return 0, fmt.Errorf("clearing %s: %w", dir, err)
		}
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("creating %s: %w", dir, err)
	}

	copied := 0
	for _, r := range v.roms {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		if r.Path().File() == "" {
			continue
		}
		name := r.ChecksumHex(checksum.FSKind)
		if name == "" {
			continue
		}
		target := dir
		if opts.Group != nil {
			target = filepath.Join(dir, opts.Group(r))
		}
		ok, err := r.Copy(filepath.Join(target, name), opts.Part, opts.Force, true)
		if err != nil {
			return copied, fmt.Errorf("copying %s: %w", r.Name(), err)
		}
		if ok {
			copied++
		}
	}
	return copied, nil
}
