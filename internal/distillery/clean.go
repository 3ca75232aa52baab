package distillery

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/sdalu/distillery/internal/dat"
	"github.com/sdalu/distillery/internal/rom"
)

// CleanEvent reports one removed extra ROM.
type CleanEvent func(r *rom.ROM, trashed bool)

// Clean deletes every vault ROM the catalog does not reference. With a
// trash directory each extra is copied there, under its basename, before
// deletion. It returns the number of deleted ROMs.
func (s *Storage) Clean(ctx context.Context, d *dat.File, trashDir string, ev CleanEvent) (int, error) {
	if ev == nil {
		ev = func(*rom.ROM, bool) {}
	}

	extra := s.vault.Subtract(d.ROMs())
	deleted := 0
	for _, r := range extra.ROMs() {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}

		trashed := false
		if trashDir != "" {
			target := filepath.Join(trashDir, r.Path().Basename())
			ok, err := r.Copy(target, rom.PartAll, false, false)
			if err != nil {
				return deleted, fmt.Errorf("trashing %s: %w", r.Name(), err)
			}
			trashed = ok
		}

		ok, err := r.Delete()
		if err != nil {
			return deleted, fmt.Errorf("deleting %s: %w", r.Name(), err)
		}
		if ok {
			deleted++
			ev(r, trashed)
		}
	}
	return deleted, nil
}
