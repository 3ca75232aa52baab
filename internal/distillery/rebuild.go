package distillery

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sdalu/distillery/internal/archive"
	"github.com/sdalu/distillery/internal/dat"
	"github.com/sdalu/distillery/internal/rom"
	"github.com/sdalu/distillery/internal/vault"
)

// rebuildStagingDir is the content-addressed staging area below the
// rebuild destination.
const rebuildStagingDir = ".roms"

// Rebuild materializes one archive per catalog game under dest, in the
// container format named by format. Source content is first staged
// content-addressed under dest/.roms, so several games can draw the same
// bytes; the staging area is removed on completion. Source ROMs the
// catalog does not reference are dropped. It returns the number of
// archives written.
func Rebuild(ctx context.Context, dest string, d *dat.File, src *vault.Vault, format string) (int, error) {
	format = strings.TrimPrefix(strings.ToLower(format), ".")
	provider := archive.DefaultRegistry().ForExtension(format)
	if provider == nil {
		return 0, fmt.Errorf("%w: .%s", archive.ErrNotFound, format)
	}
	if !provider.WriteEnabled() {
		return 0, fmt.Errorf("%w: write via %s", archive.ErrNotSupported, provider.Name())
	}

	staging := filepath.Join(dest, rebuildStagingDir)
	if err := os.MkdirAll(dest, 0755); err != nil {
		return 0, fmt.Errorf("creating %s: %w", dest, err)
	}
	defer os.RemoveAll(staging)

	if _, err := src.CopyTo(ctx, staging, vault.CopyOptions{Part: rom.PartROM, Pristine: true}); err != nil {
		return 0, fmt.Errorf("staging sources: %w", err)
	}

	staged := vault.New()
	if err := staged.AddFromDir(ctx, staging, vault.NoDepthLimit); err != nil {
		return 0, fmt.Errorf("indexing staged sources: %w", err)
	}

	written := 0
	for _, game := range d.Games() {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		ok, err := rebuildGame(dest, game, staged, format, provider)
		if err != nil {
			return written, err
		}
		if ok {
			written++
		}
	}
	return written, nil
}

// rebuildGame writes one game archive from staged content. A game with
// no staged match contributes nothing.
func rebuildGame(dest string, game *dat.Game, staged *vault.Vault, format string, provider archive.Provider) (bool, error) {
	target := filepath.Join(dest, game.Name+"."+format)
	arc := archive.NewWith(target, provider)

	wrote := false
	for _, catROM := range game.ROMs {
		matches := staged.Match(catROM)
		if matches == nil {
			continue
		}
		r, err := matches[0].Reader()
		if err != nil {
			return wrote, fmt.Errorf("reading staged %s: %w", matches[0].Name(), err)
		}
		w, err := arc.Writer(catROM.Name())
		if err != nil {
			r.Close()
			return wrote, err
		}
		_, err = io.Copy(w, r)
		r.Close()
		if err != nil {
			w.Close()
			return wrote, fmt.Errorf("writing %s into %s: %w", catROM.Name(), target, err)
		}
		if err := w.Close(); err != nil {
			return wrote, err
		}
		wrote = true
	}
	return wrote, nil
}
