package distillery

import (
	"context"

	"github.com/sdalu/distillery/internal/dat"
	"github.com/sdalu/distillery/internal/rom"
)

// RenameStats counts rename outcomes.
type RenameStats struct {
	Renamed int
	Deleted int
	Kept    int
	Skipped int
}

// RenameEvent reports one rename decision.
type RenameEvent func(r *rom.ROM, action string, newName string)

// Rename brings every vault ROM's name in line with the catalog. A ROM
// the catalog does not know is skipped with a warning. When the content
// is cataloged under several names, names already present in the vault
// are not duplicated; a copy whose name is not cataloged at all and
// whose content is already held under every cataloged name is deleted as
// redundant.
func (s *Storage) Rename(ctx context.Context, d *dat.File, ev RenameEvent) (RenameStats, error) {
	if ev == nil {
		ev = func(*rom.ROM, string, string) {}
	}
	var stats RenameStats

	for _, r := range s.vault.ROMs() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		matches := d.ROMs().Match(r)
		if matches == nil {
			s.logger.Warn("rom not in catalog", "name", r.Name())
			ev(r, "skip", "")
			stats.Skipped++
			continue
		}

		if len(matches) == 1 {
			newName := matches[0].Name()
			if newName == r.Name() {
				stats.Kept++
				continue
			}
			ok, err := r.Rename(newName, false)
			if err != nil {
				return stats, err
			}
			if ok {
				ev(r, "rename", newName)
				stats.Renamed++
			} else {
				ev(r, "skip", newName)
				stats.Skipped++
			}
			continue
		}

		// Several catalog names for this content: find the ones the
		// vault does not hold yet.
		inDat := make([]string, 0, len(matches))
		datNames := make(map[string]bool, len(matches))
		for _, m := range matches {
			if !datNames[m.Name()] {
				datNames[m.Name()] = true
				inDat = append(inDat, m.Name())
			}
		}
		vaultNames := make(map[string]bool)
		for _, vr := range s.vault.Match(r) {
			vaultNames[vr.Name()] = true
		}

		var missing []string
		for _, name := range inDat {
			if !vaultNames[name] {
				missing = append(missing, name)
			}
		}

		if len(missing) == 0 {
			if !datNames[r.Name()] {
				// Every cataloged name is covered and this copy's name
				// is not cataloged: a redundant alternative.
				if _, err := r.Delete(); err != nil {
					return stats, err
				}
				ev(r, "delete", "")
				stats.Deleted++
			} else {
				stats.Kept++
			}
			continue
		}

		newName := missing[0]
		if newName == r.Name() {
			stats.Kept++
			continue
		}
		ok, err := r.Rename(newName, false)
		if err != nil {
			return stats, err
		}
		if ok {
			ev(r, "rename", newName)
			stats.Renamed++
		} else {
			ev(r, "skip", newName)
			stats.Skipped++
		}
	}
	return stats, nil
}
