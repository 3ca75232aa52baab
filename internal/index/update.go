package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/sdalu/distillery/internal/archive"
	"github.com/sdalu/distillery/internal/rom"
	"github.com/sdalu/distillery/internal/vault"
)

// Action classifies one Update change.
type Action int

const (
	ActionUpdate Action = iota
	ActionAdd
	ActionRemove
)

func (a Action) String() string {
	switch a {
	case ActionUpdate:
		return "UPDATE"
	case ActionAdd:
		return "ADD"
	case ActionRemove:
		return "REMOVE"
	default:
		return fmt.Sprintf("index.Action(%d)", int(a))
	}
}

// ReportFunc receives each Update change.
type ReportFunc func(action Action, path string)

// Update refreshes an index file against the current filesystem state:
// entries whose storage vanished are removed, changed archives are
// re-scanned, changed files re-checksummed. With adding, ROMs found in
// the index's directory but absent from the index are added too. The
// index is rewritten only when something changed. It reports whether a
// rewrite happened.
func Update(ctx context.Context, indexFile string, adding bool, format Format, report ReportFunc) (bool, error) {
	if report == nil {
		report = func(Action, string) {}
	}

	// Load, pushing every out-of-sync ROM aside.
	changed := make(map[string][]*rom.ROM)
	v, rejected, err := Load(indexFile, nil)
	if err != nil {
		return false, err
	}
	for _, r := range rejected {
		file := r.Path().File()
		changed[file] = append(changed[file], r)
	}

	files := make([]string, 0, len(changed))
	for f := range changed {
		files = append(files, f)
	}
	sort.Strings(files)

	dirty := false
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		old := changed[file]

		if _, err := os.Stat(file); err != nil {
			if !os.IsNotExist(err) {
				return false, fmt.Errorf("stat %s: %w", file, err)
			}
			for _, r := range old {
				report(ActionRemove, r.Path().String())
			}
			dirty = true
			continue
		}

		if archive.ForFile(file) != nil {
			if err := updateArchive(v, file, old, adding, report); err != nil {
				return false, err
			}
			dirty = true
			continue
		}

		// Plain ROM file: recompute in place.
		for _, r := range old {
			if err := recomputeFile(v, r); err != nil {
				return false, err
			}
			report(ActionUpdate, r.Path().String())
		}
		dirty = true
	}

	if adding {
		added, err := addUnindexed(ctx, v, filepath.Dir(indexFile), report)
		if err != nil {
			return false, err
		}
		dirty = dirty || added
	}

	if !dirty {
		return false, nil
	}
	if err := Save(v, indexFile, format, 0, nil); err != nil {
		return false, err
	}
	return true, nil
}

// updateArchive re-scans a changed archive and reconciles its entries
// with the index's previous view of it.
func updateArchive(v *vault.Vault, file string, old []*rom.ROM, adding bool, report ReportFunc) error {
	tmp := vault.New()
	if err := tmp.AddFromFile(file, ""); err != nil {
		return fmt.Errorf("rescanning %s: %w", file, err)
	}

	oldByEntry := make(map[string]*rom.ROM, len(old))
	for _, r := range old {
		oldByEntry[r.Path().Entry()] = r
	}

	seen := make(map[string]bool)
	for _, r := range tmp.ROMs() {
		entry := r.Path().Entry()
		seen[entry] = true
		if _, kept := oldByEntry[entry]; kept {
			report(ActionUpdate, r.Path().String())
			v.Add(r)
			continue
		}
		if adding {
			report(ActionAdd, r.Path().String())
			v.Add(r)
		}
	}
	for entry, r := range oldByEntry {
		if !seen[entry] {
			report(ActionRemove, r.Path().String())
		}
	}
	return nil
}

// recomputeFile re-checksums a plain ROM file and adds the fresh
// descriptor to the vault.
func recomputeFile(v *vault.Vault, old *rom.ROM) error {
	fp, ok := old.Path().(*rom.FilePath)
	if !ok {
		return fmt.Errorf("unexpected path kind for %s", old.Path())
	}
	return v.AddFromFile(fp.Entry(), fp.Storage())
}

// addUnindexed scans the index's directory and adds ROMs the vault does
// not already reference.
func addUnindexed(ctx context.Context, v *vault.Vault, dir string, report ReportFunc) (bool, error) {
	known := make(map[string]bool, len(v.ROMs()))
	for _, r := range v.ROMs() {
		known[r.Path().String()] = true
	}

	scan := vault.New()
	if err := scan.AddFromDir(ctx, dir, vault.NoDepthLimit); err != nil {
		return false, fmt.Errorf("rescanning %s: %w", dir, err)
	}

	added := false
	for _, r := range scan.ROMs() {
		if known[r.Path().String()] {
			continue
		}
		report(ActionAdd, r.Path().String())
		v.Add(r)
		added = true
	}
	return added, nil
}
