package vault

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sdalu/distillery/internal/archive"
	"github.com/sdalu/distillery/internal/checksum"
	"github.com/sdalu/distillery/internal/rom"
)

// Conventional ancillary names inside a ROM directory; scanning skips
// them.
var (
	skipFiles = map[string]bool{
		".dat": true, ".index": true, ".missing": true,
		".baddump": true, ".extra": true,
	}
	skipDirs = map[string]bool{
		".roms": true, ".games": true, ".trash": true,
	}
	// A directory holding one of these is a ROM directory in its own
	// right and is pruned from an enclosing scan.
	ownerMarks = []string{".dat", ".index"}
)

// AddFromFile ingests the file at relative below basedir. A recognized
// archive contributes one ROM per entry; anything else is a single ROM.
func (v *Vault) AddFromFile(relative, basedir string) error {
	full := relative
	if basedir != "" {
		full = filepath.Join(basedir, relative)
	}

	if p := archive.ForFile(full); p != nil {
		return v.addFromArchive(archive.NewWith(full, p))
	}

	path, err := rom.NewFilePath(relative, basedir)
	if err != nil {
		return err
	}
	f, err := os.Open(full)
	if err != nil {
		return fmt.Errorf("opening %s: %w", full, err)
	}
	defer f.Close()
	d, err := checksum.Compute(f)
	if err != nil {
		return fmt.Errorf("checksumming %s: %w", full, err)
	}
	v.Add(rom.FromDigests(path, d))
	return nil
}

func (v *Vault) addFromArchive(a *archive.Archive) error {
	return a.Each(func(entry string, r io.Reader) error {
		d, err := checksum.Compute(r)
		if err != nil {
			return fmt.Errorf("checksumming %s entry %q: %w", a.Path(), entry, err)
		}
		v.Add(rom.FromDigests(rom.NewEntryPath(a, entry), d))
		return nil
	})
}

// NoDepthLimit disables the AddFromDir depth limit.
const NoDepthLimit = -1

// AddFromDir ingests every ROM below dir in pre-order, honoring the
// conventional prune rules: ancillary file names are skipped, dot
// directories and directories belonging to another ROM directory are not
// descended into, and traversal stops depth path components below dir
// when depth is not NoDepthLimit. Cancellation is checked between items.
func (v *Vault) AddFromDir(ctx context.Context, dir string, depth int) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, rerr := filepath.Rel(dir, path)
		if rerr != nil {
			return rerr
		}
		if rel == "." {
			return nil
		}

		name := d.Name()
		if d.IsDir() {
			if skipDirs[name] || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			if hasOwnerMark(path) {
				return filepath.SkipDir
			}
			if depth != NoDepthLimit && pathDepth(rel) >= depth {
				return filepath.SkipDir
			}
			return nil
		}

		if skipFiles[name] {
			return nil
		}
		if depth != NoDepthLimit && pathDepth(rel) > depth {
			return nil
		}
		if v.ignore.Match(rel) {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return v.AddFromFile(rel, dir)
	})
}

// hasOwnerMark reports whether the directory holds a .dat or .index file.
func hasOwnerMark(dir string) bool {
	for _, mark := range ownerMarks {
		if _, err := os.Stat(filepath.Join(dir, mark)); err == nil {
			return true
		}
	}
	return false
}

// pathDepth counts the path components of a relative path.
func pathDepth(rel string) int {
	return len(strings.Split(filepath.ToSlash(rel), "/"))
}

// AddFromGlob ingests everything the glob pattern matches. The scan base
// directory is the longest literal prefix before the first unescaped glob
// metacharacter; matched directories are scanned with the usual prune
// rules.
func (v *Vault) AddFromGlob(ctx context.Context, pattern string) error {
	base := globBase(pattern)

	matches, err := filepath.Glob(pattern)
	if err != nil {
		return fmt.Errorf("bad glob %q: %w", pattern, err)
	}
	for _, match := range matches {
		if err := ctx.Err(); err != nil {
			return err
		}
		info, err := os.Stat(match)
		if err != nil {
			return err
		}
		if info.IsDir() {
			if err := v.AddFromDir(ctx, match, NoDepthLimit); err != nil {
				return err
			}
			continue
		}
		if skipFiles[filepath.Base(match)] {
			continue
		}
		rel, err := filepath.Rel(base, match)
		if err != nil || strings.HasPrefix(rel, "..") {
			rel, base = match, ""
		}
		if v.ignore.Match(rel) {
			continue
		}
		if err := v.AddFromFile(rel, base); err != nil {
			return err
		}
	}
	return nil
}

// globBase returns the longest literal directory prefix of a glob
// pattern.
func globBase(pattern string) string {
	i := strings.IndexAny(pattern, "*?[{")
	for i > 0 && pattern[i-1] == '\\' {
		rest := strings.IndexAny(pattern[i+1:], "*?[{")
		if rest < 0 {
			i = -1
			break
		}
		i += 1 + rest
	}
	if i < 0 {
		return filepath.Dir(pattern)
	}
	return filepath.Dir(pattern[:i+1])
}
