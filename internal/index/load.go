package index

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sdalu/distillery/internal/archive"
	"github.com/sdalu/distillery/internal/checksum"
	"github.com/sdalu/distillery/internal/rom"
	"github.com/sdalu/distillery/internal/vault"
)

// OutOfSyncFunc decides whether an out-of-sync ROM (storage mtime differs
// from the recorded timestamp, or storage is missing) is still accepted
// into the loaded vault.
type OutOfSyncFunc func(r *rom.ROM) bool

// Load reads an index file back into a vault. The dialect is auto
// detected: a "---\n" prefix is YAML, a leading '{' or '[' is JSON.
// Entries whose storage is out of sync are passed to outOfSync (nil
// rejects them all); rejected ROMs are returned separately.
func Load(file string, outOfSync OutOfSyncFunc) (*vault.Vault, []*rom.ROM, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, nil, fmt.Errorf("reading index: %w", err)
	}

	entries, err := decode(data)
	if err != nil {
		return nil, nil, err
	}

	// Deterministic load order: path-sorted.
	paths := make([]string, 0, len(entries))
	for p := range entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	basedir := filepath.Dir(file)
	v := vault.New()
	var rejected []*rom.ROM

	// Entries of one archive share a single Archive value so container
	// state stays coherent.
	archives := make(map[string]*archive.Archive)

	for _, pathStr := range paths {
		e := entries[pathStr]
		r, err := buildROM(pathStr, e, basedir, archives)
		if err != nil {
			return nil, nil, err
		}

		if synced(r, e) {
			v.Add(r)
			continue
		}
		if outOfSync != nil && outOfSync(r) {
			v.Add(r)
			continue
		}
		rejected = append(rejected, r)
	}
	return v, rejected, nil
}

func decode(data []byte) (map[string]Entry, error) {
	entries := make(map[string]Entry)
	switch {
	case bytes.HasPrefix(data, []byte("---\n")):
		if err := yaml.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoad, err)
		}
	case len(bytes.TrimSpace(data)) > 0 &&
		(bytes.TrimSpace(data)[0] == '{' || bytes.TrimSpace(data)[0] == '['):
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoad, err)
		}
	default:
		return nil, fmt.Errorf("%w: neither YAML nor JSON", ErrLoad)
	}
	return entries, nil
}

// buildROM reconstructs a ROM from one index row. A path matching the
// archive-path grammar with a registered archive extension becomes an
// archive entry; anything else is a plain file relative to the index's
// directory.
func buildROM(pathStr string, e Entry, basedir string, archives map[string]*archive.Archive) (*rom.ROM, error) {
	sums := map[checksum.Kind][]byte{}
	for kind, hex := range map[checksum.Kind]string{
		checksum.SHA256: e.SHA256,
		checksum.SHA1:   e.SHA1,
		checksum.MD5:    e.MD5,
		checksum.CRC32:  e.CRC32,
	} {
		if hex != "" {
			sums[kind] = []byte(hex)
		}
	}

	var path rom.Path
	if file, entry, isArchive := rom.SplitArchivePath(pathStr); isArchive && entry != "" && archive.ForFile(file) != nil {
		full := file
		if !filepath.IsAbs(full) {
			full = filepath.Join(basedir, file)
		}
		a, ok := archives[full]
		if !ok {
			a = archive.NewWith(full, archive.ForFile(full))
			archives[full] = a
		}
		path = rom.NewEntryPath(a, entry)
	} else {
		entry, root := pathStr, basedir
		if filepath.IsAbs(pathStr) {
			root = string(os.PathSeparator)
			entry = strings.TrimPrefix(pathStr, root)
		}
		fp, err := rom.NewFilePath(entry, root)
		if err != nil {
			return nil, fmt.Errorf("%w: path %q: %v", ErrLoad, pathStr, err)
		}
		path = fp
	}

	r, err := rom.New(path, e.Size, e.Offset, sums)
	if err != nil {
		return nil, fmt.Errorf("%w: entry %q: %v", ErrLoad, pathStr, err)
	}
	return r, nil
}

// synced reports whether the ROM's storage mtime still matches the
// recorded timestamp.
func synced(r *rom.ROM, e Entry) bool {
	file := r.Path().File()
	if file == "" {
		return false
	}
	mtime, ok := storageMTime(file)
	if !ok {
		return false
	}
	recorded, err := time.Parse(TimeLayout, e.Timestamp)
	if err != nil {
		return false
	}
	return recorded.Equal(mtime)
}
