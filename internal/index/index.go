// Package index persists a vault snapshot to disk and reloads it with
// out-of-sync detection against current file modification times.
package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sdalu/distillery/internal/archive"
	"github.com/sdalu/distillery/internal/rom"
	"github.com/sdalu/distillery/internal/vault"
)

// ErrLoad means the index file is not valid YAML/JSON or not a mapping.
var ErrLoad = errors.New("malformed index")

// Format selects the serialization dialect.
type Format string

const (
	YAML Format = "yaml"
	JSON Format = "json"
)

// TimeLayout is the timestamp format of index entries,
// e.g. "2021-07-14 13:02:55.123456789 UTC".
const TimeLayout = "2006-01-02 15:04:05.000000000 MST"

// Entry is one serialized ROM.
type Entry struct {
	SHA256    string `json:"sha256" yaml:"sha256"`
	SHA1      string `json:"sha1" yaml:"sha1"`
	MD5       string `json:"md5" yaml:"md5"`
	CRC32     string `json:"crc32" yaml:"crc32"`
	Size      int64  `json:"size" yaml:"size"`
	Offset    int64  `json:"offset,omitempty" yaml:"offset,omitempty"`
	Timestamp string `json:"timestamp" yaml:"timestamp"`
}

// Save serializes the vault's snapshot at dst. pathstrip removes that
// many leading path components from each key; keys stripped away
// entirely are passed to skipped and omitted. skipped may be nil.
func Save(v *vault.Vault, dst string, format Format, pathstrip int, skipped func(path string)) error {
	snap, err := v.Index()
	if err != nil {
		return err
	}

	basedir := filepath.Dir(dst)
	out := make(map[string]Entry, len(snap))
	for path, se := range snap {
		// Keys are stored relative to the index's directory so the
		// index survives relocation; paths outside stay absolute.
		if rel, rerr := filepath.Rel(basedir, path); rerr == nil && !strings.HasPrefix(rel, "..") {
			path = rel
		}
		if pathstrip > 0 {
			stripped, ok := stripPath(path, pathstrip)
			if !ok {
				if skipped != nil {
					skipped(path)
				}
				continue
			}
			path = stripped
		}
		out[path] = Entry{
			SHA256:    se.Info.SHA256,
			SHA1:      se.Info.SHA1,
			MD5:       se.Info.MD5,
			CRC32:     se.Info.CRC32,
			Size:      se.Info.Size,
			Offset:    se.Info.Offset,
			Timestamp: se.MTime.UTC().Format(TimeLayout),
		}
	}

	var data []byte
	switch format {
	case JSON:
		data, err = json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding index: %w", err)
		}
		data = append(data, '\n')
	case YAML:
		body, err := yaml.Marshal(out)
		if err != nil {
			return fmt.Errorf("encoding index: %w", err)
		}
		data = append([]byte("---\n"), body...)
	default:
		return fmt.Errorf("unknown index format %q", format)
	}

	return writeAtomic(dst, data)
}

// writeAtomic writes data at dst through a temp file and rename.
func writeAtomic(dst string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".index-*")
	if err != nil {
		return fmt.Errorf("creating temp index: %w", err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing index: %w", err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return fmt.Errorf("committing index: %w", err)
	}
	success = true
	return nil
}

// stripPath removes the first n path components. When the archive
// separator coincides with the path separator, the archive file is
// recognized by a registered extension and the entry re-joins on the
// other side of the strip. ok is false when nothing remains.
func stripPath(path string, n int) (string, bool) {
	sep := string(os.PathSeparator)

	if rom.ArchiveSeparator() != sep {
		if file, entry, isArchive := rom.SplitArchivePath(path); isArchive {
			stripped, ok := stripComponents(file, n)
			if !ok {
				return "", false
			}
			return rom.JoinArchivePath(stripped, entry), true
		}
		return stripComponents(path, n)
	}

	// Separator collides with the path separator: locate the archive
	// file among the components by extension. The first component
	// bearing a supported archive extension is taken as the archive.
	components := strings.Split(path, sep)
	arcIdx := -1
	for i, c := range components {
		if archive.DefaultRegistry().MatchedExtension(c) != "" {
			arcIdx = i
			break
		}
	}
	if arcIdx < 0 || arcIdx+1 >= len(components) {
		return stripComponents(path, n)
	}
	file := strings.Join(components[:arcIdx+1], sep)
	entry := strings.Join(components[arcIdx+1:], sep)
	stripped, ok := stripComponents(file, n)
	if !ok {
		return "", false
	}
	return stripped + sep + entry, true
}

func stripComponents(path string, n int) (string, bool) {
	components := strings.Split(path, string(os.PathSeparator))
	if n >= len(components) {
		return "", false
	}
	return strings.Join(components[n:], string(os.PathSeparator)), true
}

// storageMTime returns the mtime a loaded entry must match.
func storageMTime(file string) (time.Time, bool) {
	info, err := os.Stat(file)
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}
