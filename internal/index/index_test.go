package index

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sdalu/distillery/internal/archive"
	"github.com/sdalu/distillery/internal/rom"
	"github.com/sdalu/distillery/internal/vault"
)

func withZipRegistry(t *testing.T) {
	t.Helper()
	prev := archive.DefaultRegistry()
	reg := archive.NewRegistry(nil)
	reg.Register(archive.NewZipProvider())
	archive.SetDefaultRegistry(reg)
	t.Cleanup(func() { archive.SetDefaultRegistry(prev) })
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		full := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func scanDir(t *testing.T, dir string) *vault.Vault {
	t.Helper()
	v := vault.New()
	if err := v.AddFromDir(context.Background(), dir, vault.NoDepthLimit); err != nil {
		t.Fatal(err)
	}
	return v
}

func TestSaveLoadRoundTrip(t *testing.T) {
	withZipRegistry(t)
	for _, format := range []Format{YAML, JSON} {
		t.Run(string(format), func(t *testing.T) {
			dir := t.TempDir()
			writeFiles(t, dir, map[string]string{"a.bin": "abc", "sub/b.bin": "defg"})
			v := scanDir(t, dir)

			idx := filepath.Join(dir, ".index")
			if err := Save(v, idx, format, 0, nil); err != nil {
				t.Fatalf("save: %v", err)
			}

			loaded, rejected, err := Load(idx, nil)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if len(rejected) != 0 {
				t.Errorf("rejected = %d", len(rejected))
			}

			// The reloaded snapshot matches the original.
			want, err := v.Index()
			if err != nil {
				t.Fatal(err)
			}
			got, err := loaded.Index()
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(want) {
				t.Fatalf("entries = %d, want %d", len(got), len(want))
			}
			for path, wantEntry := range want {
				gotEntry, ok := got[path]
				if !ok {
					t.Errorf("missing %s", path)
					continue
				}
				if gotEntry.Info != wantEntry.Info {
					t.Errorf("%s: info = %+v, want %+v", path, gotEntry.Info, wantEntry.Info)
				}
			}
		})
	}
}

func TestLoadDetectsOutOfSync(t *testing.T) {
	withZipRegistry(t)
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"a.bin": "abc", "b.bin": "defg"})
	v := scanDir(t, dir)

	idx := filepath.Join(dir, ".index")
	if err := Save(v, idx, YAML, 0, nil); err != nil {
		t.Fatal(err)
	}

	// Touch one file so its mtime disagrees with the index.
	future := time.Now().Add(2 * time.Hour)
	if err := os.Chtimes(filepath.Join(dir, "a.bin"), future, future); err != nil {
		t.Fatal(err)
	}

	var called []string
	loaded, rejected, err := Load(idx, func(r *rom.ROM) bool {
		called = append(called, r.Path().Basename())
		return false
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(called) != 1 || called[0] != "a.bin" {
		t.Errorf("callback calls = %v, want exactly a.bin", called)
	}
	if len(rejected) != 1 {
		t.Errorf("rejected = %d", len(rejected))
	}
	if loaded.Size() != 1 {
		t.Errorf("loaded size = %d, want the in-sync rom only", loaded.Size())
	}
}

func TestLoadAcceptedOutOfSync(t *testing.T) {
	withZipRegistry(t)
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"a.bin": "abc"})
	v := scanDir(t, dir)

	idx := filepath.Join(dir, ".index")
	if err := Save(v, idx, YAML, 0, nil); err != nil {
		t.Fatal(err)
	}
	future := time.Now().Add(time.Hour)
	os.Chtimes(filepath.Join(dir, "a.bin"), future, future)

	loaded, rejected, err := Load(idx, func(*rom.ROM) bool { return true })
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Size() != 1 || len(rejected) != 0 {
		t.Errorf("loaded/rejected = %d/%d", loaded.Size(), len(rejected))
	}
}

func TestLoadSharesArchiveObjects(t *testing.T) {
	withZipRegistry(t)
	dir := t.TempDir()

	zf, err := os.Create(filepath.Join(dir, "game.zip"))
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(zf)
	for _, name := range []string{"x.bin", "y.bin"} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		w.Write([]byte(name))
	}
	zw.Close()
	zf.Close()

	v := vault.New()
	if err := v.AddFromFile("game.zip", dir); err != nil {
		t.Fatal(err)
	}

	idx := filepath.Join(dir, ".index")
	if err := Save(v, idx, YAML, 0, nil); err != nil {
		t.Fatal(err)
	}

	loaded, _, err := Load(idx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Size() != 2 {
		t.Fatalf("loaded size = %d", loaded.Size())
	}

	var archives []*archive.Archive
	for _, r := range loaded.ROMs() {
		ep, ok := r.Path().(*rom.EntryPath)
		if !ok {
			t.Fatalf("path is %T", r.Path())
		}
		archives = append(archives, ep.Archive())
	}
	if archives[0] != archives[1] {
		t.Error("entries of one archive do not share the Archive value")
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad")
	if err := os.WriteFile(bad, []byte("not an index"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Load(bad, nil); err == nil {
		t.Error("expected load error")
	}
}

func TestSavePathStrip(t *testing.T) {
	withZipRegistry(t)
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"a.bin": "abc"})
	v := scanDir(t, dir)

	idx := filepath.Join(t.TempDir(), "idx.yaml")
	var skipped []string
	depth := len(strings.Split(filepath.Join(dir, "a.bin"), string(os.PathSeparator)))

	// Stripping everything skips the entry.
	if err := Save(v, idx, YAML, depth, func(p string) { skipped = append(skipped, p) }); err != nil {
		t.Fatal(err)
	}
	if len(skipped) != 1 {
		t.Errorf("skipped = %v", skipped)
	}

	// Stripping all but the last component keeps the basename.
	if err := Save(v, idx, YAML, depth-1, nil); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(idx)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "a.bin:") {
		t.Errorf("index content:\n%s", data)
	}
}

func TestTimestampFormat(t *testing.T) {
	ts := time.Date(2021, 7, 14, 13, 2, 55, 123456789, time.UTC)
	got := ts.Format(TimeLayout)
	if got != "2021-07-14 13:02:55.123456789 UTC" {
		t.Errorf("timestamp = %q", got)
	}
	parsed, err := time.Parse(TimeLayout, got)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !parsed.Equal(ts) {
		t.Errorf("round trip = %v", parsed)
	}
}
