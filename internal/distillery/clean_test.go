package distillery

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sdalu/distillery/internal/rom"
)

func TestCleanDeletesExtras(t *testing.T) {
	withZipRegistry(t)
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"a.bin":    "content-a",
		"junk.bin": "not cataloged",
	})

	d := catalogOf(t, "G", map[string]string{"a.bin": "content-a"})
	s := NewStorage(scanDir(t, dir))

	var reported []string
	deleted, err := s.Clean(context.Background(), d, "", func(r *rom.ROM, trashed bool) {
		reported = append(reported, r.Path().Basename())
		if trashed {
			t.Error("nothing should be trashed without a trash dir")
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d", deleted)
	}
	if len(reported) != 1 || reported[0] != "junk.bin" {
		t.Errorf("reported = %v", reported)
	}
	if _, err := os.Stat(filepath.Join(dir, "junk.bin")); !os.IsNotExist(err) {
		t.Error("extra rom still present")
	}
	if _, err := os.Stat(filepath.Join(dir, "a.bin")); err != nil {
		t.Error("cataloged rom removed")
	}
}

func TestCleanTrashesBeforeDeleting(t *testing.T) {
	withZipRegistry(t)
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"junk.bin": "junk content"})

	d := catalogOf(t, "G", map[string]string{"a.bin": "content-a"})
	s := NewStorage(scanDir(t, dir))

	trash := filepath.Join(t.TempDir(), "trash")
	deleted, err := s.Clean(context.Background(), d, trash, nil)
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d", deleted)
	}

	data, err := os.ReadFile(filepath.Join(trash, "junk.bin"))
	if err != nil {
		t.Fatalf("trashed copy missing: %v", err)
	}
	if string(data) != "junk content" {
		t.Errorf("trashed copy = %q", data)
	}
	if _, err := os.Stat(filepath.Join(dir, "junk.bin")); !os.IsNotExist(err) {
		t.Error("source still present")
	}
}

func TestCleanNothingToDo(t *testing.T) {
	withZipRegistry(t)
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"a.bin": "content-a"})

	d := catalogOf(t, "G", map[string]string{"a.bin": "content-a"})
	s := NewStorage(scanDir(t, dir))

	deleted, err := s.Clean(context.Background(), d, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 0 {
		t.Errorf("deleted = %d", deleted)
	}
}
