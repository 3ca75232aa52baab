package archive

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func makeZip(t *testing.T, file string, entries map[string]string, order ...string) {
	t.Helper()
	f, err := os.Create(file)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	zw := zip.NewWriter(f)
	for _, name := range order {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(entries[name])); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestZipListAndOpen(t *testing.T) {
	file := filepath.Join(t.TempDir(), "a.zip")
	makeZip(t, file, map[string]string{"x.bin": "XX", "sub/y.bin": "YY"}, "x.bin", "sub/y.bin")

	p := NewZipProvider()
	entries, err := p.List(file)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[0] != "x.bin" || entries[1] != "sub/y.bin" {
		t.Errorf("entries = %v", entries)
	}

	r, err := p.Open(file, "sub/y.bin")
	if err != nil {
		t.Fatal(err)
	}
	data, err := io.ReadAll(r)
	r.Close()
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "YY" {
		t.Errorf("content = %q", data)
	}

	if _, err := p.Open(file, "missing"); err == nil {
		t.Error("expected error for missing entry")
	}
}

func TestZipCreateNewArchive(t *testing.T) {
	file := filepath.Join(t.TempDir(), "new.zip")
	p := NewZipProvider()

	w, err := p.Create(file, "a.bin")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("hello")); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	entries, err := p.List(file)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0] != "a.bin" {
		t.Errorf("entries = %v", entries)
	}
}

func TestZipCreateAddsToExisting(t *testing.T) {
	file := filepath.Join(t.TempDir(), "a.zip")
	makeZip(t, file, map[string]string{"a.bin": "A"}, "a.bin")

	p := NewZipProvider()
	w, err := p.Create(file, "b.bin")
	if err != nil {
		t.Fatal(err)
	}
	io.WriteString(w, "B")
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	entries, err := p.List(file)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %v", entries)
	}

	r, err := p.Open(file, "a.bin")
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(r)
	r.Close()
	if string(data) != "A" {
		t.Errorf("a.bin = %q after adding b.bin", data)
	}
}

func TestZipRemove(t *testing.T) {
	file := filepath.Join(t.TempDir(), "a.zip")
	makeZip(t, file, map[string]string{"a.bin": "A", "b.bin": "B"}, "a.bin", "b.bin")

	p := NewZipProvider()
	if err := p.Remove(file, "a.bin"); err != nil {
		t.Fatal(err)
	}
	entries, err := p.List(file)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0] != "b.bin" {
		t.Errorf("entries = %v", entries)
	}

	if err := p.Remove(file, "missing"); err == nil {
		t.Error("expected error removing missing entry")
	}
}

func TestZipRenameEntry(t *testing.T) {
	file := filepath.Join(t.TempDir(), "a.zip")
	makeZip(t, file, map[string]string{"old.bin": "DATA"}, "old.bin")

	p := NewZipProvider()
	if err := p.RenameEntry(file, "old.bin", "new.bin"); err != nil {
		t.Fatal(err)
	}
	entries, err := p.List(file)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0] != "new.bin" {
		t.Errorf("entries = %v", entries)
	}

	r, err := p.Open(file, "new.bin")
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(r)
	r.Close()
	if string(data) != "DATA" {
		t.Errorf("content = %q", data)
	}
}

func TestZipArchiveDeleteLastEntryRemovesFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "a.zip")
	makeZip(t, file, map[string]string{"only.bin": "X"}, "only.bin")

	a := NewWith(file, NewZipProvider())
	if err := a.Delete("only.bin"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(file); !os.IsNotExist(err) {
		t.Error("archive file still exists after deleting last entry")
	}
}
