package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestReadWriteRoundTrip(t *testing.T) {
	cfg := NewConfig("/base")
	cfg.Ignore = []string{"*.tmp"}

	var sb strings.Builder
	m := &Manager{}
	if err := m.Write(&sb, cfg); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := m.Read(strings.NewReader(sb.String()))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.LogDir != cfg.LogDir {
		t.Errorf("log_dir = %q", got.LogDir)
	}
	if got.ArchiveSeparator != "#" {
		t.Errorf("archive_separator = %q", got.ArchiveSeparator)
	}
	if len(got.RootDirs) != 2 {
		t.Errorf("root_dirs = %v", got.RootDirs)
	}
	if len(got.Ignore) != 1 || got.Ignore[0] != "*.tmp" {
		t.Errorf("ignore = %v", got.Ignore)
	}
	if len(got.Archivers) != len(cfg.Archivers) {
		t.Errorf("archivers = %d, want %d", len(got.Archivers), len(cfg.Archivers))
	}
}

func TestReadFromMissingFileGivesDefaults(t *testing.T) {
	cfg, err := ReadFromFile(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if cfg.ArchiveSeparator != "#" {
		t.Errorf("separator = %q", cfg.ArchiveSeparator)
	}
	if len(cfg.Archivers) == 0 {
		t.Error("defaults lack the archiver table")
	}
}

func TestInitRefusesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "distillery.toml")
	if err := Init(path, NewConfig("/base")); err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatal("config file not written")
	}
	if err := Init(path, NewConfig("/base")); err == nil {
		t.Error("expected error for existing config")
	}
}

func TestToolSpecConversion(t *testing.T) {
	ac := DefaultArchivers()[0]
	ac.TimeoutSeconds = 30

	spec := ac.ToolSpec()
	if spec.Name != "7z" {
		t.Errorf("name = %q", spec.Name)
	}
	if spec.Timeout != 30*time.Second {
		t.Errorf("timeout = %v", spec.Timeout)
	}
	if spec.List == nil || spec.Read == nil || spec.Write == nil {
		t.Error("command specs missing")
	}
	if spec.List.Parser == "" {
		t.Error("list parser missing")
	}
	if spec.List.Validator["type"] == "" {
		t.Error("list validator missing")
	}
}
