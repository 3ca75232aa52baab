package app

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestGetDefaultsHonorsEnv(t *testing.T) {
	t.Setenv("DISTILLERY_CONFIG_PATH", "/custom/distillery.toml")
	t.Setenv("DISTILLERY_HOME", "/custom/home")

	defaults, err := GetDefaults()
	if err != nil {
		t.Fatal(err)
	}
	if defaults["config_path"] != "/custom/distillery.toml" {
		t.Errorf("config_path = %q", defaults["config_path"])
	}
	if defaults["base_dir"] != "/custom/home" {
		t.Errorf("base_dir = %q", defaults["base_dir"])
	}
	if defaults["log_dir"] != filepath.Join("/custom/home", "log") {
		t.Errorf("log_dir = %q", defaults["log_dir"])
	}
}

func TestGetDefaultsFallsBackToHome(t *testing.T) {
	t.Setenv("DISTILLERY_CONFIG_PATH", "")
	t.Setenv("DISTILLERY_HOME", "")

	defaults, err := GetDefaults()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(defaults["config_path"], filepath.Join(".config", "distillery.toml")) {
		t.Errorf("config_path = %q", defaults["config_path"])
	}
}
