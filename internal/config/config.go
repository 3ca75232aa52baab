// Package config reads the distillery TOML configuration: logging, the
// archive path separator, validate context and the declarative external
// archiver command table.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/sdalu/distillery/internal/archive"
)

// Config represents the main configuration for distillery.
type Config struct {
	LogDir           string           `toml:"log_dir"`
	ArchiveSeparator string           `toml:"archive_separator"`
	RootDirs         []string         `toml:"root_dirs"`
	Ignore           []string         `toml:"ignore"`
	Archivers        []ArchiverConfig `toml:"archivers"`
}

// ArchiverConfig declares one external archive tool. Argument templates
// use $(infile), $(entry) and $(new_entry) tokens; the ":zip" modifier
// escapes glob characters.
type ArchiverConfig struct {
	Name           string         `toml:"name"`
	Extensions     []string       `toml:"extensions"`
	MimeTypes      []string       `toml:"mimetypes"`
	TimeoutSeconds int            `toml:"timeout_seconds"`
	List           *ListConfig    `toml:"list"`
	Read           *CommandConfig `toml:"read"`
	Write          *CommandConfig `toml:"write"`
	Delete         *CommandConfig `toml:"delete"`
	Rename         *CommandConfig `toml:"rename"`
}

// CommandConfig is one tool invocation template.
type CommandConfig struct {
	Cmd  string   `toml:"cmd"`
	Args []string `toml:"args"`
}

// ListConfig extends CommandConfig with output parsing.
type ListConfig struct {
	CommandConfig
	Parser    string            `toml:"parser"`
	Validator map[string]string `toml:"validator"`
}

// ToolSpec converts the declarative form into the archive layer's spec.
func (a ArchiverConfig) ToolSpec() archive.ToolSpec {
	spec := archive.ToolSpec{
		Name:       a.Name,
		Extensions: a.Extensions,
		MimeTypes:  a.MimeTypes,
		Timeout:    time.Duration(a.TimeoutSeconds) * time.Second,
	}
	if a.List != nil {
		spec.List = &archive.ListSpec{
			CommandSpec: archive.CommandSpec{Cmd: a.List.Cmd, Args: a.List.Args},
			Parser:      a.List.Parser,
			Validator:   a.List.Validator,
		}
	}
	conv := func(c *CommandConfig) *archive.CommandSpec {
		if c == nil {
			return nil
		}
		return &archive.CommandSpec{Cmd: c.Cmd, Args: c.Args}
	}
	spec.Read = conv(a.Read)
	spec.Write = conv(a.Write)
	spec.Delete = conv(a.Delete)
	spec.Rename = conv(a.Rename)
	return spec
}

// NewConfig creates a Config with defaults rooted at baseDir.
func NewConfig(baseDir string) *Config {
	return &Config{
		LogDir:           filepath.Join(baseDir, "log"),
		ArchiveSeparator: "#",
		RootDirs:         []string{"roms", "ROMs"},
		Archivers:        DefaultArchivers(),
	}
}

// DefaultArchivers returns the built-in external tool table: 7z handled
// by the 7-Zip command-line tool. The native zip and read-only 7z
// providers are registered regardless.
func DefaultArchivers() []ArchiverConfig {
	return []ArchiverConfig{
		{
			Name:       "7z",
			Extensions: []string{".7z"},
			MimeTypes:  []string{"application/x-7z-compressed"},
			List: &ListConfig{
				CommandConfig: CommandConfig{
					Cmd:  "7z",
					Args: []string{"l", "-ba", "$(infile)"},
				},
				Parser: `^(?P<date>\S+)\s+(?P<time>\S+)\s+(?P<type>\S+)\s+(?P<size>\d+)\s+(?:\d+\s+)?(?P<entry>.+)$`,
				Validator: map[string]string{
					"type": `^[^D]+$`,
				},
			},
			Read: &CommandConfig{
				Cmd:  "7z",
				Args: []string{"x", "-so", "$(infile)", "$(entry)"},
			},
			Write: &CommandConfig{
				Cmd:  "7z",
				Args: []string{"a", "-si$(entry)", "$(infile)"},
			},
			Delete: &CommandConfig{
				Cmd:  "7z",
				Args: []string{"d", "$(infile)", "$(entry)"},
			},
			Rename: &CommandConfig{
				Cmd:  "7z",
				Args: []string{"rn", "$(infile)", "$(entry)", "$(new_entry)"},
			},
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path. A missing
// file yields the defaults.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewConfig(filepath.Dir(path)), nil
		}
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
