// Package app is the layer between the CLI and the distillery core. It
// wires providers, the archive separator and logging from config, and
// exposes high-level operations that accept raw string arguments.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/sdalu/distillery/internal/archive"
	"github.com/sdalu/distillery/internal/config"
	"github.com/sdalu/distillery/internal/dat"
	"github.com/sdalu/distillery/internal/distillery"
	"github.com/sdalu/distillery/internal/index"
	"github.com/sdalu/distillery/internal/rom"
	"github.com/sdalu/distillery/internal/vault"
)

// App carries the wired configuration for one CLI invocation.
type App struct {
	cfg     *config.Config
	logger  distillery.Logger
	logFile *os.File
	opID    string
}

// New creates a fully wired App from the given config. operation
// identifies the CLI command being run (e.g. "Check", "Rebuild"). The
// caller must call Close when done.
func New(cfg *config.Config, operation string) (*App, error) {
	opID := uuid.New().String()

	slogger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger.With("operation", operation)}

	rom.SetArchiveSeparator(cfg.ArchiveSeparator)
	rom.WarnFunc = logger.Warn

	reg := archive.NewRegistry(logger.Warn)
	reg.Register(archive.NewZipProvider())
	reg.Register(archive.NewSevenZipProvider())
	for _, ac := range cfg.Archivers {
		p, err := archive.NewExternalProvider(ac.ToolSpec())
		if err != nil {
			// A misdeclared tool degrades to the native providers.
			logger.Warn("skipping external archiver", "name", ac.Name, "error", err)
			continue
		}
		reg.Register(p)
	}
	archive.SetDefaultRegistry(reg)

	return &App{cfg: cfg, logger: logger, logFile: logFile, opID: opID}, nil
}

// Close releases the App's resources.
func (a *App) Close() error {
	if a.logFile != nil {
		return a.logFile.Close()
	}
	return nil
}

// Logger returns the App's logger.
func (a *App) Logger() distillery.Logger { return a.logger }

// newVault builds a vault from raw source arguments: directories are
// walked, archives and files ingested directly, glob patterns expanded.
func (a *App) newVault(ctx context.Context, sources []string) (*vault.Vault, error) {
	v := vault.New(vault.WithIgnore(vault.NewIgnoreMatcher(a.cfg.Ignore)))
	for _, src := range sources {
		if strings.ContainsAny(src, "*?[{") {
			if err := v.AddFromGlob(ctx, src); err != nil {
				return nil, fmt.Errorf("scanning %s: %w", src, err)
			}
			continue
		}
		info, err := os.Stat(src)
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", src, err)
		}
		if info.IsDir() {
			if err := v.AddFromDir(ctx, src, vault.NoDepthLimit); err != nil {
				return nil, fmt.Errorf("scanning %s: %w", src, err)
			}
			continue
		}
		if err := v.AddFromFile(filepath.Base(src), filepath.Dir(src)); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", src, err)
		}
	}
	a.logger.Info("vault populated", "roms", v.Size(), "sources", len(sources))
	return v, nil
}

func (a *App) newStorage(v *vault.Vault) *distillery.Storage {
	return distillery.NewStorage(v,
		distillery.WithRootDirs(a.cfg.RootDirs...),
		distillery.WithLogger(a.logger))
}

// Check compares the ROMs below sources with the catalog.
func (a *App) Check(ctx context.Context, datPath string, sources []string) (*distillery.CheckResult, *dat.File, error) {
	d, err := dat.ParseFile(datPath)
	if err != nil {
		return nil, nil, err
	}
	v, err := a.newVault(ctx, sources)
	if err != nil {
		return nil, nil, err
	}
	return a.newStorage(v).Check(d), d, nil
}

// Validate classifies every catalog ROM against the scanned sources.
func (a *App) Validate(ctx context.Context, datPath string, sources []string, ev *distillery.ValidateEvents) (distillery.ValidateStats, error) {
	d, err := dat.ParseFile(datPath)
	if err != nil {
		return nil, err
	}
	v, err := a.newVault(ctx, sources)
	if err != nil {
		return nil, err
	}
	return a.newStorage(v).Validate(ctx, d, ev)
}

// Rename brings scanned ROM names in line with the catalog.
func (a *App) Rename(ctx context.Context, datPath string, sources []string, ev distillery.RenameEvent) (distillery.RenameStats, error) {
	d, err := dat.ParseFile(datPath)
	if err != nil {
		return distillery.RenameStats{}, err
	}
	v, err := a.newVault(ctx, sources)
	if err != nil {
		return distillery.RenameStats{}, err
	}
	return a.newStorage(v).Rename(ctx, d, ev)
}

// Rebuild materializes per-game archives under dest.
func (a *App) Rebuild(ctx context.Context, dest, datPath string, sources []string, format string) (int, error) {
	d, err := dat.ParseFile(datPath)
	if err != nil {
		return 0, err
	}
	v, err := a.newVault(ctx, sources)
	if err != nil {
		return 0, err
	}
	return distillery.Rebuild(ctx, dest, d, v, format)
}

// Clean deletes scanned ROMs the catalog does not reference.
func (a *App) Clean(ctx context.Context, datPath string, sources []string, trashDir string, ev distillery.CleanEvent) (int, error) {
	d, err := dat.ParseFile(datPath)
	if err != nil {
		return 0, err
	}
	v, err := a.newVault(ctx, sources)
	if err != nil {
		return 0, err
	}
	return a.newStorage(v).Clean(ctx, d, trashDir, ev)
}

// Repack re-encodes each archive into the target container format.
func (a *App) Repack(files []string, target string, dryrun bool) error {
	for _, file := range files {
		if err := archive.Repack(file, target, dryrun); err != nil {
			return fmt.Errorf("repacking %s: %w", file, err)
		}
		a.logger.Info("repacked", "file", file, "target", target, "dryrun", dryrun)
	}
	return nil
}

// ScanHeaders reports the detected dump header of each file.
func (a *App) ScanHeaders(ctx context.Context, paths []string) ([]distillery.HeaderReport, error) {
	return distillery.ScanHeaders(ctx, paths)
}

// SaveIndex scans sources and persists their index at dst.
func (a *App) SaveIndex(ctx context.Context, sources []string, dst string, format index.Format, pathstrip int) error {
	v, err := a.newVault(ctx, sources)
	if err != nil {
		return err
	}
	return index.Save(v, dst, format, pathstrip, func(path string) {
		a.logger.Warn("index entry skipped by pathstrip", "path", path)
	})
}

// UpdateIndex refreshes an index file against the filesystem.
func (a *App) UpdateIndex(ctx context.Context, indexFile string, adding bool, format index.Format, report index.ReportFunc) (bool, error) {
	return index.Update(ctx, indexFile, adding, format, report)
}
