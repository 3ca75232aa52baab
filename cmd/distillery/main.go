package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/sdalu/distillery/internal/app"
	"github.com/sdalu/distillery/internal/config"
	"github.com/sdalu/distillery/internal/dat"
	"github.com/sdalu/distillery/internal/distillery"
	"github.com/sdalu/distillery/internal/index"
	"github.com/sdalu/distillery/internal/rom"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var (
	flagDat    string
	flagOutput string
	flagTrash  string
	flagStrip  int
	flagFormat string
	flagDryRun bool
	flagAdd    bool
)

// newApp reads the config and creates an App. The caller must defer
// app.Close(). operation identifies the CLI command being run.
func newApp(operation string) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.New(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// signalContext cancels on SIGINT/SIGTERM so long scans stop cleanly.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// interactive reports whether stdout is a terminal; structured output
// modes ignore it.
func interactive() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// emit renders v according to --output.
func emit(v any) error {
	switch flagOutput {
	case "json":
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	case "yaml":
		data, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		fmt.Print(string(data))
	default:
		return fmt.Errorf("unknown output mode %q", flagOutput)
	}
	return nil
}

var rootCmd = &cobra.Command{
	Use:   "distillery",
	Short: "ROM collection manager",
	Long:  "Maintain, validate and rebuild ROM collections against DAT catalogs.",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "text", "output mode (text, json, yaml)")

	checkCmd.Flags().StringVarP(&flagDat, "dat", "d", ".dat", "catalog file")
	validateCmd.Flags().StringVarP(&flagDat, "dat", "d", ".dat", "catalog file")
	renameCmd.Flags().StringVarP(&flagDat, "dat", "d", ".dat", "catalog file")
	rebuildCmd.Flags().StringVarP(&flagDat, "dat", "d", ".dat", "catalog file")
	rebuildCmd.Flags().StringVarP(&flagFormat, "format", "f", "zip", "archive format of rebuilt games")
	repackCmd.Flags().StringVarP(&flagFormat, "format", "f", "zip", "target archive format")
	repackCmd.Flags().BoolVarP(&flagDryRun, "dry-run", "n", false, "plan only, no filesystem changes")
	cleanCmd.Flags().StringVarP(&flagDat, "dat", "d", ".dat", "catalog file")
	cleanCmd.Flags().StringVar(&flagTrash, "trash", "", "copy extras here before deletion")
	indexSaveCmd.Flags().IntVar(&flagStrip, "pathstrip", 0, "strip leading path components")
	indexSaveCmd.Flags().StringVarP(&flagFormat, "format", "f", "yaml", "index format (yaml, json)")
	indexUpdateCmd.Flags().BoolVarP(&flagAdd, "add", "a", false, "add newly found roms")
	indexUpdateCmd.Flags().StringVarP(&flagFormat, "format", "f", "yaml", "index format (yaml, json)")

	indexCmd.AddCommand(indexSaveCmd, indexUpdateCmd)
	configCmd.AddCommand(configInitCmd, configListCmd)
	rootCmd.AddCommand(checkCmd, validateCmd, indexCmd, renameCmd,
		rebuildCmd, repackCmd, headerCmd, cleanCmd, configCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check [dir...]",
	Short: "Compare a ROM collection against a catalog",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Check")
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext()
		defer cancel()

		result, d, err := a.Check(ctx, flagDat, args)
		if err != nil {
			return err
		}
		return renderCheck(result, d)
	},
}

func renderCheck(result *distillery.CheckResult, d *dat.File) error {
	if flagOutput != "text" {
		type summary struct {
			Missing  []string `json:"missing" yaml:"missing"`
			Extra    []string `json:"extra" yaml:"extra"`
			Included []string `json:"included" yaml:"included"`
			Perfect  bool     `json:"perfect" yaml:"perfect"`
		}
		s := summary{Perfect: result.Perfect()}
		for _, r := range result.Missing.ROMs() {
			s.Missing = append(s.Missing, r.Name())
		}
		for _, r := range result.Extra.ROMs() {
			s.Extra = append(s.Extra, r.Path().String())
		}
		for _, r := range result.Included.ROMs() {
			s.Included = append(s.Included, r.Name())
		}
		return emit(s)
	}

	for _, r := range result.Missing.ROMs() {
		fmt.Printf("missing: %s\n", r.Name())
	}
	for _, r := range result.Extra.ROMs() {
		fmt.Printf("extra: %s\n", r.Path())
	}
	fmt.Printf("%d/%d roms present", result.Included.Size(), d.ROMs().Size())
	if result.Perfect() {
		fmt.Print(" - perfect")
	}
	fmt.Println()
	return nil
}

var validateCmd = &cobra.Command{
	Use:   "validate [dir...]",
	Short: "Validate names and placement against a catalog",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Validate")
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext()
		defer cancel()

		ev := &distillery.ValidateEvents{}
		if flagOutput == "text" {
			showProgress := interactive()
			ev.GameStart = func(g *dat.Game) {
				if showProgress {
					fmt.Printf("%s...\n", g.Name)
				}
			}
			ev.ROMEnd = func(r *rom.ROM, verdict distillery.Verdict, detail string) {
				if verdict != distillery.Validated {
					fmt.Printf("  %s: %s\n", r.Name(), verdict.Message(detail))
				}
			}
		}

		stats, err := a.Validate(ctx, flagDat, args, ev)
		if err != nil {
			return err
		}

		if flagOutput != "text" {
			return emit(map[string]int{
				"validated":         stats[distillery.Validated],
				"not_found":         stats[distillery.NotFound],
				"missing_duplicate": stats[distillery.MissingDuplicate],
				"name_mismatch":     stats[distillery.NameMismatch],
				"wrong_place":       stats[distillery.WrongPlace],
			})
		}
		fmt.Printf("%d validated, %d errors\n", stats[distillery.Validated], stats.Errors())
		return nil
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename [dir...]",
	Short: "Rename ROMs to their catalog names",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Rename")
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext()
		defer cancel()

		stats, err := a.Rename(ctx, flagDat, args, func(r *rom.ROM, action, newName string) {
			if flagOutput != "text" {
				return
			}
			switch action {
			case "rename":
				fmt.Printf("%s -> %s\n", r.Path(), newName)
			case "delete":
				fmt.Printf("%s deleted (redundant)\n", r.Path())
			}
		})
		if err != nil {
			return err
		}

		if flagOutput != "text" {
			return emit(stats)
		}
		fmt.Printf("%d renamed, %d deleted, %d kept, %d skipped\n",
			stats.Renamed, stats.Deleted, stats.Kept, stats.Skipped)
		return nil
	},
}

var rebuildCmd = &cobra.Command{
	Use:   "rebuild <dest> [dir...]",
	Short: "Build per-game archives from a collection",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Rebuild")
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext()
		defer cancel()

		written, err := a.Rebuild(ctx, args[0], flagDat, args[1:], flagFormat)
		if err != nil {
			return err
		}
		fmt.Printf("%d game archives written to %s\n", written, args[0])
		return nil
	},
}

var repackCmd = &cobra.Command{
	Use:   "repack <archive...>",
	Short: "Re-encode archives into another container format",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Repack")
		if err != nil {
			return err
		}
		defer a.Close()

		return a.Repack(args, flagFormat, flagDryRun)
	},
}

var headerCmd = &cobra.Command{
	Use:   "header <file...>",
	Short: "Report detected dump headers",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Header")
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext()
		defer cancel()

		reports, err := a.ScanHeaders(ctx, args)
		if err != nil {
			return err
		}
		if flagOutput != "text" {
			return emit(reports)
		}
		for _, r := range reports {
			if r.Length == 0 {
				fmt.Printf("%s: no header\n", r.Path)
				continue
			}
			fmt.Printf("%s: %s (%d bytes)\n", r.Path, r.System, r.Length)
		}
		return nil
	},
}

var cleanCmd = &cobra.Command{
	Use:   "clean [dir...]",
	Short: "Delete ROMs the catalog does not reference",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Clean")
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext()
		defer cancel()

		deleted, err := a.Clean(ctx, flagDat, args, flagTrash, func(r *rom.ROM, trashed bool) {
			if flagOutput != "text" {
				return
			}
			if trashed {
				fmt.Printf("trashed: %s\n", r.Path())
			} else {
				fmt.Printf("deleted: %s\n", r.Path())
			}
		})
		if err != nil {
			return err
		}
		fmt.Printf("%d roms removed\n", deleted)
		return nil
	},
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage persistent vault indexes",
}

var indexSaveCmd = &cobra.Command{
	Use:   "save <index-file> [dir...]",
	Short: "Scan sources and write an index",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("IndexSave")
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext()
		defer cancel()

		return a.SaveIndex(ctx, args[1:], args[0], index.Format(flagFormat), flagStrip)
	},
}

var indexUpdateCmd = &cobra.Command{
	Use:   "update <index-file>",
	Short: "Refresh an index against the filesystem",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("IndexUpdate")
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext()
		defer cancel()

		changed, err := a.UpdateIndex(ctx, args[0], flagAdd, index.Format(flagFormat),
			func(action index.Action, path string) {
				fmt.Printf("%s %s\n", action, path)
			})
		if err != nil {
			return err
		}
		if !changed {
			fmt.Println("index up to date")
		}
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Log Dir:           %s\n", cfg.LogDir)
		fmt.Printf("Archive Separator: %s\n", cfg.ArchiveSeparator)
		fmt.Printf("Root Dirs:         %v\n", cfg.RootDirs)
		for _, arc := range cfg.Archivers {
			fmt.Printf("External Archiver: %s %v\n", arc.Name, arc.Extensions)
		}
		return nil
	},
}
