// Package main provides the rbxtract CLI.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"rbxtract/internal/config"
	"rbxtract/internal/extract"
	"rbxtract/internal/ignore"
	"rbxtract/internal/manifest"
	"rbxtract/internal/rbxml"
	"rbxtract/internal/report"
)

const (
	rbxtractDir  = ".rbxtract"
	manifestFile = "manifest.sqlite"
	ignoreFile   = ".rbxignore"
)

// Version is the current rbxtract CLI version
var Version = "0.2.1"

var rootCmd = &cobra.Command{
	Use:     "rbxtract",
	Short:   "Rbxtract - extract Lua scripts from a Roblox place file",
	Long:    `Rbxtract converts a Roblox .rbxlx place file into a directory of plain .lua files, recreating the service hierarchy (server/client/shared/workspace) as real folders so scripts can be edited and versioned outside Studio.`,
	Version: Version,
	Args:    cobra.MaximumNArgs(1),
	RunE:    runExtract,
}

var extractCmd = &cobra.Command{
	Use:   "extract [place-file]",
	Short: "Extract scripts with structure preserved",
	Long: `Extract all scripts from a place file while preserving the folder structure.

The output location is deleted and recreated on every run. With no
arguments, rbxtract reads ` + "`starter_platformer.rbxlx`" + ` from the working
directory and writes to ` + "`src/`" + `; an rbxtract.yaml config file and flags
override both.

Examples:
  rbxtract                         # Fixed defaults, zero configuration
  rbxtract extract my_place.rbxlx  # Explicit input
  rbxtract extract --output out    # Different output root
  rbxtract extract --json          # Machine-readable summary`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExtract,
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove the output tree and the extraction manifest",
	Args:  cobra.NoArgs,
	RunE:  runClean,
}

var treeCmd = &cobra.Command{
	Use:   "tree [dir]",
	Short: "Print the directory tree of an existing extraction",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTree,
}

var (
	flagInput    string
	flagOutput   string
	flagManifest bool
	flagExclude  []string
	flagJSON     bool
	flagQuiet    bool
)

func main() {
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(treeCmd)

	rootCmd.PersistentFlags().StringVar(&flagInput, "input", "", "place file to read (default from rbxtract.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagOutput, "output", "", "output root directory (default from rbxtract.yaml)")
	rootCmd.PersistentFlags().BoolVar(&flagManifest, "manifest", true, "record the run in the extraction manifest")
	rootCmd.PersistentFlags().StringArrayVar(&flagExclude, "exclude", nil, "logical path pattern to skip (repeatable)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "emit the summary as JSON")
	rootCmd.PersistentFlags().BoolVar(&flagQuiet, "quiet", false, "suppress progress and summary output")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// applyOverrides layers flag values over the loaded config. Only flags the
// user actually set override the file; changed reports per flag name.
func applyOverrides(cfg config.Config, changed func(string) bool) config.Config {
	if changed("input") {
		cfg.Input = flagInput
	}
	if changed("output") {
		cfg.Output = flagOutput
	}
	if changed("manifest") {
		cfg.Manifest = flagManifest
	}
	if changed("exclude") {
		cfg.Exclude = append(cfg.Exclude, flagExclude...)
	}
	return cfg
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.DefaultFile)
	if err != nil {
		return err
	}
	cfg = applyOverrides(cfg, cmd.Flags().Changed)
	if len(args) > 0 && args[0] != "" {
		cfg.Input = args[0]
	}

	matcher := ignore.NewMatcher()
	matcher.AddPatterns(cfg.Exclude)
	if err := matcher.LoadFile(ignoreFile); err != nil {
		return fmt.Errorf("loading %s: %w", ignoreFile, err)
	}

	verbose := !flagQuiet && !flagJSON
	if verbose {
		fmt.Printf("Parsing %s with structure preservation...\n", cfg.Input)
	}

	doc, err := rbxml.Open(cfg.Input)
	if err != nil {
		return err
	}

	opts := extract.Options{
		Output:  cfg.Output,
		Exclude: matcher,
	}
	if verbose {
		opts.Progress = func(rec extract.Record) {
			report.WriteProgress(os.Stdout, rec)
		}
	}

	res, err := extract.Run(doc, opts)
	if err != nil {
		return err
	}

	if cfg.Manifest {
		db, err := manifest.Open(filepath.Join(rbxtractDir, manifestFile))
		if err != nil {
			return err
		}
		defer db.Close()
		if _, err := db.RecordRun(cfg.Input, res.Records); err != nil {
			return err
		}
	}

	if flagQuiet && !flagJSON {
		return nil
	}
	format := report.FormatDefault
	if flagJSON {
		format = report.FormatJSON
	}
	return report.WriteSummary(os.Stdout, res, cfg.Output, format)
}

func runClean(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(config.DefaultFile)
	if err != nil {
		return err
	}
	cfg = applyOverrides(cfg, cmd.Flags().Changed)

	for _, dir := range []string{cfg.Output, rbxtractDir} {
		if _, err := os.Stat(dir); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to stat %q: %w", dir, err)
		}
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("failed to remove %q: %w", dir, err)
		}
		fmt.Printf("removed %s\n", dir)
	}
	return nil
}

func runTree(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.DefaultFile)
	if err != nil {
		return err
	}
	cfg = applyOverrides(cfg, cmd.Flags().Changed)

	dir := cfg.Output
	if len(args) > 0 && args[0] != "" {
		dir = args[0]
	}
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("failed to stat %q: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%q is not a directory", dir)
	}
	return report.WriteTree(os.Stdout, dir)
}
