// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the pmcollect CLI: a thin wrapper
// that feeds local PubMed XML dump files to the ingestion engine and works
// against a JSONL snapshot of the collection.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/pmcollect/internal/collection"
	"github.com/pdiddy/pmcollect/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the pmcollect CLI.
var rootCmd = &cobra.Command{
	Use:   "pmcollect",
	Short: "Parse PubMed XML dumps into a queryable record collection",
	Long: `pmcollect ingests PubMed XML export files into an in-memory collection of
normalized records keyed by PMID, persisted between invocations as a JSONL
snapshot. Ingestion is streaming and incremental: re-running the same dump
is a no-op, malformed records are skipped and reported, and changed records
overwrite their indexed copy.`,
}

var verbose bool

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./pmcollect.yaml or ~/.config/pmcollect/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log decode warnings to stderr")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("pmcollect")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "pmcollect"))
		}
	}

	viper.SetEnvPrefix("PMCOLLECT")
	viper.AutomaticEnv()

	viper.SetDefault("collection.snapshot_path", "pmcollect.jsonl")
	viper.SetDefault("collection.max_results", 20)
	viper.SetDefault("ingest.truncate", string(types.TruncateWarn))
	viper.SetDefault("ingest.max_warnings", 1000)
	viper.SetDefault("ingest.parallel", 1)

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig materializes the viper state into the typed config.
func loadConfig() types.Config {
	return types.Config{
		Ingest: types.IngestConfig{
			Truncate:    types.TruncatePolicy(viper.GetString("ingest.truncate")),
			MaxWarnings: viper.GetInt("ingest.max_warnings"),
			Parallel:    viper.GetInt("ingest.parallel"),
		},
		Collection: types.CollectionConfig{
			SnapshotPath: viper.GetString("collection.snapshot_path"),
			MaxResults:   viper.GetInt("collection.max_results"),
		},
	}
}

// newLogger builds the CLI logger; warnings are suppressed unless -v.
func newLogger() *slog.Logger {
	level := slog.LevelError
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// openCollection loads the snapshot named by the config, or returns an
// empty collection when no snapshot exists yet.
func openCollection(cfg types.Config) (*collection.Collection, error) {
	col := collection.New()

	f, err := os.Open(cfg.Collection.SnapshotPath)
	if err != nil {
		if os.IsNotExist(err) {
			return col, nil
		}
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	defer f.Close()

	if _, err := col.ReadSnapshot(f); err != nil {
		return nil, fmt.Errorf("loading snapshot %s: %w", cfg.Collection.SnapshotPath, err)
	}
	return col, nil
}

// saveCollection writes the snapshot atomically: to a temp file first, then
// renamed over the target.
func saveCollection(cfg types.Config, col *collection.Collection) error {
	path := cfg.Collection.SnapshotPath
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating snapshot temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := col.WriteSnapshot(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
