// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pmcollect/internal/ingest"
	"github.com/pdiddy/pmcollect/pkg/types"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest FILE...",
	Short: "Ingest PubMed XML dump files into the collection",
	Long: `Ingest streams one or more PubMed XML export files into the collection
and saves the snapshot. Records already present with unchanged content are
no-ops; changed records are overwritten; malformed records are skipped and
counted. A structurally corrupt file aborts only that file.

Interrupting the run (Ctrl-C) stops at the next record boundary; progress
made so far is kept.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().Int("parallel", 0, "number of files ingested concurrently (default: config)")
	ingestCmd.Flags().String("truncate", "", "policy for truncated dumps: warn or error (default: config)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	if v, _ := cmd.Flags().GetInt("parallel"); v > 0 {
		cfg.Ingest.Parallel = v
	}
	if v, _ := cmd.Flags().GetString("truncate"); v != "" {
		cfg.Ingest.Truncate = types.TruncatePolicy(v)
	}
	if p := cfg.Ingest.Truncate; p != types.TruncateWarn && p != types.TruncateError {
		return fmt.Errorf("invalid truncate policy %q: want %q or %q", p, types.TruncateWarn, types.TruncateError)
	}

	col, err := openCollection(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sources := make([]ingest.Source, len(args))
	for i, path := range args {
		sources[i] = ingest.FileSource(path)
	}

	opts := ingest.Options{
		Truncate:    cfg.Ingest.Truncate,
		MaxWarnings: cfg.Ingest.MaxWarnings,
		Logger:      newLogger(),
	}
	results, ctxErr := ingest.All(ctx, col, sources, cfg.Ingest.Parallel, opts)

	fmt.Printf("%-40s  %8s  %8s  %9s  %6s  %8s\n",
		"source", "ingested", "updated", "unchanged", "failed", "warnings")
	var failedSources int
	for _, res := range results {
		r := res.Report
		fmt.Printf("%-40s  %8d  %8d  %9d  %6d  %8d\n",
			trunc(r.Source, 40), r.Ingested, r.Updated, r.Unchanged, r.Failed, r.WarningCount())
		if res.Err != nil {
			failedSources++
			fmt.Fprintf(os.Stderr, "  %s: %v (kept %d records ingested before the failure)\n",
				r.Source, res.Err, r.Records())
		}
	}
	fmt.Printf("\ncollection now holds %d records\n", col.Len())

	if err := saveCollection(cfg, col); err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}

	if ctxErr != nil {
		return ctxErr
	}
	if failedSources > 0 {
		return fmt.Errorf("%d source(s) aborted with stream errors", failedSources)
	}
	return nil
}

func trunc(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
