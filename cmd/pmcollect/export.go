// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pmcollect/internal/collection"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Serialize the collection (or a filtered subset) to stdout or a file",
	Long: `Export writes records in a transportable structured form. The jsonl format
is the snapshot format and round-trips losslessly through ingest-free
loading; json and yaml are for downstream consumers.`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().String("format", "jsonl", "output format: jsonl, json, or yaml")
	exportCmd.Flags().StringP("output", "o", "", "output file (default stdout)")
	exportCmd.Flags().Int("year", 0, "filter by publication year")
	exportCmd.Flags().String("journal", "", "filter by journal title")
	exportCmd.Flags().String("mesh", "", "filter by MeSH descriptor")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	col, err := openCollection(cfg)
	if err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if path, _ := cmd.Flags().GetString("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	year, _ := cmd.Flags().GetInt("year")
	journal, _ := cmd.Flags().GetString("journal")
	mesh, _ := cmd.Flags().GetString("mesh")
	filter := collection.Filter{Year: year, Journal: journal, MeshTerm: mesh, SortBy: collection.SortID}

	format, _ := cmd.Flags().GetString("format")
	switch format {
	case "jsonl":
		// Filters do not apply to the snapshot form; it is the whole
		// collection by definition.
		return col.WriteSnapshot(out)
	case "json":
		return col.ExportJSON(out, filter)
	case "yaml":
		return col.ExportYAML(out, filter)
	default:
		return fmt.Errorf("unknown format %q: want jsonl, json, or yaml", format)
	}
}
