// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pmcollect/internal/collection"
	"github.com/pdiddy/pmcollect/pkg/types"
)

// --- get ---

var getCmd = &cobra.Command{
	Use:   "get PMID",
	Short: "Look up a single record by PMID",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

func runGet(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	col, err := openCollection(cfg)
	if err != nil {
		return err
	}

	rec, err := col.Get(args[0])
	if errors.Is(err, collection.ErrNotFound) {
		return fmt.Errorf("no record with id %s", args[0])
	}
	if err != nil {
		return err
	}

	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	}
	printRecord(rec)
	return nil
}

func printRecord(rec types.Record) {
	fmt.Printf("PMID:      %s\n", rec.ID)
	fmt.Printf("Title:     %s\n", rec.Title)
	if rec.Journal.Title != "" {
		fmt.Printf("Journal:   %s\n", rec.Journal.Title)
	}
	if !rec.PubDate.IsZero() {
		fmt.Printf("Published: %s\n", rec.PubDate)
	}
	if c := rec.Citation(); c != "" {
		fmt.Printf("Citation:  %s\n", c)
	}
	if len(rec.MeshTerms) > 0 {
		fmt.Printf("MeSH:      %v\n", rec.MeshTerms)
	}
	if rec.Abstract != "" {
		fmt.Printf("\n%s\n", rec.Abstract)
	}
}

// --- query ---

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "List records matching filters",
	Long: `Query filters the collection by year, journal, or MeSH term. Results are
unordered unless --sort is given; sorted results break ties by PMID.`,
	RunE: runQuery,
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	col, err := openCollection(cfg)
	if err != nil {
		return err
	}

	year, _ := cmd.Flags().GetInt("year")
	journal, _ := cmd.Flags().GetString("journal")
	mesh, _ := cmd.Flags().GetString("mesh")
	sortBy, _ := cmd.Flags().GetString("sort")
	limit, _ := cmd.Flags().GetInt("limit")
	if limit == 0 {
		limit = cfg.Collection.MaxResults
	}

	filter := collection.Filter{
		Year:     year,
		Journal:  journal,
		MeshTerm: mesh,
		SortBy:   collection.SortKey(sortBy),
		Limit:    limit,
	}
	results := col.Query(filter)

	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Println("No matching records.")
		return nil
	}
	fmt.Printf("%-10s  %-6s  %-50s  %s\n", "PMID", "Year", "Title", "Journal")
	for _, rec := range results {
		fmt.Printf("%-10s  %-6d  %-50s  %s\n",
			rec.ID, rec.PubDate.Year, trunc(rec.Title, 50), trunc(rec.Journal.Title, 30))
	}
	fmt.Printf("\n%d records\n", len(results))
	return nil
}

// --- remove ---

var removeCmd = &cobra.Command{
	Use:   "remove PMID",
	Short: "Delete a record from the collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		col, err := openCollection(cfg)
		if err != nil {
			return err
		}
		if !col.Remove(args[0]) {
			return fmt.Errorf("no record with id %s", args[0])
		}
		if err := saveCollection(cfg, col); err != nil {
			return err
		}
		fmt.Printf("removed %s\n", args[0])
		return nil
	},
}

// --- stats / rebuild ---

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print collection size and index health",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		col, err := openCollection(cfg)
		if err != nil {
			return err
		}
		fmt.Printf("records: %d\n", col.Len())
		if err := col.Verify(); err != nil {
			fmt.Printf("indexes: INCONSISTENT (%v); run 'pmcollect rebuild'\n", err)
			return nil
		}
		fmt.Println("indexes: consistent")
		return nil
	},
}

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the secondary indexes from the primary record set",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		col, err := openCollection(cfg)
		if err != nil {
			return err
		}
		col.Rebuild()
		if err := saveCollection(cfg, col); err != nil {
			return err
		}
		fmt.Println("secondary indexes rebuilt")
		return nil
	},
}

func init() {
	getCmd.Flags().Bool("json", false, "print the record as JSON")

	queryCmd.Flags().Int("year", 0, "filter by publication year")
	queryCmd.Flags().String("journal", "", "filter by journal title")
	queryCmd.Flags().String("mesh", "", "filter by MeSH descriptor")
	queryCmd.Flags().String("sort", "", "sort key: id, year, title, or journal")
	queryCmd.Flags().Int("limit", 0, "maximum results (default: config max_results)")
	queryCmd.Flags().Bool("json", false, "print results as JSON")

	rootCmd.AddCommand(getCmd, queryCmd, removeCmd, statsCmd, rebuildCmd)
}
