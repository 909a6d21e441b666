// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// TruncatePolicy selects how the pipeline treats a source whose final
// record is cut off mid-element (a partially downloaded dump).
type TruncatePolicy string

const (
	// TruncateWarn records a "truncated" warning for the partial record
	// and finishes the run normally. This is the default.
	TruncateWarn TruncatePolicy = "warn"

	// TruncateError treats the truncation as a stream error, aborting the
	// source with partial-progress reporting.
	TruncateError TruncatePolicy = "error"
)

// IngestConfig holds settings for the ingestion pipeline.
type IngestConfig struct {
	// Truncate selects the truncated-final-record policy (default "warn").
	Truncate TruncatePolicy `json:"truncate" yaml:"truncate"`

	// MaxWarnings caps the warnings retained on one report; beyond the
	// cap they are still counted in logs but not accumulated. Zero means
	// unlimited.
	MaxWarnings int `json:"max_warnings" yaml:"max_warnings"`

	// Parallel bounds the number of sources ingested concurrently in one
	// run. Zero or one means sequential.
	Parallel int `json:"parallel" yaml:"parallel"`
}

// CollectionConfig holds settings for the collection index and its CLI
// persistence boundary.
type CollectionConfig struct {
	// SnapshotPath is the JSONL snapshot file the CLI loads and saves
	// (default "pmcollect.jsonl"). The engine itself never touches disk.
	SnapshotPath string `json:"snapshot_path" yaml:"snapshot_path"`

	// MaxResults is the default maximum number of query results (default 20).
	MaxResults int `json:"max_results" yaml:"max_results"`
}

// Config groups all configuration for the pmcollect CLI.
type Config struct {
	Ingest     IngestConfig     `json:"ingest" yaml:"ingest"`
	Collection CollectionConfig `json:"collection" yaml:"collection"`
}
