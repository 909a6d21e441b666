// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Warning codes recorded during ingestion. Warnings never halt processing;
// they are collected on the IngestReport for the caller to inspect.
const (
	WarnMalformedText  = "malformed-text"
	WarnMissingField   = "missing-field"
	WarnBadDate        = "bad-date"
	WarnDuplicateField = "duplicate-field"
	WarnTruncated      = "truncated"
	WarnUnclosedTag    = "unclosed-tag"
)

// Warning describes a recoverable problem encountered while decoding a
// source stream: an encoding repair, an unparsable date, a duplicate-field
// tie-break, and so on.
type Warning struct {
	// Code is one of the Warn* constants.
	Code string `json:"code" yaml:"code"`

	// Message is a human-readable description.
	Message string `json:"message" yaml:"message"`

	// RecordID is the PMID of the affected record, if known at the time
	// the warning was raised.
	RecordID string `json:"record_id,omitempty" yaml:"record_id,omitempty"`

	// Offset is the byte offset into the source stream, for locating the
	// problem in multi-gigabyte dumps.
	Offset int64 `json:"offset" yaml:"offset"`
}

// IngestReport summarizes one ingestion run over a single source stream.
// An ingestion call always returns a report, even when it also returns a
// stream-level error: the counts reflect the progress made before the
// failure.
type IngestReport struct {
	// Source names the stream the report covers (e.g. a file path).
	Source string `json:"source" yaml:"source"`

	// Ingested counts records newly inserted into the collection.
	Ingested int `json:"ingested" yaml:"ingested"`

	// Updated counts records whose fragment hash differed from the
	// indexed copy and were overwritten.
	Updated int `json:"updated" yaml:"updated"`

	// Unchanged counts records whose fragment hash matched the indexed
	// copy; these are no-ops.
	Unchanged int `json:"unchanged" yaml:"unchanged"`

	// Failed counts records skipped due to a per-record decode error.
	Failed int `json:"failed" yaml:"failed"`

	// Warnings holds the recoverable problems encountered during the run.
	Warnings []Warning `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Records returns the number of records successfully indexed this run,
// counting no-op re-ingestions of unchanged content.
func (r IngestReport) Records() int {
	return r.Ingested + r.Updated + r.Unchanged
}

// WarningCount returns the number of warnings recorded during the run.
func (r IngestReport) WarningCount() int {
	return len(r.Warnings)
}
