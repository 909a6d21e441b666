// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package collection

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/pmcollect/pkg/types"
)

// WriteSnapshot serializes the whole collection as newline-delimited JSON,
// one record per line, ordered by id. The snapshot round-trips through
// ReadSnapshot; it is the only on-disk form the engine defines.
func (c *Collection) WriteSnapshot(w io.Writer) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)

	for _, id := range c.IDs() {
		rec, err := c.Get(id)
		if err != nil {
			return err
		}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encoding record %s: %w", id, err)
		}
	}
	return bw.Flush()
}

// ReadSnapshot loads records from a snapshot produced by WriteSnapshot into
// the collection through the usual insert-or-update path. It returns the
// number of records read.
func (c *Collection) ReadSnapshot(r io.Reader) (int, error) {
	dec := json.NewDecoder(r)
	n := 0
	for {
		var rec types.Record
		if err := dec.Decode(&rec); err != nil {
			if err == io.EOF {
				return n, nil
			}
			return n, fmt.Errorf("decoding snapshot record %d: %w", n+1, err)
		}
		if _, err := c.InsertOrUpdate(rec); err != nil {
			return n, fmt.Errorf("loading snapshot record %d: %w", n+1, err)
		}
		n++
	}
}

// ExportJSON writes the records matching f as an indented JSON array.
func (c *Collection) ExportJSON(w io.Writer, f Filter) error {
	recs := c.Query(f)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(recs); err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	return nil
}

// ExportYAML writes the records matching f as a YAML sequence.
func (c *Collection) ExportYAML(w io.Writer, f Filter) error {
	recs := c.Query(f)
	data, err := yaml.Marshal(recs)
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	_, err = w.Write(data)
	return err
}
