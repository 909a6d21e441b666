// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package collection

import (
	"sort"
	"strings"

	"github.com/pdiddy/pmcollect/pkg/types"
)

// SortKey selects the ordering of query results. Ties always break by id
// ascending.
type SortKey string

const (
	SortNone    SortKey = ""
	SortID      SortKey = "id"
	SortYear    SortKey = "year"
	SortTitle   SortKey = "title"
	SortJournal SortKey = "journal"
)

// Filter selects records. Zero-valued fields do not constrain. Secondary
// indexes answer Year, Journal, and MeshTerm directly; Predicate is applied
// to the remaining candidates.
type Filter struct {
	// Year matches records published in the given year.
	Year int

	// Journal matches the journal title, case-insensitively.
	Journal string

	// MeshTerm matches records carrying the given MeSH descriptor,
	// case-insensitively.
	MeshTerm string

	// Predicate is an arbitrary additional filter. It receives a copy of
	// each candidate record.
	Predicate func(types.Record) bool

	// SortBy orders the results; SortNone leaves the order unspecified
	// except that it is deterministic for a given collection state.
	SortBy SortKey

	// Limit caps the number of results. Zero means no cap.
	Limit int
}

// Query returns copies of all records matching f. The result is finite and
// never aliases collection-owned state.
func (c *Collection) Query(f Filter) []types.Record {
	c.mu.RLock()

	candidates := c.candidateIDs(f)
	out := make([]types.Record, 0, len(candidates))
	for _, id := range candidates {
		rec, ok := c.records[id]
		if !ok || !matches(rec, f) {
			continue
		}
		out = append(out, rec.Clone())
	}
	c.mu.RUnlock()

	sortRecords(out, f.SortBy)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

// candidateIDs narrows the scan through the most selective applicable
// secondary index. Caller holds the read lock.
func (c *Collection) candidateIDs(f Filter) []string {
	var narrowest idSet
	haveIndex := false

	consider := func(set idSet, ok bool) {
		if !haveIndex || (ok && len(set) < len(narrowest)) {
			narrowest = set
			haveIndex = true
		}
	}

	if f.Year != 0 {
		set, ok := c.byYear[f.Year]
		if !ok {
			return nil
		}
		consider(set, ok)
	}
	if f.Journal != "" {
		set, ok := c.byJournal[journalKey(f.Journal)]
		if !ok {
			return nil
		}
		consider(set, ok)
	}
	if f.MeshTerm != "" {
		set, ok := c.byMesh[meshKey(f.MeshTerm)]
		if !ok {
			return nil
		}
		consider(set, ok)
	}

	if haveIndex {
		ids := make([]string, 0, len(narrowest))
		for id := range narrowest {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return compareID(ids[i], ids[j]) < 0 })
		return ids
	}

	ids := make([]string, 0, len(c.records))
	for id := range c.records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return compareID(ids[i], ids[j]) < 0 })
	return ids
}

// matches applies the filter constraints not already answered by the index
// scan plus the predicate. Secondary indexes are views, so constraints are
// re-checked against the record itself.
func matches(rec *types.Record, f Filter) bool {
	if f.Year != 0 && rec.PubDate.Year != f.Year {
		return false
	}
	if f.Journal != "" && journalKey(rec.Journal.Title) != journalKey(f.Journal) {
		return false
	}
	if f.MeshTerm != "" && !hasTerm(rec.MeshTerms, meshKey(f.MeshTerm)) {
		return false
	}
	if f.Predicate != nil && !f.Predicate(rec.Clone()) {
		return false
	}
	return true
}

func sortRecords(recs []types.Record, key SortKey) {
	less := func(a, b types.Record) int { return compareID(a.ID, b.ID) }
	switch key {
	case SortNone, SortID:
		// id order is the deterministic default
	case SortYear:
		less = func(a, b types.Record) int {
			if a.PubDate.Year != b.PubDate.Year {
				if a.PubDate.Year < b.PubDate.Year {
					return -1
				}
				return 1
			}
			return compareID(a.ID, b.ID)
		}
	case SortTitle:
		less = func(a, b types.Record) int {
			if cmp := strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title)); cmp != 0 {
				return cmp
			}
			return compareID(a.ID, b.ID)
		}
	case SortJournal:
		less = func(a, b types.Record) int {
			if cmp := strings.Compare(journalKey(a.Journal.Title), journalKey(b.Journal.Title)); cmp != 0 {
				return cmp
			}
			return compareID(a.ID, b.ID)
		}
	}
	sort.SliceStable(recs, func(i, j int) bool { return less(recs[i], recs[j]) < 0 })
}
