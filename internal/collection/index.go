// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package collection owns the in-memory record index: a primary map keyed
// by PMID plus rebuildable secondary indexes by year, journal, and MeSH
// term. All mutation goes through the collection; readers only ever hold
// copies.
package collection

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/pdiddy/pmcollect/pkg/types"
)

// ErrNotFound reports a lookup for an id the collection does not hold. It
// is a normal, expected outcome, not an exceptional condition.
var ErrNotFound = errors.New("record not found")

// UpsertOutcome reports what InsertOrUpdate did.
type UpsertOutcome int

const (
	// Inserted: the id was new.
	Inserted UpsertOutcome = iota + 1
	// Updated: the id existed and the fragment hash differed.
	Updated
	// Unchanged: the id existed with an identical fragment hash; no-op.
	Unchanged
)

func (o UpsertOutcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	case Unchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}

type idSet map[string]struct{}

// Collection is the in-memory record store. A single writer lock serializes
// all mutation; reads proceed concurrently and observe a consistent
// snapshot.
type Collection struct {
	mu      sync.RWMutex
	records map[string]*types.Record

	// Secondary indexes are derived views over the primary map, never
	// independently authoritative: Rebuild reconstructs them from scratch.
	byYear    map[int]idSet
	byJournal map[string]idSet
	byMesh    map[string]idSet
}

// New returns an empty collection.
func New() *Collection {
	c := &Collection{records: make(map[string]*types.Record)}
	c.resetSecondaries()
	return c
}

func (c *Collection) resetSecondaries() {
	c.byYear = make(map[int]idSet)
	c.byJournal = make(map[string]idSet)
	c.byMesh = make(map[string]idSet)
}

// InsertOrUpdate inserts rec if its id is new, replaces the stored record
// if the fragment hash differs, and does nothing if the hash matches
// (idempotent re-ingestion). Secondary-index entries referencing the old
// values are invalidated on replace.
func (c *Collection) InsertOrUpdate(rec types.Record) (UpsertOutcome, error) {
	if rec.ID == "" {
		return 0, fmt.Errorf("record has no id")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	old, exists := c.records[rec.ID]
	if exists && old.FragmentHash == rec.FragmentHash {
		return Unchanged, nil
	}
	if exists {
		c.unindex(old)
	}

	stored := rec.Clone()
	c.records[rec.ID] = &stored
	c.index(&stored)

	if exists {
		return Updated, nil
	}
	return Inserted, nil
}

// Get returns a copy of the record with the given id, or ErrNotFound.
func (c *Collection) Get(id string) (types.Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rec, ok := c.records[id]
	if !ok {
		return types.Record{}, ErrNotFound
	}
	return rec.Clone(), nil
}

// Remove deletes the record and prunes its secondary-index entries. It
// reports whether the id was present.
func (c *Collection) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.records[id]
	if !ok {
		return false
	}
	c.unindex(rec)
	delete(c.records, id)
	return true
}

// Len returns the number of records held.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// IDs returns all record ids in ascending order.
func (c *Collection) IDs() []string {
	c.mu.RLock()
	ids := make([]string, 0, len(c.records))
	for id := range c.records {
		ids = append(ids, id)
	}
	c.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return compareID(ids[i], ids[j]) < 0 })
	return ids
}

// Rebuild reconstructs every secondary index from the primary map. Used
// for recovery; incremental maintenance makes it unnecessary in normal
// operation.
func (c *Collection) Rebuild() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.resetSecondaries()
	for _, rec := range c.records {
		c.index(rec)
	}
}

// Verify checks the secondary-index bookkeeping against the primary map
// and returns an error describing the first inconsistency found. A non-nil
// result means Rebuild is needed.
func (c *Collection) Verify() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var entries int
	for year, set := range c.byYear {
		for id := range set {
			rec, ok := c.records[id]
			if !ok || rec.PubDate.Year != year {
				return fmt.Errorf("year index %d holds stale id %s", year, id)
			}
			entries++
		}
	}
	var wantYear int
	for _, rec := range c.records {
		if rec.PubDate.Year != 0 {
			wantYear++
		}
	}
	if entries != wantYear {
		return fmt.Errorf("year index holds %d entries, want %d", entries, wantYear)
	}

	for key, set := range c.byJournal {
		for id := range set {
			rec, ok := c.records[id]
			if !ok || journalKey(rec.Journal.Title) != key {
				return fmt.Errorf("journal index %q holds stale id %s", key, id)
			}
		}
	}
	for term, set := range c.byMesh {
		for id := range set {
			rec, ok := c.records[id]
			if !ok || !hasTerm(rec.MeshTerms, term) {
				return fmt.Errorf("mesh index %q holds stale id %s", term, id)
			}
		}
	}
	return nil
}

// index and unindex maintain the secondary views. Callers hold the write
// lock.

func (c *Collection) index(rec *types.Record) {
	if rec.PubDate.Year != 0 {
		addID(c.byYear, rec.PubDate.Year, rec.ID)
	}
	if rec.Journal.Title != "" {
		addID(c.byJournal, journalKey(rec.Journal.Title), rec.ID)
	}
	for _, term := range rec.MeshTerms {
		addID(c.byMesh, meshKey(term), rec.ID)
	}
}

func (c *Collection) unindex(rec *types.Record) {
	if rec.PubDate.Year != 0 {
		dropID(c.byYear, rec.PubDate.Year, rec.ID)
	}
	if rec.Journal.Title != "" {
		dropID(c.byJournal, journalKey(rec.Journal.Title), rec.ID)
	}
	for _, term := range rec.MeshTerms {
		dropID(c.byMesh, meshKey(term), rec.ID)
	}
}

func addID[K comparable](m map[K]idSet, key K, id string) {
	set, ok := m[key]
	if !ok {
		set = make(idSet)
		m[key] = set
	}
	set[id] = struct{}{}
}

func dropID[K comparable](m map[K]idSet, key K, id string) {
	if set, ok := m[key]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(m, key)
		}
	}
}

func journalKey(title string) string { return strings.ToLower(strings.TrimSpace(title)) }
func meshKey(term string) string     { return strings.ToLower(strings.TrimSpace(term)) }

func hasTerm(terms []string, key string) bool {
	for _, t := range terms {
		if meshKey(t) == key {
			return true
		}
	}
	return false
}

// compareID orders ids numerically when both parse as integers (the usual
// case for PMIDs) and lexically otherwise.
func compareID(a, b string) int {
	na, errA := strconv.ParseInt(a, 10, 64)
	nb, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}
