// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package collection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pmcollect/pkg/types"
)

// testRecord builds a minimal indexed record; mut hooks adjust fields.
func testRecord(id string, hash uint64, mut ...func(*types.Record)) types.Record {
	r := types.Record{
		ID:           id,
		Title:        "Title " + id,
		Journal:      types.Journal{Title: "Journal of Testing"},
		PubDate:      types.PubDate{Year: 2020},
		MeshTerms:    []string{"Mice"},
		FragmentHash: hash,
	}
	for _, m := range mut {
		m(&r)
	}
	return r
}

func TestInsertUpdateUnchanged(t *testing.T) {
	c := New()

	out, err := c.InsertOrUpdate(testRecord("100", 1))
	require.NoError(t, err)
	assert.Equal(t, Inserted, out)

	// Same id, same hash: a no-op.
	out, err = c.InsertOrUpdate(testRecord("100", 1, func(r *types.Record) {
		r.Title = "this title is ignored because the hash matches"
	}))
	require.NoError(t, err)
	assert.Equal(t, Unchanged, out)

	got, err := c.Get("100")
	require.NoError(t, err)
	assert.Equal(t, "Title 100", got.Title)

	// Same id, new hash: replaced.
	out, err = c.InsertOrUpdate(testRecord("100", 2, func(r *types.Record) {
		r.Title = "Revised title"
	}))
	require.NoError(t, err)
	assert.Equal(t, Updated, out)

	got, err = c.Get("100")
	require.NoError(t, err)
	assert.Equal(t, "Revised title", got.Title)
	assert.Equal(t, 1, c.Len())
}

func TestInsertRejectsEmptyID(t *testing.T) {
	c := New()
	_, err := c.InsertOrUpdate(types.Record{Title: "anonymous"})
	assert.Error(t, err)
}

func TestGetNotFound(t *testing.T) {
	c := New()
	_, err := c.Get("999")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetReturnsCopy(t *testing.T) {
	c := New()
	_, err := c.InsertOrUpdate(testRecord("100", 1))
	require.NoError(t, err)

	got, err := c.Get("100")
	require.NoError(t, err)
	got.Title = "mutated by caller"
	got.MeshTerms[0] = "mutated term"

	again, err := c.Get("100")
	require.NoError(t, err)
	assert.Equal(t, "Title 100", again.Title)
	assert.Equal(t, []string{"Mice"}, again.MeshTerms)
}

func TestRemovePrunesIndexes(t *testing.T) {
	c := New()
	_, err := c.InsertOrUpdate(testRecord("100", 1))
	require.NoError(t, err)

	assert.True(t, c.Remove("100"))
	assert.False(t, c.Remove("100"), "second remove of the same id")
	assert.Equal(t, 0, c.Len())
	assert.Empty(t, c.Query(Filter{Year: 2020}))
	require.NoError(t, c.Verify())
}

func TestIDsOrderedNumerically(t *testing.T) {
	c := New()
	for _, id := range []string{"10", "9", "100", "2"} {
		_, err := c.InsertOrUpdate(testRecord(id, 1))
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"2", "9", "10", "100"}, c.IDs())
}

func TestUpdateMovesSecondaryIndexEntries(t *testing.T) {
	c := New()
	_, err := c.InsertOrUpdate(testRecord("100", 1))
	require.NoError(t, err)

	_, err = c.InsertOrUpdate(testRecord("100", 2, func(r *types.Record) {
		r.PubDate.Year = 2021
		r.Journal.Title = "Annals of Revision"
		r.MeshTerms = []string{"Rats"}
	}))
	require.NoError(t, err)

	assert.Empty(t, c.Query(Filter{Year: 2020}))
	assert.Empty(t, c.Query(Filter{Journal: "Journal of Testing"}))
	assert.Empty(t, c.Query(Filter{MeshTerm: "mice"}))
	assert.Len(t, c.Query(Filter{Year: 2021}), 1)
	assert.Len(t, c.Query(Filter{MeshTerm: "Rats"}), 1)
	require.NoError(t, c.Verify())
}

func TestVerifyDetectsCorruptionAndRebuildRepairs(t *testing.T) {
	c := New()
	_, err := c.InsertOrUpdate(testRecord("100", 1))
	require.NoError(t, err)
	require.NoError(t, c.Verify())

	// Simulate drift between the primary map and a derived view.
	c.mu.Lock()
	addID(c.byYear, 1999, "100")
	c.mu.Unlock()
	assert.Error(t, c.Verify())

	c.Rebuild()
	assert.NoError(t, c.Verify())
	assert.Len(t, c.Query(Filter{Year: 2020}), 1)
}
