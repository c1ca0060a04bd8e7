// Package docstoretest holds a behavioural suite every docstore.Store backend
// must pass.
package docstoretest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/greenhouse/internal/docstore"
)

type item struct {
	Title    string    `json:"title" bson:"title"`
	Price    float64   `json:"price" bson:"price"`
	Category string    `json:"category" bson:"category"`
	Added    time.Time `json:"added" bson:"added"`
}

// Run exercises store against the docstore.Store contract. Collections are
// suffixed with the test name so backends can be shared between runs.
func Run(t *testing.T, store docstore.Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("GetMissing", func(t *testing.T) {
		var it item
		require.ErrorIs(t, store.Get(ctx, "conformance_get", "missing", &it), docstore.ErrNotFound)
	})

	t.Run("CreateThenGet", func(t *testing.T) {
		want := item{Title: "Pothos", Price: 12.5, Category: "indoor", Added: base}
		id, err := store.Create(ctx, "conformance_create", want)
		require.NoError(t, err)
		require.NotEmpty(t, id)

		var got item
		require.NoError(t, store.Get(ctx, "conformance_create", id, &got))
		assert.Equal(t, want.Title, got.Title)
		assert.Equal(t, want.Price, got.Price)
		assert.True(t, want.Added.Equal(got.Added))
	})

	t.Run("PutReplaces", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "conformance_put", "p1", item{Title: "Old", Category: "indoor"}))
		require.NoError(t, store.Put(ctx, "conformance_put", "p1", item{Title: "New"}))

		var got item
		require.NoError(t, store.Get(ctx, "conformance_put", "p1", &got))
		assert.Equal(t, "New", got.Title)
		assert.Empty(t, got.Category)
	})

	t.Run("MergeKeepsOtherFields", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "conformance_merge", "u1", map[string]any{"email": "ivy@example.com"}))
		require.NoError(t, store.Merge(ctx, "conformance_merge", "u1", map[string]any{"city": "Portland"}))

		var got map[string]any
		require.NoError(t, store.Get(ctx, "conformance_merge", "u1", &got))
		assert.Equal(t, "ivy@example.com", got["email"])
		assert.Equal(t, "Portland", got["city"])
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "conformance_delete", "d1", item{Title: "Gone"}))
		require.NoError(t, store.Delete(ctx, "conformance_delete", "d1"))
		require.ErrorIs(t, store.Delete(ctx, "conformance_delete", "d1"), docstore.ErrNotFound)
	})

	t.Run("Find", func(t *testing.T) {
		const coll = "conformance_find"
		for id, it := range map[string]item{
			"fern":     {Title: "Boston Fern", Price: 18.5, Category: "indoor", Added: base},
			"monstera": {Title: "Monstera", Price: 42, Category: "indoor", Added: base.Add(time.Hour)},
			"lavender": {Title: "Lavender", Price: 9.99, Category: "outdoor", Added: base.Add(500 * time.Millisecond)},
		} {
			require.NoError(t, store.Put(ctx, coll, id, it))
		}

		ids := func(q docstore.Query) []string {
			snaps, err := store.Find(ctx, coll, q)
			require.NoError(t, err)
			out := make([]string, len(snaps))
			for i, s := range snaps {
				out[i] = s.ID
			}
			return out
		}

		assert.ElementsMatch(t, []string{"fern", "monstera"},
			ids(docstore.Query{Filters: []docstore.Filter{docstore.Where("category", docstore.OpEq, "indoor")}}))
		assert.Equal(t, []string{"lavender", "fern"},
			ids(docstore.Query{Filters: []docstore.Filter{docstore.Where("price", docstore.OpLt, 20)}, OrderBy: "price"}))
		assert.Equal(t, []string{"monstera", "lavender", "fern"},
			ids(docstore.Query{OrderBy: "added", Descending: true}))
		assert.Equal(t, []string{"fern"},
			ids(docstore.Query{OrderBy: "title", Limit: 1}))
	})
}
