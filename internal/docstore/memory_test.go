package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type plant struct {
	Title    string    `json:"title"`
	Price    float64   `json:"price"`
	Category string    `json:"category"`
	Added    time.Time `json:"added"`
}

func seedPlants(t *testing.T, m *Memory) {
	t.Helper()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	plants := map[string]plant{
		"fern":     {Title: "Boston Fern", Price: 18.5, Category: "indoor", Added: base},
		"monstera": {Title: "Monstera", Price: 42, Category: "indoor", Added: base.Add(time.Hour)},
		"lavender": {Title: "Lavender", Price: 9.99, Category: "outdoor", Added: base.Add(500 * time.Millisecond)},
	}
	for _, id := range []string{"fern", "monstera", "lavender"} {
		require.NoError(t, m.Put(context.Background(), "products", id, plants[id]))
	}
}

func TestMemory_GetMissing(t *testing.T) {
	m := NewMemory()
	var p plant
	require.ErrorIs(t, m.Get(context.Background(), "products", "nope", &p), ErrNotFound)
}

func TestMemory_CreateGeneratesIDs(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	id1, err := m.Create(ctx, "orders", plant{Title: "a"})
	require.NoError(t, err)
	id2, err := m.Create(ctx, "orders", plant{Title: "b"})
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	var got plant
	require.NoError(t, m.Get(ctx, "orders", id2, &got))
	assert.Equal(t, "b", got.Title)
}

func TestMemory_CreateCollision(t *testing.T) {
	m := NewMemory()
	m.newID = func() string { return "fixed" }
	ctx := context.Background()

	_, err := m.Create(ctx, "orders", plant{})
	require.NoError(t, err)
	_, err = m.Create(ctx, "orders", plant{})
	require.ErrorIs(t, err, ErrExists)
}

func TestMemory_MergeKeepsOtherFields(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Put(ctx, "users", "u1", map[string]any{"email": "ivy@example.com", "displayName": "Ivy"}))

	require.NoError(t, m.Merge(ctx, "users", "u1", map[string]any{
		"shippingAddress": map[string]string{"city": "Portland"},
	}))

	var got map[string]any
	require.NoError(t, m.Get(ctx, "users", "u1", &got))
	assert.Equal(t, "ivy@example.com", got["email"])
	assert.Equal(t, "Ivy", got["displayName"])
	assert.Equal(t, map[string]any{"city": "Portland"}, got["shippingAddress"])
}

func TestMemory_MergeCreatesMissing(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Merge(ctx, "users", "u2", map[string]any{"email": "moss@example.com"}))

	var got map[string]any
	require.NoError(t, m.Get(ctx, "users", "u2", &got))
	assert.Equal(t, "moss@example.com", got["email"])
}

func TestMemory_Delete(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	seedPlants(t, m)

	require.NoError(t, m.Delete(ctx, "products", "fern"))
	require.ErrorIs(t, m.Delete(ctx, "products", "fern"), ErrNotFound)

	snaps, err := m.Find(ctx, "products", Query{})
	require.NoError(t, err)
	assert.Len(t, snaps, 2)
}

func TestMemory_Find(t *testing.T) {
	m := NewMemory()
	seedPlants(t, m)

	tests := []struct {
		name    string
		query   Query
		wantIDs []string
	}{
		{
			name:    "no filters keeps insertion order",
			query:   Query{},
			wantIDs: []string{"fern", "monstera", "lavender"},
		},
		{
			name:    "equality",
			query:   Query{Filters: []Filter{Where("category", OpEq, "indoor")}},
			wantIDs: []string{"fern", "monstera"},
		},
		{
			name:    "numeric range",
			query:   Query{Filters: []Filter{Where("price", OpLt, 20)}},
			wantIDs: []string{"fern", "lavender"},
		},
		{
			name: "range combined with equality",
			query: Query{Filters: []Filter{
				Where("category", OpEq, "indoor"),
				Where("price", OpGte, 42),
			}},
			wantIDs: []string{"monstera"},
		},
		{
			name:    "order by title",
			query:   Query{OrderBy: "title"},
			wantIDs: []string{"fern", "lavender", "monstera"},
		},
		{
			name:    "order by timestamp descending",
			query:   Query{OrderBy: "added", Descending: true},
			wantIDs: []string{"monstera", "lavender", "fern"},
		},
		{
			name:    "limit",
			query:   Query{OrderBy: "price", Limit: 1},
			wantIDs: []string{"lavender"},
		},
		{
			name:    "mismatched types never match",
			query:   Query{Filters: []Filter{Where("price", OpEq, "42")}},
			wantIDs: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snaps, err := m.Find(context.Background(), "products", tt.query)
			require.NoError(t, err)

			ids := make([]string, len(snaps))
			for i, s := range snaps {
				ids[i] = s.ID
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestMemory_FindDecodesSnapshots(t *testing.T) {
	m := NewMemory()
	seedPlants(t, m)

	snaps, err := m.Find(context.Background(), "products", Query{Filters: []Filter{Where("title", OpEq, "Lavender")}})
	require.NoError(t, err)
	require.Len(t, snaps, 1)

	var p plant
	require.NoError(t, snaps[0].Decode(&p))
	assert.Equal(t, 9.99, p.Price)
}

func TestMemory_FindRejectsBadQuery(t *testing.T) {
	m := NewMemory()
	_, err := m.Find(context.Background(), "products", Query{Filters: []Filter{{Field: "price", Op: "!="}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported filter operator")
}
