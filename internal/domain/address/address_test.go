package address

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/greenhouse/internal/docstore"
)

// countingStore records writes so tests can assert none happened.
type countingStore struct {
	docstore.Store
	merges int
}

func (c *countingStore) Merge(ctx context.Context, collection, id string, fields map[string]any) error {
	c.merges++
	return c.Store.Merge(ctx, collection, id, fields)
}

func validAddress() Address {
	return Address{
		AddressLine1: "12 Fern Lane",
		City:         "Portland",
		State:        "OR",
		PostalCode:   "97201",
		Country:      "US",
	}
}

func TestAddress_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Address)
		missing []string
	}{
		{name: "complete", mutate: func(*Address) {}},
		{name: "optional fields blank", mutate: func(a *Address) { a.AddressLine2, a.Phone = "", "" }},
		{name: "empty city", mutate: func(a *Address) { a.City = "" }, missing: []string{"city"}},
		{name: "whitespace counts as blank", mutate: func(a *Address) { a.State = "  " }, missing: []string{"state"}},
		{
			name:    "everything blank",
			mutate:  func(a *Address) { *a = Address{} },
			missing: []string{"addressLine1", "city", "state", "postalCode", "country"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := validAddress()
			tt.mutate(&a)
			err := a.Validate()
			if tt.missing == nil {
				require.NoError(t, err)
				return
			}
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.missing, vErr.Missing)
		})
	}
}

func TestManager_SaveRejectsBeforeStore(t *testing.T) {
	store := &countingStore{Store: docstore.NewMemory()}
	m := NewManager(store)

	a := validAddress()
	a.City = ""
	var vErr *ValidationError
	require.ErrorAs(t, m.Save(context.Background(), "u1", a), &vErr)
	assert.Equal(t, []string{"city"}, vErr.Missing)
	assert.Zero(t, store.merges)
}

func TestManager_NoPrincipal(t *testing.T) {
	m := NewManager(docstore.NewMemory())
	require.ErrorIs(t, m.Save(context.Background(), "", validAddress()), ErrNoPrincipal)
	_, err := m.Load(context.Background(), "")
	require.ErrorIs(t, err, ErrNoPrincipal)
}

func TestManager_SaveKeepsProfile(t *testing.T) {
	store := docstore.NewMemory()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, UsersCollection, "u1", map[string]any{
		"email":       "ivy@example.com",
		"displayName": "Ivy",
	}))

	m := NewManager(store)
	want := validAddress()
	want.Phone = "+1 503 555 0100"
	require.NoError(t, m.Save(ctx, "u1", want))

	got, err := m.Load(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, *got)

	var raw map[string]any
	require.NoError(t, store.Get(ctx, UsersCollection, "u1", &raw))
	assert.Equal(t, "ivy@example.com", raw["email"])
	assert.Equal(t, "Ivy", raw["displayName"])
}

func TestManager_LoadWithoutAddress(t *testing.T) {
	store := docstore.NewMemory()
	ctx := context.Background()
	m := NewManager(store)

	got, err := m.Load(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, store.Put(ctx, UsersCollection, "u2", map[string]any{"email": "moss@example.com"}))
	got, err = m.Load(ctx, "u2")
	require.NoError(t, err)
	assert.Nil(t, got)
}
