package mongo

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/xenking/greenhouse/internal/docstore"
)

func TestBuildFind(t *testing.T) {
	since := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		query      docstore.Query
		wantFilter bson.D
		wantSort   any
		wantLimit  *int64
	}{
		{
			name:       "empty",
			query:      docstore.Query{},
			wantFilter: bson.D{},
		},
		{
			name: "range on one field folds into one condition",
			query: docstore.Query{Filters: []docstore.Filter{
				docstore.Where("price", docstore.OpGte, 10),
				docstore.Where("price", docstore.OpLt, decimal.RequireFromString("20.50")),
			}},
			wantFilter: bson.D{{Key: "price", Value: bson.M{"$gte": 10, "$lt": 20.5}}},
		},
		{
			name: "orders for a user newest first",
			query: docstore.Query{
				Filters:    []docstore.Filter{docstore.Where("userId", docstore.OpEq, "u1"), docstore.Where("orderDate", docstore.OpGt, since)},
				OrderBy:    "orderDate",
				Descending: true,
				Limit:      5,
			},
			wantFilter: bson.D{
				{Key: "userId", Value: bson.M{"$eq": "u1"}},
				{Key: "orderDate", Value: bson.M{"$gt": since}},
			},
			wantSort:  bson.D{{Key: "orderDate", Value: -1}, {Key: "_id", Value: 1}},
			wantLimit: func() *int64 { n := int64(5); return &n }(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter, opts, err := buildFind(tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFilter, filter)
			assert.Equal(t, tt.wantSort, opts.Sort)
			assert.Equal(t, tt.wantLimit, opts.Limit)
		})
	}
}

func TestBuildFind_RejectsBadOperator(t *testing.T) {
	_, _, err := buildFind(docstore.Query{Filters: []docstore.Filter{{Field: "price", Op: "!="}}})
	require.Error(t, err)
}
