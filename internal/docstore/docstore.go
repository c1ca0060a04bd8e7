// Package docstore defines the document store contract used by the storefront.
//
// Documents are grouped into named collections and addressed by a string id.
// Each backend (memory, PostgreSQL JSONB, MongoDB) encodes documents through
// the json/bson struct tags of the value it is given, so domain types carry
// both tag sets with identical field names.
package docstore

import (
	"context"

	"github.com/go-faster/errors"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrExists is returned by Create when the generated id is already taken.
	ErrExists = errors.New("document already exists")
)

// Op is a comparison operator used in filters.
type Op string

// Supported filter operators.
const (
	OpEq  Op = "=="
	OpLt  Op = "<"
	OpLte Op = "<="
	OpGt  Op = ">"
	OpGte Op = ">="
)

// Valid reports whether op is one of the supported operators.
func (op Op) Valid() bool {
	switch op {
	case OpEq, OpLt, OpLte, OpGt, OpGte:
		return true
	default:
		return false
	}
}

// Filter restricts a collection scan to documents whose top-level Field
// compares to Value with Op.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Where is shorthand for constructing a Filter.
func Where(field string, op Op, value any) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

// Query describes a collection scan.
type Query struct {
	Filters    []Filter
	OrderBy    string
	Descending bool
	// Limit caps the number of returned documents. Zero means no limit.
	Limit int
}

// Validate checks operators and field names.
func (q Query) Validate() error {
	for _, f := range q.Filters {
		if f.Field == "" {
			return errors.New("filter field is empty")
		}
		if !f.Op.Valid() {
			return errors.Errorf("unsupported filter operator %q", f.Op)
		}
	}
	if q.Limit < 0 {
		return errors.Errorf("negative limit %d", q.Limit)
	}
	return nil
}

// Snapshot is a document returned by a collection scan.
type Snapshot struct {
	ID     string
	decode func(dst any) error
}

// NewSnapshot binds a document id to a backend-specific decoder.
func NewSnapshot(id string, decode func(dst any) error) Snapshot {
	return Snapshot{ID: id, decode: decode}
}

// Decode unmarshals the document body into dst.
func (s Snapshot) Decode(dst any) error {
	if s.decode == nil {
		return errors.New("snapshot has no body")
	}
	return s.decode(dst)
}

// Store is the document store contract.
type Store interface {
	// Get decodes the document collection/id into dst.
	// It returns ErrNotFound when the document does not exist.
	Get(ctx context.Context, collection, id string, dst any) error
	// Create writes doc as a new document with a generated id and returns it.
	Create(ctx context.Context, collection string, doc any) (string, error)
	// Put writes doc under id, replacing any existing document.
	Put(ctx context.Context, collection, id string, doc any) error
	// Merge sets the given top-level fields on collection/id, creating the
	// document when absent. Fields not named are left untouched.
	Merge(ctx context.Context, collection, id string, fields map[string]any) error
	// Delete removes collection/id. It returns ErrNotFound when absent.
	Delete(ctx context.Context, collection, id string) error
	// Find scans collection with the given query.
	Find(ctx context.Context, collection string, q Query) ([]Snapshot, error)
}
