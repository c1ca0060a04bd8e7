package docstore

import (
	"cmp"
	"context"
	"encoding/json"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

var _ Store = (*Memory)(nil)

// Memory is an in-process Store. Documents are kept as JSON so that values
// round-trip exactly like they do through the PostgreSQL backend.
type Memory struct {
	mu    sync.RWMutex
	colls map[string]map[string][]byte
	// seq keeps insertion order stable for unordered scans.
	seq   map[string][]string
	newID func() string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		colls: make(map[string]map[string][]byte),
		seq:   make(map[string][]string),
		newID: uuid.NewString,
	}
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, collection, id string, dst any) error {
	m.mu.RLock()
	raw, ok := m.colls[collection][id]
	m.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return errors.Wrapf(err, "decode %s/%s", collection, id)
	}
	return nil
}

// Create implements Store.
func (m *Memory) Create(_ context.Context, collection string, doc any) (string, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", errors.Wrap(err, "encode document")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.newID()
	if _, ok := m.colls[collection][id]; ok {
		return "", ErrExists
	}
	m.store(collection, id, raw)
	return id, nil
}

// Put implements Store.
func (m *Memory) Put(_ context.Context, collection, id string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "encode document")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.store(collection, id, raw)
	return nil
}

// Merge implements Store.
func (m *Memory) Merge(_ context.Context, collection, id string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := make(map[string]json.RawMessage)
	if raw, ok := m.colls[collection][id]; ok {
		if err := json.Unmarshal(raw, &current); err != nil {
			return errors.Wrapf(err, "decode %s/%s", collection, id)
		}
	}
	for k, v := range fields {
		b, err := json.Marshal(v)
		if err != nil {
			return errors.Wrapf(err, "encode field %q", k)
		}
		current[k] = b
	}

	raw, err := json.Marshal(current)
	if err != nil {
		return errors.Wrap(err, "encode document")
	}
	m.store(collection, id, raw)
	return nil
}

// Delete implements Store.
func (m *Memory) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.colls[collection][id]; !ok {
		return ErrNotFound
	}
	delete(m.colls[collection], id)
	m.seq[collection] = slices.DeleteFunc(m.seq[collection], func(s string) bool { return s == id })
	return nil
}

// Find implements Store.
func (m *Memory) Find(_ context.Context, collection string, q Query) ([]Snapshot, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	filters := make([]Filter, len(q.Filters))
	for i, f := range q.Filters {
		v, err := normalize(f.Value)
		if err != nil {
			return nil, errors.Wrapf(err, "filter %q", f.Field)
		}
		filters[i] = Filter{Field: f.Field, Op: f.Op, Value: v}
	}

	type row struct {
		id     string
		raw    []byte
		fields map[string]any
	}

	m.mu.RLock()
	rows := make([]row, 0, len(m.seq[collection]))
	for _, id := range m.seq[collection] {
		raw := m.colls[collection][id]
		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil {
			m.mu.RUnlock()
			return nil, errors.Wrapf(err, "decode %s/%s", collection, id)
		}
		rows = append(rows, row{id: id, raw: raw, fields: fields})
	}
	m.mu.RUnlock()

	rows = slices.DeleteFunc(rows, func(r row) bool {
		for _, f := range filters {
			if !matches(r.fields[f.Field], f.Op, f.Value) {
				return true
			}
		}
		return false
	})

	if q.OrderBy != "" {
		slices.SortStableFunc(rows, func(a, b row) int {
			c, _ := compareValues(a.fields[q.OrderBy], b.fields[q.OrderBy])
			if q.Descending {
				return -c
			}
			return c
		})
	}
	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}

	out := make([]Snapshot, len(rows))
	for i, r := range rows {
		raw := r.raw
		out[i] = NewSnapshot(r.id, func(dst any) error {
			return json.Unmarshal(raw, dst)
		})
	}
	return out, nil
}

// store must be called with mu held for writing.
func (m *Memory) store(collection, id string, raw []byte) {
	docs, ok := m.colls[collection]
	if !ok {
		docs = make(map[string][]byte)
		m.colls[collection] = docs
	}
	if _, exists := docs[id]; !exists {
		m.seq[collection] = append(m.seq[collection], id)
	}
	docs[id] = raw
}

// normalize converts v into the shape encoding/json produces when decoding
// into any, so filter values compare against stored fields like for like.
func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func matches(field any, op Op, value any) bool {
	c, ok := compareValues(field, value)
	if !ok {
		return false
	}
	switch op {
	case OpEq:
		return c == 0
	case OpLt:
		return c < 0
	case OpLte:
		return c <= 0
	case OpGt:
		return c > 0
	case OpGte:
		return c >= 0
	default:
		return false
	}
}

// compareValues orders two decoded JSON values. The second result is false
// when the values are of incomparable kinds. Strings holding RFC 3339
// timestamps compare chronologically.
func compareValues(a, b any) (int, bool) {
	switch av := a.(type) {
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return 0, false
		}
		return cmp.Compare(av, bv), true
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		at, aErr := time.Parse(time.RFC3339Nano, av)
		bt, bErr := time.Parse(time.RFC3339Nano, bv)
		if aErr == nil && bErr == nil {
			return at.Compare(bt), true
		}
		return strings.Compare(av, bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		default:
			return 1, true
		}
	case nil:
		if b == nil {
			return 0, true
		}
		return -1, false
	default:
		return 0, false
	}
}
