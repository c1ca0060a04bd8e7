package postgres

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/xenking/greenhouse/internal/docstore"
)

const (
	getDocumentSQL = `SELECT data FROM documents WHERE collection = $1 AND id = $2`

	createDocumentSQL = `INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3)`

	putDocumentSQL = `INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3)
	ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`

	mergeDocumentSQL = `INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3)
	ON CONFLICT (collection, id) DO UPDATE SET data = documents.data || EXCLUDED.data, updated_at = now()`

	deleteDocumentSQL = `DELETE FROM documents WHERE collection = $1 AND id = $2`

	uniqueViolation = "23505"
)

// DB is the subset of pgxpool.Pool used by Documents.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ docstore.Store = (*Documents)(nil)

// Documents implements docstore.Store backed by the documents table.
type Documents struct {
	db    DB
	newID func() string
}

// NewDocuments returns a Documents store that uses the given pool.
func NewDocuments(db DB) *Documents {
	return &Documents{db: db, newID: uuid.NewString}
}

// Get implements docstore.Store.
func (d *Documents) Get(ctx context.Context, collection, id string, dst any) error {
	var data []byte
	err := d.db.QueryRow(ctx, getDocumentSQL, collection, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return docstore.ErrNotFound
	}
	if err != nil {
		return errors.Wrapf(err, "get %s/%s", collection, id)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return errors.Wrapf(err, "decode %s/%s", collection, id)
	}
	return nil
}

// Create implements docstore.Store.
func (d *Documents) Create(ctx context.Context, collection string, doc any) (string, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", errors.Wrap(err, "encode document")
	}

	id := d.newID()
	if _, err := d.db.Exec(ctx, createDocumentSQL, collection, id, data); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return "", docstore.ErrExists
		}
		return "", errors.Wrapf(err, "create in %s", collection)
	}
	return id, nil
}

// Put implements docstore.Store.
func (d *Documents) Put(ctx context.Context, collection, id string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "encode document")
	}
	if _, err := d.db.Exec(ctx, putDocumentSQL, collection, id, data); err != nil {
		return errors.Wrapf(err, "put %s/%s", collection, id)
	}
	return nil
}

// Merge implements docstore.Store. Top-level keys of fields replace the
// stored ones through the jsonb || operator.
func (d *Documents) Merge(ctx context.Context, collection, id string, fields map[string]any) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return errors.Wrap(err, "encode fields")
	}
	if _, err := d.db.Exec(ctx, mergeDocumentSQL, collection, id, data); err != nil {
		return errors.Wrapf(err, "merge %s/%s", collection, id)
	}
	return nil
}

// Delete implements docstore.Store.
func (d *Documents) Delete(ctx context.Context, collection, id string) error {
	tag, err := d.db.Exec(ctx, deleteDocumentSQL, collection, id)
	if err != nil {
		return errors.Wrapf(err, "delete %s/%s", collection, id)
	}
	if tag.RowsAffected() == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

// Find implements docstore.Store.
func (d *Documents) Find(ctx context.Context, collection string, q docstore.Query) ([]docstore.Snapshot, error) {
	sql, args, err := buildFind(collection, q)
	if err != nil {
		return nil, err
	}

	rows, err := d.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "find in %s", collection)
	}
	defer rows.Close()

	var out []docstore.Snapshot
	for rows.Next() {
		var (
			id   string
			data []byte
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, errors.Wrapf(err, "scan %s", collection)
		}
		out = append(out, docstore.NewSnapshot(id, func(dst any) error {
			return json.Unmarshal(data, dst)
		}))
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "iterate %s", collection)
	}
	return out, nil
}

// buildFind renders q as a parameterized SELECT. Field names are always bound
// as parameters, never interpolated.
func buildFind(collection string, q docstore.Query) (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}

	var (
		b    strings.Builder
		args = []any{collection}
	)
	bind := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	b.WriteString("SELECT id, data FROM documents WHERE collection = $1")
	for _, f := range q.Filters {
		b.WriteString(" AND ")
		if f.Op == docstore.OpEq {
			doc, err := json.Marshal(map[string]any{f.Field: f.Value})
			if err != nil {
				return "", nil, errors.Wrapf(err, "encode filter %q", f.Field)
			}
			b.WriteString("data @> " + bind(string(doc)) + "::jsonb")
			continue
		}

		key := bind(f.Field)
		switch v := f.Value.(type) {
		case time.Time:
			b.WriteString("(CASE WHEN data->>" + key + ` ~ '^\d{4}-\d{2}-\d{2}T' THEN (data->>` + key + ")::timestamptz END) ")
			b.WriteString(string(f.Op) + " " + bind(v))
		case string:
			b.WriteString("data->>" + key + " " + string(f.Op) + " " + bind(v))
		default:
			n, ok := numeric(v)
			if !ok {
				return "", nil, errors.Errorf("filter %q: unsupported value type %T", f.Field, f.Value)
			}
			b.WriteString("(CASE WHEN jsonb_typeof(data->" + key + ") = 'number' THEN (data->>" + key + ")::numeric END) ")
			b.WriteString(string(f.Op) + " " + bind(n))
		}
	}

	b.WriteString(" ORDER BY ")
	if q.OrderBy != "" {
		dir := " ASC"
		if q.Descending {
			dir = " DESC"
		}
		key := bind(q.OrderBy)
		b.WriteString("(CASE WHEN data->>" + key + ` ~ '^\d{4}-\d{2}-\d{2}T' THEN (data->>` + key + ")::timestamptz END)" + dir + " NULLS LAST, ")
		b.WriteString("data->" + key + dir + ", ")
	}
	b.WriteString("seq")
	if q.Limit > 0 {
		b.WriteString(" LIMIT " + bind(q.Limit))
	}
	return b.String(), args, nil
}

func numeric(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int32:
		return decimal.NewFromInt32(n), true
	case int64:
		return decimal.NewFromInt(n), true
	case float32:
		return decimal.NewFromFloat32(n), true
	case float64:
		return decimal.NewFromFloat(n), true
	default:
		return decimal.Decimal{}, false
	}
}
