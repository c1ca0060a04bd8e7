package mongo

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/xenking/greenhouse/internal/docstore"
)

var _ docstore.Store = (*Documents)(nil)

// Documents implements docstore.Store with one MongoDB collection per
// docstore collection. Document ids are stored as string _id values.
type Documents struct {
	db    *mongo.Database
	newID func() string
}

// NewDocuments returns a Documents store on db.
func NewDocuments(db *mongo.Database) *Documents {
	return &Documents{db: db, newID: uuid.NewString}
}

// Ping checks the primary is reachable.
func (d *Documents) Ping(ctx context.Context) error {
	return d.db.Client().Ping(ctx, nil)
}

// Get implements docstore.Store.
func (d *Documents) Get(ctx context.Context, collection, id string, dst any) error {
	err := d.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(dst)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return docstore.ErrNotFound
	}
	if err != nil {
		return errors.Wrapf(err, "get %s/%s", collection, id)
	}
	return nil
}

// Create implements docstore.Store.
func (d *Documents) Create(ctx context.Context, collection string, doc any) (string, error) {
	body, err := toD(doc)
	if err != nil {
		return "", err
	}

	id := d.newID()
	body = append(bson.D{{Key: "_id", Value: id}}, body...)
	if _, err := d.db.Collection(collection).InsertOne(ctx, body); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", docstore.ErrExists
		}
		return "", errors.Wrapf(err, "create in %s", collection)
	}
	return id, nil
}

// Put implements docstore.Store.
func (d *Documents) Put(ctx context.Context, collection, id string, doc any) error {
	body, err := toD(doc)
	if err != nil {
		return err
	}
	_, err = d.db.Collection(collection).ReplaceOne(ctx, bson.M{"_id": id}, body, options.Replace().SetUpsert(true))
	if err != nil {
		return errors.Wrapf(err, "put %s/%s", collection, id)
	}
	return nil
}

// Merge implements docstore.Store with an upserting $set.
func (d *Documents) Merge(ctx context.Context, collection, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	update := bson.M{"$set": fields}
	_, err := d.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": id}, update, options.Update().SetUpsert(true))
	if err != nil {
		return errors.Wrapf(err, "merge %s/%s", collection, id)
	}
	return nil
}

// Delete implements docstore.Store.
func (d *Documents) Delete(ctx context.Context, collection, id string) error {
	res, err := d.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Wrapf(err, "delete %s/%s", collection, id)
	}
	if res.DeletedCount == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

// Find implements docstore.Store.
func (d *Documents) Find(ctx context.Context, collection string, q docstore.Query) ([]docstore.Snapshot, error) {
	filter, opts, err := buildFind(q)
	if err != nil {
		return nil, err
	}

	cur, err := d.db.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "find in %s", collection)
	}
	defer func() { _ = cur.Close(ctx) }()

	var out []docstore.Snapshot
	for cur.Next(ctx) {
		raw := make(bson.Raw, len(cur.Current))
		copy(raw, cur.Current)

		id, ok := raw.Lookup("_id").StringValueOK()
		if !ok {
			return nil, errors.Errorf("%s: document without string _id", collection)
		}
		out = append(out, docstore.NewSnapshot(id, func(dst any) error {
			return bson.Unmarshal(raw, dst)
		}))
	}
	if err := cur.Err(); err != nil {
		return nil, errors.Wrapf(err, "iterate %s", collection)
	}
	return out, nil
}

var operators = map[docstore.Op]string{
	docstore.OpEq:  "$eq",
	docstore.OpLt:  "$lt",
	docstore.OpLte: "$lte",
	docstore.OpGt:  "$gt",
	docstore.OpGte: "$gte",
}

func buildFind(q docstore.Query) (bson.D, *options.FindOptions, error) {
	if err := q.Validate(); err != nil {
		return nil, nil, err
	}

	filter := bson.D{}
	byField := make(map[string]bson.M)
	for _, f := range q.Filters {
		cond, ok := byField[f.Field]
		if !ok {
			cond = bson.M{}
			byField[f.Field] = cond
			filter = append(filter, bson.E{Key: f.Field, Value: cond})
		}
		cond[operators[f.Op]] = filterValue(f.Value)
	}

	opts := options.Find()
	if q.OrderBy != "" {
		dir := 1
		if q.Descending {
			dir = -1
		}
		opts.SetSort(bson.D{{Key: q.OrderBy, Value: dir}, {Key: "_id", Value: 1}})
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	return filter, opts, nil
}

// filterValue maps values without a native BSON form onto one that compares
// like the stored field.
func filterValue(v any) any {
	if d, ok := v.(decimal.Decimal); ok {
		return d.InexactFloat64()
	}
	return v
}

func toD(doc any) (bson.D, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(err, "encode document")
	}
	var out bson.D
	if err := bson.Unmarshal(raw, &out); err != nil {
		return nil, errors.Wrap(err, "encode document")
	}
	return out, nil
}
