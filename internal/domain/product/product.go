package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/greenhouse/internal/docstore"
)

// Collection is the document store collection holding the catalog.
const Collection = "products"

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase.
type Product struct {
	ID          string
	Title       string
	Price       decimal.Decimal
	ImageRef    string
	Description string
	Category    string
	CreatedAt   time.Time
}

// Document is the persisted shape of a Product. Prices are stored as plain
// numbers so that range filters work in every backend.
type Document struct {
	Title       string    `json:"title" bson:"title"`
	Price       float64   `json:"price" bson:"price"`
	ImageRef    string    `json:"imageRef" bson:"imageRef"`
	Description string    `json:"description" bson:"description"`
	Category    string    `json:"category" bson:"category"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
}

// FromDocument converts a stored document into a Product.
func FromDocument(id string, d Document) Product {
	return Product{
		ID:          id,
		Title:       d.Title,
		Price:       decimal.NewFromFloat(d.Price).Round(2),
		ImageRef:    d.ImageRef,
		Description: d.Description,
		Category:    d.Category,
		CreatedAt:   d.CreatedAt,
	}
}

// Document returns the persisted shape of p.
func (p Product) Document() Document {
	return Document{
		Title:       p.Title,
		Price:       p.Price.Round(2).InexactFloat64(),
		ImageRef:    p.ImageRef,
		Description: p.Description,
		Category:    p.Category,
		CreatedAt:   p.CreatedAt,
	}
}

// Catalog provides read and write access to products.
type Catalog struct {
	store docstore.Store
}

// NewCatalog returns a Catalog on store.
func NewCatalog(store docstore.Store) *Catalog {
	return &Catalog{store: store}
}

// List returns products ordered by title. A non-empty category restricts the
// result to that category.
func (c *Catalog) List(ctx context.Context, category string) ([]Product, error) {
	q := docstore.Query{OrderBy: "title"}
	if category != "" {
		q.Filters = append(q.Filters, docstore.Where("category", docstore.OpEq, category))
	}

	snaps, err := c.store.Find(ctx, Collection, q)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}

	out := make([]Product, 0, len(snaps))
	for _, s := range snaps {
		var d Document
		if err := s.Decode(&d); err != nil {
			return nil, errors.Wrapf(err, "decode product %s", s.ID)
		}
		out = append(out, FromDocument(s.ID, d))
	}
	return out, nil
}

// Get returns the product with the given id.
func (c *Catalog) Get(ctx context.Context, id string) (*Product, error) {
	var d Document
	if err := c.store.Get(ctx, Collection, id, &d); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "get product %s", id)
	}
	p := FromDocument(id, d)
	return &p, nil
}

// Upsert writes p under p.ID, or under a generated id when p.ID is empty,
// and returns the id used.
func (c *Catalog) Upsert(ctx context.Context, p Product) (string, error) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.ID == "" {
		id, err := c.store.Create(ctx, Collection, p.Document())
		if err != nil {
			return "", errors.Wrap(err, "create product")
		}
		return id, nil
	}
	if err := c.store.Put(ctx, Collection, p.ID, p.Document()); err != nil {
		return "", errors.Wrapf(err, "put product %s", p.ID)
	}
	return p.ID, nil
}
