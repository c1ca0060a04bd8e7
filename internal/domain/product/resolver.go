package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/greenhouse/internal/domain/cart"
)

// LineItem is a cart entry joined with the product it refers to. Price is the
// catalog price at resolution time.
type LineItem struct {
	ProductID   string
	Quantity    int
	Title       string
	Price       decimal.Decimal
	ImageRef    string
	Description string
}

// Total returns Price × Quantity.
func (l LineItem) Total() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Resolver joins cart entries with catalog products.
type Resolver struct {
	catalog *Catalog
}

// NewResolver returns a Resolver reading from catalog.
func NewResolver(catalog *Catalog) *Resolver {
	return &Resolver{catalog: catalog}
}

// Resolve looks up every entry in cart order, one at a time. Entries whose
// product no longer exists are dropped with a warning; any other lookup
// failure aborts resolution.
func (r *Resolver) Resolve(ctx context.Context, entries []cart.Entry) ([]LineItem, error) {
	items := make([]LineItem, 0, len(entries))
	for _, e := range entries {
		p, err := r.catalog.Get(ctx, e.ProductID)
		if errors.Is(err, ErrNotFound) {
			zctx.From(ctx).Warn("Cart references missing product, skipping",
				zap.String("product_id", e.ProductID),
				zap.Int("quantity", e.Quantity),
			)
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(err, "resolve %s", e.ProductID)
		}

		items = append(items, LineItem{
			ProductID:   e.ProductID,
			Quantity:    e.Quantity,
			Title:       p.Title,
			Price:       p.Price,
			ImageRef:    p.ImageRef,
			Description: p.Description,
		})
	}
	return items, nil
}
