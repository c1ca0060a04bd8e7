package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/xenking/greenhouse/internal/docstore"
	"github.com/xenking/greenhouse/internal/domain/address"
	"github.com/xenking/greenhouse/internal/domain/payment"
	"github.com/xenking/greenhouse/internal/domain/pricing"
	"github.com/xenking/greenhouse/internal/domain/product"
)

// Sentinel errors for order creation.
var (
	// ErrNoPrincipal is shared with the address book so one check covers
	// the whole checkout.
	ErrNoPrincipal = address.ErrNoPrincipal
	ErrEmptyOrder  = errors.New("order has no items")
)

// Cart is the part of the shopper's cart the composer touches.
type Cart interface {
	Clear()
}

// Input carries everything needed to place an order.
type Input struct {
	UserID    string
	UserEmail string
	LineItems []product.LineItem
	Address   address.Address
	Pricing   pricing.Summary
	Payment   payment.Confirmation
	Cart      Cart
}

// Placed identifies a successfully written order.
type Placed struct {
	OrderID     string
	OrderNumber string
}

// Listener is notified after an order is written and the cart cleared.
type Listener func(ctx context.Context, placed Placed, o Order)

// Composer builds order documents and writes them to the store.
type Composer struct {
	store     docstore.Store
	numbers   *NumberGenerator
	now       func() time.Time
	listeners []Listener
	placed    metric.Int64Counter
}

// NewComposer creates a Composer. A nil meter disables metrics.
func NewComposer(store docstore.Store, numbers *NumberGenerator, meter metric.Meter) (*Composer, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("")
	}
	placed, err := meter.Int64Counter("orders.placed",
		metric.WithDescription("Orders written to the document store"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create orders.placed counter")
	}
	return &Composer{
		store:   store,
		numbers: numbers,
		now:     func() time.Time { return time.Now().UTC() },
		placed:  placed,
	}, nil
}

// OnPlaced registers l. Listeners must be registered before the composer
// is used concurrently.
func (c *Composer) OnPlaced(l Listener) {
	c.listeners = append(c.listeners, l)
}

// Create writes a new order built from in. On success the cart is cleared
// exactly once and listeners run in registration order. On failure the
// cart is left untouched and no listener runs.
func (c *Composer) Create(ctx context.Context, in Input) (*Placed, error) {
	if in.UserID == "" {
		return nil, ErrNoPrincipal
	}
	if len(in.LineItems) == 0 {
		return nil, ErrEmptyOrder
	}

	o := c.build(in)
	id, err := c.store.Create(ctx, Collection, o)
	if err != nil {
		return nil, errors.Wrap(err, "write order")
	}

	placed := Placed{OrderID: id, OrderNumber: o.OrderNumber}
	c.placed.Add(ctx, 1, metric.WithAttributes(attribute.String("currency", o.Pricing.Currency)))
	zctx.From(ctx).Info("Order placed",
		zap.String("order_id", id),
		zap.String("order_number", o.OrderNumber),
		zap.Float64("grand_total", o.Pricing.GrandTotal),
	)

	if in.Cart != nil {
		in.Cart.Clear()
	}
	for _, l := range c.listeners {
		l(ctx, placed, o)
	}
	return &placed, nil
}

func (c *Composer) build(in Input) Order {
	now := c.now()

	items := make([]Item, len(in.LineItems))
	for i, li := range in.LineItems {
		items[i] = Item{ProductID: li.ProductID, Quantity: li.Quantity}
	}

	return Order{
		OrderNumber:    c.numbers.Next(),
		UserID:         in.UserID,
		UserEmail:      in.UserEmail,
		OrderDate:      now,
		Status:         StatusPending,
		PaymentStatus:  PaymentProcessing,
		PaymentDetails: in.Payment,
		Items:          items,
		Pricing: Pricing{
			Subtotal:      in.Pricing.Subtotal.InexactFloat64(),
			TaxTotal:      in.Pricing.Tax.InexactFloat64(),
			ShippingTotal: in.Pricing.Shipping.InexactFloat64(),
			GrandTotal:    in.Pricing.Total.InexactFloat64(),
			Currency:      in.Pricing.CurrencyCode(),
		},
		ShippingAddress: in.Address,
		Timestamps:      Timestamps{CreatedAt: now},
	}
}
