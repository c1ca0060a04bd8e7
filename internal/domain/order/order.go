package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/greenhouse/internal/docstore"
	"github.com/xenking/greenhouse/internal/domain/address"
	"github.com/xenking/greenhouse/internal/domain/payment"
)

// Collection is the document store collection holding orders.
const Collection = "orders"

// Initial states of a freshly placed order.
const (
	StatusPending     = "pending"
	PaymentProcessing = "processing"
)

// Order is the persisted order document. Monetary amounts are plain numbers
// with two decimal places; Pricing.GrandTotal is the sum of the other three.
type Order struct {
	OrderNumber     string               `json:"orderNumber" bson:"orderNumber"`
	UserID          string               `json:"userId" bson:"userId"`
	UserEmail       string               `json:"userEmail" bson:"userEmail"`
	OrderDate       time.Time            `json:"orderDate" bson:"orderDate"`
	Status          string               `json:"status" bson:"status"`
	PaymentStatus   string               `json:"paymentStatus" bson:"paymentStatus"`
	PaymentDetails  payment.Confirmation `json:"paymentDetails" bson:"paymentDetails"`
	Items           []Item               `json:"items" bson:"items"`
	Pricing         Pricing              `json:"pricing" bson:"pricing"`
	ShippingAddress address.Address      `json:"shippingAddress" bson:"shippingAddress"`
	Timestamps      Timestamps           `json:"timestamps" bson:"timestamps"`
	Tracking        Tracking             `json:"tracking" bson:"tracking"`
}

// Item represents a single line item in an order.
type Item struct {
	ProductID string `json:"productId" bson:"productId"`
	Quantity  int    `json:"quantity" bson:"quantity"`
}

// Pricing is the priced breakdown stored with the order.
type Pricing struct {
	Subtotal      float64 `json:"subtotal" bson:"subtotal"`
	TaxTotal      float64 `json:"taxTotal" bson:"taxTotal"`
	ShippingTotal float64 `json:"shippingTotal" bson:"shippingTotal"`
	GrandTotal    float64 `json:"grandTotal" bson:"grandTotal"`
	Currency      string  `json:"currency" bson:"currency"`
}

// Timestamps tracks fulfillment milestones. Only CreatedAt is set at
// placement.
type Timestamps struct {
	CreatedAt   time.Time  `json:"createdAt" bson:"createdAt"`
	PaidAt      *time.Time `json:"paidAt" bson:"paidAt"`
	ShippedAt   *time.Time `json:"shippedAt" bson:"shippedAt"`
	DeliveredAt *time.Time `json:"deliveredAt" bson:"deliveredAt"`
	CancelledAt *time.Time `json:"cancelledAt" bson:"cancelledAt"`
}

// Tracking holds carrier details, all unset at placement.
type Tracking struct {
	Carrier        *string `json:"carrier" bson:"carrier"`
	TrackingNumber *string `json:"trackingNumber" bson:"trackingNumber"`
	TrackingURL    *string `json:"trackingUrl" bson:"trackingUrl"`
}

// Stored is an order together with its document id.
type Stored struct {
	ID string
	Order
}

// History reads a shopper's past orders.
type History struct {
	store docstore.Store
}

// NewHistory returns a History on store.
func NewHistory(store docstore.Store) *History {
	return &History{store: store}
}

// ListByUser returns the orders of userID, newest first.
func (h *History) ListByUser(ctx context.Context, userID string, limit int) ([]Stored, error) {
	if userID == "" {
		return nil, ErrNoPrincipal
	}

	snaps, err := h.store.Find(ctx, Collection, docstore.Query{
		Filters:    []docstore.Filter{docstore.Where("userId", docstore.OpEq, userID)},
		OrderBy:    "orderDate",
		Descending: true,
		Limit:      limit,
	})
	if err != nil {
		return nil, errors.Wrap(err, "find orders")
	}

	out := make([]Stored, 0, len(snaps))
	for _, s := range snaps {
		var o Order
		if err := s.Decode(&o); err != nil {
			return nil, errors.Wrapf(err, "decode order %s", s.ID)
		}
		out = append(out, Stored{ID: s.ID, Order: o})
	}
	return out, nil
}
