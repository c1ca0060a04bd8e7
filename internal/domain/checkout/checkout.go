// Package checkout drives one checkout attempt from cart review to a placed
// order.
//
// A Session moves through
//
//	Idle → CollectingAddress → CollectingPayment → Submitting → Completed
//	                                   ↑                 ↓
//	                                   └──── Failed ◄────┘
//
// and is used by one goroutine at a time.
package checkout

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/greenhouse/internal/domain/address"
	"github.com/xenking/greenhouse/internal/domain/cart"
	"github.com/xenking/greenhouse/internal/domain/order"
	"github.com/xenking/greenhouse/internal/domain/payment"
	"github.com/xenking/greenhouse/internal/domain/pricing"
	"github.com/xenking/greenhouse/internal/domain/product"
)

// Sentinel errors for session transitions.
var (
	ErrEmptyCart         = errors.New("cart is empty")
	ErrIllegalTransition = errors.New("illegal checkout transition")
)

// State is the position of a Session in the checkout flow.
type State int

// Checkout states.
const (
	Idle State = iota
	CollectingAddress
	CollectingPayment
	Submitting
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case CollectingAddress:
		return "collecting_address"
	case CollectingPayment:
		return "collecting_payment"
	case Submitting:
		return "submitting"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Resolver joins cart entries with products.
type Resolver interface {
	Resolve(ctx context.Context, entries []cart.Entry) ([]product.LineItem, error)
}

// AddressBook loads and saves shipping addresses.
type AddressBook interface {
	Load(ctx context.Context, userID string) (*address.Address, error)
	Save(ctx context.Context, userID string, addr address.Address) error
}

// Charger takes payment.
type Charger interface {
	Charge(ctx context.Context, card payment.Card, amount decimal.Decimal) (*payment.Confirmation, error)
}

// Placer writes orders.
type Placer interface {
	Create(ctx context.Context, in order.Input) (*order.Placed, error)
}

// Shopper is the principal a session acts for.
type Shopper struct {
	UserID string
	Email  string
}

// Service starts checkout sessions.
type Service struct {
	resolver  Resolver
	addresses AddressBook
	charger   Charger
	placer    Placer
	tracer    trace.Tracer
}

// NewService creates a Service. A nil tracer disables tracing.
func NewService(resolver Resolver, addresses AddressBook, charger Charger, placer Placer, tracer trace.Tracer) *Service {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}
	return &Service{
		resolver:  resolver,
		addresses: addresses,
		charger:   charger,
		placer:    placer,
		tracer:    tracer,
	}
}

// NewSession returns an Idle session for shopper over c.
func (s *Service) NewSession(shopper Shopper, c *cart.Store) *Session {
	return &Session{svc: s, shopper: shopper, cart: c, state: Idle}
}

// Session is a single checkout attempt.
type Session struct {
	svc     *Service
	shopper Shopper
	cart    *cart.Store

	state   State
	items   []product.LineItem
	summary pricing.Summary
	saved   *address.Address
	address address.Address
	placed  *order.Placed
}

// State returns the current state.
func (s *Session) State() State { return s.state }

// Items returns the resolved line items captured by Begin.
func (s *Session) Items() []product.LineItem { return s.items }

// Summary returns the pricing captured by Begin.
func (s *Session) Summary() pricing.Summary { return s.summary }

// SavedAddress returns the address found on the profile at Begin, if any.
func (s *Session) SavedAddress() *address.Address { return s.saved }

// Placed returns the order once the session completed.
func (s *Session) Placed() *order.Placed { return s.placed }

// Begin resolves and prices the cart and loads the saved address.
func (s *Session) Begin(ctx context.Context) (err error) {
	ctx, span := s.svc.tracer.Start(ctx, "checkout.Begin")
	defer func() { endSpan(span, err) }()

	if err := s.expect(Idle); err != nil {
		return err
	}
	if s.shopper.UserID == "" {
		return order.ErrNoPrincipal
	}

	items, err := s.svc.resolver.Resolve(ctx, s.cart.List())
	if err != nil {
		return errors.Wrap(err, "resolve cart")
	}
	if len(items) == 0 {
		return ErrEmptyCart
	}

	saved, err := s.svc.addresses.Load(ctx, s.shopper.UserID)
	if err != nil {
		return errors.Wrap(err, "load saved address")
	}

	s.items = items
	s.summary = pricing.Compute(items)
	s.saved = saved
	span.SetAttributes(
		attribute.Int("checkout.items", len(items)),
		attribute.String("checkout.total", s.summary.Total.StringFixed(2)),
	)
	s.state = CollectingAddress
	return nil
}

// SubmitAddress validates and saves addr to the profile. Validation errors
// keep the session collecting the address.
func (s *Session) SubmitAddress(ctx context.Context, addr address.Address) (err error) {
	ctx, span := s.svc.tracer.Start(ctx, "checkout.SubmitAddress")
	defer func() { endSpan(span, err) }()

	if err := s.expect(CollectingAddress); err != nil {
		return err
	}
	if err := s.svc.addresses.Save(ctx, s.shopper.UserID, addr); err != nil {
		return err
	}
	s.address = addr
	s.state = CollectingPayment
	return nil
}

// SubmitPayment charges card and places the order. Payment failures keep
// the session collecting payment; order write failures move it to Failed
// with the cart intact.
func (s *Session) SubmitPayment(ctx context.Context, card payment.Card) (err error) {
	ctx, span := s.svc.tracer.Start(ctx, "checkout.SubmitPayment")
	defer func() { endSpan(span, err) }()

	if err := s.expect(CollectingPayment); err != nil {
		return err
	}
	s.state = Submitting

	conf, err := s.svc.charger.Charge(ctx, card, s.summary.Total)
	if err != nil {
		s.state = CollectingPayment
		return err
	}

	placed, err := s.svc.placer.Create(ctx, order.Input{
		UserID:    s.shopper.UserID,
		UserEmail: s.shopper.Email,
		LineItems: s.items,
		Address:   s.address,
		Pricing:   s.summary,
		Payment:   *conf,
		Cart:      s.cart,
	})
	if err != nil {
		s.state = Failed
		return err
	}

	span.SetAttributes(attribute.String("order.number", placed.OrderNumber))
	s.placed = placed
	s.state = Completed
	return nil
}

// Retry returns a Failed session to collecting payment.
func (s *Session) Retry() error {
	if err := s.expect(Failed); err != nil {
		return err
	}
	s.state = CollectingPayment
	return nil
}

func (s *Session) expect(want State) error {
	if s.state != want {
		return errors.Wrapf(ErrIllegalTransition, "in state %s, want %s", s.state, want)
	}
	return nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
