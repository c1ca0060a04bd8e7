// Package events publishes order lifecycle messages to RabbitMQ.
package events

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/xenking/greenhouse/internal/domain/order"
)

// OrderPlacedQueue is the durable queue receiving order.placed messages.
const OrderPlacedQueue = "order.placed"

const publishTimeout = 3 * time.Second

// Channel is the subset of *amqp.Channel the publisher needs.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

var errPublisherClosed = errors.New("publisher closed")

// link is one connection and its channel. conn and closed are nil for
// channels handed to NewPublisher.
type link struct {
	ch     Channel
	conn   io.Closer
	closed <-chan *amqp.Error
}

func (l *link) close() error {
	err := l.ch.Close()
	if l.conn != nil {
		if cerr := l.conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Publisher emits order events. A lost connection is dropped and redialed
// on the next publish.
type Publisher struct {
	dial func() (*link, error)
	lg   *zap.Logger
	now  func() time.Time

	mu       sync.Mutex
	cur      *link
	shutdown bool
}

// Dial connects to url and declares the order queue.
func Dial(url string, lg *zap.Logger) (*Publisher, error) {
	return newPublisher(func() (*link, error) {
		conn, err := amqp.Dial(url)
		if err != nil {
			return nil, errors.Wrap(err, "dial rabbitmq")
		}
		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			return nil, errors.Wrap(err, "open channel")
		}
		return &link{
			ch:     ch,
			conn:   conn,
			closed: conn.NotifyClose(make(chan *amqp.Error, 1)),
		}, nil
	}, lg)
}

// NewPublisher declares the order queue on ch.
func NewPublisher(ch Channel) (*Publisher, error) {
	return newPublisher(func() (*link, error) {
		return &link{ch: ch}, nil
	}, zap.NewNop())
}

func newPublisher(dial func() (*link, error), lg *zap.Logger) (*Publisher, error) {
	p := &Publisher{
		dial: dial,
		lg:   lg,
		now:  func() time.Time { return time.Now().UTC() },
	}
	if _, err := p.link(); err != nil {
		return nil, err
	}
	return p, nil
}

// link returns the current link, dialing a new one when there is none.
func (p *Publisher) link() (*link, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.shutdown {
		return nil, errPublisherClosed
	}
	if p.cur != nil {
		return p.cur, nil
	}

	l, err := p.dial()
	if err != nil {
		return nil, err
	}
	if _, err := l.ch.QueueDeclare(OrderPlacedQueue, true, false, false, false, nil); err != nil {
		_ = l.close()
		return nil, errors.Wrapf(err, "declare %s", OrderPlacedQueue)
	}
	p.cur = l
	if l.closed != nil {
		go p.watch(l)
	}
	return l, nil
}

// watch drops l once the broker closes its connection. A graceful Close
// closes the notification channel without an error.
func (p *Publisher) watch(l *link) {
	err, ok := <-l.closed
	if !ok || err == nil {
		return
	}
	p.lg.Warn("RabbitMQ connection lost", zap.Error(err))
	p.drop(l)
}

func (p *Publisher) drop(l *link) {
	p.mu.Lock()
	if p.cur != l {
		p.mu.Unlock()
		return
	}
	p.cur = nil
	p.mu.Unlock()
	_ = l.close()
}

// Close closes the current channel and connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.shutdown = true
	if p.cur == nil {
		return nil
	}
	l := p.cur
	p.cur = nil
	return l.close()
}

// PublishOrderPlaced sends one order.placed message.
func (p *Publisher) PublishOrderPlaced(ctx context.Context, placed order.Placed, o order.Order) error {
	l, err := p.link()
	if err != nil {
		return err
	}
	body := encodeOrderPlaced(placed, o, p.now())

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := l.ch.PublishWithContext(ctx, "", OrderPlacedQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    placed.OrderID,
		Type:         OrderPlacedQueue,
		Timestamp:    p.now(),
		Body:         body,
	}); err != nil {
		if errors.Is(err, amqp.ErrClosed) {
			p.lg.Warn("RabbitMQ channel closed", zap.Error(err))
			p.drop(l)
		}
		return errors.Wrap(err, "publish order.placed")
	}
	return nil
}

// Listener adapts the publisher to order.Listener. Failures are logged and
// never surface to the shopper; the order is already written.
func (p *Publisher) Listener() order.Listener {
	return func(ctx context.Context, placed order.Placed, o order.Order) {
		if err := p.PublishOrderPlaced(ctx, placed, o); err != nil {
			zctx.From(ctx).Warn("Order event not published",
				zap.String("order_id", placed.OrderID),
				zap.String("order_number", placed.OrderNumber),
				zap.Error(err),
			)
		}
	}
}

func encodeOrderPlaced(placed order.Placed, o order.Order, at time.Time) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("orderId")
	e.Str(placed.OrderID)
	e.FieldStart("orderNumber")
	e.Str(placed.OrderNumber)
	e.FieldStart("userId")
	e.Str(o.UserID)
	e.FieldStart("grandTotal")
	e.Float64(o.Pricing.GrandTotal)
	e.FieldStart("currency")
	e.Str(o.Pricing.Currency)
	e.FieldStart("items")
	e.ArrStart()
	for _, it := range o.Items {
		e.ObjStart()
		e.FieldStart("productId")
		e.Str(it.ProductID)
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("occurredAt")
	e.Str(at.Format(time.RFC3339Nano))
	e.ObjEnd()
	return e.Bytes()
}
