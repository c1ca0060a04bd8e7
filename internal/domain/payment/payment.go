// Package payment simulates a card charge. There is no gateway and no
// decline path: any card with all fields present succeeds after a delay.
package payment

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StatusSucceeded is the only status the simulator produces.
const StatusSucceeded = "succeeded"

// DefaultDelay mimics gateway latency.
const DefaultDelay = 1500 * time.Millisecond

// ErrMissingFields is wrapped by MissingFieldsError.
var ErrMissingFields = errors.New("missing card fields")

// MissingFieldsError lists the blank card fields.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return ErrMissingFields.Error() + ": " + strings.Join(e.Fields, ", ")
}

func (e *MissingFieldsError) Unwrap() error { return ErrMissingFields }

// Card is the payment form input.
type Card struct {
	Number     string
	HolderName string
	Expiry     string
	CVV        string
}

// Confirmation is the simulated gateway response.
type Confirmation struct {
	PaymentID            string `json:"paymentId" bson:"paymentId"`
	TransactionReference string `json:"transactionReference" bson:"transactionReference"`
	CardLast4            string `json:"cardLast4" bson:"cardLast4"`
	Status               string `json:"status" bson:"status"`
}

// Simulator fabricates payment confirmations.
type Simulator struct {
	delay time.Duration
}

// NewSimulator returns a Simulator waiting delay per charge. A negative
// delay selects DefaultDelay; zero disables waiting.
func NewSimulator(delay time.Duration) *Simulator {
	if delay < 0 {
		delay = DefaultDelay
	}
	return &Simulator{delay: delay}
}

// Charge validates card and returns a succeeded confirmation. Amount is
// accepted for interface parity with a real gateway and not inspected.
func (s *Simulator) Charge(ctx context.Context, card Card, _ decimal.Decimal) (*Confirmation, error) {
	if err := card.validate(); err != nil {
		return nil, err
	}

	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), "charge")
		case <-timer.C:
		}
	}

	paymentID, err := randomID(24)
	if err != nil {
		return nil, errors.Wrap(err, "payment id")
	}
	txnRef, err := randomID(16)
	if err != nil {
		return nil, errors.Wrap(err, "transaction reference")
	}
	return &Confirmation{
		PaymentID:            "pay_" + paymentID,
		TransactionReference: "txn_" + txnRef,
		CardLast4:            lastFour(card.Number),
		Status:               StatusSucceeded,
	}, nil
}

func (c Card) validate() error {
	var missing []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{"cardNumber", c.Number},
		{"cardName", c.HolderName},
		{"expiryDate", c.Expiry},
		{"cvv", c.CVV},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return &MissingFieldsError{Fields: missing}
	}
	return nil
}

func lastFour(number string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, number)
	if len(digits) <= 4 {
		return digits
	}
	return digits[len(digits)-4:]
}

// randomID returns n lowercase hex characters taken from a random UUID.
// n must not exceed 32.
func randomID(n int) (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(u.String(), "-", "")[:n], nil
}
