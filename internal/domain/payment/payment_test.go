package payment

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var amount = decimal.RequireFromString("27.59")

func card() Card {
	return Card{Number: "4242 4242 4242 4242", HolderName: "Ivy Green", Expiry: "12/29", CVV: "123"}
}

func TestCharge_MissingFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Card)
		want   []string
	}{
		{name: "number", mutate: func(c *Card) { c.Number = "" }, want: []string{"cardNumber"}},
		{name: "holder", mutate: func(c *Card) { c.HolderName = " " }, want: []string{"cardName"}},
		{name: "expiry", mutate: func(c *Card) { c.Expiry = "" }, want: []string{"expiryDate"}},
		{name: "cvv", mutate: func(c *Card) { c.CVV = "" }, want: []string{"cvv"}},
		{name: "all", mutate: func(c *Card) { *c = Card{} }, want: []string{"cardNumber", "cardName", "expiryDate", "cvv"}},
	}
	sim := NewSimulator(0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := card()
			tt.mutate(&c)

			conf, err := sim.Charge(context.Background(), c, amount)
			require.ErrorIs(t, err, ErrMissingFields)
			assert.Nil(t, conf)

			var mfErr *MissingFieldsError
			require.ErrorAs(t, err, &mfErr)
			assert.Equal(t, tt.want, mfErr.Fields)
		})
	}
}

func TestCharge_Succeeds(t *testing.T) {
	conf, err := NewSimulator(0).Charge(context.Background(), card(), amount)
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^pay_[0-9a-f]{24}$`), conf.PaymentID)
	assert.Regexp(t, regexp.MustCompile(`^txn_[0-9a-f]{16}$`), conf.TransactionReference)
	assert.Equal(t, "4242", conf.CardLast4)
	assert.Equal(t, StatusSucceeded, conf.Status)
}

func TestCharge_FreshReferences(t *testing.T) {
	sim := NewSimulator(0)
	a, err := sim.Charge(context.Background(), card(), amount)
	require.NoError(t, err)
	b, err := sim.Charge(context.Background(), card(), amount)
	require.NoError(t, err)
	assert.NotEqual(t, a.TransactionReference, b.TransactionReference)
	assert.NotEqual(t, a.PaymentID, b.PaymentID)
}

func TestRandomID(t *testing.T) {
	seen := make(map[string]struct{})
	for range 100 {
		id, err := randomID(16)
		require.NoError(t, err)
		assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{16}$`), id)
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, 100)
}

func TestCharge_WaitsForDelay(t *testing.T) {
	start := time.Now()
	_, err := NewSimulator(20*time.Millisecond).Charge(context.Background(), card(), amount)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestCharge_HonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSimulator(time.Minute).Charge(ctx, card(), amount)
	require.ErrorIs(t, err, context.Canceled)
}

func TestLastFour(t *testing.T) {
	assert.Equal(t, "1111", lastFour("4111-1111-1111-1111"))
	assert.Equal(t, "42", lastFour("42"))
	assert.Equal(t, "", lastFour("abc"))
}
