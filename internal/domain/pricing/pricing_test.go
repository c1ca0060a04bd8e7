package pricing

import (
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/greenhouse/internal/domain/product"
)

func item(price string, qty int) product.LineItem {
	return product.LineItem{ProductID: "p", Quantity: qty, Price: decimal.RequireFromString(price)}
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name     string
		items    []product.LineItem
		subtotal string
		tax      string
		total    string
	}{
		{
			name:     "two units at ten",
			items:    []product.LineItem{item("10.00", 2)},
			subtotal: "20.00",
			tax:      "1.60",
			total:    "27.59",
		},
		{
			name:     "empty order still ships",
			items:    nil,
			subtotal: "0",
			tax:      "0",
			total:    "5.99",
		},
		{
			name:     "sub-cent tax rounds away",
			items:    []product.LineItem{item("0.0625", 1)},
			subtotal: "0.06",
			tax:      "0",
			total:    "6.05",
		},
		{
			name:     "mixed basket",
			items:    []product.LineItem{item("12.99", 3), item("4.50", 1)},
			subtotal: "43.47",
			tax:      "3.48",
			total:    "52.94",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Compute(tt.items)
			assert.True(t, decimal.RequireFromString(tt.subtotal).Equal(s.Subtotal), "subtotal %s", s.Subtotal)
			assert.True(t, decimal.RequireFromString(tt.tax).Equal(s.Tax), "tax %s", s.Tax)
			assert.True(t, decimal.RequireFromString(tt.total).Equal(s.Total), "total %s", s.Total)
			assert.True(t, ShippingFee.Equal(s.Shipping))
			assert.Equal(t, "USD", s.CurrencyCode())
		})
	}
}

// The grand total is always the exact sum of its parts, whatever the basket.
func TestCompute_TotalIsSumOfParts(t *testing.T) {
	f := gofakeit.New(42)
	for range 200 {
		items := make([]product.LineItem, f.IntRange(1, 6))
		for i := range items {
			items[i] = product.LineItem{
				ProductID: f.UUID(),
				Quantity:  f.IntRange(1, 9),
				Price:     decimal.NewFromFloat(f.Price(0.5, 250)),
			}
		}

		s := Compute(items)
		require.True(t, s.Total.Equal(s.Subtotal.Add(s.Shipping).Add(s.Tax)), "total %s", s.Total)
		require.LessOrEqual(t, -s.Subtotal.Exponent(), int32(2))
		require.LessOrEqual(t, -s.Tax.Exponent(), int32(2))
	}
}
