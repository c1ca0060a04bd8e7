// Package pricing computes checkout totals for resolved line items.
package pricing

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/xenking/greenhouse/internal/domain/product"
)

var (
	// ShippingFee is charged once per order regardless of contents.
	ShippingFee = decimal.RequireFromString("5.99")
	// TaxRate applies to the subtotal.
	TaxRate = decimal.RequireFromString("0.08")
	// Currency is the only unit orders are priced in.
	Currency = currency.USD
)

// Summary is the priced breakdown of an order. All amounts are rounded to
// two decimal places and Total equals Subtotal + Shipping + Tax exactly.
type Summary struct {
	Subtotal decimal.Decimal
	Shipping decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
	Currency currency.Unit
}

// Compute prices items.
func Compute(items []product.LineItem) Summary {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.Total())
	}
	subtotal = subtotal.Round(2)

	tax := subtotal.Mul(TaxRate).Round(2)
	total := subtotal.Add(ShippingFee).Add(tax).Round(2)

	return Summary{
		Subtotal: subtotal,
		Shipping: ShippingFee,
		Tax:      tax,
		Total:    total,
		Currency: Currency,
	}
}

// CurrencyCode returns the ISO 4217 code of s.
func (s Summary) CurrencyCode() string {
	return s.Currency.String()
}
