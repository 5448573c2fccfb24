// Package pricing derives cart totals from line items, a resolved discount
// amount and a tax rate.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/utafrali/pos-register/internal/domain"
	"github.com/utafrali/pos-register/internal/money"
)

// DefaultTaxRatePercent applies when no store tax configuration is available.
var DefaultTaxRatePercent = decimal.RequireFromString("8.25")

var hundred = decimal.NewFromInt(100)

// Totals are the derived monetary fields of a cart.
type Totals struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	TaxableBase decimal.Decimal `json:"taxable_base"`
	Tax         decimal.Decimal `json:"tax"`
	Discount    decimal.Decimal `json:"discount"`
	Total       decimal.Decimal `json:"total"`
}

// LineTotal returns unitPrice * quantity rounded to cents.
func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return money.Round2(unitPrice.Mul(decimal.NewFromInt(int64(quantity))))
}

// ParseTaxRate reads a raw tax rate in percent. Negative rates become zero;
// ok is false when raw holds no number at all, so callers can fall back to a
// configured rate instead of charging no tax.
func ParseTaxRate(raw any) (rate decimal.Decimal, ok bool) {
	d, ok := money.Parse(raw)
	if !ok {
		return money.Zero, false
	}
	return money.MaxZero(d), true
}

// Recompute derives subtotal, tax and total. The total never goes below zero;
// a discount larger than subtotal plus tax is absorbed.
func Recompute(items []domain.LineItem, discount, taxRatePercent decimal.Decimal) Totals {
	subtotal := money.Zero
	taxable := money.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal)
		if item.IsTaxable {
			taxable = taxable.Add(item.LineTotal)
		}
	}
	subtotal = money.Round2(subtotal)
	taxable = money.Round2(taxable)

	rate := money.MaxZero(taxRatePercent)
	tax := money.Round2(taxable.Mul(rate).Div(hundred))

	discount = money.Round2(money.MaxZero(discount))
	total := money.Round2(money.MaxZero(subtotal.Add(tax).Sub(discount)))

	return Totals{
		Subtotal:    subtotal,
		TaxableBase: taxable,
		Tax:         tax,
		Discount:    discount,
		Total:       total,
	}
}

// Apply recomputes the cart in place, refreshing every line total first.
func Apply(cart *domain.Cart, taxRatePercent decimal.Decimal) Totals {
	for i := range cart.Items {
		cart.Items[i].LineTotal = LineTotal(cart.Items[i].UnitPrice, cart.Items[i].Quantity)
	}
	t := Recompute(cart.Items, cart.Discount, taxRatePercent)
	cart.Discount = t.Discount
	cart.Subtotal = t.Subtotal
	cart.Tax = t.Tax
	cart.Total = t.Total
	return t
}
