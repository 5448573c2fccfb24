// Package discount turns a discount definition into an absolute amount for a
// given subtotal.
package discount

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/utafrali/pos-register/internal/domain"
	"github.com/utafrali/pos-register/internal/money"
)

// SeniorCitizenRate is the fixed share of the subtotal granted to senior
// citizen discounts, whatever the record's own type and value say.
var SeniorCitizenRate = decimal.RequireFromString("0.20")

var hundred = decimal.NewFromInt(100)

// Resolve returns the discount amount for subtotal. It never fails: malformed
// definitions resolve to zero.
func Resolve(d *domain.Discount, subtotal decimal.Decimal) (amount decimal.Decimal) {
	defer func() {
		if rec := recover(); rec != nil {
			amount = money.Zero
		}
	}()

	if d == nil || !subtotal.IsPositive() {
		return money.Zero
	}

	value := money.ToSafeNumber(d.Value, money.Zero)
	if !value.IsPositive() {
		return money.Zero
	}

	if d.EffectiveCategory() == domain.DiscountCategorySeniorCitizen {
		return money.Round2(subtotal.Mul(SeniorCitizenRate))
	}

	switch strings.ToLower(strings.TrimSpace(d.Type)) {
	case domain.DiscountTypePercent:
		return money.Round2(subtotal.Mul(value).Div(hundred))
	default:
		return money.Round2(value)
	}
}
