// Package money holds the coercion and rounding rules every monetary value in
// the register passes through.
package money

import (
	"encoding/json"
	"math"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Places is the number of fractional digits kept for currency amounts.
const Places = 2

// Zero is the zero amount.
var Zero = decimal.Zero

// ToSafeNumber coerces value into a finite decimal. Nil, empty or unparsable
// strings, NaN and infinities, unsupported types and conversion panics all
// yield fallback.
func ToSafeNumber(value any, fallback decimal.Decimal) decimal.Decimal {
	if d, ok := Parse(value); ok {
		return d
	}
	return fallback
}

// Parse converts value into a finite decimal and reports whether it held one.
func Parse(value any) (result decimal.Decimal, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			result, ok = Zero, false
		}
	}()

	switch v := value.(type) {
	case decimal.Decimal:
		return v, true
	case *decimal.Decimal:
		if v == nil {
			return Zero, false
		}
		return *v, true
	case string:
		return parseString(v)
	case *string:
		if v == nil {
			return Zero, false
		}
		return parseString(*v)
	case json.Number:
		return parseString(v.String())
	case float64:
		return parseFloat(v)
	case float32:
		return parseFloat(float64(v))
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int32:
		return decimal.NewFromInt32(v), true
	case int64:
		return decimal.NewFromInt(v), true
	case uint:
		return fromUint(uint64(v)), true
	case uint32:
		return fromUint(uint64(v)), true
	case uint64:
		return fromUint(v), true
	default:
		// nil, booleans ("no value" in some payloads) and anything else.
		return Zero, false
	}
}

// FromFloat converts f to a decimal, returning fallback for NaN and infinities.
func FromFloat(f float64, fallback decimal.Decimal) decimal.Decimal {
	if d, ok := parseFloat(f); ok {
		return d
	}
	return fallback
}

func parseFloat(f float64) (decimal.Decimal, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Zero, false
	}
	return decimal.NewFromFloat(f), true
}

func fromUint(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}

func parseString(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, false
	}
	return d, true
}

// Round2 rounds d to two decimal places, half away from zero.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// MaxZero returns d, or zero when d is negative.
func MaxZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return Zero
	}
	return d
}

// Sum adds the given amounts and rounds the result.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return Round2(total)
}
