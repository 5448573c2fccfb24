package checkout

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Card brands reported for display. A brand never decides acceptance.
const (
	BrandVisa       = "visa"
	BrandMastercard = "mastercard"
	BrandAmex       = "amex"
	BrandDiscover   = "discover"
	BrandDiners     = "diners"
	BrandJCB        = "jcb"
	BrandUnionPay   = "unionpay"
	BrandUnknown    = "unknown"
)

const (
	minCardDigits = 13
	maxCardDigits = 19
)

var (
	nonDigit    = regexp.MustCompile(`\D`)
	expiryRe    = regexp.MustCompile(`^(0[1-9]|1[0-2])\s*/\s*(\d{2})$`)
	cvcRe       = regexp.MustCompile(`^\d{3,4}$`)
	brandChecks = []struct {
		brand   string
		pattern *regexp.Regexp
	}{
		{BrandAmex, regexp.MustCompile(`^3[47]`)},
		{BrandDiners, regexp.MustCompile(`^3(0[0-5]|[68])`)},
		{BrandJCB, regexp.MustCompile(`^35(2[89]|[3-8])`)},
		{BrandVisa, regexp.MustCompile(`^4`)},
		{BrandMastercard, regexp.MustCompile(`^(5[1-5]|222[1-9]|22[3-9]\d|2[3-6]\d{2}|27[01]\d|2720)`)},
		{BrandDiscover, regexp.MustCompile(`^(6011|65|64[4-9])`)},
		{BrandUnionPay, regexp.MustCompile(`^62`)},
	}
)

// DigitsOnly strips everything but digits from a card number.
func DigitsOnly(number string) string {
	return nonDigit.ReplaceAllString(number, "")
}

// LuhnValid reports whether digits passes the Luhn checksum.
func LuhnValid(digits string) bool {
	if digits == "" {
		return false
	}
	var sum int
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		c := digits[i]
		if c < '0' || c > '9' {
			return false
		}
		n := int(c - '0')
		if double {
			n *= 2
			if n > 9 {
				n -= 9
			}
		}
		sum += n
		double = !double
	}
	return sum%10 == 0
}

// ValidCardNumber reports whether number has a plausible length and a valid
// checksum once separators are removed.
func ValidCardNumber(number string) bool {
	digits := DigitsOnly(number)
	if len(digits) < minCardDigits || len(digits) > maxCardDigits {
		return false
	}
	return LuhnValid(digits)
}

// DetectBrand infers the card brand from the number prefix.
func DetectBrand(number string) string {
	digits := DigitsOnly(number)
	for _, check := range brandChecks {
		if check.pattern.MatchString(digits) {
			return check.brand
		}
	}
	return BrandUnknown
}

// ParseExpiry parses an MM/YY expiry. The card is valid through the last day
// of that month.
func ParseExpiry(expiry string) (month time.Month, year int, ok bool) {
	m := expiryRe.FindStringSubmatch(strings.TrimSpace(expiry))
	if m == nil {
		return 0, 0, false
	}
	mm, _ := strconv.Atoi(m[1])
	yy, _ := strconv.Atoi(m[2])
	return time.Month(mm), 2000 + yy, true
}

// ExpiryValid reports whether expiry is well formed and not in the past
// relative to now.
func ExpiryValid(expiry string, now time.Time) bool {
	month, year, ok := ParseExpiry(expiry)
	if !ok {
		return false
	}
	if year != now.Year() {
		return year > now.Year()
	}
	return month >= now.Month()
}

// ValidCVC reports whether cvc is three or four digits.
func ValidCVC(cvc string) bool {
	return cvcRe.MatchString(strings.TrimSpace(cvc))
}
