// Package checkout validates a payment against a finalized cart, computes the
// change owed and builds the order payload sent to the back office.
package checkout

import (
	"strings"
	"time"

	"github.com/utafrali/pos-register/internal/domain"
	"github.com/utafrali/pos-register/internal/money"
	apperrors "github.com/utafrali/pos-register/pkg/errors"
)

// Error codes returned by Prepare. Each is reported to the cashier as is.
const (
	CodeCashierRequired        = "CASHIER_REQUIRED"
	CodeEmptyCart              = "EMPTY_CART"
	CodePaymentMethodRequired  = "PAYMENT_METHOD_REQUIRED"
	CodeUnsupportedMethod      = "UNSUPPORTED_PAYMENT_METHOD"
	CodeInsufficientPayment    = "INSUFFICIENT_PAYMENT"
	CodeCardDetailsRequired    = "CARD_DETAILS_REQUIRED"
	CodeInvalidCardNumber      = "INVALID_CARD_NUMBER"
	CodeInvalidCardExpiry      = "INVALID_CARD_EXPIRY"
	CodeInvalidCardCVC         = "INVALID_CARD_CVC"
	CodeCardholderNameRequired = "CARDHOLDER_NAME_REQUIRED"
)

// cardMethods go through card validation. Brand names count as cards.
var cardMethods = map[string]struct{}{
	domain.PaymentMethodCard:       {},
	domain.PaymentMethodCreditCard: {},
	domain.PaymentMethodDebitCard:  {},
	"credit":                       {},
	"debit":                        {},
	"visa":                         {},
	"mastercard":                   {},
	"amex":                         {},
	"american_express":             {},
	"discover":                     {},
	"diners":                       {},
	"diners_club":                  {},
	"jcb":                          {},
	"unionpay":                     {},
}

// settledMethods are accepted for exactly the cart total without details.
var settledMethods = map[string]struct{}{
	domain.PaymentMethodGiftCard:    {},
	domain.PaymentMethodMobile:      {},
	domain.PaymentMethodStoreCredit: {},
}

var methodSeparators = strings.NewReplacer("-", " ", "_", " ")

// CardDetails is what the cashier keyed in for a card payment. It is only
// validated, never stored or charged.
type CardDetails struct {
	Number string `json:"number"`
	Expiry string `json:"expiry"`
	CVC    string `json:"cvc"`
	Name   string `json:"name"`
}

// PaymentRequest is a proposed payment for the active cart.
type PaymentRequest struct {
	Actor          *domain.Actor
	PaymentMethod  string
	AmountTendered any
	Card           *CardDetails
}

// NormalizeMethod lower-cases and trims a payment method and joins its words
// with underscores, so "Credit Card" and "credit-card" become "credit_card".
func NormalizeMethod(method string) string {
	return strings.Join(strings.Fields(methodSeparators.Replace(strings.ToLower(method))), "_")
}

// IsCardMethod reports whether method requires card details.
func IsCardMethod(method string) bool {
	_, ok := cardMethods[NormalizeMethod(method)]
	return ok
}

// IsSupportedMethod reports whether Prepare accepts method at all.
func IsSupportedMethod(method string) bool {
	m := NormalizeMethod(method)
	if m == domain.PaymentMethodCash || IsCardMethod(m) {
		return true
	}
	_, ok := settledMethods[m]
	return ok
}

// Prepare validates req against cart and computes the tender. It has no side
// effects; the first failed precondition is returned as a coded AppError.
func Prepare(cart domain.Cart, req PaymentRequest, now time.Time) (domain.TenderResult, error) {
	if req.Actor == nil || strings.TrimSpace(req.Actor.UserID) == "" {
		err := apperrors.Unauthorized("an authenticated cashier is required to check out")
		err.Code = CodeCashierRequired
		return domain.TenderResult{}, err
	}
	if cart.IsEmpty() {
		err := apperrors.Conflict("cannot check out an empty cart")
		err.Code = CodeEmptyCart
		return domain.TenderResult{}, err
	}

	method := NormalizeMethod(req.PaymentMethod)
	if method == "" {
		return domain.TenderResult{}, apperrors.Validation(CodePaymentMethodRequired, "payment method is required")
	}

	total := money.Round2(money.MaxZero(cart.Total))

	switch {
	case method == domain.PaymentMethodCash:
		tendered := money.Round2(money.ToSafeNumber(req.AmountTendered, money.Zero))
		if tendered.LessThan(total) {
			return domain.TenderResult{}, apperrors.Validation(CodeInsufficientPayment,
				"amount tendered "+tendered.StringFixed(2)+" is less than the total "+total.StringFixed(2))
		}
		return domain.TenderResult{
			PaymentMethod:  method,
			AmountTendered: tendered,
			Change:         money.Round2(money.MaxZero(tendered.Sub(total))),
		}, nil

	case IsCardMethod(method):
		if err := validateCard(req.Card, now); err != nil {
			return domain.TenderResult{}, err
		}
		return domain.TenderResult{
			PaymentMethod:  method,
			AmountTendered: total,
			Change:         money.Zero,
			CardBrand:      DetectBrand(req.Card.Number),
		}, nil

	case IsSupportedMethod(method):
		return domain.TenderResult{
			PaymentMethod:  method,
			AmountTendered: total,
			Change:         money.Zero,
		}, nil

	default:
		return domain.TenderResult{}, apperrors.Validation(CodeUnsupportedMethod,
			"payment method "+req.PaymentMethod+" is not accepted")
	}
}

func validateCard(card *CardDetails, now time.Time) error {
	if card == nil {
		return apperrors.Validation(CodeCardDetailsRequired, "card details are required for card payments")
	}
	if !ValidCardNumber(card.Number) {
		return apperrors.Validation(CodeInvalidCardNumber, "card number is invalid")
	}
	if _, _, ok := ParseExpiry(card.Expiry); !ok {
		return apperrors.Validation(CodeInvalidCardExpiry, "card expiry must be MM/YY")
	}
	if !ExpiryValid(card.Expiry, now) {
		return apperrors.Validation(CodeInvalidCardExpiry, "card has expired")
	}
	if !ValidCVC(card.CVC) {
		return apperrors.Validation(CodeInvalidCardCVC, "card security code must be 3 or 4 digits")
	}
	if strings.TrimSpace(card.Name) == "" {
		return apperrors.Validation(CodeCardholderNameRequired, "cardholder name is required")
	}
	return nil
}
