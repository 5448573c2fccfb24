package domain

import "github.com/shopspring/decimal"

// Payment methods understood by the register. Anything that is not cash is
// settled for exactly the cart total.
const (
	PaymentMethodCash        = "cash"
	PaymentMethodCard        = "card"
	PaymentMethodCreditCard  = "credit_card"
	PaymentMethodDebitCard   = "debit_card"
	PaymentMethodGiftCard    = "gift_card"
	PaymentMethodMobile      = "mobile"
	PaymentMethodStoreCredit = "store_credit"
)

// TenderResult is the computed outcome of a payment. It is not persisted.
type TenderResult struct {
	PaymentMethod  string          `json:"payment_method"`
	AmountTendered decimal.Decimal `json:"amount_tendered"`
	Change         decimal.Decimal `json:"change"`
	CardBrand      string          `json:"card_brand,omitempty"`
}
