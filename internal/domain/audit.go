package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Audit actions.
const (
	AuditActionVoidItem  = "void_item"
	AuditActionVoidOrder = "void_order"
)

// Actor identifies who performed an operation at the register.
type Actor struct {
	UserID string `json:"user_id"`
	Role   string `json:"role,omitempty"`
}

// Privileged roles may apply discounts without manager re-authorization.
var privilegedRoles = map[string]struct{}{
	"manager": {},
	"admin":   {},
}

// IsPrivilegedRole reports whether role can authorize discounts.
func IsPrivilegedRole(role string) bool {
	_, ok := privilegedRoles[role]
	return ok
}

// IsPrivileged reports whether the actor can authorize discounts.
func (a Actor) IsPrivileged() bool {
	return IsPrivilegedRole(a.Role)
}

// AuditTotals is the totals snapshot recorded with a voided order.
type AuditTotals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

// AuditEntry records a void at the register.
type AuditEntry struct {
	ID         string       `json:"id"`
	Timestamp  time.Time    `json:"timestamp"`
	Actor      Actor        `json:"actor"`
	TerminalID string       `json:"terminal_id"`
	Action     string       `json:"action"`
	Item       *LineItem    `json:"item,omitempty"`
	Items      []LineItem   `json:"items,omitempty"`
	Totals     *AuditTotals `json:"totals,omitempty"`
}
