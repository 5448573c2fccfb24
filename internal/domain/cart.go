package domain

import (
	"github.com/shopspring/decimal"
)

// Phase is the lifecycle state of the active cart slot.
type Phase string

// Active cart slot phases. CheckedOut, OnHold and Voided are transitional:
// after them the slot is Empty again.
const (
	PhaseEmpty      Phase = "empty"
	PhaseActive     Phase = "active"
	PhaseCheckedOut Phase = "checked_out"
	PhaseOnHold     Phase = "on_hold"
	PhaseVoided     Phase = "voided"
)

// LineItem is one product's presence in the cart.
type LineItem struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
	IsTaxable bool            `json:"is_taxable"`
}

// Cart is the aggregate for one in-progress order. Subtotal, Tax and Total are
// derived and only written by the pricing engine.
type Cart struct {
	Items           []LineItem      `json:"items"`
	Discount        decimal.Decimal `json:"discount"`
	AppliedDiscount *Discount       `json:"applied_discount,omitempty"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Tax             decimal.Decimal `json:"tax"`
	Total           decimal.Decimal `json:"total"`
	CustomerID      *int64          `json:"customer_id"`
	IsOnHold        bool            `json:"is_on_hold"`
	HoldID          string          `json:"hold_id,omitempty"`
}

// NewCart returns an empty cart.
func NewCart() Cart {
	return Cart{Items: []LineItem{}}
}

// Phase reports whether the cart slot holds anything to sell.
func (c *Cart) Phase() Phase {
	if len(c.Items) == 0 {
		return PhaseEmpty
	}
	return PhaseActive
}

// IsEmpty reports whether the cart has no line items.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// ItemCount returns the total number of units in the cart.
func (c *Cart) ItemCount() int {
	var count int
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

// FindItemIndex returns the index of the line item for productID, or -1.
func (c *Cart) FindItemIndex(productID int64) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy, so snapshots never alias the live cart.
func (c Cart) Clone() Cart {
	out := c
	out.Items = make([]LineItem, len(c.Items))
	copy(out.Items, c.Items)
	if c.AppliedDiscount != nil {
		d := *c.AppliedDiscount
		out.AppliedDiscount = &d
	}
	if c.CustomerID != nil {
		id := *c.CustomerID
		out.CustomerID = &id
	}
	return out
}
