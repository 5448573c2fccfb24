package register

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/utafrali/pos-register/internal/domain"
)

// Command is a single mutation request against the register state.
type Command interface {
	CommandName() string
}

// AddItem adds Quantity units of Product, merging with an existing line.
type AddItem struct {
	Product  domain.Product
	Quantity int
}

// RemoveItem drops the line for ProductID. Absent lines are ignored.
type RemoveItem struct {
	ProductID int64
}

// UpdateQuantity sets the quantity of a line; zero or less removes it.
type UpdateQuantity struct {
	ProductID int64
	Quantity  int
}

// Clear resets the active cart, including discount and customer.
type Clear struct{}

// ApplyDiscount resolves Discount against the current subtotal. A nil
// Discount removes any applied discount.
type ApplyDiscount struct {
	Discount *domain.Discount
}

// SetCustomer attaches or detaches a customer reference.
type SetCustomer struct {
	CustomerID *int64
}

// Hold moves the active cart into a held order.
type Hold struct {
	ID   string
	Name string
	At   time.Time
}

// RetrieveHeld restores a held order as the active cart.
type RetrieveHeld struct {
	ID string
}

// DeleteHeld discards a held order without restoring it.
type DeleteHeld struct {
	ID string
}

// VoidItem removes a line and records an audit entry for it.
type VoidItem struct {
	ProductID  int64
	Actor      domain.Actor
	TerminalID string
	EntryID    string
	At         time.Time
}

// VoidOrder clears the whole cart and records an audit entry for it.
type VoidOrder struct {
	Actor      domain.Actor
	TerminalID string
	EntryID    string
	At         time.Time
}

// CompleteCheckout clears the cart after the order was accepted upstream.
type CompleteCheckout struct {
	OrderID string
}

// SetTaxRate changes the rate used for every subsequent recompute.
type SetTaxRate struct {
	RatePercent decimal.Decimal
}

func (AddItem) CommandName() string          { return "add_item" }
func (RemoveItem) CommandName() string       { return "remove_item" }
func (UpdateQuantity) CommandName() string   { return "update_quantity" }
func (Clear) CommandName() string            { return "clear" }
func (ApplyDiscount) CommandName() string    { return "apply_discount" }
func (SetCustomer) CommandName() string      { return "set_customer" }
func (Hold) CommandName() string             { return "hold_order" }
func (RetrieveHeld) CommandName() string     { return "retrieve_held_order" }
func (DeleteHeld) CommandName() string       { return "delete_held_order" }
func (VoidItem) CommandName() string         { return "void_item" }
func (VoidOrder) CommandName() string        { return "void_order" }
func (CompleteCheckout) CommandName() string { return "complete_checkout" }
func (SetTaxRate) CommandName() string       { return "set_tax_rate" }
