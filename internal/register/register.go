// Package register holds the cart state machine of a single terminal. Every
// operation is a pure reduction of State by a Command; side effects are
// returned to the caller instead of being performed here.
package register

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/utafrali/pos-register/internal/discount"
	"github.com/utafrali/pos-register/internal/domain"
	"github.com/utafrali/pos-register/internal/money"
	"github.com/utafrali/pos-register/internal/pricing"
)

// State is everything a terminal owns: the single active cart slot, the held
// orders and the tax rate used for recomputation.
type State struct {
	Active         domain.Cart        `json:"active"`
	Held           []domain.HeldOrder `json:"held"`
	TaxRatePercent decimal.Decimal    `json:"tax_rate_percent"`

	// LastTransition is the phase the slot passed through on the most recent
	// reduction. It is PhaseCheckedOut, PhaseOnHold or PhaseVoided right after
	// those transitions and the current phase otherwise.
	LastTransition domain.Phase `json:"last_transition"`
}

// NewState returns a state with an empty cart, no held orders and the given
// tax rate.
func NewState(taxRatePercent decimal.Decimal, held []domain.HeldOrder) State {
	s := State{
		Active:         domain.NewCart(),
		Held:           cloneHeld(held),
		TaxRatePercent: money.MaxZero(taxRatePercent),
		LastTransition: domain.PhaseEmpty,
	}
	return s
}

// Phase returns the phase of the active cart slot.
func (s State) Phase() domain.Phase {
	return s.Active.Phase()
}

// Reduce applies cmd to s. The input state is never modified. On error the
// returned state is s unchanged and no effects are produced.
func Reduce(s State, cmd Command) (State, []Effect, error) {
	next := State{
		Active:         s.Active.Clone(),
		Held:           cloneHeld(s.Held),
		TaxRatePercent: s.TaxRatePercent,
	}

	var (
		effects []Effect
		err     error
		phase   domain.Phase
	)

	switch c := cmd.(type) {
	case AddItem:
		err = next.addItem(c)
	case RemoveItem:
		next.removeItem(c.ProductID)
	case UpdateQuantity:
		next.updateQuantity(c)
	case Clear:
		next.Active = domain.NewCart()
	case ApplyDiscount:
		err = next.applyDiscount(c)
	case SetCustomer:
		next.Active.CustomerID = cloneID(c.CustomerID)
	case Hold:
		effects, err = next.hold(c)
		phase = domain.PhaseOnHold
	case RetrieveHeld:
		effects, err = next.retrieve(c.ID)
	case DeleteHeld:
		effects, err = next.deleteHeld(c.ID)
	case VoidItem:
		effects, err = next.voidItem(c)
	case VoidOrder:
		effects, err = next.voidOrder(c)
		phase = domain.PhaseVoided
	case CompleteCheckout:
		err = next.completeCheckout(c)
		phase = domain.PhaseCheckedOut
	case SetTaxRate:
		next.TaxRatePercent = money.MaxZero(c.RatePercent)
	default:
		err = fmt.Errorf("reduce %T: %w", cmd, ErrUnknownCommand)
	}
	if err != nil {
		return s, nil, err
	}

	pricing.Apply(&next.Active, next.TaxRatePercent)
	if phase == "" {
		phase = next.Active.Phase()
	}
	next.LastTransition = phase
	return next, effects, nil
}

func (s *State) addItem(c AddItem) error {
	if c.Product.ID == 0 {
		return ErrMissingProductID
	}
	qty := c.Quantity
	if qty <= 0 {
		qty = 1
	}

	if idx := s.Active.FindItemIndex(c.Product.ID); idx >= 0 {
		item := &s.Active.Items[idx]
		item.Quantity += qty
		item.LineTotal = pricing.LineTotal(item.UnitPrice, item.Quantity)
		return nil
	}

	price := money.Round2(money.MaxZero(money.ToSafeNumber(c.Product.Price, money.Zero)))
	s.Active.Items = append(s.Active.Items, domain.LineItem{
		ProductID: c.Product.ID,
		Name:      c.Product.Name,
		UnitPrice: price,
		Quantity:  qty,
		LineTotal: pricing.LineTotal(price, qty),
		IsTaxable: c.Product.Taxable(),
	})
	return nil
}

func (s *State) removeItem(productID int64) {
	idx := s.Active.FindItemIndex(productID)
	if idx < 0 {
		return
	}
	s.Active.Items = append(s.Active.Items[:idx], s.Active.Items[idx+1:]...)
}

func (s *State) updateQuantity(c UpdateQuantity) {
	if c.Quantity <= 0 {
		s.removeItem(c.ProductID)
		return
	}
	idx := s.Active.FindItemIndex(c.ProductID)
	if idx < 0 {
		return
	}
	item := &s.Active.Items[idx]
	item.Quantity = c.Quantity
	item.LineTotal = pricing.LineTotal(item.UnitPrice, item.Quantity)
}

// applyDiscount stores the resolved absolute amount. The amount is fixed at
// this point and is not re-resolved when items change later, so a discount
// cannot be applied to an empty cart. A discount that resolves to nothing is
// not recorded.
func (s *State) applyDiscount(c ApplyDiscount) error {
	s.Active.Discount = money.Zero
	s.Active.AppliedDiscount = nil
	if c.Discount == nil {
		return nil
	}
	if s.Active.IsEmpty() {
		return &TransitionError{From: domain.PhaseEmpty, Command: c.CommandName(), Err: ErrEmptyCart}
	}

	applied := *c.Discount
	applied.Classify()

	subtotal := pricing.Recompute(s.Active.Items, money.Zero, money.Zero).Subtotal
	amount := discount.Resolve(&applied, subtotal)
	if amount.IsZero() {
		return nil
	}
	s.Active.Discount = amount
	s.Active.AppliedDiscount = &applied
	return nil
}

func (s *State) hold(c Hold) ([]Effect, error) {
	if s.Active.IsEmpty() {
		return nil, &TransitionError{From: domain.PhaseEmpty, Command: c.CommandName(), Err: ErrEmptyCart}
	}
	name := strings.TrimSpace(c.Name)
	if name == "" {
		name = fmt.Sprintf("Order #%d", len(s.Held)+1)
	}

	snapshot := s.Active.Clone()
	snapshot.IsOnHold = true
	snapshot.HoldID = c.ID

	s.Held = append(s.Held, domain.HeldOrder{
		ID:        c.ID,
		Name:      name,
		Timestamp: c.At,
		Cart:      snapshot,
	})
	s.Active = domain.NewCart()
	return []Effect{PersistHeld{Held: cloneHeld(s.Held)}}, nil
}

func (s *State) retrieve(id string) ([]Effect, error) {
	idx := domain.FindHeldIndex(s.Held, id)
	if idx < 0 {
		return nil, fmt.Errorf("retrieve held order %q: %w", id, ErrHeldOrderNotFound)
	}
	restored := s.Held[idx].Cart.Clone()
	restored.IsOnHold = false
	restored.HoldID = ""
	if restored.Items == nil {
		restored.Items = []domain.LineItem{}
	}

	s.Active = restored
	s.Held = append(s.Held[:idx], s.Held[idx+1:]...)
	return []Effect{PersistHeld{Held: cloneHeld(s.Held)}}, nil
}

func (s *State) deleteHeld(id string) ([]Effect, error) {
	idx := domain.FindHeldIndex(s.Held, id)
	if idx < 0 {
		return nil, fmt.Errorf("delete held order %q: %w", id, ErrHeldOrderNotFound)
	}
	s.Held = append(s.Held[:idx], s.Held[idx+1:]...)
	return []Effect{PersistHeld{Held: cloneHeld(s.Held)}}, nil
}

func (s *State) voidItem(c VoidItem) ([]Effect, error) {
	if s.Active.IsEmpty() {
		return nil, &TransitionError{From: domain.PhaseEmpty, Command: c.CommandName(), Err: ErrEmptyCart}
	}
	idx := s.Active.FindItemIndex(c.ProductID)
	if idx < 0 {
		return nil, fmt.Errorf("void item %d: %w", c.ProductID, ErrItemNotFound)
	}
	item := s.Active.Items[idx]
	s.removeItem(c.ProductID)

	entry := domain.AuditEntry{
		ID:         c.EntryID,
		Timestamp:  c.At,
		Actor:      c.Actor,
		TerminalID: c.TerminalID,
		Action:     domain.AuditActionVoidItem,
		Item:       &item,
	}
	return []Effect{Audit{Entry: entry}}, nil
}

func (s *State) voidOrder(c VoidOrder) ([]Effect, error) {
	if s.Active.IsEmpty() {
		return nil, &TransitionError{From: domain.PhaseEmpty, Command: c.CommandName(), Err: ErrEmptyCart}
	}
	before := s.Active.Clone()
	pricing.Apply(&before, s.TaxRatePercent)
	entry := domain.AuditEntry{
		ID:         c.EntryID,
		Timestamp:  c.At,
		Actor:      c.Actor,
		TerminalID: c.TerminalID,
		Action:     domain.AuditActionVoidOrder,
		Items:      before.Items,
		Totals: &domain.AuditTotals{
			Subtotal: before.Subtotal,
			Tax:      before.Tax,
			Discount: before.Discount,
			Total:    before.Total,
		},
	}
	s.Active = domain.NewCart()
	return []Effect{Audit{Entry: entry}}, nil
}

func (s *State) completeCheckout(c CompleteCheckout) error {
	if s.Active.IsEmpty() {
		return &TransitionError{From: domain.PhaseEmpty, Command: c.CommandName(), Err: ErrEmptyCart}
	}
	s.Active = domain.NewCart()
	return nil
}

func cloneHeld(held []domain.HeldOrder) []domain.HeldOrder {
	out := make([]domain.HeldOrder, len(held))
	for i, h := range held {
		h.Cart = h.Cart.Clone()
		out[i] = h
	}
	return out
}

func cloneID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
