package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/utafrali/pos-register/internal/checkout"
	"github.com/utafrali/pos-register/internal/domain"
	"github.com/utafrali/pos-register/internal/event"
	"github.com/utafrali/pos-register/internal/register"
	"github.com/utafrali/pos-register/internal/repository"
	"github.com/utafrali/pos-register/internal/storeapi"
	apperrors "github.com/utafrali/pos-register/pkg/errors"
	"github.com/utafrali/pos-register/pkg/logger"
)

// Error codes for discount authorization failures.
const (
	CodeManagerAuthRequired = "MANAGER_AUTH_REQUIRED"
	CodeManagerAuthFailed   = "MANAGER_AUTH_FAILED"
)

// StoreAPI is the back-office surface the register depends on.
// *storeapi.Client satisfies it.
type StoreAPI interface {
	TaxRate(ctx context.Context) (decimal.Decimal, error)
	GetDiscount(ctx context.Context, id int64) (*domain.Discount, error)
	CreateOrder(ctx context.Context, payload checkout.OrderPayload) (string, error)
	Login(ctx context.Context, username, password string) (*storeapi.LoginResult, error)
}

// EventPublisher publishes register domain events. *event.Producer
// satisfies it.
type EventPublisher interface {
	PublishOrderCompleted(ctx context.Context, data event.OrderCompletedData) error
	PublishVoid(ctx context.Context, entry domain.AuditEntry) error
}

type noopPublisher struct{}

func (noopPublisher) PublishOrderCompleted(context.Context, event.OrderCompletedData) error {
	return nil
}

func (noopPublisher) PublishVoid(context.Context, domain.AuditEntry) error { return nil }

// Config holds the service settings taken from the process configuration.
type Config struct {
	StoreID string
	// DefaultTaxRatePercent is used while the back office cannot be reached.
	DefaultTaxRatePercent decimal.Decimal
}

// AddItemInput adds a product to the active cart.
type AddItemInput struct {
	Product  domain.Product
	Quantity int
}

// ManagerCredentials re-authorize a discount for a non-privileged cashier.
type ManagerCredentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ApplyDiscountInput selects a back-office discount for the active cart.
type ApplyDiscountInput struct {
	DiscountID int64               `json:"discount_id" validate:"required,gt=0"`
	Manager    *ManagerCredentials `json:"manager,omitempty"`
}

// CheckoutInput is the payment keyed in at the register.
type CheckoutInput struct {
	PaymentMethod  string
	AmountTendered any
	Card           *checkout.CardDetails
}

// RegisterView is what a terminal sees after every operation.
type RegisterView struct {
	TerminalID     string          `json:"terminal_id"`
	Phase          domain.Phase    `json:"phase"`
	LastTransition domain.Phase    `json:"last_transition"`
	Cart           domain.Cart     `json:"cart"`
	ItemCount      int             `json:"item_count"`
	HeldCount      int             `json:"held_count"`
	TaxRatePercent decimal.Decimal `json:"tax_rate_percent"`
}

// HoldResult is returned when the active cart is put on hold.
type HoldResult struct {
	HeldOrder domain.HeldOrder `json:"held_order"`
	Register  RegisterView     `json:"register"`
}

// CheckoutResult is a completed sale.
type CheckoutResult struct {
	OrderID  string              `json:"order_id"`
	Tender   domain.TenderResult `json:"tender"`
	Receipt  domain.Cart         `json:"receipt"`
	Register RegisterView        `json:"register"`
}

// session is the register state of one terminal. mu serializes every
// mutation of that terminal.
type session struct {
	mu     sync.Mutex
	loaded bool
	state  register.State
}

// RegisterService runs the register state machine for every terminal and
// carries out its side effects.
type RegisterService struct {
	held   repository.HeldOrderStore
	audit  repository.AuditRepository
	store  StoreAPI
	events EventPublisher
	logger *slog.Logger
	cfg    Config

	now   func() time.Time
	newID func() string

	mu       sync.Mutex
	sessions map[string]*session
}

// NewRegisterService creates a register service. audit and events may be nil.
func NewRegisterService(
	held repository.HeldOrderStore,
	audit repository.AuditRepository,
	store StoreAPI,
	events EventPublisher,
	logger *slog.Logger,
	cfg Config,
) *RegisterService {
	if events == nil {
		events = noopPublisher{}
	}
	return &RegisterService{
		held:     held,
		audit:    audit,
		store:    store,
		events:   events,
		logger:   logger,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.New().String() },
		sessions: make(map[string]*session),
	}
}

// acquire returns the terminal's session locked, loading it on first use.
func (s *RegisterService) acquire(ctx context.Context, terminalID string) (*session, error) {
	if strings.TrimSpace(terminalID) == "" {
		return nil, apperrors.InvalidInput("terminal id is required")
	}

	s.mu.Lock()
	sess, ok := s.sessions[terminalID]
	if !ok {
		sess = &session{}
		s.sessions[terminalID] = sess
	}
	s.mu.Unlock()

	sess.mu.Lock()
	if !sess.loaded {
		if err := s.load(ctx, terminalID, sess); err != nil {
			sess.mu.Unlock()
			return nil, err
		}
	}
	return sess, nil
}

// load reads the held orders and the tax rate. A held-order read failure
// fails the request so a later save cannot overwrite orders that were never
// read; the tax rate degrades to the configured default.
func (s *RegisterService) load(ctx context.Context, terminalID string, sess *session) error {
	l := logger.WithContext(ctx, s.logger)

	held, err := s.held.Load(ctx, terminalID)
	if err != nil {
		l.ErrorContext(ctx, "failed to load held orders", slog.String("error", err.Error()))
		return apperrors.ServiceUnavailable("held orders are temporarily unavailable")
	}

	sess.state = register.NewState(s.fetchTaxRate(ctx), held)
	sess.loaded = true
	activeSessions.Inc()

	l.InfoContext(ctx, "register session started",
		slog.Int("held_orders", len(held)),
		slog.String("tax_rate_percent", sess.state.TaxRatePercent.String()),
	)
	return nil
}

func (s *RegisterService) fetchTaxRate(ctx context.Context) decimal.Decimal {
	if s.store == nil {
		return s.cfg.DefaultTaxRatePercent
	}
	rate, err := s.store.TaxRate(ctx)
	if err != nil {
		logger.WithContext(ctx, s.logger).WarnContext(ctx, "tax rate unavailable, using default",
			slog.String("error", err.Error()),
			slog.String("default", s.cfg.DefaultTaxRatePercent.String()),
		)
		return s.cfg.DefaultTaxRatePercent
	}
	return rate
}

// apply reduces the session state by cmd. Held orders are persisted before
// the new state is committed; audits run after and never fail the call.
func (s *RegisterService) apply(ctx context.Context, terminalID string, sess *session, cmd register.Command) (*RegisterView, error) {
	next, effects, err := register.Reduce(sess.state, cmd)
	if err != nil {
		return nil, reduceError(err)
	}

	var audits []domain.AuditEntry
	for _, eff := range effects {
		switch e := eff.(type) {
		case register.PersistHeld:
			if err := s.held.Save(ctx, terminalID, e.Held); err != nil {
				logger.WithContext(ctx, s.logger).ErrorContext(ctx, "failed to persist held orders",
					slog.String("command", cmd.CommandName()),
					slog.String("error", err.Error()),
				)
				return nil, apperrors.ServiceUnavailable("held orders could not be saved")
			}
		case register.Audit:
			audits = append(audits, e.Entry)
		}
	}

	sess.state = next
	for _, entry := range audits {
		s.recordAudit(ctx, entry)
	}
	return s.view(terminalID, next), nil
}

func (s *RegisterService) recordAudit(ctx context.Context, entry domain.AuditEntry) {
	l := logger.WithContext(ctx, s.logger)
	voidsTotal.WithLabelValues(entry.Action).Inc()

	l.InfoContext(ctx, "register audit",
		slog.String("audit_id", entry.ID),
		slog.String("action", entry.Action),
		slog.String("actor", entry.Actor.UserID),
	)

	if s.audit != nil {
		if err := s.audit.Create(ctx, &entry); err != nil {
			auditFailuresTotal.WithLabelValues("store").Inc()
			l.WarnContext(ctx, "failed to store audit entry",
				slog.String("audit_id", entry.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	if err := s.events.PublishVoid(ctx, entry); err != nil {
		auditFailuresTotal.WithLabelValues("event").Inc()
		l.WarnContext(ctx, "failed to publish void event",
			slog.String("audit_id", entry.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *RegisterService) view(terminalID string, st register.State) *RegisterView {
	cart := st.Active.Clone()
	return &RegisterView{
		TerminalID:     terminalID,
		Phase:          st.Phase(),
		LastTransition: st.LastTransition,
		Cart:           cart,
		ItemCount:      cart.ItemCount(),
		HeldCount:      len(st.Held),
		TaxRatePercent: st.TaxRatePercent,
	}
}

// dispatch runs one command under the terminal's lock.
func (s *RegisterService) dispatch(ctx context.Context, terminalID string, cmd register.Command) (*RegisterView, error) {
	sess, err := s.acquire(ctx, terminalID)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()
	return s.apply(ctx, terminalID, sess, cmd)
}

// GetRegister returns the terminal's current register.
func (s *RegisterService) GetRegister(ctx context.Context, terminalID string) (*RegisterView, error) {
	sess, err := s.acquire(ctx, terminalID)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()
	return s.view(terminalID, sess.state), nil
}

// AddItem adds a product, merging with an existing line for the same product.
func (s *RegisterService) AddItem(ctx context.Context, terminalID string, input AddItemInput) (*RegisterView, error) {
	view, err := s.dispatch(ctx, terminalID, register.AddItem{Product: input.Product, Quantity: input.Quantity})
	if err != nil {
		if apperrors.HTTPStatus(err) == http.StatusBadRequest {
			logger.WithContext(ctx, s.logger).WarnContext(ctx, "item not added", slog.String("error", err.Error()))
		}
		return nil, err
	}
	return view, nil
}

// UpdateQuantity sets a line's quantity. Zero or less removes the line.
func (s *RegisterService) UpdateQuantity(ctx context.Context, terminalID string, productID int64, quantity int) (*RegisterView, error) {
	return s.dispatch(ctx, terminalID, register.UpdateQuantity{ProductID: productID, Quantity: quantity})
}

// RemoveItem removes a line. Removing an absent line is not an error.
func (s *RegisterService) RemoveItem(ctx context.Context, terminalID string, productID int64) (*RegisterView, error) {
	return s.dispatch(ctx, terminalID, register.RemoveItem{ProductID: productID})
}

// ClearCart empties the active cart, dropping its discount and customer.
func (s *RegisterService) ClearCart(ctx context.Context, terminalID string) (*RegisterView, error) {
	return s.dispatch(ctx, terminalID, register.Clear{})
}

// SetCustomer attaches a customer to the active cart, or detaches it when
// customerID is nil.
func (s *RegisterService) SetCustomer(ctx context.Context, terminalID string, customerID *int64) (*RegisterView, error) {
	return s.dispatch(ctx, terminalID, register.SetCustomer{CustomerID: customerID})
}

// ApplyDiscount applies a back-office discount. Cashiers without a
// privileged role need a manager to re-authorize; a rejected authorization
// leaves the cart untouched.
func (s *RegisterService) ApplyDiscount(ctx context.Context, terminalID string, actor domain.Actor, input ApplyDiscountInput) (*RegisterView, error) {
	if input.DiscountID <= 0 {
		return nil, apperrors.InvalidInput("discount id is required")
	}

	sess, err := s.acquire(ctx, terminalID)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	approver, err := s.authorizeDiscount(ctx, actor, input.Manager)
	if err != nil {
		return nil, err
	}

	d, err := s.store.GetDiscount(ctx, input.DiscountID)
	if err != nil {
		return nil, fmt.Errorf("get discount %d: %w", input.DiscountID, err)
	}

	view, err := s.apply(ctx, terminalID, sess, register.ApplyDiscount{Discount: d})
	if err != nil {
		return nil, err
	}

	logger.WithContext(ctx, s.logger).InfoContext(ctx, "discount applied",
		slog.Int64("discount_id", d.ID),
		slog.String("category", string(d.EffectiveCategory())),
		slog.String("amount", view.Cart.Discount.StringFixed(2)),
		slog.String("approved_by", approver.UserID),
	)
	return view, nil
}

// RemoveDiscount drops the applied discount. It needs no authorization.
func (s *RegisterService) RemoveDiscount(ctx context.Context, terminalID string) (*RegisterView, error) {
	return s.dispatch(ctx, terminalID, register.ApplyDiscount{Discount: nil})
}

// authorizeDiscount returns who approved the discount.
func (s *RegisterService) authorizeDiscount(ctx context.Context, actor domain.Actor, creds *ManagerCredentials) (domain.Actor, error) {
	if actor.IsPrivileged() {
		discountAuthorizationsTotal.WithLabelValues("not_required").Inc()
		return actor, nil
	}

	if creds == nil || strings.TrimSpace(creds.Username) == "" || creds.Password == "" {
		discountAuthorizationsTotal.WithLabelValues("denied").Inc()
		err := apperrors.Unauthorized("manager authorization is required to apply a discount")
		err.Code = CodeManagerAuthRequired
		return domain.Actor{}, err
	}

	res, err := s.store.Login(ctx, strings.TrimSpace(creds.Username), creds.Password)
	if err != nil {
		if !errors.Is(err, apperrors.ErrUnauthorized) && !errors.Is(err, apperrors.ErrForbidden) {
			return domain.Actor{}, err
		}
		discountAuthorizationsTotal.WithLabelValues("denied").Inc()
		appErr := apperrors.Unauthorized("manager credentials were rejected")
		appErr.Code = CodeManagerAuthFailed
		return domain.Actor{}, appErr
	}

	if !domain.IsPrivilegedRole(res.Role) {
		discountAuthorizationsTotal.WithLabelValues("denied").Inc()
		logger.WithContext(ctx, s.logger).WarnContext(ctx, "discount authorization by non-manager",
			slog.String("username", res.Username),
			slog.String("role", res.Role),
		)
		appErr := apperrors.Unauthorized("user " + res.Username + " cannot authorize discounts")
		appErr.Code = CodeManagerAuthFailed
		return domain.Actor{}, appErr
	}

	discountAuthorizationsTotal.WithLabelValues("granted").Inc()
	return domain.Actor{UserID: res.UserID, Role: res.Role}, nil
}

// HoldOrder moves the active cart into a new held order. An empty name gets
// an automatic one.
func (s *RegisterService) HoldOrder(ctx context.Context, terminalID, name string) (*HoldResult, error) {
	sess, err := s.acquire(ctx, terminalID)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	id := s.newID()
	view, err := s.apply(ctx, terminalID, sess, register.Hold{ID: id, Name: name, At: s.now()})
	if err != nil {
		return nil, err
	}

	idx := domain.FindHeldIndex(sess.state.Held, id)
	held := sess.state.Held[idx]
	held.Cart = held.Cart.Clone()
	return &HoldResult{HeldOrder: held, Register: *view}, nil
}

// ListHeldOrders returns the terminal's held orders, oldest first.
func (s *RegisterService) ListHeldOrders(ctx context.Context, terminalID string) ([]domain.HeldOrder, error) {
	sess, err := s.acquire(ctx, terminalID)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	out := make([]domain.HeldOrder, len(sess.state.Held))
	for i, h := range sess.state.Held {
		h.Cart = h.Cart.Clone()
		out[i] = h
	}
	return out, nil
}

// RetrieveHeldOrder restores a held order as the active cart. Whatever was
// in the active cart is discarded.
func (s *RegisterService) RetrieveHeldOrder(ctx context.Context, terminalID, heldID string) (*RegisterView, error) {
	sess, err := s.acquire(ctx, terminalID)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	if discarded := sess.state.Active; !discarded.IsEmpty() && domain.FindHeldIndex(sess.state.Held, heldID) >= 0 {
		logger.WithContext(ctx, s.logger).WarnContext(ctx, "active cart discarded by held order retrieval",
			slog.String("held_id", heldID),
			slog.Int("discarded_items", discarded.ItemCount()),
			slog.String("discarded_total", discarded.Total.StringFixed(2)),
		)
	}
	return s.apply(ctx, terminalID, sess, register.RetrieveHeld{ID: heldID})
}

// DeleteHeldOrder discards a held order.
func (s *RegisterService) DeleteHeldOrder(ctx context.Context, terminalID, heldID string) (*RegisterView, error) {
	return s.dispatch(ctx, terminalID, register.DeleteHeld{ID: heldID})
}

// VoidItem removes a line and records who voided it.
func (s *RegisterService) VoidItem(ctx context.Context, terminalID string, actor domain.Actor, productID int64) (*RegisterView, error) {
	return s.dispatch(ctx, terminalID, register.VoidItem{
		ProductID:  productID,
		Actor:      actor,
		TerminalID: terminalID,
		EntryID:    s.newID(),
		At:         s.now(),
	})
}

// VoidOrder clears the active cart and records every voided line and the
// totals it had.
func (s *RegisterService) VoidOrder(ctx context.Context, terminalID string, actor domain.Actor) (*RegisterView, error) {
	return s.dispatch(ctx, terminalID, register.VoidOrder{
		Actor:      actor,
		TerminalID: terminalID,
		EntryID:    s.newID(),
		At:         s.now(),
	})
}

// Checkout validates the payment, submits the order to the back office and
// clears the cart once it was accepted. If submission fails the cart is left
// as it was.
func (s *RegisterService) Checkout(ctx context.Context, terminalID string, actor *domain.Actor, input CheckoutInput) (*CheckoutResult, error) {
	sess, err := s.acquire(ctx, terminalID)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	l := logger.WithContext(ctx, s.logger)
	method := checkout.NormalizeMethod(input.PaymentMethod)
	cart := sess.state.Active.Clone()

	tender, err := checkout.Prepare(cart, checkout.PaymentRequest{
		Actor:          actor,
		PaymentMethod:  method,
		AmountTendered: input.AmountTendered,
		Card:           input.Card,
	}, s.now())
	if err != nil {
		checkoutsTotal.WithLabelValues(methodLabel(method), "rejected").Inc()
		return nil, err
	}

	payload := checkout.BuildOrderPayload(cart, tender, s.cfg.StoreID, actor.UserID)
	orderID, err := s.store.CreateOrder(ctx, payload)
	if err != nil {
		checkoutsTotal.WithLabelValues(method, "failed").Inc()
		l.ErrorContext(ctx, "order submission failed, cart kept",
			slog.String("total", cart.Total.StringFixed(2)),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("create order: %w", err)
	}

	view, err := s.apply(ctx, terminalID, sess, register.CompleteCheckout{OrderID: orderID})
	if err != nil {
		return nil, err
	}
	checkoutsTotal.WithLabelValues(method, "completed").Inc()

	completed := event.OrderCompletedData{
		OrderID:        orderID,
		TerminalID:     terminalID,
		CashierID:      actor.UserID,
		CustomerID:     cart.CustomerID,
		Items:          cart.Items,
		Subtotal:       cart.Subtotal,
		Tax:            cart.Tax,
		Discount:       cart.Discount,
		Total:          cart.Total,
		PaymentMethod:  tender.PaymentMethod,
		AmountTendered: tender.AmountTendered,
		Change:         tender.Change,
		CardBrand:      tender.CardBrand,
		CompletedAt:    s.now(),
	}
	if err := s.events.PublishOrderCompleted(ctx, completed); err != nil {
		l.WarnContext(ctx, "failed to publish order completed event",
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
	}

	l.InfoContext(ctx, "checkout completed",
		slog.String("order_id", orderID),
		slog.String("payment_method", tender.PaymentMethod),
		slog.String("total", cart.Total.StringFixed(2)),
		slog.String("change", tender.Change.StringFixed(2)),
	)

	return &CheckoutResult{
		OrderID:  orderID,
		Tender:   tender,
		Receipt:  cart,
		Register: *view,
	}, nil
}

// RefreshTaxRate re-reads the tax rate from the back office for one terminal
// and recomputes its cart.
func (s *RegisterService) RefreshTaxRate(ctx context.Context, terminalID string) (*RegisterView, error) {
	sess, err := s.acquire(ctx, terminalID)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()
	return s.apply(ctx, terminalID, sess, register.SetTaxRate{RatePercent: s.fetchTaxRate(ctx)})
}

// SetTaxRate applies rate to every loaded terminal. Terminals loaded later
// read the rate from the back office themselves.
func (s *RegisterService) SetTaxRate(ctx context.Context, rate decimal.Decimal) int {
	s.mu.Lock()
	terminals := make(map[string]*session, len(s.sessions))
	for id, sess := range s.sessions {
		terminals[id] = sess
	}
	s.mu.Unlock()

	updated := 0
	for id, sess := range terminals {
		sess.mu.Lock()
		if sess.loaded {
			if _, err := s.apply(ctx, id, sess, register.SetTaxRate{RatePercent: rate}); err == nil {
				updated++
			}
		}
		sess.mu.Unlock()
	}
	return updated
}

// ListAudit returns recorded voids, newest first.
func (s *RegisterService) ListAudit(ctx context.Context, filter repository.AuditFilter) ([]domain.AuditEntry, error) {
	if s.audit == nil {
		return []domain.AuditEntry{}, nil
	}
	entries, err := s.audit.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}

// reduceError maps state machine errors to API errors.
func reduceError(err error) error {
	var transition *register.TransitionError
	switch {
	case errors.As(err, &transition):
		appErr := apperrors.Conflict(transition.Error())
		if errors.Is(transition.Err, register.ErrEmptyCart) {
			appErr.Code = checkout.CodeEmptyCart
		}
		return appErr
	case errors.Is(err, register.ErrMissingProductID):
		return apperrors.Validation("MISSING_PRODUCT_ID", "product id is required")
	case errors.Is(err, register.ErrItemNotFound):
		return &apperrors.AppError{Code: "ITEM_NOT_FOUND", Message: err.Error(), Status: http.StatusNotFound, Err: apperrors.ErrNotFound}
	case errors.Is(err, register.ErrHeldOrderNotFound):
		return &apperrors.AppError{Code: "HELD_ORDER_NOT_FOUND", Message: err.Error(), Status: http.StatusNotFound, Err: apperrors.ErrNotFound}
	default:
		return apperrors.Internal(err)
	}
}
