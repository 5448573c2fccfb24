package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/pos-register/internal/checkout"
	"github.com/utafrali/pos-register/internal/domain"
	"github.com/utafrali/pos-register/internal/repository"
	"github.com/utafrali/pos-register/internal/service"
	apperrors "github.com/utafrali/pos-register/pkg/errors"
	"github.com/utafrali/pos-register/pkg/httputil"
	"github.com/utafrali/pos-register/pkg/middleware"
	"github.com/utafrali/pos-register/pkg/pagination"
	"github.com/utafrali/pos-register/pkg/validator"
)

// RegisterHandler handles HTTP requests for register endpoints.
type RegisterHandler struct {
	service *service.RegisterService
	logger  *slog.Logger
}

// NewRegisterHandler creates a new register HTTP handler.
func NewRegisterHandler(svc *service.RegisterService, logger *slog.Logger) *RegisterHandler {
	return &RegisterHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// AddItemRequest is the JSON request body for adding a product to the cart.
type AddItemRequest struct {
	ProductID int64       `json:"product_id" validate:"required,gt=0"`
	Name      string      `json:"name" validate:"required,max=500"`
	Price     json.Number `json:"price" validate:"required,amount"`
	Quantity  int         `json:"quantity" validate:"omitempty,gte=1,lte=9999"`
	IsTaxable *bool       `json:"is_taxable"`
}

// UpdateQuantityRequest is the JSON request body for changing a line's
// quantity. Zero or less removes the line.
type UpdateQuantityRequest struct {
	Quantity int `json:"quantity" validate:"lte=9999"`
}

// SetCustomerRequest attaches a customer, or detaches it when CustomerID is
// null.
type SetCustomerRequest struct {
	CustomerID *int64 `json:"customer_id" validate:"omitempty,gt=0"`
}

// HoldRequest names a held order. The body is optional.
type HoldRequest struct {
	Name string `json:"name" validate:"max=100"`
}

// CheckoutRequest is the payment keyed in at the register. AmountTendered
// may be a number or a string; anything unparsable counts as zero.
type CheckoutRequest struct {
	PaymentMethod  string                `json:"payment_method" validate:"max=32"`
	AmountTendered any                   `json:"amount_tendered"`
	Card           *checkout.CardDetails `json:"card,omitempty"`
}

// --- Helpers ---

func (h *RegisterHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	httputil.WriteError(w, r, err, h.logger)
}

// decode reads and validates the body. An empty body is accepted when
// optional is set.
func (h *RegisterHandler) decode(w http.ResponseWriter, r *http.Request, dst any, optional bool) bool {
	if err := validator.Decode(r, dst); err != nil {
		if !(optional && errors.Is(err, io.EOF)) {
			h.writeError(w, r, apperrors.InvalidInput("invalid request body: "+err.Error()))
			return false
		}
	}
	if err := validator.Validate(dst); err != nil {
		h.writeError(w, r, err)
		return false
	}
	return true
}

func terminalID(r *http.Request) string {
	return middleware.TerminalIDFromContext(r.Context())
}

func actorFrom(r *http.Request) domain.Actor {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		return domain.Actor{}
	}
	return domain.Actor{UserID: claims.UserID, Role: claims.Role}
}

func productIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	return httputil.ParseInt64(w, "product id", chi.URLParam(r, "productId"))
}

// --- Handlers ---

// GetRegister handles GET /api/v1/register
func (h *RegisterHandler) GetRegister(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetRegister(r.Context(), terminalID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, view)
}

// ClearCart handles DELETE /api/v1/register
func (h *RegisterHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.ClearCart(r.Context(), terminalID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, view)
}

// AddItem handles POST /api/v1/register/items
func (h *RegisterHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if !h.decode(w, r, &req, false) {
		return
	}

	view, err := h.service.AddItem(r.Context(), terminalID(r), service.AddItemInput{
		Product: domain.Product{
			ID:        req.ProductID,
			Name:      req.Name,
			Price:     req.Price,
			IsTaxable: req.IsTaxable,
		},
		Quantity: req.Quantity,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, view)
}

// UpdateQuantity handles PUT /api/v1/register/items/{productId}
func (h *RegisterHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}
	var req UpdateQuantityRequest
	if !h.decode(w, r, &req, false) {
		return
	}

	view, err := h.service.UpdateQuantity(r.Context(), terminalID(r), productID, req.Quantity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, view)
}

// RemoveItem handles DELETE /api/v1/register/items/{productId}
func (h *RegisterHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	view, err := h.service.RemoveItem(r.Context(), terminalID(r), productID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, view)
}

// VoidItem handles POST /api/v1/register/items/{productId}/void
func (h *RegisterHandler) VoidItem(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	view, err := h.service.VoidItem(r.Context(), terminalID(r), actorFrom(r), productID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, view)
}

// VoidOrder handles POST /api/v1/register/void
func (h *RegisterHandler) VoidOrder(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.VoidOrder(r.Context(), terminalID(r), actorFrom(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, view)
}

// ApplyDiscount handles PUT /api/v1/register/discount
func (h *RegisterHandler) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	var req service.ApplyDiscountInput
	if !h.decode(w, r, &req, false) {
		return
	}

	view, err := h.service.ApplyDiscount(r.Context(), terminalID(r), actorFrom(r), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, view)
}

// RemoveDiscount handles DELETE /api/v1/register/discount
func (h *RegisterHandler) RemoveDiscount(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.RemoveDiscount(r.Context(), terminalID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, view)
}

// SetCustomer handles PUT /api/v1/register/customer
func (h *RegisterHandler) SetCustomer(w http.ResponseWriter, r *http.Request) {
	var req SetCustomerRequest
	if !h.decode(w, r, &req, false) {
		return
	}

	view, err := h.service.SetCustomer(r.Context(), terminalID(r), req.CustomerID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, view)
}

// HoldOrder handles POST /api/v1/register/hold
func (h *RegisterHandler) HoldOrder(w http.ResponseWriter, r *http.Request) {
	var req HoldRequest
	if !h.decode(w, r, &req, true) {
		return
	}

	res, err := h.service.HoldOrder(r.Context(), terminalID(r), req.Name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusCreated, res)
}

// ListHeldOrders handles GET /api/v1/register/held
func (h *RegisterHandler) ListHeldOrders(w http.ResponseWriter, r *http.Request) {
	held, err := h.service.ListHeldOrders(r.Context(), terminalID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, held)
}

// RetrieveHeldOrder handles POST /api/v1/register/held/{heldId}/retrieve
func (h *RegisterHandler) RetrieveHeldOrder(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.RetrieveHeldOrder(r.Context(), terminalID(r), chi.URLParam(r, "heldId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, view)
}

// DeleteHeldOrder handles DELETE /api/v1/register/held/{heldId}
func (h *RegisterHandler) DeleteHeldOrder(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.DeleteHeldOrder(r.Context(), terminalID(r), chi.URLParam(r, "heldId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, view)
}

// Checkout handles POST /api/v1/register/checkout
func (h *RegisterHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if !h.decode(w, r, &req, false) {
		return
	}

	actor := actorFrom(r)
	res, err := h.service.Checkout(r.Context(), terminalID(r), &actor, service.CheckoutInput{
		PaymentMethod:  req.PaymentMethod,
		AmountTendered: req.AmountTendered,
		Card:           req.Card,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusCreated, res)
}

// RefreshTaxRate handles POST /api/v1/register/tax-rate/refresh
func (h *RegisterHandler) RefreshTaxRate(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.RefreshTaxRate(r.Context(), terminalID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, view)
}

// ListAudit handles GET /api/v1/register/audit?terminal_id=&action=&page=&per_page=
func (h *RegisterHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	params, err := pagination.FromRequest(r)
	if err != nil {
		h.writeError(w, r, apperrors.InvalidInput(err.Error()))
		return
	}

	q := r.URL.Query()
	entries, err := h.service.ListAudit(r.Context(), repository.AuditFilter{
		TerminalID: strings.TrimSpace(q.Get("terminal_id")),
		Action:     strings.TrimSpace(q.Get("action")),
		Limit:      params.FetchLimit(),
		Offset:     params.Offset,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, pagination.NewResult(entries, params))
}
