package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/pos-register/internal/checkout"
	"github.com/utafrali/pos-register/internal/domain"
	"github.com/utafrali/pos-register/internal/event"
	"github.com/utafrali/pos-register/internal/pricing"
	"github.com/utafrali/pos-register/internal/repository"
	"github.com/utafrali/pos-register/internal/repository/memory"
	"github.com/utafrali/pos-register/internal/storeapi"
	apperrors "github.com/utafrali/pos-register/pkg/errors"
	pkgkafka "github.com/utafrali/pos-register/pkg/kafka"
)

// --- Mocks ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) TaxRate(ctx context.Context) (decimal.Decimal, error) {
	args := m.Called(ctx)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *mockStore) GetDiscount(ctx context.Context, id int64) (*domain.Discount, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Discount), args.Error(1)
}

func (m *mockStore) CreateOrder(ctx context.Context, payload checkout.OrderPayload) (string, error) {
	args := m.Called(ctx, payload)
	return args.String(0), args.Error(1)
}

func (m *mockStore) Login(ctx context.Context, username, password string) (*storeapi.LoginResult, error) {
	args := m.Called(ctx, username, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storeapi.LoginResult), args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishOrderCompleted(ctx context.Context, data event.OrderCompletedData) error {
	return m.Called(ctx, data).Error(0)
}

func (m *mockPublisher) PublishVoid(ctx context.Context, entry domain.AuditEntry) error {
	return m.Called(ctx, entry).Error(0)
}

// flakyHeldStore fails loads or saves on demand.
type flakyHeldStore struct {
	*memory.HeldOrderStore
	mu      sync.Mutex
	loadErr error
	saveErr error
}

func (f *flakyHeldStore) Load(ctx context.Context, terminalID string) ([]domain.HeldOrder, error) {
	f.mu.Lock()
	err := f.loadErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.HeldOrderStore.Load(ctx, terminalID)
}

func (f *flakyHeldStore) Save(ctx context.Context, terminalID string, held []domain.HeldOrder) error {
	f.mu.Lock()
	err := f.saveErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.HeldOrderStore.Save(ctx, terminalID, held)
}

// --- Helpers ---

type fixture struct {
	svc    *RegisterService
	store  *mockStore
	events *mockPublisher
	held   *flakyHeldStore
	audit  *memory.AuditRepository
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  new(mockStore),
		events: new(mockPublisher),
		held:   &flakyHeldStore{HeldOrderStore: memory.NewHeldOrderStore()},
		audit:  memory.NewAuditRepository(),
	}
	f.store.On("TaxRate", mock.Anything).Return(decimal.RequireFromString("8.25"), nil).Maybe()

	f.svc = NewRegisterService(f.held, f.audit, f.store, f.events, newTestLogger(), Config{
		StoreID:               "store-1",
		DefaultTaxRatePercent: decimal.RequireFromString("8.25"),
	})
	f.svc.now = func() time.Time { return time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC) }
	seq := 0
	f.svc.newID = func() string {
		seq++
		return fmt.Sprintf("id-%d", seq)
	}
	return f
}

func coffee() domain.Product {
	return domain.Product{ID: 1, Name: "Coffee", Price: "3.50"}
}

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func requireCode(t *testing.T, err error, code string) *apperrors.AppError {
	t.Helper()
	require.Error(t, err)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
	return appErr
}

func (f *fixture) addCoffee(t *testing.T, terminal string, qty int) *RegisterView {
	t.Helper()
	view, err := f.svc.AddItem(context.Background(), terminal, AddItemInput{Product: coffee(), Quantity: qty})
	require.NoError(t, err)
	return view
}

// --- Session ---

func TestGetRegister_StartsEmptyWithStoreTaxRate(t *testing.T) {
	f := newFixture(t)

	view, err := f.svc.GetRegister(context.Background(), "T1")
	require.NoError(t, err)
	assert.Equal(t, "T1", view.TerminalID)
	assert.Equal(t, domain.PhaseEmpty, view.Phase)
	assert.Empty(t, view.Cart.Items)
	assertMoney(t, "8.25", view.TaxRatePercent)
}

func TestGetRegister_RequiresTerminal(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.GetRegister(context.Background(), " ")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestSession_TaxRateFailureUsesDefault(t *testing.T) {
	store := new(mockStore)
	store.On("TaxRate", mock.Anything).Return(decimal.RequireFromString("8.25"), apperrors.ServiceUnavailable("down"))
	svc := NewRegisterService(memory.NewHeldOrderStore(), nil, store, nil, newTestLogger(), Config{
		DefaultTaxRatePercent: decimal.RequireFromString("7"),
	})

	view, err := svc.GetRegister(context.Background(), "T1")
	require.NoError(t, err)
	assertMoney(t, "7", view.TaxRatePercent)
}

func TestSession_LoadsPersistedHeldOrders(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.held.HeldOrderStore.Save(context.Background(), "T1", []domain.HeldOrder{
		{ID: "h1", Name: "Table 4", Cart: domain.NewCart()},
	}))

	held, err := f.svc.ListHeldOrders(context.Background(), "T1")
	require.NoError(t, err)
	require.Len(t, held, 1)
	assert.Equal(t, "Table 4", held[0].Name)
}

func TestSession_HeldLoadFailureIsRetried(t *testing.T) {
	f := newFixture(t)
	f.held.loadErr = errors.New("connection refused")

	_, err := f.svc.GetRegister(context.Background(), "T1")
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)

	f.held.loadErr = nil
	_, err = f.svc.GetRegister(context.Background(), "T1")
	assert.NoError(t, err)
}

// --- Items ---

func TestAddItem_RecomputesTotals(t *testing.T) {
	f := newFixture(t)

	view := f.addCoffee(t, "T1", 2)
	assert.Equal(t, domain.PhaseActive, view.Phase)
	assert.Equal(t, 2, view.ItemCount)
	assertMoney(t, "7.00", view.Cart.Subtotal)
	assertMoney(t, "0.58", view.Cart.Tax)
	assertMoney(t, "7.58", view.Cart.Total)
}

func TestAddItem_MissingProductID(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.AddItem(context.Background(), "T1", AddItemInput{Product: domain.Product{Name: "?"}})
	requireCode(t, err, "MISSING_PRODUCT_ID")

	view, err := f.svc.GetRegister(context.Background(), "T1")
	require.NoError(t, err)
	assert.Empty(t, view.Cart.Items)
}

func TestTerminalsAreIsolated(t *testing.T) {
	f := newFixture(t)
	f.addCoffee(t, "T1", 1)

	view, err := f.svc.GetRegister(context.Background(), "T2")
	require.NoError(t, err)
	assert.Empty(t, view.Cart.Items)
}

func TestUpdateQuantityAndRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addCoffee(t, "T1", 1)

	view, err := f.svc.UpdateQuantity(ctx, "T1", 1, 4)
	require.NoError(t, err)
	assertMoney(t, "14.00", view.Cart.Subtotal)

	view, err = f.svc.UpdateQuantity(ctx, "T1", 1, 0)
	require.NoError(t, err)
	assert.Empty(t, view.Cart.Items)

	_, err = f.svc.RemoveItem(ctx, "T1", 42)
	assert.NoError(t, err)
}

func TestSetCustomerAndClear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addCoffee(t, "T1", 1)

	customer := int64(12)
	view, err := f.svc.SetCustomer(ctx, "T1", &customer)
	require.NoError(t, err)
	require.NotNil(t, view.Cart.CustomerID)
	assert.Equal(t, int64(12), *view.Cart.CustomerID)

	view, err = f.svc.ClearCart(ctx, "T1")
	require.NoError(t, err)
	assert.Nil(t, view.Cart.CustomerID)
	assert.Empty(t, view.Cart.Items)
}

func TestConcurrentMutationsAreSerialized(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.svc.AddItem(context.Background(), "T1", AddItemInput{Product: coffee(), Quantity: 1})
		}()
	}
	wg.Wait()

	view, err := f.svc.GetRegister(context.Background(), "T1")
	require.NoError(t, err)
	require.Len(t, view.Cart.Items, 1)
	assert.Equal(t, 50, view.Cart.Items[0].Quantity)
}

// --- Discounts ---

func TestApplyDiscount_PrivilegedNeedsNoApproval(t *testing.T) {
	f := newFixture(t)
	f.addCoffee(t, "T1", 2)
	f.store.On("GetDiscount", mock.Anything, int64(3)).
		Return(&domain.Discount{ID: 3, Name: "Happy hour", Type: domain.DiscountTypeAmount, Value: "1.00"}, nil)

	view, err := f.svc.ApplyDiscount(context.Background(), "T1",
		domain.Actor{UserID: "m1", Role: "manager"}, ApplyDiscountInput{DiscountID: 3})
	require.NoError(t, err)
	assertMoney(t, "1.00", view.Cart.Discount)
	assertMoney(t, "6.58", view.Cart.Total)
	f.store.AssertNotCalled(t, "Login", mock.Anything, mock.Anything, mock.Anything)
}

func TestApplyDiscount_EmptyCartConflicts(t *testing.T) {
	f := newFixture(t)
	f.store.On("GetDiscount", mock.Anything, int64(5)).
		Return(&domain.Discount{ID: 5, Name: "Senior", Type: domain.DiscountTypePercent, Value: 20}, nil)

	_, err := f.svc.ApplyDiscount(context.Background(), "T1",
		domain.Actor{UserID: "m1", Role: "manager"}, ApplyDiscountInput{DiscountID: 5})
	requireCode(t, err, checkout.CodeEmptyCart)

	view := f.addCoffee(t, "T1", 2)
	assert.Nil(t, view.Cart.AppliedDiscount)
	assert.True(t, view.Cart.Discount.IsZero())
}

func TestApplyDiscount_SeniorCitizen(t *testing.T) {
	f := newFixture(t)
	f.addCoffee(t, "T1", 2)
	f.store.On("GetDiscount", mock.Anything, int64(5)).
		Return(&domain.Discount{ID: 5, Name: "Senior Citizen", Type: domain.DiscountTypeAmount, Value: 1}, nil)

	view, err := f.svc.ApplyDiscount(context.Background(), "T1",
		domain.Actor{UserID: "a1", Role: "admin"}, ApplyDiscountInput{DiscountID: 5})
	require.NoError(t, err)
	assertMoney(t, "1.40", view.Cart.Discount)
}

func TestApplyDiscount_CashierWithoutManager(t *testing.T) {
	f := newFixture(t)
	f.addCoffee(t, "T1", 1)

	_, err := f.svc.ApplyDiscount(context.Background(), "T1",
		domain.Actor{UserID: "c1", Role: "cashier"}, ApplyDiscountInput{DiscountID: 3})
	appErr := requireCode(t, err, CodeManagerAuthRequired)
	assert.Equal(t, 401, appErr.Status)
	f.store.AssertNotCalled(t, "GetDiscount", mock.Anything, mock.Anything)
}

func TestApplyDiscount_ManagerApproves(t *testing.T) {
	f := newFixture(t)
	f.addCoffee(t, "T1", 2)
	f.store.On("Login", mock.Anything, "boss", "pw").
		Return(&storeapi.LoginResult{Token: "t", UserID: "m9", Username: "boss", Role: "manager"}, nil)
	f.store.On("GetDiscount", mock.Anything, int64(3)).
		Return(&domain.Discount{ID: 3, Name: "Ten off", Type: domain.DiscountTypePercent, Value: "10"}, nil)

	view, err := f.svc.ApplyDiscount(context.Background(), "T1", domain.Actor{UserID: "c1", Role: "cashier"},
		ApplyDiscountInput{DiscountID: 3, Manager: &ManagerCredentials{Username: "boss", Password: "pw"}})
	require.NoError(t, err)
	assertMoney(t, "0.70", view.Cart.Discount)
	require.NotNil(t, view.Cart.AppliedDiscount)
	assert.Equal(t, domain.DiscountCategoryStandard, view.Cart.AppliedDiscount.Category)
	f.store.AssertExpectations(t)
}

func TestApplyDiscount_ApprovalRejected(t *testing.T) {
	tests := []struct {
		name   string
		result *storeapi.LoginResult
		err    error
	}{
		{"bad credentials", nil, apperrors.Unauthorized("store-api: invalid credentials")},
		{"not a manager", &storeapi.LoginResult{Token: "t", UserID: "c2", Username: "pal", Role: "cashier"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.addCoffee(t, "T1", 2)
			f.store.On("Login", mock.Anything, "pal", "pw").Return(tt.result, tt.err)

			_, err := f.svc.ApplyDiscount(context.Background(), "T1", domain.Actor{UserID: "c1", Role: "cashier"},
				ApplyDiscountInput{DiscountID: 3, Manager: &ManagerCredentials{Username: "pal", Password: "pw"}})
			requireCode(t, err, CodeManagerAuthFailed)

			view, err := f.svc.GetRegister(context.Background(), "T1")
			require.NoError(t, err)
			assert.True(t, view.Cart.Discount.IsZero())
			f.store.AssertNotCalled(t, "GetDiscount", mock.Anything, mock.Anything)
		})
	}
}

func TestApplyDiscount_LoginOutagePropagates(t *testing.T) {
	f := newFixture(t)
	f.store.On("Login", mock.Anything, "boss", "pw").Return(nil, apperrors.ServiceUnavailable("store-api is temporarily unavailable"))

	_, err := f.svc.ApplyDiscount(context.Background(), "T1", domain.Actor{UserID: "c1"},
		ApplyDiscountInput{DiscountID: 3, Manager: &ManagerCredentials{Username: "boss", Password: "pw"}})
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
}

func TestRemoveDiscount(t *testing.T) {
	f := newFixture(t)
	f.addCoffee(t, "T1", 2)
	f.store.On("GetDiscount", mock.Anything, int64(3)).
		Return(&domain.Discount{ID: 3, Name: "x", Type: domain.DiscountTypeAmount, Value: "2"}, nil)
	_, err := f.svc.ApplyDiscount(context.Background(), "T1", domain.Actor{UserID: "m", Role: "manager"}, ApplyDiscountInput{DiscountID: 3})
	require.NoError(t, err)

	view, err := f.svc.RemoveDiscount(context.Background(), "T1")
	require.NoError(t, err)
	assert.True(t, view.Cart.Discount.IsZero())
	assert.Nil(t, view.Cart.AppliedDiscount)
	assertMoney(t, "7.58", view.Cart.Total)
}

// --- Held orders ---

func TestHoldOrder_PersistsAndClears(t *testing.T) {
	f := newFixture(t)
	f.addCoffee(t, "T1", 2)

	res, err := f.svc.HoldOrder(context.Background(), "T1", "")
	require.NoError(t, err)
	assert.Equal(t, "id-1", res.HeldOrder.ID)
	assert.Equal(t, "Order #1", res.HeldOrder.Name)
	assert.Equal(t, domain.PhaseOnHold, res.Register.LastTransition)
	assert.Empty(t, res.Register.Cart.Items)
	assert.Equal(t, 1, res.Register.HeldCount)

	stored, err := f.held.HeldOrderStore.Load(context.Background(), "T1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assertMoney(t, "7.58", stored[0].Cart.Total)
}

func TestHoldOrder_PersistFailureKeepsCart(t *testing.T) {
	f := newFixture(t)
	f.addCoffee(t, "T1", 1)
	f.held.saveErr = errors.New("redis down")

	_, err := f.svc.HoldOrder(context.Background(), "T1", "later")
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)

	view, err := f.svc.GetRegister(context.Background(), "T1")
	require.NoError(t, err)
	assert.Len(t, view.Cart.Items, 1)
	assert.Equal(t, 0, view.HeldCount)
}

func TestHoldOrder_EmptyCart(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.HoldOrder(context.Background(), "T1", "")
	appErr := requireCode(t, err, checkout.CodeEmptyCart)
	assert.Equal(t, 409, appErr.Status)
}

func TestRetrieveHeldOrder_ReplacesActiveCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addCoffee(t, "T1", 2)
	res, err := f.svc.HoldOrder(ctx, "T1", "Table 1")
	require.NoError(t, err)

	_, err = f.svc.AddItem(ctx, "T1", AddItemInput{Product: domain.Product{ID: 9, Name: "Muffin", Price: 2}})
	require.NoError(t, err)

	view, err := f.svc.RetrieveHeldOrder(ctx, "T1", res.HeldOrder.ID)
	require.NoError(t, err)
	require.Len(t, view.Cart.Items, 1)
	assert.Equal(t, int64(1), view.Cart.Items[0].ProductID)
	assert.False(t, view.Cart.IsOnHold)
	assert.Equal(t, 0, view.HeldCount)

	stored, _ := f.held.HeldOrderStore.Load(ctx, "T1")
	assert.Empty(t, stored)
}

func TestRetrieveAndDelete_Unknown(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.RetrieveHeldOrder(context.Background(), "T1", "nope")
	appErr := requireCode(t, err, "HELD_ORDER_NOT_FOUND")
	assert.Equal(t, 404, appErr.Status)

	_, err = f.svc.DeleteHeldOrder(context.Background(), "T1", "nope")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDeleteHeldOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addCoffee(t, "T1", 1)
	res, err := f.svc.HoldOrder(ctx, "T1", "")
	require.NoError(t, err)

	view, err := f.svc.DeleteHeldOrder(ctx, "T1", res.HeldOrder.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, view.HeldCount)
	assert.Empty(t, view.Cart.Items)
}

// --- Voids ---

func TestVoidItem_AuditsAndPublishes(t *testing.T) {
	f := newFixture(t)
	f.addCoffee(t, "T1", 2)
	f.events.On("PublishVoid", mock.Anything, mock.MatchedBy(func(e domain.AuditEntry) bool {
		return e.Action == domain.AuditActionVoidItem && e.Item != nil && e.Item.ProductID == 1
	})).Return(nil)

	actor := domain.Actor{UserID: "c1", Role: "cashier"}
	view, err := f.svc.VoidItem(context.Background(), "T1", actor, 1)
	require.NoError(t, err)
	assert.Empty(t, view.Cart.Items)

	entries, err := f.svc.ListAudit(context.Background(), repository.AuditFilter{TerminalID: "T1"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, actor, entries[0].Actor)
	assert.Equal(t, "T1", entries[0].TerminalID)
	assert.Equal(t, 2, entries[0].Item.Quantity)
	f.events.AssertExpectations(t)
}

func TestVoidItem_AuditFailureDoesNotFailVoid(t *testing.T) {
	f := newFixture(t)
	f.addCoffee(t, "T1", 1)
	f.events.On("PublishVoid", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	view, err := f.svc.VoidItem(context.Background(), "T1", domain.Actor{UserID: "c1"}, 1)
	require.NoError(t, err)
	assert.Empty(t, view.Cart.Items)
}

func TestVoidItem_NotInCart(t *testing.T) {
	f := newFixture(t)
	f.addCoffee(t, "T1", 1)

	_, err := f.svc.VoidItem(context.Background(), "T1", domain.Actor{UserID: "c1"}, 99)
	requireCode(t, err, "ITEM_NOT_FOUND")
	f.events.AssertNotCalled(t, "PublishVoid", mock.Anything, mock.Anything)
}

func TestVoidOrder_SnapshotsTotals(t *testing.T) {
	f := newFixture(t)
	f.addCoffee(t, "T1", 2)
	f.events.On("PublishVoid", mock.Anything, mock.Anything).Return(nil)

	view, err := f.svc.VoidOrder(context.Background(), "T1", domain.Actor{UserID: "m1", Role: "manager"})
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseVoided, view.LastTransition)
	assert.Empty(t, view.Cart.Items)

	entries, _ := f.audit.List(context.Background(), repository.AuditFilter{})
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].Totals)
	assertMoney(t, "7.58", entries[0].Totals.Total)
	assert.Len(t, entries[0].Items, 1)
}

func TestVoidOrder_EmptyCart(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.VoidOrder(context.Background(), "T1", domain.Actor{UserID: "m1"})
	requireCode(t, err, checkout.CodeEmptyCart)
}

// --- Checkout ---

func TestCheckout_CashCompletes(t *testing.T) {
	f := newFixture(t)
	f.addCoffee(t, "T1", 2)
	f.store.On("CreateOrder", mock.Anything, mock.MatchedBy(func(p checkout.OrderPayload) bool {
		return p.Order.StoreID == "store-1" &&
			p.Order.UserID == "c1" &&
			p.Order.Total == 7.58 &&
			p.Order.Change == 2.42 &&
			len(p.Items) == 1
	})).Return("ord-77", nil)
	f.events.On("PublishOrderCompleted", mock.Anything, mock.MatchedBy(func(d event.OrderCompletedData) bool {
		return d.OrderID == "ord-77" && d.TerminalID == "T1"
	})).Return(nil)

	res, err := f.svc.Checkout(context.Background(), "T1", &domain.Actor{UserID: "c1"},
		CheckoutInput{PaymentMethod: "Cash", AmountTendered: "10"})
	require.NoError(t, err)
	assert.Equal(t, "ord-77", res.OrderID)
	assertMoney(t, "2.42", res.Tender.Change)
	assertMoney(t, "7.58", res.Receipt.Total)
	assert.Empty(t, res.Register.Cart.Items)
	assert.Equal(t, domain.PhaseCheckedOut, res.Register.LastTransition)
	f.store.AssertExpectations(t)
	f.events.AssertExpectations(t)
}

func TestCheckout_UpstreamFailureKeepsCart(t *testing.T) {
	f := newFixture(t)
	f.addCoffee(t, "T1", 2)
	f.store.On("CreateOrder", mock.Anything, mock.Anything).Return("", apperrors.Upstream("store-api returned status 502", errors.New("bad gateway")))

	_, err := f.svc.Checkout(context.Background(), "T1", &domain.Actor{UserID: "c1"},
		CheckoutInput{PaymentMethod: "cash", AmountTendered: 20})
	assert.ErrorIs(t, err, apperrors.ErrUpstream)

	view, err := f.svc.GetRegister(context.Background(), "T1")
	require.NoError(t, err)
	assert.Len(t, view.Cart.Items, 1)
	f.events.AssertNotCalled(t, "PublishOrderCompleted", mock.Anything, mock.Anything)
}

func TestCheckout_InsufficientCashNeverSubmits(t *testing.T) {
	f := newFixture(t)
	f.addCoffee(t, "T1", 2)

	_, err := f.svc.Checkout(context.Background(), "T1", &domain.Actor{UserID: "c1"},
		CheckoutInput{PaymentMethod: "cash", AmountTendered: "5"})
	requireCode(t, err, checkout.CodeInsufficientPayment)
	f.store.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
}

func TestCheckout_EventFailureStillCompletes(t *testing.T) {
	f := newFixture(t)
	f.addCoffee(t, "T1", 1)
	f.store.On("CreateOrder", mock.Anything, mock.Anything).Return("ord-1", nil)
	f.events.On("PublishOrderCompleted", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	res, err := f.svc.Checkout(context.Background(), "T1", &domain.Actor{UserID: "c1"},
		CheckoutInput{PaymentMethod: "card", Card: &checkout.CardDetails{
			Number: "4242 4242 4242 4242", Expiry: "12/30", CVC: "123", Name: "A Buyer",
		}})
	require.NoError(t, err)
	assert.Equal(t, "visa", res.Tender.CardBrand)
	assert.True(t, res.Tender.Change.IsZero())
}

// --- Tax rate ---

func TestRefreshTaxRate(t *testing.T) {
	store := new(mockStore)
	store.On("TaxRate", mock.Anything).Return(decimal.RequireFromString("8.25"), nil).Once()
	store.On("TaxRate", mock.Anything).Return(decimal.RequireFromString("10"), nil).Once()
	svc := NewRegisterService(memory.NewHeldOrderStore(), nil, store, nil, newTestLogger(), Config{
		DefaultTaxRatePercent: decimal.RequireFromString("8.25"),
	})
	_, err := svc.AddItem(context.Background(), "T1", AddItemInput{Product: coffee(), Quantity: 2})
	require.NoError(t, err)

	view, err := svc.RefreshTaxRate(context.Background(), "T1")
	require.NoError(t, err)
	assertMoney(t, "10", view.TaxRatePercent)
	assertMoney(t, "0.70", view.Cart.Tax)
}

func TestHandleTaxRateChanged_UpdatesLoadedTerminals(t *testing.T) {
	f := newFixture(t)
	f.addCoffee(t, "T1", 2)
	f.addCoffee(t, "T2", 1)

	e, err := pkgkafka.NewEvent("tax_rate_changed", "store-1", "store", "backoffice", event.TaxRateChangedData{RatePercent: "5"})
	require.NoError(t, err)
	require.NoError(t, f.svc.HandleTaxRateChanged(context.Background(), e))

	v1, _ := f.svc.GetRegister(context.Background(), "T1")
	v2, _ := f.svc.GetRegister(context.Background(), "T2")
	assertMoney(t, "5", v1.TaxRatePercent)
	assertMoney(t, "0.35", v1.Cart.Tax)
	assertMoney(t, "5", v2.TaxRatePercent)
}

func TestHandleTaxRateChanged_UnusableRateRereadsStore(t *testing.T) {
	f := newFixture(t)
	f.addCoffee(t, "T1", 2)
	f.store.ExpectedCalls = nil
	f.store.On("TaxRate", mock.Anything).Return(decimal.RequireFromString("6"), nil).Once()

	e, err := pkgkafka.NewEvent("tax_rate_changed", "store-1", "store", "backoffice", event.TaxRateChangedData{RatePercent: "abc"})
	require.NoError(t, err)
	require.NoError(t, f.svc.HandleTaxRateChanged(context.Background(), e))

	v, err := f.svc.GetRegister(context.Background(), "T1")
	require.NoError(t, err)
	assertMoney(t, "6", v.TaxRatePercent)
	assertMoney(t, "0.42", v.Cart.Tax)
	f.store.AssertExpectations(t)
}

func TestHandleTaxRateChanged_UnusableRateAndStoreDownKeepsDefault(t *testing.T) {
	f := newFixture(t)
	f.addCoffee(t, "T1", 2)
	f.store.ExpectedCalls = nil
	f.store.On("TaxRate", mock.Anything).
		Return(pricing.DefaultTaxRatePercent, apperrors.Upstream("store api unreachable", fmt.Errorf("dial tcp: refused"))).Once()

	e, err := pkgkafka.NewEvent("tax_rate_changed", "store-1", "store", "backoffice", event.TaxRateChangedData{RatePercent: "abc"})
	require.NoError(t, err)
	require.NoError(t, f.svc.HandleTaxRateChanged(context.Background(), e))

	v, err := f.svc.GetRegister(context.Background(), "T1")
	require.NoError(t, err)
	assertMoney(t, "8.25", v.TaxRatePercent)
	assertMoney(t, "0.58", v.Cart.Tax)
}

func TestHandleTaxRateChanged_ZeroRateIsApplied(t *testing.T) {
	f := newFixture(t)
	f.addCoffee(t, "T1", 2)

	e, err := pkgkafka.NewEvent("tax_rate_changed", "store-1", "store", "backoffice", event.TaxRateChangedData{RatePercent: 0})
	require.NoError(t, err)
	require.NoError(t, f.svc.HandleTaxRateChanged(context.Background(), e))

	v, err := f.svc.GetRegister(context.Background(), "T1")
	require.NoError(t, err)
	assertMoney(t, "0", v.TaxRatePercent)
	assertMoney(t, "0", v.Cart.Tax)
}

func TestHandleTaxRateChanged_BadPayload(t *testing.T) {
	f := newFixture(t)
	e := &pkgkafka.Event{EventID: "e1", EventType: "tax_rate_changed", Data: []byte(`"nope"`)}
	assert.Error(t, f.svc.HandleTaxRateChanged(context.Background(), e))
}
