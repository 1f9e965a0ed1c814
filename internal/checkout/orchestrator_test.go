package checkout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/pharmacy-pos/internal/cart"
	"github.com/joao-fontenele/pharmacy-pos/internal/domain"
)

type fakeBackend struct {
	mu          sync.Mutex
	draftErr    error
	completeErr error
	drafts      []DraftRequest
	keys        []string
	completes   []CompleteRequest
	orderIDs    []string
	ctxErrs     []error

	// When set, CreateDraft signals entered and waits for release.
	entered chan struct{}
	release chan struct{}
}

func (f *fakeBackend) CreateDraft(_ context.Context, req DraftRequest, key string) (*DraftOrder, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.drafts = append(f.drafts, req)
	f.keys = append(f.keys, key)
	if f.draftErr != nil {
		return nil, f.draftErr
	}
	n := len(f.drafts)
	return &DraftOrder{
		ID:          fmt.Sprintf("order-%d", n),
		OrderNumber: fmt.Sprintf("SO-%d", n),
		Status:      domain.OrderStatusDraft,
		TotalAmount: decimal.RequireFromString("160.50"),
	}, nil
}

func (f *fakeBackend) Complete(ctx context.Context, orderID string, req CompleteRequest) (*CompletedOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.completes = append(f.completes, req)
	f.orderIDs = append(f.orderIDs, orderID)
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	paid := decimal.RequireFromString(req.PaidAmount.String())
	return &CompletedOrder{
		ID:           orderID,
		Status:       domain.OrderStatusCompleted,
		PaidAmount:   paid,
		ChangeAmount: paid.Sub(decimal.RequireFromString("160.50")),
	}, nil
}

func (f *fakeBackend) calls() (drafts, completes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.drafts), len(f.completes)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func paracetamol() domain.Product {
	return domain.Product{
		ID:              "1",
		SKU:             "PARA-500",
		SellingPrice:    dec("75"),
		IsVATApplicable: true,
		VATRate:         dec("7"),
	}
}

type fixture struct {
	cart    *cart.Store
	backend *fakeBackend
	orch    *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := cart.Open(context.Background(), cart.NewMemoryStorage(), testLogger())
	t.Cleanup(store.Close)

	backend := &fakeBackend{}
	keys := 0
	orch := NewOrchestrator(store, backend, testLogger(), WithKeyGenerator(func() string {
		keys++
		return fmt.Sprintf("key-%d", keys)
	}))
	return &fixture{cart: store, backend: backend, orch: orch}
}

func (f *fixture) addParacetamol(t *testing.T) {
	t.Helper()
	p := paracetamol()
	require.NoError(t, f.cart.AddItem(p, 2, p.SellingPrice, decimal.Zero))
}

func TestCheckout_EmptyCart(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.Checkout(context.Background())

	assert.ErrorIs(t, err, ErrCartEmpty)
	assert.Equal(t, StateIdle, f.orch.Status().State)
	drafts, _ := f.backend.calls()
	assert.Zero(t, drafts)
}

func TestCheckout_CreatesDraft(t *testing.T) {
	f := newFixture(t)
	f.addParacetamol(t)
	b := domain.Product{ID: "2", SellingPrice: dec("19.999")}
	require.NoError(t, f.cart.AddItem(b, 1, b.SellingPrice, dec("0.5")))
	f.cart.SetCustomer("cust-1")

	status, err := f.orch.Checkout(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateDraftCreated, status.State)
	assert.Equal(t, "order-1", status.OrderID)
	assert.Equal(t, "SO-1", status.OrderNumber)
	assert.Equal(t, "180.00", status.TotalAmount.StringFixed(2))

	require.Len(t, f.backend.drafts, 1)
	req := f.backend.drafts[0]
	assert.Equal(t, "cust-1", req.CustomerID)
	require.Len(t, req.Items, 2)
	assert.Equal(t, DraftItem{ProductID: "1", Quantity: 2, UnitPrice: "75.00"}, req.Items[0])
	assert.Equal(t, DraftItem{ProductID: "2", Quantity: 1, UnitPrice: "20.00", DiscountAmount: "0.50"}, req.Items[1])
	assert.Equal(t, "key-1", f.backend.keys[0])

	assert.Len(t, f.cart.Lines(), 2, "cart is kept until completion")
}

func TestCheckout_DraftFailureKeepsCart(t *testing.T) {
	f := newFixture(t)
	f.addParacetamol(t)
	f.backend.draftErr = &BackendError{Detail: "connection refused"}

	status, err := f.orch.Checkout(context.Background())

	var backendErr *BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.Equal(t, StateIdle, status.State)
	assert.Contains(t, status.LastError, "connection refused")
	assert.Len(t, f.cart.Lines(), 1)
	assert.False(t, f.cart.Held())

	t.Run("retry with unchanged cart reuses the idempotency key", func(t *testing.T) {
		f.backend.draftErr = nil
		_, err := f.orch.Checkout(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"key-1", "key-1"}, f.backend.keys)
	})
}

func TestCheckout_RetryAfterCartChangeUsesNewKey(t *testing.T) {
	f := newFixture(t)
	f.addParacetamol(t)
	f.backend.draftErr = errors.New("boom")

	_, err := f.orch.Checkout(context.Background())
	require.Error(t, err)

	require.NoError(t, f.cart.UpdateQuantity("1", 3))
	f.backend.draftErr = nil
	_, err = f.orch.Checkout(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"key-1", "key-2"}, f.backend.keys)
}

func TestCheckout_RejectsConcurrentCall(t *testing.T) {
	f := newFixture(t)
	f.addParacetamol(t)
	f.backend.entered = make(chan struct{})
	f.backend.release = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := f.orch.Checkout(context.Background())
		done <- err
	}()
	<-f.backend.entered

	assert.Equal(t, StateDraftPending, f.orch.Status().State)
	p := paracetamol()
	assert.ErrorIs(t, f.cart.AddItem(p, 1, p.SellingPrice, decimal.Zero), cart.ErrCartHeld)
	_, err := f.orch.Checkout(context.Background())
	assert.ErrorIs(t, err, ErrCheckoutInProgress)
	_, err = f.orch.Cancel()
	assert.ErrorIs(t, err, ErrCheckoutInProgress)
	_, err = f.orch.CollectPayment(context.Background(), domain.PaymentCash, dec("1000"))
	assert.ErrorIs(t, err, ErrCheckoutInProgress)

	close(f.backend.release)
	require.NoError(t, <-done)

	drafts, _ := f.backend.calls()
	assert.Equal(t, 1, drafts)
	assert.Equal(t, StateDraftCreated, f.orch.Status().State)
}

func TestCheckout_HoldsCartUntilFinished(t *testing.T) {
	t.Run("released on cancel", func(t *testing.T) {
		f := newFixture(t)
		f.addParacetamol(t)
		_, err := f.orch.Checkout(context.Background())
		require.NoError(t, err)

		assert.ErrorIs(t, f.cart.UpdateQuantity("1", 5), cart.ErrCartHeld)
		_, err = f.orch.Cancel()
		require.NoError(t, err)
		require.NoError(t, f.cart.UpdateQuantity("1", 5))
	})

	t.Run("settled on completion", func(t *testing.T) {
		f := newFixture(t)
		f.addParacetamol(t)
		_, err := f.orch.Checkout(context.Background())
		require.NoError(t, err)
		_, err = f.orch.CollectPayment(context.Background(), domain.PaymentCash, dec("160.50"))
		require.NoError(t, err)

		assert.False(t, f.cart.Held())
		assert.Empty(t, f.cart.Lines())
	})

	t.Run("released on empty cart", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.orch.Checkout(context.Background())
		require.ErrorIs(t, err, ErrCartEmpty)
		assert.False(t, f.cart.Held())
	})
}

func TestCheckout_DueIsBackendTotalWhenHigher(t *testing.T) {
	f := newFixture(t)
	p := paracetamol()
	require.NoError(t, f.cart.AddItem(p, 1, p.SellingPrice, decimal.Zero))

	status, err := f.orch.Checkout(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "160.50", status.TotalAmount.StringFixed(2))

	_, err = f.orch.CollectPayment(context.Background(), domain.PaymentCash, dec("80.25"))
	assert.ErrorIs(t, err, ErrInsufficientPayment)
	_, completes := f.backend.calls()
	assert.Zero(t, completes)
}

func TestCollectPayment_ExactAmount(t *testing.T) {
	f := newFixture(t)
	f.addParacetamol(t)
	_, err := f.orch.Checkout(context.Background())
	require.NoError(t, err)

	status, err := f.orch.CollectPayment(context.Background(), domain.PaymentCash, dec("160.50"))
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, status.State)
	assert.True(t, status.ChangeAmount.IsZero())
	require.NotNil(t, status.PaymentMethod)
	assert.Equal(t, domain.PaymentCash, *status.PaymentMethod)
	assert.Empty(t, f.cart.Lines())
	assert.True(t, f.cart.Snapshot().Totals.Total.IsZero())

	require.Len(t, f.backend.completes, 1)
	assert.Equal(t, CompleteRequest{PaymentMethod: domain.PaymentCash, PaidAmount: "160.50"}, f.backend.completes[0])
	assert.Equal(t, "order-1", f.backend.orderIDs[0])
}

func TestCollectPayment_Change(t *testing.T) {
	f := newFixture(t)
	f.addParacetamol(t)
	_, err := f.orch.Checkout(context.Background())
	require.NoError(t, err)
	_, err = f.orch.BeginPayment()
	require.NoError(t, err)

	status, err := f.orch.CollectPayment(context.Background(), domain.PaymentPromptPay, dec("200"))
	require.NoError(t, err)
	assert.Equal(t, "39.50", status.ChangeAmount.StringFixed(2))
}

func TestCollectPayment_InsufficientPayment(t *testing.T) {
	f := newFixture(t)
	f.addParacetamol(t)
	_, err := f.orch.Checkout(context.Background())
	require.NoError(t, err)

	_, err = f.orch.CollectPayment(context.Background(), domain.PaymentCash, dec("160.49"))

	assert.ErrorIs(t, err, ErrInsufficientPayment)
	assert.Equal(t, StateDraftCreated, f.orch.Status().State)
	_, completes := f.backend.calls()
	assert.Zero(t, completes)
	assert.Len(t, f.cart.Lines(), 1)

	t.Run("stays in payment collecting", func(t *testing.T) {
		_, err := f.orch.BeginPayment()
		require.NoError(t, err)
		_, err = f.orch.CollectPayment(context.Background(), domain.PaymentCash, dec("100"))
		assert.ErrorIs(t, err, ErrInsufficientPayment)
		assert.Equal(t, StatePaymentCollecting, f.orch.Status().State)
	})
}

func TestCollectPayment_InvalidMethod(t *testing.T) {
	f := newFixture(t)
	f.addParacetamol(t)
	_, err := f.orch.Checkout(context.Background())
	require.NoError(t, err)

	_, err = f.orch.CollectPayment(context.Background(), domain.PaymentMethod("credit"), dec("500"))
	assert.ErrorIs(t, err, ErrInvalidPaymentMethod)
	_, completes := f.backend.calls()
	assert.Zero(t, completes)
}

func TestCollectPayment_WithoutDraft(t *testing.T) {
	f := newFixture(t)
	f.addParacetamol(t)

	_, err := f.orch.CollectPayment(context.Background(), domain.PaymentCash, dec("500"))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCollectPayment_FailureAllowsRetryOnSameOrder(t *testing.T) {
	f := newFixture(t)
	f.addParacetamol(t)
	_, err := f.orch.Checkout(context.Background())
	require.NoError(t, err)

	f.backend.completeErr = &BackendError{StatusCode: 503, Detail: "Service Unavailable"}
	status, err := f.orch.CollectPayment(context.Background(), domain.PaymentCreditCard, dec("160.50"))

	require.Error(t, err)
	assert.Equal(t, StatePaymentCollecting, status.State)
	assert.Equal(t, "order-1", status.OrderID)
	assert.Len(t, f.cart.Lines(), 1)

	f.backend.completeErr = nil
	status, err = f.orch.CollectPayment(context.Background(), domain.PaymentCreditCard, dec("160.50"))
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, status.State)

	drafts, completes := f.backend.calls()
	assert.Equal(t, 1, drafts)
	assert.Equal(t, 2, completes)
	assert.Equal(t, []string{"order-1", "order-1"}, f.backend.orderIDs)
}

func TestCollectPayment_IgnoresCallerCancellation(t *testing.T) {
	f := newFixture(t)
	f.addParacetamol(t)
	_, err := f.orch.Checkout(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.orch.CollectPayment(ctx, domain.PaymentCash, dec("160.50"))
	require.NoError(t, err)
	assert.NoError(t, f.backend.ctxErrs[0])
}

func TestCancel(t *testing.T) {
	t.Run("from draft created keeps cart", func(t *testing.T) {
		f := newFixture(t)
		f.addParacetamol(t)
		_, err := f.orch.Checkout(context.Background())
		require.NoError(t, err)

		status, err := f.orch.Cancel()
		require.NoError(t, err)
		assert.Equal(t, StateCancelled, status.State)
		assert.Len(t, f.cart.Lines(), 1)

		status, err = f.orch.Checkout(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "order-2", status.OrderID)
		assert.Equal(t, []string{"key-1", "key-2"}, f.backend.keys)
	})

	t.Run("from payment collecting", func(t *testing.T) {
		f := newFixture(t)
		f.addParacetamol(t)
		_, err := f.orch.Checkout(context.Background())
		require.NoError(t, err)
		_, err = f.orch.BeginPayment()
		require.NoError(t, err)

		status, err := f.orch.Cancel()
		require.NoError(t, err)
		assert.Equal(t, StateCancelled, status.State)
	})

	t.Run("from idle", func(t *testing.T) {
		f := newFixture(t)
		status, err := f.orch.Cancel()
		require.NoError(t, err)
		assert.Equal(t, StateCancelled, status.State)
	})

	t.Run("not after completion", func(t *testing.T) {
		f := newFixture(t)
		f.addParacetamol(t)
		_, err := f.orch.Checkout(context.Background())
		require.NoError(t, err)
		_, err = f.orch.CollectPayment(context.Background(), domain.PaymentCash, dec("161"))
		require.NoError(t, err)

		_, err = f.orch.Cancel()
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Equal(t, StateCompleted, f.orch.Status().State)
	})
}

func TestReset(t *testing.T) {
	f := newFixture(t)
	f.addParacetamol(t)
	_, err := f.orch.Checkout(context.Background())
	require.NoError(t, err)

	_, err = f.orch.Reset()
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.orch.CollectPayment(context.Background(), domain.PaymentDebitCard, dec("170"))
	require.NoError(t, err)

	status, err := f.orch.Reset()
	require.NoError(t, err)
	assert.Equal(t, StateIdle, status.State)
	assert.Empty(t, status.OrderID)
	assert.True(t, status.ChangeAmount.IsZero())
}

func TestBeginPayment_RequiresDraft(t *testing.T) {
	f := newFixture(t)
	_, err := f.orch.BeginPayment()
	assert.ErrorIs(t, err, ErrInvalidTransition)
}
