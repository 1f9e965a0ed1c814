// Package checkout turns a cart into a completed sale in two backend
// calls: draft creation, then payment completion.
package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/pharmacy-pos/internal/cart"
	"github.com/joao-fontenele/pharmacy-pos/internal/domain"
	"github.com/joao-fontenele/pharmacy-pos/internal/pricing"
)

var meter = otel.Meter("pos/checkout")

// Cart is the part of the cart store checkout needs. Hold blocks cart
// mutations from the draft request until Release or Settle.
type Cart interface {
	Hold() cart.Snapshot
	Release()
	Settle()
}

type Status struct {
	State         State                 `json:"state"`
	OrderID       string                `json:"order_id,omitempty"`
	OrderNumber   string                `json:"order_number,omitempty"`
	TotalAmount   decimal.Decimal       `json:"total_amount"`
	PaymentMethod *domain.PaymentMethod `json:"payment_method,omitempty"`
	PaidAmount    decimal.Decimal       `json:"paid_amount"`
	ChangeAmount  decimal.Decimal       `json:"change_amount"`
	LastError     string                `json:"last_error,omitempty"`
}

// Orchestrator owns the checkout state machine of one terminal. Network
// calls run without the lock held; the in-flight states reject a second
// concurrent Checkout or CollectPayment.
type Orchestrator struct {
	cart    Cart
	backend SalesBackend
	logger  *slog.Logger
	newKey  func() string

	drafts      metric.Int64Counter
	completions metric.Int64Counter
	failures    metric.Int64Counter

	mu          sync.Mutex
	state       State
	orderID     string
	orderNumber string
	total       decimal.Decimal
	method      *domain.PaymentMethod
	paid        decimal.Decimal
	change      decimal.Decimal
	lastErr     string

	// Idempotency key of the last failed draft attempt and the cart
	// revision it was issued for.
	retryKey      string
	retryRevision uint64
}

type Option func(*Orchestrator)

// WithKeyGenerator replaces the idempotency key source.
func WithKeyGenerator(fn func() string) Option {
	return func(o *Orchestrator) {
		o.newKey = fn
	}
}

func NewOrchestrator(c Cart, backend SalesBackend, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cart:    c,
		backend: backend,
		logger:  logger,
		newKey:  uuid.NewString,
		state:   StateIdle,
	}
	for _, opt := range opts {
		opt(o)
	}

	o.drafts = o.counter("pos.checkout.drafts", "Draft orders created")
	o.completions = o.counter("pos.checkout.completions", "Sales completed")
	o.failures = o.counter("pos.checkout.failures", "Backend calls that failed during checkout")
	return o
}

func (o *Orchestrator) counter(name, description string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		o.logger.Warn("failed to create counter", "name", name, "error", err)
	}
	return c
}

func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status()
}

func (o *Orchestrator) status() Status {
	return Status{
		State:         o.state,
		OrderID:       o.orderID,
		OrderNumber:   o.orderNumber,
		TotalAmount:   o.total,
		PaymentMethod: o.method,
		PaidAmount:    o.paid,
		ChangeAmount:  o.change,
		LastError:     o.lastErr,
	}
}

// Checkout snapshots the cart and creates a draft order. On failure the
// previous state and the cart are left as they were; retrying with an
// unchanged cart reuses the idempotency key of the failed attempt.
func (o *Orchestrator) Checkout(ctx context.Context) (Status, error) {
	o.mu.Lock()
	if o.state.InFlight() {
		o.mu.Unlock()
		return Status{}, ErrCheckoutInProgress
	}
	if !CanTransition(o.state, StateDraftPending) {
		err := transitionError(o.state, StateDraftPending)
		o.mu.Unlock()
		return Status{}, err
	}

	snap := o.cart.Hold()
	if snap.Empty() {
		o.cart.Release()
		o.mu.Unlock()
		return Status{}, ErrCartEmpty
	}

	key := o.retryKey
	if key == "" || o.retryRevision != snap.Revision {
		key = o.newKey()
	}
	o.retryKey, o.retryRevision = key, snap.Revision

	prev := o.state
	o.state = StateDraftPending
	o.mu.Unlock()

	draft, err := o.backend.CreateDraft(ctx, draftRequest(snap), key)

	o.mu.Lock()
	defer o.mu.Unlock()

	if err != nil {
		o.state = prev
		o.cart.Release()
		o.lastErr = err.Error()
		o.record(ctx, o.failures, attribute.String("phase", "draft"))
		o.logger.Error("failed to create draft order", "error", err, "idempotency_key", key)
		return o.status(), fmt.Errorf("create draft order: %w", err)
	}

	// The backend rejects any payment below its own total.
	total := pricing.Round(snap.Totals.Total)
	if !draft.TotalAmount.Equal(total) {
		o.logger.Warn("draft total differs from cart total",
			"order_id", draft.ID, "cart_total", total.StringFixed(2), "draft_total", draft.TotalAmount.String())
		total = decimal.Max(total, draft.TotalAmount)
	}

	o.retryKey = ""
	o.state = StateDraftCreated
	o.orderID = draft.ID
	o.orderNumber = draft.OrderNumber
	o.total = total
	o.method = nil
	o.paid = decimal.Zero
	o.change = decimal.Zero
	o.lastErr = ""
	o.record(ctx, o.drafts)

	o.logger.Info("draft order created", "order_id", draft.ID, "total", total.StringFixed(2))
	return o.status(), nil
}

// BeginPayment marks that the cashier is entering payment details.
func (o *Orchestrator) BeginPayment() (Status, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state == StatePaymentCollecting {
		return o.status(), nil
	}
	if o.state != StateDraftCreated {
		return o.status(), transitionError(o.state, StatePaymentCollecting)
	}
	o.state = StatePaymentCollecting
	return o.status(), nil
}

// CollectPayment completes the held draft order. Validation failures make
// no backend call and leave the state untouched. Once the completion call
// is issued it runs to the end even if ctx is cancelled.
func (o *Orchestrator) CollectPayment(ctx context.Context, method domain.PaymentMethod, paid decimal.Decimal) (Status, error) {
	o.mu.Lock()
	if o.state.InFlight() {
		o.mu.Unlock()
		return Status{}, ErrCheckoutInProgress
	}
	if o.state != StateDraftCreated && o.state != StatePaymentCollecting {
		err := transitionError(o.state, StateCompleting)
		o.mu.Unlock()
		return Status{}, err
	}
	if !method.Valid() {
		o.mu.Unlock()
		return Status{}, fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, string(method))
	}
	if paid.LessThan(o.total) {
		err := fmt.Errorf("%w: paid %s, due %s", ErrInsufficientPayment,
			paid.StringFixed(2), o.total.StringFixed(2))
		o.mu.Unlock()
		return Status{}, err
	}

	orderID := o.orderID
	o.state = StateCompleting
	o.mu.Unlock()

	completed, err := o.backend.Complete(context.WithoutCancel(ctx), orderID, CompleteRequest{
		PaymentMethod: method,
		PaidAmount:    Money(paid),
	})

	o.mu.Lock()
	defer o.mu.Unlock()

	if err != nil {
		o.state = StatePaymentCollecting
		o.lastErr = err.Error()
		o.record(ctx, o.failures, attribute.String("phase", "complete"))
		o.logger.Error("failed to complete order", "error", err, "order_id", orderID)
		return o.status(), fmt.Errorf("complete order %s: %w", orderID, err)
	}

	o.state = StateCompleted
	o.method = &method
	o.paid = paid
	o.change = paid.Sub(o.total)
	o.lastErr = ""
	if !completed.ChangeAmount.Equal(pricing.Round(o.change)) {
		o.logger.Warn("backend change differs from local change",
			"order_id", orderID, "local", o.change.StringFixed(2), "backend", completed.ChangeAmount.String())
	}
	o.cart.Settle()
	o.record(ctx, o.completions, attribute.String("payment_method", string(method)))

	o.logger.Info("sale completed", "order_id", orderID, "payment_method", method, "change", o.change.StringFixed(2))
	return o.status(), nil
}

// Cancel abandons the checkout. The cart is kept; a draft order already
// created on the backend is left open.
func (o *Orchestrator) Cancel() (Status, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.InFlight() {
		return o.status(), ErrCheckoutInProgress
	}
	if !CanTransition(o.state, StateCancelled) {
		return o.status(), transitionError(o.state, StateCancelled)
	}

	if o.orderID != "" {
		o.logger.Warn("checkout cancelled, draft order left open", "order_id", o.orderID)
	}
	o.state = StateCancelled
	o.retryKey = ""
	o.cart.Release()
	return o.status(), nil
}

// Reset returns a finished checkout to idle for the next sale.
func (o *Orchestrator) Reset() (Status, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state == StateIdle {
		return o.status(), nil
	}
	if !o.state.IsTerminal() {
		return o.status(), transitionError(o.state, StateIdle)
	}

	o.state = StateIdle
	o.orderID = ""
	o.orderNumber = ""
	o.total = decimal.Zero
	o.method = nil
	o.paid = decimal.Zero
	o.change = decimal.Zero
	o.lastErr = ""
	return o.status(), nil
}

func (o *Orchestrator) record(ctx context.Context, c metric.Int64Counter, attrs ...attribute.KeyValue) {
	if c == nil {
		return
	}
	c.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func draftRequest(snap cart.Snapshot) DraftRequest {
	items := make([]DraftItem, len(snap.Lines))
	for i, l := range snap.Lines {
		item := DraftItem{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: Money(l.UnitPrice),
		}
		if !l.DiscountAmount.IsZero() {
			item.DiscountAmount = Money(l.DiscountAmount)
		}
		items[i] = item
	}
	return DraftRequest{
		CustomerID: snap.CustomerID,
		Items:      items,
	}
}
