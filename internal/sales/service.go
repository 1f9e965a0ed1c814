package sales

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/pharmacy-pos/internal/domain"
	"github.com/joao-fontenele/pharmacy-pos/internal/pricing"
)

type Repository interface {
	// CreateDraft stores order unless idempotencyKey already names an
	// order, in which case that order is returned with created false.
	CreateDraft(ctx context.Context, order *domain.SalesOrder, idempotencyKey string) (stored *domain.SalesOrder, created bool, err error)
	GetByID(ctx context.Context, id string) (*domain.SalesOrder, error)
	// Complete persists the payment fields of a draft order. It returns
	// ErrOrderCompleted when the order is no longer a draft.
	Complete(ctx context.Context, order *domain.SalesOrder) error
}

type ProductLookup interface {
	GetByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
}

type EventPublisher interface {
	PublishOrderCompleted(ctx context.Context, event domain.OrderCompletedEvent) error
}

type DraftItem struct {
	ProductID      string           `json:"product_id" validate:"required"`
	Quantity       int              `json:"quantity" validate:"gt=0"`
	UnitPrice      *decimal.Decimal `json:"unit_price"`
	DiscountAmount decimal.Decimal  `json:"discount_amount"`
}

type CreateDraftRequest struct {
	CustomerID string      `json:"customer_id" validate:"omitempty,max=64"`
	Items      []DraftItem `json:"items" validate:"required,min=1,dive"`
}

type CompleteRequest struct {
	PaymentMethod string          `json:"payment_method" validate:"required"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
}

type Service struct {
	repo      Repository
	products  ProductLookup
	publisher EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewService wires the sales workflow. publisher may be nil, in which case
// completions are not announced.
func NewService(repo Repository, products ProductLookup, publisher EventPublisher, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		products:  products,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func orderNumber(at time.Time) string {
	return fmt.Sprintf("SO-%s-%s", at.Format("20060102"), uuid.NewString()[:8])
}

// CreateDraft prices req against the catalog and stores a draft order.
// Tax applicability and rate always come from the catalog; the request may
// override the unit price and carry a per-line discount.
func (s *Service) CreateDraft(ctx context.Context, req CreateDraftRequest, idempotencyKey string) (*domain.SalesOrder, bool, error) {
	ids := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		ids = append(ids, item.ProductID)
	}

	products, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, false, fmt.Errorf("look up products: %w", err)
	}

	now := s.now()
	order := &domain.SalesOrder{
		ID:            uuid.NewString(),
		OrderNumber:   orderNumber(now),
		CustomerID:    req.CustomerID,
		PaymentStatus: domain.PaymentStatusPending,
		Status:        domain.OrderStatusDraft,
		CreatedAt:     now,
		Items:         make([]domain.SalesOrderItem, 0, len(req.Items)),
	}

	lines := make([]pricing.Line, 0, len(req.Items))
	for _, item := range req.Items {
		product, ok := products[item.ProductID]
		if !ok {
			return nil, false, &ProductUnavailableError{ProductID: item.ProductID}
		}

		unitPrice := product.SellingPrice
		if item.UnitPrice != nil {
			unitPrice = *item.UnitPrice
		}
		if unitPrice.IsNegative() {
			return nil, false, ErrInvalidPrice
		}
		if item.DiscountAmount.IsNegative() || item.DiscountAmount.GreaterThan(pricing.Gross(item.Quantity, unitPrice)) {
			return nil, false, ErrInvalidDiscount
		}

		line := pricing.Line{
			Quantity:      item.Quantity,
			UnitPrice:     unitPrice,
			Discount:      item.DiscountAmount,
			TaxApplicable: product.IsVATApplicable,
			TaxRate:       product.VATRate,
		}
		lines = append(lines, line)

		vat := pricing.Breakdown(line)
		order.Items = append(order.Items, domain.SalesOrderItem{
			ID:                uuid.NewString(),
			ProductID:         item.ProductID,
			Quantity:          item.Quantity,
			UnitPrice:         pricing.Round(unitPrice),
			DiscountAmount:    pricing.Round(item.DiscountAmount),
			LineTotal:         pricing.Round(line.Total()),
			VATAmount:         pricing.Round(vat.VATAmount),
			PriceBeforeVAT:    pricing.Round(vat.PriceBeforeVAT),
			PriceIncludingVAT: pricing.Round(vat.PriceIncludingVAT),
		})
	}

	totals := pricing.Summarize(lines).Rounded()
	order.Subtotal = totals.Subtotal
	order.TaxAmount = totals.Tax
	order.TotalAmount = totals.Total

	stored, created, err := s.repo.CreateDraft(ctx, order, idempotencyKey)
	if err != nil {
		return nil, false, fmt.Errorf("store draft order: %w", err)
	}

	if created {
		s.logger.Info("draft order created", "order_id", stored.ID, "order_number", stored.OrderNumber, "total", stored.TotalAmount.StringFixed(2))
	} else {
		s.logger.Info("draft order replayed", "order_id", stored.ID, "idempotency_key", idempotencyKey)
	}
	return stored, created, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.SalesOrder, error) {
	if uuid.Validate(id) != nil {
		return nil, ErrOrderNotFound
	}
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// Complete records payment for a draft order and announces the sale.
func (s *Service) Complete(ctx context.Context, id string, req CompleteRequest) (*domain.SalesOrder, error) {
	method, err := domain.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		return nil, ErrInvalidPaymentMethod
	}

	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch order.Status {
	case domain.OrderStatusCompleted:
		return nil, ErrOrderCompleted
	case domain.OrderStatusCancelled:
		return nil, ErrOrderCancelled
	}

	if req.PaidAmount.LessThan(order.TotalAmount) {
		return nil, ErrInsufficientPayment
	}

	completedAt := s.now()
	order.PaymentMethod = &method
	order.PaidAmount = pricing.Round(req.PaidAmount)
	order.ChangeAmount = order.PaidAmount.Sub(order.TotalAmount)
	order.PaymentStatus = domain.PaymentStatusPaid
	order.Status = domain.OrderStatusCompleted
	order.CompletedAt = &completedAt

	if err := s.repo.Complete(ctx, order); err != nil {
		return nil, err
	}

	s.logger.Info("order completed", "order_id", order.ID, "payment_method", method, "change", order.ChangeAmount.StringFixed(2))

	if s.publisher != nil {
		event := domain.OrderCompletedEvent{
			OrderID:       order.ID,
			OrderNumber:   order.OrderNumber,
			CustomerID:    order.CustomerID,
			Items:         order.Items,
			TotalAmount:   order.TotalAmount,
			PaymentMethod: method,
			PaidAmount:    order.PaidAmount,
			ChangeAmount:  order.ChangeAmount,
			Timestamp:     completedAt,
		}
		if err := s.publisher.PublishOrderCompleted(ctx, event); err != nil {
			s.logger.Error("failed to publish order completed event", "error", err, "order_id", order.ID)
		}
	}

	return order, nil
}
