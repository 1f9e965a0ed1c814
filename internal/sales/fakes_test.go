package sales

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/pharmacy-pos/internal/domain"
)

const (
	paracetamolID = "11111111-1111-1111-1111-111111111111"
	amoxicillinID = "22222222-2222-2222-2222-222222222222"
)

type memoryRepository struct {
	mu     sync.Mutex
	orders map[string]*domain.SalesOrder
	keys   map[string]string
	err    error
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		orders: map[string]*domain.SalesOrder{},
		keys:   map[string]string{},
	}
}

func (m *memoryRepository) CreateDraft(_ context.Context, order *domain.SalesOrder, key string) (*domain.SalesOrder, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return nil, false, m.err
	}
	if id, ok := m.keys[key]; ok && key != "" {
		stored := *m.orders[id]
		return &stored, false, nil
	}
	stored := *order
	m.orders[order.ID] = &stored
	if key != "" {
		m.keys[key] = order.ID
	}
	return order, true, nil
}

func (m *memoryRepository) GetByID(_ context.Context, id string) (*domain.SalesOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	order, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	copied := *order
	return &copied, nil
}

func (m *memoryRepository) Complete(_ context.Context, order *domain.SalesOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.orders[order.ID]
	if !ok || stored.Status != domain.OrderStatusDraft {
		return ErrOrderCompleted
	}
	copied := *order
	m.orders[order.ID] = &copied
	return nil
}

type staticCatalog map[string]domain.Product

func (c staticCatalog) GetByIDs(_ context.Context, ids []string) (map[string]domain.Product, error) {
	out := map[string]domain.Product{}
	for _, id := range ids {
		if p, ok := c[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.OrderCompletedEvent
	err    error
}

func (p *recordingPublisher) PublishOrderCompleted(_ context.Context, event domain.OrderCompletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

var errBrokerDown = errors.New("broker down")

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func catalog() staticCatalog {
	return staticCatalog{
		paracetamolID: {ID: paracetamolID, SKU: "PARA-500", SellingPrice: dec("75"), IsVATApplicable: true, VATRate: dec("7")},
		amoxicillinID: {ID: amoxicillinID, SKU: "AMOX-250", SellingPrice: dec("120"), IsVATApplicable: false},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
