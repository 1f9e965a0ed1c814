package cart

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/pharmacy-pos/internal/domain"
	"github.com/joao-fontenele/pharmacy-pos/internal/pricing"
)

// Store is the cart aggregate of a single terminal. Every mutation is
// validated before it touches state and is written back to Storage
// afterwards on a best-effort basis. While held by a checkout, mutations
// fail with ErrCartHeld.
type Store struct {
	mu         sync.Mutex
	lines      []Line
	customerID string
	revision   uint64
	held       bool

	writer *writer
	logger *slog.Logger
}

// Open rehydrates a store from storage. A missing, corrupt or
// newer-than-supported payload yields an empty cart.
func Open(ctx context.Context, storage Storage, logger *slog.Logger) *Store {
	s := &Store{
		logger: logger,
		writer: newWriter(storage, logger),
	}

	data, err := storage.Load(ctx)
	switch {
	case errors.Is(err, ErrNotFound):
		logger.Info("no persisted cart, starting empty")
	case err != nil:
		logger.Warn("failed to load persisted cart, starting empty", "error", err)
	default:
		state, err := decode(data)
		if err != nil {
			logger.Warn("discarding unreadable persisted cart", "error", err)
			break
		}
		s.lines = state.Items
		for i := range s.lines {
			s.lines[i].normalize()
		}
		s.customerID = state.CustomerID
		logger.Info("cart restored", "lines", len(s.lines), "customer_id", s.customerID)
	}

	go s.writer.run()
	return s
}

// Close flushes the pending write and stops the background writer.
func (s *Store) Close() {
	s.writer.close()
}

// AddItem rounds unitPrice and discount to the currency minor unit before
// storing them.
func (s *Store) AddItem(product domain.Product, quantity int, unitPrice, discount decimal.Decimal) error {
	unitPrice, discount = pricing.Round(unitPrice), pricing.Round(discount)
	if product.ID == "" || unitPrice.IsNegative() {
		return ErrInvalidProduct
	}
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	if discount.IsNegative() {
		return ErrInvalidDiscount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.held {
		return ErrCartHeld
	}
	if i := s.indexOf(product.ID); i >= 0 {
		// Merge keeps the existing price snapshot and discount.
		line := &s.lines[i]
		line.Quantity += quantity
		line.recompute()
		s.commit()
		return nil
	}

	if err := validateDiscount(quantity, unitPrice, discount); err != nil {
		return err
	}

	line := Line{
		ProductID:      product.ID,
		Product:        product,
		Quantity:       quantity,
		UnitPrice:      unitPrice,
		DiscountAmount: discount,
	}
	line.recompute()
	s.lines = append(s.lines, line)
	s.commit()
	return nil
}

// RemoveItem is a no-op when the product is absent.
func (s *Store) RemoveItem(productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.held {
		return ErrCartHeld
	}
	i := s.indexOf(productID)
	if i < 0 {
		return nil
	}
	s.lines = append(s.lines[:i], s.lines[i+1:]...)
	s.commit()
	return nil
}

func (s *Store) UpdateQuantity(productID string, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.held {
		return ErrCartHeld
	}
	i := s.indexOf(productID)
	if i < 0 {
		return ErrLineNotFound
	}
	line := &s.lines[i]
	if err := validateDiscount(quantity, line.UnitPrice, line.DiscountAmount); err != nil {
		return err
	}
	line.Quantity = quantity
	line.recompute()
	s.commit()
	return nil
}

func (s *Store) UpdateDiscount(productID string, discount decimal.Decimal) error {
	discount = pricing.Round(discount)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.held {
		return ErrCartHeld
	}
	i := s.indexOf(productID)
	if i < 0 {
		return ErrLineNotFound
	}
	line := &s.lines[i]
	if err := validateDiscount(line.Quantity, line.UnitPrice, discount); err != nil {
		return err
	}
	line.DiscountAmount = discount
	line.recompute()
	s.commit()
	return nil
}

// SetCustomer attaches a customer; an empty id detaches.
func (s *Store) SetCustomer(customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.held {
		return ErrCartHeld
	}
	s.customerID = customerID
	s.commit()
	return nil
}

func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.held {
		return ErrCartHeld
	}
	s.clear()
	return nil
}

// Hold snapshots the cart and blocks mutations until Release or Settle.
// The snapshot and the hold are taken under the same lock.
func (s *Store) Hold() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.held = true
	return s.snapshot()
}

func (s *Store) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.held = false
}

// Settle empties a held cart and releases it once the sale is recorded.
func (s *Store) Settle() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clear()
	s.held = false
}

func (s *Store) Held() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.held
}

func (s *Store) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLines()
}

func (s *Store) CustomerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.customerID
}

// Revision increases on every successful mutation.
func (s *Store) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}

func (s *Store) Subtotal() decimal.Decimal {
	return s.Totals().Subtotal
}

func (s *Store) Tax() decimal.Decimal {
	return s.Totals().Tax
}

func (s *Store) Total() decimal.Decimal {
	return s.Totals().Total
}

func (s *Store) Totals() pricing.Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return pricing.Summarize(pricingLines(s.lines))
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Store) snapshot() Snapshot {
	return Snapshot{
		Lines:      s.copyLines(),
		CustomerID: s.customerID,
		Revision:   s.revision,
		Totals:     pricing.Summarize(pricingLines(s.lines)),
	}
}

func (s *Store) indexOf(productID string) int {
	for i := range s.lines {
		if s.lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func (s *Store) copyLines() []Line {
	out := make([]Line, len(s.lines))
	copy(out, s.lines)
	return out
}

func (s *Store) clear() {
	s.lines = nil
	s.customerID = ""
	s.commit()
}

// commit must be called with mu held.
func (s *Store) commit() {
	s.revision++

	data, err := encode(s.lines, s.customerID)
	if err != nil {
		s.logger.Error("failed to encode cart", "error", err)
		return
	}
	s.writer.submit(data)
}
