package cart

import (
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/pharmacy-pos/internal/domain"
	"github.com/joao-fontenele/pharmacy-pos/internal/pricing"
)

// Line is one product entry. Product is a snapshot taken when the line was
// first added and is never re-fetched.
type Line struct {
	ProductID      string          `json:"product_id"`
	Product        domain.Product  `json:"product"`
	Quantity       int             `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	LineTotal      decimal.Decimal `json:"line_total"`
}

func (l Line) pricingLine() pricing.Line {
	return pricing.Line{
		Quantity:      l.Quantity,
		UnitPrice:     l.UnitPrice,
		Discount:      l.DiscountAmount,
		TaxApplicable: l.Product.IsVATApplicable,
		TaxRate:       l.Product.VATRate,
	}
}

func (l *Line) recompute() {
	l.LineTotal = pricing.LineTotal(l.Quantity, l.UnitPrice, l.DiscountAmount)
}

// normalize rounds money carried over from storage to the minor unit.
func (l *Line) normalize() {
	l.UnitPrice = pricing.Round(l.UnitPrice)
	l.DiscountAmount = pricing.Round(l.DiscountAmount)
	if validateDiscount(l.Quantity, l.UnitPrice, l.DiscountAmount) != nil {
		l.DiscountAmount = pricing.Gross(l.Quantity, l.UnitPrice)
	}
	l.recompute()
}

// Snapshot is a consistent copy of the cart taken under a single lock.
type Snapshot struct {
	Lines      []Line
	CustomerID string
	Revision   uint64
	Totals     pricing.Totals
}

func (s Snapshot) Empty() bool {
	return len(s.Lines) == 0
}

func pricingLines(lines []Line) []pricing.Line {
	out := make([]pricing.Line, len(lines))
	for i, l := range lines {
		out[i] = l.pricingLine()
	}
	return out
}

func validateDiscount(quantity int, unitPrice, discount decimal.Decimal) error {
	if discount.IsNegative() {
		return ErrInvalidDiscount
	}
	if discount.GreaterThan(pricing.Gross(quantity, unitPrice)) {
		return ErrInvalidDiscount
	}
	return nil
}
