// Package pricing computes line and cart money totals. All arithmetic is
// exact decimal; rounding to the currency minor unit happens only through
// Round, at display and wire boundaries.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/pharmacy-pos/internal/domain"
)

// MinorUnits is the number of decimal places of the currency.
const MinorUnits = 2

var hundred = decimal.NewFromInt(100)

type Line struct {
	Quantity      int
	UnitPrice     decimal.Decimal
	Discount      decimal.Decimal
	TaxApplicable bool
	TaxRate       decimal.Decimal
}

type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// Gross is quantity × unit price, before discount.
func Gross(quantity int, unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

// LineTotal is quantity × unit price − discount, clamped at zero.
func LineTotal(quantity int, unitPrice, discount decimal.Decimal) decimal.Decimal {
	total := Gross(quantity, unitPrice).Sub(discount)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

func (l Line) Total() decimal.Decimal {
	return LineTotal(l.Quantity, l.UnitPrice, l.Discount)
}

// EffectiveRate is the percentage applied to the line: zero when the line
// is not taxable, the store default when the line carries no rate.
func EffectiveRate(l Line) decimal.Decimal {
	if !l.TaxApplicable {
		return decimal.Zero
	}
	if l.TaxRate.IsZero() {
		return domain.DefaultVATRate
	}
	return l.TaxRate
}

func LineTax(l Line) decimal.Decimal {
	rate := EffectiveRate(l)
	if rate.IsZero() {
		return decimal.Zero
	}
	return l.Total().Mul(rate).Div(hundred)
}

func Subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Total())
	}
	return sum
}

func Tax(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(LineTax(l))
	}
	return sum
}

func Total(lines []Line) decimal.Decimal {
	return Subtotal(lines).Add(Tax(lines))
}

// Summarize computes all three cart figures in one pass.
func Summarize(lines []Line) Totals {
	subtotal, tax := decimal.Zero, decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.Total())
		tax = tax.Add(LineTax(l))
	}
	return Totals{Subtotal: subtotal, Tax: tax, Total: subtotal.Add(tax)}
}

// Round rounds to the currency minor unit, half away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(MinorUnits)
}

func (t Totals) Rounded() Totals {
	return Totals{
		Subtotal: Round(t.Subtotal),
		Tax:      Round(t.Tax),
		Total:    Round(t.Total),
	}
}

// VATBreakdown splits a VAT-exclusive line total into the amounts a tax
// report needs.
type VATBreakdown struct {
	VATAmount         decimal.Decimal
	PriceBeforeVAT    decimal.Decimal
	PriceIncludingVAT decimal.Decimal
}

func Breakdown(l Line) VATBreakdown {
	net := l.Total()
	vat := LineTax(l)
	return VATBreakdown{
		VATAmount:         vat,
		PriceBeforeVAT:    net,
		PriceIncludingVAT: net.Add(vat),
	}
}
