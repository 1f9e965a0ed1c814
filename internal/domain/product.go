package domain

import "github.com/shopspring/decimal"

// DefaultVATRate is the store-wide VAT percentage used when a product
// carries no rate of its own.
var DefaultVATRate = decimal.NewFromInt(7)

type Product struct {
	ID              string          `json:"id"`
	SKU             string          `json:"sku"`
	Name            string          `json:"name"`
	NameEN          string          `json:"name_en,omitempty"`
	Barcode         string          `json:"barcode,omitempty"`
	SellingPrice    decimal.Decimal `json:"selling_price"`
	IsVATApplicable bool            `json:"is_vat_applicable"`
	VATRate         decimal.Decimal `json:"vat_rate"`
}
