package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusDraft     OrderStatus = "draft"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
)

// PaymentMethod is a closed set; the zero value is not a valid method.
type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "cash"
	PaymentCreditCard   PaymentMethod = "credit_card"
	PaymentDebitCard    PaymentMethod = "debit_card"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
	PaymentPromptPay    PaymentMethod = "promptpay"
)

var paymentMethods = []PaymentMethod{
	PaymentCash,
	PaymentCreditCard,
	PaymentDebitCard,
	PaymentBankTransfer,
	PaymentPromptPay,
}

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	for _, m := range paymentMethods {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown payment method %q", s)
}

func (m PaymentMethod) Valid() bool {
	_, err := ParsePaymentMethod(string(m))
	return err == nil
}

func (m PaymentMethod) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("unknown payment method %q", string(m))
	}
	return []byte(m), nil
}

func (m *PaymentMethod) UnmarshalText(text []byte) error {
	parsed, err := ParsePaymentMethod(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

type SalesOrderItem struct {
	ID                string          `json:"id"`
	ProductID         string          `json:"product_id"`
	Quantity          int             `json:"quantity"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	DiscountAmount    decimal.Decimal `json:"discount_amount"`
	LineTotal         decimal.Decimal `json:"line_total"`
	VATAmount         decimal.Decimal `json:"vat_amount"`
	PriceBeforeVAT    decimal.Decimal `json:"price_before_vat"`
	PriceIncludingVAT decimal.Decimal `json:"price_including_vat"`
}

type SalesOrder struct {
	ID            string           `json:"id"`
	OrderNumber   string           `json:"order_number"`
	CustomerID    string           `json:"customer_id,omitempty"`
	Subtotal      decimal.Decimal  `json:"subtotal"`
	TaxAmount     decimal.Decimal  `json:"tax_amount"`
	TotalAmount   decimal.Decimal  `json:"total_amount"`
	PaymentMethod *PaymentMethod   `json:"payment_method"`
	PaymentStatus PaymentStatus    `json:"payment_status"`
	PaidAmount    decimal.Decimal  `json:"paid_amount"`
	ChangeAmount  decimal.Decimal  `json:"change_amount"`
	Status        OrderStatus      `json:"status"`
	Items         []SalesOrderItem `json:"items"`
	CreatedAt     time.Time        `json:"created_at"`
	CompletedAt   *time.Time       `json:"completed_at,omitempty"`
}
