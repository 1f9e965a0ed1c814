package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderCompletedEvent struct {
	OrderID       string           `json:"order_id"`
	OrderNumber   string           `json:"order_number"`
	CustomerID    string           `json:"customer_id,omitempty"`
	Items         []SalesOrderItem `json:"items"`
	TotalAmount   decimal.Decimal  `json:"total_amount"`
	PaymentMethod PaymentMethod    `json:"payment_method"`
	PaidAmount    decimal.Decimal  `json:"paid_amount"`
	ChangeAmount  decimal.Decimal  `json:"change_amount"`
	Timestamp     time.Time        `json:"timestamp"`
}
