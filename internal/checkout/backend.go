package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/pharmacy-pos/internal/domain"
	"github.com/joao-fontenele/pharmacy-pos/internal/pricing"
)

const idempotencyHeader = "Idempotency-Key"

// SalesBackend is the server side of the two-phase checkout.
type SalesBackend interface {
	CreateDraft(ctx context.Context, req DraftRequest, idempotencyKey string) (*DraftOrder, error)
	Complete(ctx context.Context, orderID string, req CompleteRequest) (*CompletedOrder, error)
}

type DraftItem struct {
	ProductID      string      `json:"product_id"`
	Quantity       int         `json:"quantity"`
	UnitPrice      json.Number `json:"unit_price"`
	DiscountAmount json.Number `json:"discount_amount,omitempty"`
}

type DraftRequest struct {
	CustomerID string      `json:"customer_id,omitempty"`
	Items      []DraftItem `json:"items"`
}

type DraftOrder struct {
	ID          string             `json:"id"`
	OrderNumber string             `json:"order_number"`
	Status      domain.OrderStatus `json:"status"`
	Subtotal    decimal.Decimal    `json:"subtotal"`
	TaxAmount   decimal.Decimal    `json:"tax_amount"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
}

type CompleteRequest struct {
	PaymentMethod domain.PaymentMethod `json:"payment_method"`
	PaidAmount    json.Number          `json:"paid_amount"`
}

type CompletedOrder struct {
	ID           string             `json:"id"`
	Status       domain.OrderStatus `json:"status"`
	TotalAmount  decimal.Decimal    `json:"total_amount"`
	PaidAmount   decimal.Decimal    `json:"paid_amount"`
	ChangeAmount decimal.Decimal    `json:"change_amount"`
}

// Money renders an amount for the wire, rounded to the currency minor unit.
func Money(d decimal.Decimal) json.Number {
	return json.Number(pricing.Round(d).StringFixed(pricing.MinorUnits))
}

type HTTPBackend struct {
	baseURL string
	client  *http.Client
}

func NewHTTPBackend(baseURL string, client *http.Client) *HTTPBackend {
	return &HTTPBackend{
		baseURL: baseURL,
		client:  client,
	}
}

func (b *HTTPBackend) CreateDraft(ctx context.Context, req DraftRequest, idempotencyKey string) (*DraftOrder, error) {
	var order DraftOrder
	headers := map[string]string{}
	if idempotencyKey != "" {
		headers[idempotencyHeader] = idempotencyKey
	}
	if err := b.post(ctx, "/sales/orders", req, headers, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (b *HTTPBackend) Complete(ctx context.Context, orderID string, req CompleteRequest) (*CompletedOrder, error) {
	var order CompletedOrder
	path := fmt.Sprintf("/sales/orders/%s/complete", url.PathEscape(orderID))
	if err := b.post(ctx, path, req, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (b *HTTPBackend) post(ctx context.Context, path string, body any, headers map[string]string, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return &BackendError{Detail: err.Error(), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return &BackendError{StatusCode: resp.StatusCode, Detail: "failed to read response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &BackendError{StatusCode: resp.StatusCode, Detail: errorDetail(resp.StatusCode, payload)}
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return &BackendError{StatusCode: resp.StatusCode, Detail: "malformed response", Err: err}
	}
	return nil
}

// errorDetail extracts the server message from {"detail": ...} or
// {"error": ...} bodies.
func errorDetail(status int, payload []byte) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
		Error  string          `json:"error"`
	}
	if err := json.Unmarshal(payload, &body); err == nil {
		var detail string
		if len(body.Detail) > 0 && json.Unmarshal(body.Detail, &detail) == nil && detail != "" {
			return detail
		}
		if len(body.Detail) > 0 && string(body.Detail) != "null" {
			return string(body.Detail)
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return http.StatusText(status)
}
