package pos

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/pharmacy-pos/internal/cart"
	"github.com/joao-fontenele/pharmacy-pos/internal/checkout"
	"github.com/joao-fontenele/pharmacy-pos/internal/domain"
	"github.com/joao-fontenele/pharmacy-pos/internal/pricing"
)

type Handler struct {
	cart     *cart.Store
	checkout *checkout.Orchestrator
	products *ServiceProxy
	validate *validator.Validate
	logger   *slog.Logger
}

func NewHandler(store *cart.Store, orch *checkout.Orchestrator, products *ServiceProxy, logger *slog.Logger) *Handler {
	return &Handler{
		cart:     store,
		checkout: orch,
		products: products,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

type lineResponse struct {
	ProductID      string         `json:"product_id"`
	Product        domain.Product `json:"product"`
	Quantity       int            `json:"quantity"`
	UnitPrice      string         `json:"unit_price"`
	DiscountAmount string         `json:"discount_amount"`
	LineTotal      string         `json:"line_total"`
}

type cartResponse struct {
	Items      []lineResponse `json:"items"`
	CustomerID string         `json:"customer_id,omitempty"`
	Subtotal   string         `json:"subtotal"`
	Tax        string         `json:"tax"`
	Total      string         `json:"total"`
}

type statusResponse struct {
	State         checkout.State        `json:"state"`
	OrderID       string                `json:"order_id,omitempty"`
	OrderNumber   string                `json:"order_number,omitempty"`
	TotalAmount   string                `json:"total_amount"`
	PaymentMethod *domain.PaymentMethod `json:"payment_method,omitempty"`
	PaidAmount    string                `json:"paid_amount"`
	ChangeAmount  string                `json:"change_amount"`
	LastError     string                `json:"last_error,omitempty"`
}

func display(d decimal.Decimal) string {
	return pricing.Round(d).StringFixed(pricing.MinorUnits)
}

func newCartResponse(snap cart.Snapshot) cartResponse {
	items := make([]lineResponse, len(snap.Lines))
	for i, l := range snap.Lines {
		items[i] = lineResponse{
			ProductID:      l.ProductID,
			Product:        l.Product,
			Quantity:       l.Quantity,
			UnitPrice:      display(l.UnitPrice),
			DiscountAmount: display(l.DiscountAmount),
			LineTotal:      display(l.LineTotal),
		}
	}
	totals := snap.Totals.Rounded()
	return cartResponse{
		Items:      items,
		CustomerID: snap.CustomerID,
		Subtotal:   display(totals.Subtotal),
		Tax:        display(totals.Tax),
		Total:      display(totals.Total),
	}
}

func newStatusResponse(s checkout.Status) statusResponse {
	return statusResponse{
		State:         s.State,
		OrderID:       s.OrderID,
		OrderNumber:   s.OrderNumber,
		TotalAmount:   display(s.TotalAmount),
		PaymentMethod: s.PaymentMethod,
		PaidAmount:    display(s.PaidAmount),
		ChangeAmount:  display(s.ChangeAmount),
		LastError:     s.LastError,
	}
}

func (h *Handler) HandleGetCart(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, newCartResponse(h.cart.Snapshot()))
}

type addItemRequest struct {
	ProductID      string           `json:"product_id" validate:"required"`
	Product        domain.Product   `json:"product"`
	Quantity       int              `json:"quantity" validate:"min=1"`
	UnitPrice      *decimal.Decimal `json:"unit_price"`
	DiscountAmount decimal.Decimal  `json:"discount_amount"`
}

func (h *Handler) HandleAddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if !h.decode(w, r, &req) {
		return
	}

	product := req.Product
	if product.ID == "" {
		product.ID = req.ProductID
	}
	if product.ID != req.ProductID {
		h.writeError(w, http.StatusBadRequest, "product_id does not match product.id")
		return
	}

	unitPrice := product.SellingPrice
	if req.UnitPrice != nil {
		unitPrice = *req.UnitPrice
	}

	if err := h.cart.AddItem(product, req.Quantity, unitPrice, req.DiscountAmount); err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.logger.Info("item added", "product_id", product.ID, "quantity", req.Quantity)
	h.writeJSON(w, http.StatusOK, newCartResponse(h.cart.Snapshot()))
}

func (h *Handler) HandleRemoveItem(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("productId")
	if productID == "" {
		h.writeError(w, http.StatusBadRequest, "missing product id")
		return
	}

	if err := h.cart.RemoveItem(productID); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.logger.Info("item removed", "product_id", productID)
	h.writeJSON(w, http.StatusOK, newCartResponse(h.cart.Snapshot()))
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity" validate:"min=1"`
}

func (h *Handler) HandleUpdateQuantity(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("productId")
	var req updateQuantityRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.cart.UpdateQuantity(productID, req.Quantity); err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.logger.Info("quantity updated", "product_id", productID, "quantity", req.Quantity)
	h.writeJSON(w, http.StatusOK, newCartResponse(h.cart.Snapshot()))
}

type updateDiscountRequest struct {
	DiscountAmount decimal.Decimal `json:"discount_amount"`
}

func (h *Handler) HandleUpdateDiscount(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("productId")
	var req updateDiscountRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.cart.UpdateDiscount(productID, req.DiscountAmount); err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.logger.Info("discount updated", "product_id", productID, "discount", req.DiscountAmount.String())
	h.writeJSON(w, http.StatusOK, newCartResponse(h.cart.Snapshot()))
}

type setCustomerRequest struct {
	CustomerID string `json:"customer_id" validate:"omitempty,max=64"`
}

func (h *Handler) HandleSetCustomer(w http.ResponseWriter, r *http.Request) {
	var req setCustomerRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.cart.SetCustomer(req.CustomerID); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newCartResponse(h.cart.Snapshot()))
}

func (h *Handler) HandleClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.cart.Clear(); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.logger.Info("cart cleared")
	h.writeJSON(w, http.StatusOK, newCartResponse(h.cart.Snapshot()))
}

func (h *Handler) HandleCheckoutStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, newStatusResponse(h.checkout.Status()))
}

func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	status, err := h.checkout.Checkout(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, newStatusResponse(status))
}

func (h *Handler) HandleBeginPayment(w http.ResponseWriter, r *http.Request) {
	status, err := h.checkout.BeginPayment()
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newStatusResponse(status))
}

type collectPaymentRequest struct {
	PaymentMethod string          `json:"payment_method" validate:"required,oneof=cash credit_card debit_card bank_transfer promptpay"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
}

func (h *Handler) HandleCollectPayment(w http.ResponseWriter, r *http.Request) {
	var req collectPaymentRequest
	if !h.decode(w, r, &req) {
		return
	}

	method, err := domain.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	status, err := h.checkout.CollectPayment(r.Context(), method, req.PaidAmount)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newStatusResponse(status))
}

func (h *Handler) HandleCancelCheckout(w http.ResponseWriter, r *http.Request) {
	status, err := h.checkout.Cancel()
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newStatusResponse(status))
}

func (h *Handler) HandleResetCheckout(w http.ResponseWriter, r *http.Request) {
	status, err := h.checkout.Reset()
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newStatusResponse(status))
}

func (h *Handler) HandleProductSearch(w http.ResponseWriter, r *http.Request) {
	resp, err := h.products.ForwardRequest(r.Context(), r, r.URL.Path)
	if err != nil {
		h.logger.Error("failed to forward request", "error", err, "path", r.URL.Path)
		h.writeError(w, http.StatusBadGateway, "service unavailable")
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if contentType := resp.Header.Get("Content-Type"); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}

	w.WriteHeader(resp.StatusCode)

	h.logger.Info("request proxied", "method", r.Method, "path", r.URL.Path, "status", resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Error("failed to copy response body", "error", err)
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var backendErr *checkout.BackendError
	switch {
	case cart.IsValidation(err),
		errors.Is(err, checkout.ErrCartEmpty),
		errors.Is(err, checkout.ErrInvalidPaymentMethod):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, checkout.ErrInsufficientPayment):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, cart.ErrLineNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, cart.ErrCartHeld):
		h.writeError(w, http.StatusConflict, "checkout in progress, cancel it to edit the cart")
	case errors.Is(err, checkout.ErrCheckoutInProgress),
		errors.Is(err, checkout.ErrInvalidTransition):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &backendErr):
		h.writeError(w, http.StatusBadGateway, backendErr.Detail)
	default:
		h.logger.Error("unexpected error", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
