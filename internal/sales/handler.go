package sales

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
)

const idempotencyHeader = "Idempotency-Key"

type Handler struct {
	service  *Service
	validate *validator.Validate
	logger   *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// HandleCreate answers 201 for a new draft and 200 when the
// Idempotency-Key names a draft created earlier.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateDraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	order, created, err := h.service.CreateDraft(r.Context(), req, r.Header.Get(idempotencyHeader))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	h.writeJSON(w, status, order)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	order, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	var req CompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	order, err := h.service.Complete(r.Context(), id, req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

var details = map[error]string{
	ErrOrderNotFound:        "Order not found",
	ErrOrderCompleted:       "Order already completed",
	ErrOrderCancelled:       "Order is cancelled",
	ErrInsufficientPayment:  "Insufficient payment",
	ErrInvalidPaymentMethod: "Invalid payment method",
	ErrInvalidDiscount:      "Discount must be between zero and the line amount",
	ErrInvalidPrice:         "Unit price must not be negative",
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var unavailable *ProductUnavailableError
	switch {
	case errors.Is(err, ErrOrderNotFound):
		h.writeError(w, http.StatusNotFound, details[ErrOrderNotFound])
	case errors.As(err, &unavailable):
		h.writeError(w, http.StatusBadRequest, "Product "+unavailable.ProductID+" is not available")
	default:
		for sentinel, detail := range details {
			if errors.Is(err, sentinel) {
				h.writeError(w, http.StatusBadRequest, detail)
				return
			}
		}
		h.logger.Error("sales request failed", "error", err)
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
	h.writeJSON(w, status, map[string]string{"detail": message})
}
