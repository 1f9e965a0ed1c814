package pos

import (
	"net/http"

	"github.com/joao-fontenele/pharmacy-pos/internal/telemetry"
)

func Routes(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /cart", telemetry.WithHTTPRoute(h.HandleGetCart))
	mux.HandleFunc("DELETE /cart", telemetry.WithHTTPRoute(h.HandleClearCart))
	mux.HandleFunc("POST /cart/items", telemetry.WithHTTPRoute(h.HandleAddItem))
	mux.HandleFunc("DELETE /cart/items/{productId}", telemetry.WithHTTPRoute(h.HandleRemoveItem))
	mux.HandleFunc("PATCH /cart/items/{productId}/quantity", telemetry.WithHTTPRoute(h.HandleUpdateQuantity))
	mux.HandleFunc("PATCH /cart/items/{productId}/discount", telemetry.WithHTTPRoute(h.HandleUpdateDiscount))
	mux.HandleFunc("PUT /cart/customer", telemetry.WithHTTPRoute(h.HandleSetCustomer))

	mux.HandleFunc("GET /checkout", telemetry.WithHTTPRoute(h.HandleCheckoutStatus))
	mux.HandleFunc("POST /checkout", telemetry.WithHTTPRoute(h.HandleCheckout))
	mux.HandleFunc("POST /checkout/payment/begin", telemetry.WithHTTPRoute(h.HandleBeginPayment))
	mux.HandleFunc("POST /checkout/payment", telemetry.WithHTTPRoute(h.HandleCollectPayment))
	mux.HandleFunc("POST /checkout/cancel", telemetry.WithHTTPRoute(h.HandleCancelCheckout))
	mux.HandleFunc("POST /checkout/reset", telemetry.WithHTTPRoute(h.HandleResetCheckout))

	mux.HandleFunc("GET /inventory/products", telemetry.WithHTTPRoute(h.HandleProductSearch))
	mux.HandleFunc("GET /inventory/products/{id}", telemetry.WithHTTPRoute(h.HandleProductSearch))
	return mux
}
