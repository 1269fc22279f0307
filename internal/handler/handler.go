// Package handler exposes the HTTP API: catalog read-back, order creation
// and editing, and inventory log reconciliation.
package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/brewpos/brewpos/internal/domain/catalog"
	"github.com/brewpos/brewpos/internal/domain/inventory"
	"github.com/brewpos/brewpos/internal/domain/order"
)

// Handler serves the JSON API, delegating business logic to the order
// service and the domain repositories.
type Handler struct {
	catalog catalog.Repository
	orders  *order.Service
	logs    inventory.LogReader
	metrics *Metrics
}

// NewHandler constructs a Handler with the required domain dependencies.
// metrics may be nil to disable instrument recording.
func NewHandler(catalogRepo catalog.Repository, orders *order.Service, logs inventory.LogReader, metrics *Metrics) *Handler {
	return &Handler{
		catalog: catalogRepo,
		orders:  orders,
		logs:    logs,
		metrics: metrics,
	}
}

// Routes registers the API endpoints on mux. auth wraps the mutating order
// routes; pass nil to leave them open (tests).
func (h *Handler) Routes(mux *http.ServeMux, auth func(http.Handler) http.Handler) {
	protect := func(fn http.HandlerFunc) http.Handler {
		if auth == nil {
			return fn
		}
		return auth(fn)
	}

	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("GET /api/products/{id}", h.GetProduct)
	mux.Handle("POST /api/orders", protect(h.PlaceOrder))
	mux.HandleFunc("GET /api/orders/{id}", h.GetOrder)
	mux.Handle("PUT /api/orders/{id}/items", protect(h.EditOrder))
	mux.HandleFunc("GET /api/inventory/{kind}/{id}/logs", h.ListInventoryLogs)
}

// writeJSON writes an encoded jx payload with the given status code.
func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
