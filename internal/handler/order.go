package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/brewpos/brewpos/internal/domain/inventory"
	"github.com/brewpos/brewpos/internal/domain/order"
	"github.com/brewpos/brewpos/internal/domain/pricing"
)

// orderItemRequest is one line of an inbound create/edit order request.
type orderItemRequest struct {
	ProductID                    string   `json:"product_id"`
	Quantity                     int      `json:"quantity"`
	SelectedOptionIDs            []string `json:"selected_option_ids"`
	SelectedOptionalComponentIDs []string `json:"selected_optional_component_ids"`
	Notes                        string   `json:"notes"`
}

type placeOrderRequest struct {
	Items         []orderItemRequest `json:"items"`
	PaymentMethod string             `json:"payment_method"`
	CustomerName  string             `json:"customer_name"`
}

type editOrderRequest struct {
	Items []orderItemRequest `json:"items"`
}

// PlaceOrder handles POST /api/orders.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorBody(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	o, err := h.orders.PlaceOrder(r.Context(), order.PlaceOrderRequest{
		Items:         toLineRequests(req.Items),
		PaymentMethod: req.PaymentMethod,
		CustomerName:  req.CustomerName,
	})
	if err != nil {
		h.recordFailure(r, err)
		writeError(w, r, err)
		return
	}

	h.metrics.orderCreated(r.Context())
	trace.SpanFromContext(r.Context()).SetAttributes(
		attribute.String("order.id", o.ID),
		attribute.Int64("order.number", o.Number),
	)

	var e jx.Encoder
	encodeOrder(&e, o)
	writeJSON(w, http.StatusCreated, &e)
}

// recordFailure counts stock-conflict rejections; other errors only surface
// through the response and the logs.
func (h *Handler) recordFailure(r *http.Request, err error) {
	var stockErr *inventory.InsufficientStockError
	if errors.As(err, &stockErr) {
		h.metrics.stockConflict(r.Context(), string(stockErr.Kind))
	}
}

// GetOrder handles GET /api/orders/{id}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeOrder(&e, o)
	writeJSON(w, http.StatusOK, &e)
}

// EditOrder handles PUT /api/orders/{id}/items: the reverse-then-reapply
// item replacement for pending orders.
func (h *Handler) EditOrder(w http.ResponseWriter, r *http.Request) {
	var req editOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorBody(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	o, err := h.orders.EditOrder(r.Context(), r.PathValue("id"), toLineRequests(req.Items))
	if err != nil {
		h.recordFailure(r, err)
		writeError(w, r, err)
		return
	}

	h.metrics.orderEdited(r.Context())

	var e jx.Encoder
	encodeOrder(&e, o)
	writeJSON(w, http.StatusOK, &e)
}

func toLineRequests(items []orderItemRequest) []pricing.LineRequest {
	out := make([]pricing.LineRequest, len(items))
	for i, item := range items {
		out[i] = pricing.LineRequest{
			ProductID:           item.ProductID,
			Quantity:            item.Quantity,
			SelectedOptionIDs:   item.SelectedOptionIDs,
			SelectedOptionalIDs: item.SelectedOptionalComponentIDs,
			Notes:               item.Notes,
		}
	}
	return out
}
