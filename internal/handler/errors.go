package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/brewpos/brewpos/internal/domain/catalog"
	"github.com/brewpos/brewpos/internal/domain/inventory"
	"github.com/brewpos/brewpos/internal/domain/order"
	"github.com/brewpos/brewpos/internal/domain/pricing"
)

// writeError maps a domain error to its HTTP response. Validation errors are
// 400/422, unknown references 404, stock and numbering conflicts 409, and
// anything else a generic retryable 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		nfErr    *catalog.NotFoundError
		iqErr    *order.InvalidQuantityError
		selErr   *pricing.OptionSelectionError
		stockErr *inventory.InsufficientStockError
	)

	switch {
	case errors.Is(err, order.ErrEmptyItems):
		writeErrorBody(w, http.StatusBadRequest, err.Error(), nil)
	case errors.As(err, &iqErr):
		writeErrorBody(w, http.StatusUnprocessableEntity, iqErr.Error(), nil)
	case errors.As(err, &selErr):
		writeErrorBody(w, http.StatusUnprocessableEntity, selErr.Error(), nil)
	case errors.As(err, &nfErr):
		writeErrorBody(w, http.StatusNotFound, nfErr.Error(), nil)
	case errors.Is(err, order.ErrNotFound):
		writeErrorBody(w, http.StatusNotFound, "order not found", nil)
	case errors.Is(err, order.ErrNotEditable):
		writeErrorBody(w, http.StatusConflict, "order is not editable", nil)
	case errors.As(err, &stockErr):
		writeErrorBody(w, http.StatusConflict, stockErr.Error(), func(e *jx.Encoder) {
			e.Field("item_kind", func(e *jx.Encoder) { e.Str(string(stockErr.Kind)) })
			e.Field("item_id", func(e *jx.Encoder) { e.Str(stockErr.ItemID) })
			e.Field("item_name", func(e *jx.Encoder) { e.Str(stockErr.ItemName) })
			e.Field("requested", func(e *jx.Encoder) { e.Str(stockErr.Requested.String()) })
			e.Field("available", func(e *jx.Encoder) { e.Str(stockErr.Available.String()) })
		})
	case errors.Is(err, order.ErrOrderNumberConflict):
		writeErrorBody(w, http.StatusConflict, "order number conflict, retry the request", nil)
	default:
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		writeErrorBody(w, http.StatusInternalServerError, "internal error, retry the request", nil)
	}
}

// writeErrorBody writes {code, message, ...extra} as the error response.
func writeErrorBody(w http.ResponseWriter, status int, message string, extra func(*jx.Encoder)) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Int(status) })
		e.Field("message", func(e *jx.Encoder) { e.Str(message) })
		if extra != nil {
			extra(e)
		}
	})
	writeJSON(w, status, &e)
}
