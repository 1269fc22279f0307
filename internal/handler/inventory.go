package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/jx"

	"github.com/brewpos/brewpos/internal/domain/inventory"
)

const defaultLogLimit = 50

// ListInventoryLogs handles GET /api/inventory/{kind}/{id}/logs, the
// reconciliation read over the append-only audit trail.
func (h *Handler) ListInventoryLogs(w http.ResponseWriter, r *http.Request) {
	kind := inventory.ItemKind(r.PathValue("kind"))
	if kind != inventory.ItemProduct && kind != inventory.ItemComponent {
		writeErrorBody(w, http.StatusBadRequest, "kind must be product or component", nil)
		return
	}

	limit := defaultLogLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 1000 {
			writeErrorBody(w, http.StatusBadRequest, "limit must be between 1 and 1000", nil)
			return
		}
		limit = n
	}

	entries, err := h.logs.ListLogs(r.Context(), kind, r.PathValue("id"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	e.Arr(func(e *jx.Encoder) {
		for _, entry := range entries {
			encodeLogEntry(e, entry)
		}
	})
	writeJSON(w, http.StatusOK, &e)
}
