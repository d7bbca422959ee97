package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/garnizeh/talentmail/internal/models"
)

// HistoryReader lists the audit trail of saved snapshots.
type HistoryReader interface {
	ListStateHistory(ctx context.Context, c models.Campaign, limit int) ([]models.StateHistory, error)
}

type HistoryHandler struct {
	history HistoryReader
}

func NewHistoryHandler(h HistoryReader) *HistoryHandler {
	return &HistoryHandler{history: h}
}

// List serves GET /api/{campaign}/history?limit=N.
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSON(w, errorResponse{Error: "Not Found", Message: "state history is not kept by this backend"}, http.StatusNotFound)
		return
	}

	c := models.Campaign(mux.Vars(r)["campaign"])
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, errorResponse{Error: "Bad Request", Message: "invalid limit"}, http.StatusBadRequest)
			return
		}
		limit = min(n, 500)
	}

	rows, err := h.history.ListStateHistory(r.Context(), c, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if rows == nil {
		rows = []models.StateHistory{}
	}
	writeJSON(w, map[string]any{"success": true, "history": rows}, http.StatusOK)
}
