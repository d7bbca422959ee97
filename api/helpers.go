package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/garnizeh/talentmail/internal/ats"
	"github.com/garnizeh/talentmail/internal/campaign"
	"github.com/garnizeh/talentmail/internal/preview"
	"github.com/garnizeh/talentmail/internal/upstream"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encode response", slog.Any("err", err))
	}
}

// statusFor maps workflow and upstream errors to HTTP status codes.
func statusFor(err error) int {
	var ue *upstream.Error
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, campaign.ErrAuth), errors.Is(err, ats.ErrNotAuthorized):
		return http.StatusUnauthorized
	case errors.Is(err, campaign.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, campaign.ErrConfig):
		return http.StatusBadRequest
	case errors.Is(err, campaign.ErrNoMaterial), errors.Is(err, campaign.ErrNoRecipients),
		errors.Is(err, preview.ErrNoData), errors.Is(err, preview.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &ue):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeResult(w http.ResponseWriter, r campaign.Result) {
	writeJSON(w, r, statusFor(r.Err))
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, errorResponse{Error: http.StatusText(statusFor(err)), Message: err.Error()}, statusFor(err))
}

// pathID parses a positive integer path variable.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	return id, err == nil && id > 0
}
