package api

import (
	"fmt"
	"net/http"
)

type SystemHandler struct {
	Auth      Authorizer
	TestMode  bool
	TestEmail string
}

func (h *SystemHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, `{"status":"ok","service":"talentmail"}`)
}

func (h *SystemHandler) VersionHandler(version, buildTime string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"version":"%s","buildTime":"%s"}`, version, buildTime)
	}
}

type statusResponse struct {
	Status     string  `json:"status"`
	Service    string  `json:"service"`
	Version    string  `json:"version"`
	TestMode   bool    `json:"test_mode"`
	TestEmail  *string `json:"test_email"`
	Authorized bool    `json:"jobadder_authorized"`
	Message    string  `json:"message"`
}

// StatusHandler reports authorization and test mode for operators.
func (h *SystemHandler) StatusHandler(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := statusResponse{
			Status:     "running",
			Service:    "talentmail",
			Version:    version,
			TestMode:   h.TestMode,
			Authorized: h.Auth != nil && h.Auth.IsAuthorized(r.Context()),
		}
		if h.TestMode {
			email := h.TestEmail
			resp.TestEmail = &email
		}
		switch {
		case !resp.Authorized:
			resp.Message = "Please complete JobAdder authorization at /auth/jobadder"
		case h.TestMode:
			resp.Message = "TEST MODE: emails will only be sent to " + h.TestEmail
		default:
			resp.Message = "Ready to send job alerts"
		}
		writeJSON(w, resp, http.StatusOK)
	}
}
