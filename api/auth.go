package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const stateAudience = "jobadder-oauth"

// OAuthClient is the ATS authorization surface.
type OAuthClient interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) error
}

// AuthHandler runs the ATS authorization-code flow. The state parameter is a
// short-lived HS256 token so callbacks can be verified without server storage.
type AuthHandler struct {
	client   OAuthClient
	secret   []byte
	stateTTL time.Duration
	now      func() time.Time
}

func NewAuthHandler(client OAuthClient, stateSecret string, stateTTL time.Duration) *AuthHandler {
	if stateTTL <= 0 {
		stateTTL = 10 * time.Minute
	}
	return &AuthHandler{client: client, secret: []byte(stateSecret), stateTTL: stateTTL, now: time.Now}
}

func (h *AuthHandler) signState() (string, error) {
	now := h.now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Audience:  jwt.ClaimStrings{stateAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(h.stateTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
}

func (h *AuthHandler) verifyState(state string) error {
	if state == "" {
		return errors.New("missing state")
	}
	_, err := jwt.ParseWithClaims(state, &jwt.RegisteredClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return h.secret, nil
	}, jwt.WithAudience(stateAudience), jwt.WithTimeFunc(h.now))
	return err
}

// Authorize redirects the operator to the ATS consent page.
func (h *AuthHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	state, err := h.signState()
	if err != nil {
		http.Error(w, "Error signing state", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, h.client.AuthCodeURL(state), http.StatusFound)
}

// Callback exchanges the authorization code and stores the tokens.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		http.Error(w, "Authorization failed: "+e, http.StatusBadRequest)
		return
	}
	if err := h.verifyState(q.Get("state")); err != nil {
		logger.Warn("oauth state rejected", slog.Any("err", err))
		http.Error(w, "Invalid authorization state", http.StatusBadRequest)
		return
	}
	code := q.Get("code")
	if code == "" {
		http.Error(w, "No authorization code received", http.StatusBadRequest)
		return
	}

	if err := h.client.Exchange(r.Context(), code); err != nil {
		logger.Error("oauth exchange failed", slog.Any("err", err))
		http.Error(w, "Authorization failed: "+err.Error(), http.StatusBadGateway)
		return
	}
	logger.Info("jobadder authorized")
	http.Redirect(w, r, "/", http.StatusFound)
}
