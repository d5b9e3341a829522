package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hautor/secretos/internal/api/middleware"
	"github.com/hautor/secretos/internal/exchange"
	"github.com/hautor/secretos/internal/identity"
)

// sessionCookie is the long-lived anonymous session token. It carries
// no account; it only keeps one browser's identity stable across tabs.
const sessionCookie = "secretos_session"

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	svc *exchange.Service
}

// NewHandler creates a new Handler over the exchange service.
func NewHandler(svc *exchange.Service) *Handler {
	return &Handler{svc: svc}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// signals collects the identity signals for a request, minting the
// session cookie when the client does not have one yet.
func (h *Handler) signals(w http.ResponseWriter, r *http.Request) identity.Signals {
	token := ""
	if c, err := r.Cookie(sessionCookie); err == nil {
		token = c.Value
	}
	if token == "" {
		token = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    token,
			Path:     "/",
			MaxAge:   int((365 * 24 * time.Hour).Seconds()),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}

	return identity.Signals{
		SessionToken: token,
		RemoteIP:     middleware.RealIP(r),
		UserAgent:    r.UserAgent(),
	}
}
