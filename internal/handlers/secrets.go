package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hautor/secretos/internal/exchange"
	"github.com/hautor/secretos/internal/models"
	"github.com/hautor/secretos/internal/store"
	"github.com/hautor/secretos/internal/validate"
)

// SubmitRequest represents the text submission request body.
type SubmitRequest struct {
	Text string `json:"text"`
}

// ExchangeResponse represents the outcome of a submit or poll.
// For audio matches the payload is referenced, not inlined.
type ExchangeResponse struct {
	Matched  bool   `json:"matched"`
	Kind     string `json:"kind,omitempty"`
	Text     string `json:"text,omitempty"`
	AudioURL string `json:"audio_url,omitempty"`
}

// Submit handles a text secret submission.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	sig := h.signals(w, r)

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := h.svc.SubmitText(r.Context(), sig, req.Text)
	if err != nil {
		h.exchangeError(w, err)
		return
	}

	h.JSON(w, http.StatusCreated, toResponse(result))
}

// SubmitAudio handles an audio secret submission. The body is the raw
// audio payload; size bounds are enforced by the router's body limit.
func (h *Handler) SubmitAudio(w http.ResponseWriter, r *http.Request) {
	sig := h.signals(w, r)

	data, err := io.ReadAll(r.Body)
	if err != nil {
		h.Error(w, http.StatusRequestEntityTooLarge, "audio payload too large")
		return
	}

	result, err := h.svc.SubmitAudio(r.Context(), sig, data)
	if err != nil {
		h.exchangeError(w, err)
		return
	}

	h.JSON(w, http.StatusCreated, toResponse(result))
}

// Poll hands back an eligible secret without submitting one.
func (h *Handler) Poll(w http.ResponseWriter, r *http.Request) {
	sig := h.signals(w, r)

	result, err := h.svc.Poll(r.Context(), sig)
	if err != nil {
		h.exchangeError(w, err)
		return
	}

	h.JSON(w, http.StatusOK, toResponse(result))
}

// Audio serves an immutable audio payload by reference. Delivered
// audio never changes, so clients may cache it forever.
func (h *Handler) Audio(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")

	data, err := h.svc.FetchAudio(r.Context(), ref)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.Error(w, http.StatusNotFound, "audio not found")
			return
		}
		h.Error(w, http.StatusServiceUnavailable, "temporarily unavailable")
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Write(data)
}

// exchangeError maps service errors to HTTP responses: validation
// failures are actionable, store failures are opaque.
func (h *Handler) exchangeError(w http.ResponseWriter, err error) {
	var verr *validate.ValidationError
	if errors.As(err, &verr) {
		h.Error(w, http.StatusUnprocessableEntity, verr.Reason)
		return
	}
	if errors.Is(err, exchange.ErrStoreUnavailable) {
		h.Error(w, http.StatusServiceUnavailable, "temporarily unavailable")
		return
	}
	h.Error(w, http.StatusInternalServerError, "internal error")
}

func toResponse(result exchange.Result) ExchangeResponse {
	if !result.Matched {
		return ExchangeResponse{Matched: false}
	}

	resp := ExchangeResponse{
		Matched: true,
		Kind:    string(result.Kind),
	}
	if result.Kind == models.KindAudio {
		resp.AudioURL = "/audio/" + result.AudioRef
	} else {
		resp.Text = result.Body
	}
	return resp
}
