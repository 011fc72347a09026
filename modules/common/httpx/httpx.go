// Package httpx holds the small HTTP surface shared by every handler:
// JSON responses, the pipeline error to status mapping, and request
// identity extraction.
package httpx

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/kaiquenogueira/dream-space-sub000/modules/pipeline"
)

// WriteJSON - serialize v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("⚠️  [HTTP] Failed to write response: %v", err)
	}
}

// WriteError - map a pipeline error onto its HTTP status and body. Credit and
// plan errors carry credits_remaining so the client can render the balance
// without a follow-up call.
func WriteError(w http.ResponseWriter, err error) {
	var insufficientErr *pipeline.InsufficientCreditsError
	var planErr *pipeline.PlanLimitError
	var validationErr *pipeline.ValidationError

	switch {
	case errors.Is(err, pipeline.ErrUnauthorized):
		WriteJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"error": "Authentication required",
		})
	case errors.As(err, &insufficientErr):
		WriteJSON(w, http.StatusForbidden, map[string]interface{}{
			"error":             "Insufficient credits",
			"credits_remaining": insufficientErr.Balance,
		})
	case errors.As(err, &planErr):
		WriteJSON(w, http.StatusForbidden, map[string]interface{}{
			"error":             planErr.Reason,
			"credits_remaining": planErr.Balance,
		})
	case errors.Is(err, pipeline.ErrRateLimited):
		WriteJSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"error": "Too many requests, please slow down",
		})
	case errors.As(err, &validationErr):
		WriteJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": validationErr.Reason,
		})
	case errors.Is(err, pipeline.ErrInvalidInput):
		WriteJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": "Invalid request",
		})
	case errors.Is(err, pipeline.ErrForbidden):
		WriteJSON(w, http.StatusForbidden, map[string]interface{}{
			"error": "Access denied",
		})
	case errors.Is(err, pipeline.ErrNotFound):
		WriteJSON(w, http.StatusNotFound, map[string]interface{}{
			"error": "Not found",
		})
	default:
		log.Printf("❌ [HTTP] Internal error: %v", err)
		WriteJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": "Generation failed, your credits were not charged",
		})
	}
}

// BearerToken - extract the bearer token from the Authorization header.
// Returns "" when absent or malformed.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// ClientIP - the caller address for rate limit keying, honoring the proxy
// chain header when present.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if comma := strings.Index(forwarded, ","); comma >= 0 {
			return strings.TrimSpace(forwarded[:comma])
		}
		return strings.TrimSpace(forwarded)
	}
	host := r.RemoteAddr
	if colon := strings.LastIndex(host, ":"); colon >= 0 {
		host = host[:colon]
	}
	return host
}
