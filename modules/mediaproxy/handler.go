package mediaproxy

import (
	"io"
	"log"
	"net/http"
	"net/url"

	"github.com/kaiquenogueira/dream-space-sub000/modules/common/config"
	"github.com/kaiquenogueira/dream-space-sub000/modules/common/httpx"
	"github.com/kaiquenogueira/dream-space-sub000/modules/pipeline"
)

// allowedHost - the only upstream this proxy will fetch from. Resolved video
// URIs point at the model provider's file endpoint, which requires the server
// API key the client must never see.
const allowedHost = "generativelanguage.googleapis.com"

// Handler - authenticated streaming proxy for backend-hosted media.
type Handler struct {
	auth   pipeline.TokenVerifier
	apiKey string
	client *http.Client
}

// NewHandler - create a media proxy handler.
func NewHandler(auth pipeline.TokenVerifier) *Handler {
	return &Handler{
		auth:   auth,
		apiKey: config.GetConfig().GeminiAPIKey,
		client: http.DefaultClient,
	}
}

// HandleProxy - GET /api/media/proxy?uri=...&type=video
func (h *Handler) HandleProxy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.WriteJSON(w, http.StatusMethodNotAllowed, map[string]interface{}{
			"error": "Method not allowed",
		})
		return
	}

	if _, err := h.auth.Verify(r.Context(), httpx.BearerToken(r)); err != nil {
		httpx.WriteJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"error": "Authentication required",
		})
		return
	}

	rawURI := r.URL.Query().Get("uri")
	if rawURI == "" {
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": "uri is required",
		})
		return
	}

	target, err := url.Parse(rawURI)
	if err != nil || target.Scheme != "https" || target.Host != allowedHost {
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": "uri host is not allowed",
		})
		return
	}

	upstreamReq, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target.String(), nil)
	if err != nil {
		httpx.WriteJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to build upstream request",
		})
		return
	}
	upstreamReq.Header.Set("x-goog-api-key", h.apiKey)

	resp, err := h.client.Do(upstreamReq)
	if err != nil {
		log.Printf("❌ [MediaProxy] Upstream fetch failed: %v", err)
		httpx.WriteJSON(w, http.StatusBadGateway, map[string]interface{}{
			"error": "Failed to fetch media",
		})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("❌ [MediaProxy] Upstream returned %d for %s", resp.StatusCode, target.Host)
		httpx.WriteJSON(w, http.StatusBadGateway, map[string]interface{}{
			"error": "Upstream media unavailable",
		})
		return
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		if r.URL.Query().Get("type") == "video" {
			contentType = "video/mp4"
		} else {
			contentType = "application/octet-stream"
		}
	}
	w.Header().Set("Content-Type", contentType)
	if length := resp.Header.Get("Content-Length"); length != "" {
		w.Header().Set("Content-Length", length)
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		log.Printf("⚠️  [MediaProxy] Stream interrupted: %v", err)
	}
}
