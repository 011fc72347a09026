package dronetour

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/kaiquenogueira/dream-space-sub000/modules/common/httpx"
	"github.com/kaiquenogueira/dream-space-sub000/modules/pipeline"
)

// Handler - HTTP boundary for the asynchronous drone tour path.
type Handler struct {
	pipeline *pipeline.Pipeline
}

// NewHandler - create a drone tour handler.
func NewHandler(p *pipeline.Pipeline) *Handler {
	return &Handler{pipeline: p}
}

// HandleGenerate - POST /api/drone-tour/generate
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteJSON(w, http.StatusMethodNotAllowed, map[string]interface{}{
			"error": "Method not allowed",
		})
		return
	}

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": "Invalid JSON body",
		})
		return
	}
	if req.ImageURL == "" {
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": "imageUrl is required",
		})
		return
	}
	if len(req.CustomPrompt) > MaxCustomPromptLen {
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": "Custom prompt too long",
		})
		return
	}

	log.Printf("🚁 [DroneTour] Submission request")

	result, err := h.pipeline.StartDroneTour(r.Context(), pipeline.VideoRequest{
		Token:       httpx.BearerToken(r),
		ClientIP:    httpx.ClientIP(r),
		Prompt:      BuildPrompt(req.CustomPrompt),
		ImageURL:    req.ImageURL,
		DurationSec: VideoDurationSec,
	})
	if err != nil {
		httpx.WriteError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, GenerateResponse{
		VideoOperationName: result.OperationName,
		CreditsRemaining:   result.Balance,
	})
}

// HandleStatus - GET /api/drone-tour/status?operationName=...
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.WriteJSON(w, http.StatusMethodNotAllowed, map[string]interface{}{
			"error": "Method not allowed",
		})
		return
	}

	operationName := r.URL.Query().Get("operationName")
	if operationName == "" {
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": "operationName is required",
		})
		return
	}

	result, err := h.pipeline.PollDroneTour(r.Context(), httpx.BearerToken(r), operationName)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, StatusResponse{
		Done:     result.Done,
		VideoURL: result.VideoURL,
		Error:    result.ErrorMessage,
	})
}
