package redesign

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/kaiquenogueira/dream-space-sub000/modules/common/httpx"
	"github.com/kaiquenogueira/dream-space-sub000/modules/common/utils"
	"github.com/kaiquenogueira/dream-space-sub000/modules/pipeline"
)

// Handler - HTTP boundary for the synchronous image generation path.
type Handler struct {
	pipeline *pipeline.Pipeline
}

// NewHandler - create a redesign handler.
func NewHandler(p *pipeline.Pipeline) *Handler {
	return &Handler{pipeline: p}
}

// HandleGenerate - POST /api/redesign/generate
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

	mode := pipeline.Mode(req.GenerationMode)
	if req.GenerationMode == "" {
		mode = pipeline.ModeRedesign
	}
	if !mode.Valid() || mode.IsVideo() {
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": "Unsupported generation mode",
		})
		return
	}
	if !ValidStyle(req.Style) {
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": "Unknown style",
		})
		return
	}
	if len(req.CustomPrompt) > MaxCustomPromptLen {
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": "Custom prompt too long",
		})
		return
	}

	pipelineReq := pipeline.ImageRequest{
		Token:    httpx.BearerToken(r),
		ClientIP: httpx.ClientIP(r),
		Mode:     mode,
		Prompt:   BuildPrompt(mode, req.Style, req.CustomPrompt),
		ImageURL: req.ImageURL,
	}
	if req.ImageBase64 != "" {
		data, mimeType, derr := utils.DecodeImagePayload(req.ImageBase64)
		if derr != nil {
			httpx.WriteJSON(w, http.StatusBadRequest, map[string]interface{}{
				"error": "Invalid image payload",
			})
			return
		}
		pipelineReq.ImageData = data
		pipelineReq.ImageMime = mimeType
	}

	log.Printf("🏠 [Redesign] Generation request (mode: %s, style: %s)", mode, req.Style)

	result, err := h.pipeline.GenerateImage(r.Context(), pipelineReq)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, GenerateResponse{
		Result:           result.SignedURL,
		StoragePath:      result.StoragePath,
		CreditsRemaining: result.Balance,
		IsCompressed:     result.IsCompressed,
	})
}
