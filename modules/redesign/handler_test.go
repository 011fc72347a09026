package redesign

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandleGenerateRejectsBeforePipeline(t *testing.T) {
	// These paths return before the orchestrator is touched; the nil pipeline
	// would panic otherwise.
	h := NewHandler(nil)

	post := func(body string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		h.HandleGenerate(rr, httptest.NewRequest(http.MethodPost, "/api/redesign/generate", strings.NewReader(body)))
		return rr
	}

	t.Run("wrong method", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.HandleGenerate(rr, httptest.NewRequest(http.MethodGet, "/api/redesign/generate", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, post("not json").Code)
	})

	t.Run("unknown mode", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, post(`{"imageBase64":"aGk=","generationMode":"sketch"}`).Code)
	})

	t.Run("video mode rejected on the image endpoint", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, post(`{"imageBase64":"aGk=","generationMode":"drone-tour"}`).Code)
	})

	t.Run("unknown style", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, post(`{"imageBase64":"aGk=","style":"vaporwave"}`).Code)
	})

	t.Run("oversized custom prompt", func(t *testing.T) {
		body := `{"imageBase64":"aGk=","customPrompt":"` + strings.Repeat("a", MaxCustomPromptLen+1) + `"}`
		assert.Equal(t, http.StatusBadRequest, post(body).Code)
	})

	t.Run("broken base64", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, post(`{"imageBase64":"%%%"}`).Code)
	})
}
