package dronetour

// GenerateRequest - client payload for a drone tour submission. The source
// must be a stored image URL on the deployment's own storage host.
type GenerateRequest struct {
	ImageURL     string `json:"imageUrl"`
	CustomPrompt string `json:"customPrompt,omitempty"`
}

// GenerateResponse - accepted submission payload. The operation name is the
// token the client polls with.
type GenerateResponse struct {
	VideoOperationName string `json:"videoOperationName"`
	CreditsRemaining   int    `json:"credits_remaining"`
}

// StatusResponse - poll outcome payload.
type StatusResponse struct {
	Done     bool   `json:"done"`
	VideoURL string `json:"videoUrl,omitempty"`
	Error    string `json:"error,omitempty"`
}

// MaxCustomPromptLen - upper bound on the free-text instruction.
const MaxCustomPromptLen = 500

// VideoDurationSec - fixed clip length requested from the video model.
const VideoDurationSec = 8
