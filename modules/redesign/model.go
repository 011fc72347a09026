package redesign

// GenerateRequest - client payload for the synchronous image path. Exactly one
// of ImageBase64 and ImageURL is expected; GenerationMode defaults to
// "redesign" when empty.
type GenerateRequest struct {
	ImageBase64    string `json:"imageBase64,omitempty"`
	ImageURL       string `json:"imageUrl,omitempty"`
	Style          string `json:"style,omitempty"`
	CustomPrompt   string `json:"customPrompt,omitempty"`
	GenerationMode string `json:"generationMode,omitempty"`
}

// GenerateResponse - successful generation payload.
type GenerateResponse struct {
	Result           string `json:"result"`
	StoragePath      string `json:"storage_path"`
	CreditsRemaining int    `json:"credits_remaining"`
	IsCompressed     bool   `json:"is_compressed"`
}

// MaxCustomPromptLen - upper bound on the free-text instruction.
const MaxCustomPromptLen = 1000
