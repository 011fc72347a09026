package gemini

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"google.golang.org/genai"

	"github.com/kaiquenogueira/dream-space-sub000/modules/common/config"
	"github.com/kaiquenogueira/dream-space-sub000/modules/pipeline"
)

// Backend - generation backend on the Gemini API. Image edits run
// synchronously against the image model; drone tours run as long-lived Veo
// operations that the caller polls by operation name.
type Backend struct {
	client     *genai.Client
	imageModel string
	videoModel string
}

var _ pipeline.GenerationBackend = (*Backend)(nil)

// NewBackend - Gemini client from the configured API key.
func NewBackend(ctx context.Context) (*Backend, error) {
	cfg := config.GetConfig()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	log.Printf("✅ [Gemini] Client initialized (image: %s, video: %s)", cfg.GeminiImageModel, cfg.GeminiVideoModel)
	return &Backend{
		client:     client,
		imageModel: cfg.GeminiImageModel,
		videoModel: cfg.GeminiVideoModel,
	}, nil
}

// EditImage - one synchronous image-to-image call. Returns the raw bytes of
// the first inline image in the response (the image model emits PNG).
func (b *Backend) EditImage(ctx context.Context, prompt string, imageData []byte, mimeType string) ([]byte, error) {
	log.Printf("🎨 [Gemini] Image edit request (model: %s, input: %d bytes)", b.imageModel, len(imageData))

	parts := []*genai.Part{
		genai.NewPartFromText(prompt),
		genai.NewPartFromBytes(imageData, mimeType),
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	result, err := b.client.Models.GenerateContent(ctx, b.imageModel, contents, nil)
	if err != nil {
		return nil, classify(err)
	}

	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				log.Printf("✅ [Gemini] Image generated (%d bytes, %s)", len(part.InlineData.Data), part.InlineData.MIMEType)
				return part.InlineData.Data, nil
			}
		}
	}

	return nil, pipeline.ErrNoArtifact
}

// SubmitVideo - start a Veo generation and return its operation name.
func (b *Backend) SubmitVideo(ctx context.Context, prompt string, imageData []byte, mimeType string, durationSec int) (string, error) {
	log.Printf("🎬 [Gemini] Video generation request (model: %s, input: %d bytes, %ds)", b.videoModel, len(imageData), durationSec)

	image := &genai.Image{
		ImageBytes: imageData,
		MIMEType:   mimeType,
	}
	op, err := b.client.Models.GenerateVideos(ctx, b.videoModel, prompt, image, &genai.GenerateVideosConfig{
		DurationSeconds: genai.Ptr(int32(durationSec)),
	})
	if err != nil {
		return "", classify(err)
	}
	if op == nil || op.Name == "" {
		return "", fmt.Errorf("video submission returned no operation name")
	}

	log.Printf("✅ [Gemini] Video operation started: %s", op.Name)
	return op.Name, nil
}

// PollVideo - fetch the current state of a Veo operation.
func (b *Backend) PollVideo(ctx context.Context, operationName string) (*pipeline.VideoPoll, error) {
	op, err := b.client.Operations.GetVideosOperation(ctx, &genai.GenerateVideosOperation{Name: operationName}, nil)
	if err != nil {
		return nil, classify(err)
	}

	if !op.Done {
		return &pipeline.VideoPoll{Done: false}, nil
	}

	if op.Error != nil {
		msg := fmt.Sprintf("%v", op.Error["message"])
		log.Printf("❌ [Gemini] Video operation %s failed: %s", operationName, msg)
		return &pipeline.VideoPoll{Done: true, ErrorMessage: msg}, nil
	}

	if op.Response == nil || len(op.Response.GeneratedVideos) == 0 || op.Response.GeneratedVideos[0].Video == nil {
		return &pipeline.VideoPoll{Done: true, ErrorMessage: "operation finished without a video"}, nil
	}

	uri := op.Response.GeneratedVideos[0].Video.URI
	log.Printf("✅ [Gemini] Video operation %s complete: %s", operationName, uri)
	return &pipeline.VideoPoll{Done: true, VideoURI: uri}, nil
}

// classify - map upstream quota exhaustion to the dedicated sentinel so the
// caller can refund and surface it distinctly.
func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 || apiErr.Status == "RESOURCE_EXHAUSTED" {
			return fmt.Errorf("%w: %s", pipeline.ErrBackendQuota, apiErr.Message)
		}
		return fmt.Errorf("gemini request failed: %w", err)
	}

	msg := err.Error()
	if strings.Contains(msg, "RESOURCE_EXHAUSTED") || strings.Contains(msg, "429") || strings.Contains(strings.ToLower(msg), "quota") {
		return fmt.Errorf("%w: %v", pipeline.ErrBackendQuota, err)
	}
	return fmt.Errorf("gemini request failed: %w", err)
}
