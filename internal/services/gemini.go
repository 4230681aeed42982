package services

import (
	"context"
	"fmt"
	"log"

	"google.golang.org/genai"
)

// ---------------------------------------------------------------------------
// Gemini image synthesis
// Generates one still image per scene from its image prompt via the Google
// Gen AI SDK. Portrait framing is requested in the prompt; the segment
// renderer loops the still for the scene's full duration.
// ---------------------------------------------------------------------------

const geminiImageModel = "gemini-2.5-flash-image-preview"

type GeminiService struct {
	apiKey string
	model  string
}

func NewGeminiService(apiKey string) *GeminiService {
	return &GeminiService{
		apiKey: apiKey,
		model:  geminiImageModel,
	}
}

// GenerateImage renders a scene's image prompt into PNG/JPEG bytes.
func (s *GeminiService) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	if prompt == "" {
		return nil, fmt.Errorf("image prompt is empty")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  s.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	fullPrompt := fmt.Sprintf("%s\n\nRender as a single high-detail image composed for portrait 9:16 framing. No text, captions, or watermarks in the image.", prompt)

	log.Printf("[Gemini] Generating image (model=%s, promptLen=%d)", s.model, len(fullPrompt))

	resp, err := client.Models.GenerateContent(ctx, s.model, genai.Text(fullPrompt), &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	})
	if err != nil {
		return nil, fmt.Errorf("image generation failed: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("no candidates in image response")
	}

	for _, part := range resp.Candidates[0].Content.Parts {
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			log.Printf("[Gemini] Image generated (%d bytes, %s)", len(part.InlineData.Data), part.InlineData.MIMEType)
			return part.InlineData.Data, nil
		}
	}

	return nil, fmt.Errorf("image response contained no inline image data")
}
