package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/bobarin/clipforge/internal/models"
)

type OpenAIService struct {
	client     *openai.Client
	sceneCount int
}

func NewOpenAIService(apiKey string, sceneCount int) *OpenAIService {
	return &OpenAIService{
		client:     openai.NewClient(apiKey),
		sceneCount: sceneCount,
	}
}

// sceneScript is the structured shape requested from the model.
type sceneScript struct {
	Scenes []scenePlan `json:"scenes"`
}

type scenePlan struct {
	ImagePrompt string `json:"image_prompt"`
	Narration   string `json:"narration"`
}

// GenerateScenes asks the script capability for a fixed-shape scene list
// about the subject in the given domain. The response must be JSON with a
// "scenes" array; each scene carries an image prompt and narration text.
// Scene-count validation happens at the pipeline boundary, where a mismatch
// is a validation failure rather than an upstream one.
func (s *OpenAIService) GenerateScenes(ctx context.Context, subject, domain string) ([]models.Scene, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: openai.GPT4oMini,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: buildScriptSystemPrompt(s.sceneCount),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf("Create a short-form video script about %s, famous in %s.", subject, domain),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 1.0,
	})

	if err != nil {
		return nil, fmt.Errorf("openai request failed: %w", err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, fmt.Errorf("no usable text in script response")
	}

	rawContent := resp.Choices[0].Message.Content

	var script sceneScript
	if err := json.Unmarshal([]byte(rawContent), &script); err != nil {
		log.Printf("[OpenAI script] parse failed: %v (raw: %s)", err, truncateString(rawContent, 500))
		return nil, fmt.Errorf("failed to parse scene script: %w", err)
	}

	if script.Scenes == nil {
		log.Printf("[OpenAI script] response missing scenes field (raw: %s)", truncateString(rawContent, 500))
		return nil, fmt.Errorf("scene script missing scenes field")
	}

	scenes := make([]models.Scene, len(script.Scenes))
	for i, plan := range script.Scenes {
		if plan.ImagePrompt == "" || plan.Narration == "" {
			return nil, fmt.Errorf("scene %d missing image_prompt or narration", i)
		}
		scenes[i] = models.Scene{
			Index:         i,
			ImagePrompt:   plan.ImagePrompt,
			NarrationText: plan.Narration,
		}
	}

	log.Printf("[OpenAI script] generated %d scenes", len(scenes))

	return scenes, nil
}

func buildScriptSystemPrompt(sceneCount int) string {
	return fmt.Sprintf(`You are a short-form video scriptwriter. Given a famous person and their field, write a punchy vertical-video script split into exactly %d scenes.

Respond with JSON only, matching this shape:
{"scenes": [{"image_prompt": "...", "narration": "..."}]}

Rules:
- Exactly %d scenes, in story order: hook, build, payoff.
- narration: 1-2 short spoken sentences per scene, conversational, written to be read aloud.
- image_prompt: a complete visual scene description (subject, setting, lighting, mood) suitable for an image generation model, portrait 9:16 framing.
- Never leave a field empty.`, sceneCount, sceneCount)
}

// ---------------------------------------------------------------------------
// Whisper transcription: word-level timestamps drive subtitle cues and
// segment durations
// ---------------------------------------------------------------------------

// TranscribeAudio sends a narration file to Whisper and returns the
// word-level caption track in milliseconds.
func (s *OpenAIService) TranscribeAudio(ctx context.Context, audioPath string) (models.CaptionTrack, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio %s: %w", audioPath, err)
	}
	defer f.Close()

	resp, err := s.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		Reader:   f,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
		Language: "en",
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularityWord,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("whisper transcription failed: %w", err)
	}

	if len(resp.Words) == 0 {
		return nil, fmt.Errorf("whisper returned no word timestamps (text: %q)", resp.Text)
	}

	track := make(models.CaptionTrack, len(resp.Words))
	for i, w := range resp.Words {
		track[i] = models.CaptionEntry{
			Text:    strings.TrimSpace(w.Word),
			StartMs: int(w.Start * 1000),
			EndMs:   int(w.End * 1000),
		}
	}

	log.Printf("[Whisper] Transcribed %d words (duration: %.1fs, text: %q)",
		len(track), resp.Duration, truncateString(resp.Text, 80))

	return track, nil
}

// truncateString truncates a string to maxLen and appends "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
