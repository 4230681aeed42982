package services

import (
	"fmt"
	"os"
	"strings"

	"github.com/bobarin/clipforge/internal/models"
)

// ---------------------------------------------------------------------------
// SRT subtitle generation
//
// Word-level timings from transcription are grouped into short cues (a few
// words each) and serialized as SubRip for ffmpeg burn-in. The last caption
// entry's end time doubles as the authoritative scene duration, so the cue
// timings always cover the full narration.
// ---------------------------------------------------------------------------

// How many words to show per cue
const wordsPerCue = 4

// Cue is one rendered subtitle: a group of consecutive words shown together.
type Cue struct {
	StartMs int
	EndMs   int
	Text    string
}

// BuildCues groups a caption track into subtitle cues. Words accumulate
// until a cue reaches wordsPerCue; the final cue absorbs whatever remains.
// Each cue spans from its first word's start to its last word's end.
func BuildCues(track models.CaptionTrack) []Cue {
	var cues []Cue
	var current []models.CaptionEntry

	for _, word := range track {
		current = append(current, word)
		if len(current) >= wordsPerCue {
			cues = append(cues, cueFromWords(current))
			current = nil
		}
	}

	if len(current) > 0 {
		cues = append(cues, cueFromWords(current))
	}

	return cues
}

func cueFromWords(words []models.CaptionEntry) Cue {
	parts := make([]string, 0, len(words))
	for _, w := range words {
		if text := strings.TrimSpace(w.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return Cue{
		StartMs: words[0].StartMs,
		EndMs:   words[len(words)-1].EndMs,
		Text:    strings.Join(parts, " "),
	}
}

// GenerateSRT writes the scene's caption track as a SubRip file.
func GenerateSRT(track models.CaptionTrack, outputPath string) error {
	if len(track) == 0 {
		return fmt.Errorf("no words to generate subtitles from")
	}

	cues := BuildCues(track)

	var sb strings.Builder
	for i, cue := range cues {
		sb.WriteString(fmt.Sprintf("%d\n", i+1))
		sb.WriteString(fmt.Sprintf("%s --> %s\n", FormatTimestamp(cue.StartMs), FormatTimestamp(cue.EndMs)))
		sb.WriteString(cue.Text)
		sb.WriteString("\n\n")
	}

	if err := os.WriteFile(outputPath, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to write SRT file: %w", err)
	}

	return nil
}

// FormatTimestamp converts milliseconds to the SubRip timestamp form
// HH:MM:SS,mmm. Hours, minutes, and seconds floor toward zero.
func FormatTimestamp(ms int) string {
	if ms < 0 {
		ms = 0
	}

	hours := ms / 3600000
	minutes := (ms % 3600000) / 60000
	seconds := (ms % 60000) / 1000
	millis := ms % 1000

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, millis)
}
