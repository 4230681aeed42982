package services

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bobarin/clipforge/internal/models"
)

func TestFormatTimestamp(t *testing.T) {
	cases := []struct {
		ms   int
		want string
	}{
		{0, "00:00:00,000"},
		{61234, "00:01:01,234"},
		{3600000, "01:00:00,000"},
		{999, "00:00:00,999"},
		{59999, "00:00:59,999"},
		{-5, "00:00:00,000"},
	}

	for _, tc := range cases {
		if got := FormatTimestamp(tc.ms); got != tc.want {
			t.Errorf("FormatTimestamp(%d) = %q, want %q", tc.ms, got, tc.want)
		}
	}
}

func makeTrack(n int) models.CaptionTrack {
	track := make(models.CaptionTrack, n)
	for i := 0; i < n; i++ {
		track[i] = models.CaptionEntry{
			Text:    "word" + string(rune('a'+i%26)),
			StartMs: i * 300,
			EndMs:   (i + 1) * 300,
		}
	}
	return track
}

func TestBuildCuesGrouping(t *testing.T) {
	for _, n := range []int{1, 3, 4, 5, 8, 11} {
		track := makeTrack(n)
		cues := BuildCues(track)

		wantCues := (n + wordsPerCue - 1) / wordsPerCue
		if len(cues) != wantCues {
			t.Errorf("n=%d: got %d cues, want %d", n, len(cues), wantCues)
		}

		for i, cue := range cues {
			words := len(strings.Fields(cue.Text))
			if words > wordsPerCue {
				t.Errorf("n=%d cue %d: %d words exceeds max %d", n, i, words, wordsPerCue)
			}
		}

		// Cue ranges cover [first word start, last word end] with no gaps.
		if cues[0].StartMs != track[0].StartMs {
			t.Errorf("n=%d: first cue starts at %d, want %d", n, cues[0].StartMs, track[0].StartMs)
		}
		if cues[len(cues)-1].EndMs != track.DurationMs() {
			t.Errorf("n=%d: last cue ends at %d, want %d", n, cues[len(cues)-1].EndMs, track.DurationMs())
		}
		for i := 1; i < len(cues); i++ {
			if cues[i].StartMs > cues[i-1].EndMs {
				t.Errorf("n=%d: gap between cue %d and %d", n, i-1, i)
			}
		}
	}
}

func TestBuildCuesLastCueAbsorbsRemainder(t *testing.T) {
	track := makeTrack(9) // 4 + 4 + 1
	cues := BuildCues(track)

	if len(cues) != 3 {
		t.Fatalf("got %d cues, want 3", len(cues))
	}
	if got := len(strings.Fields(cues[2].Text)); got != 1 {
		t.Errorf("last cue has %d words, want 1", got)
	}
}

func TestGenerateSRT(t *testing.T) {
	track := models.CaptionTrack{
		{Text: "The", StartMs: 0, EndMs: 200},
		{Text: "greatest", StartMs: 200, EndMs: 700},
		{Text: "of", StartMs: 700, EndMs: 850},
		{Text: "all", StartMs: 850, EndMs: 1100},
		{Text: "time", StartMs: 1100, EndMs: 1500},
	}

	path := filepath.Join(t.TempDir(), "scene.srt")
	if err := GenerateSRT(track, path); err != nil {
		t.Fatalf("GenerateSRT: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	want := "1\n" +
		"00:00:00,000 --> 00:00:01,100\n" +
		"The greatest of all\n" +
		"\n" +
		"2\n" +
		"00:00:01,100 --> 00:00:01,500\n" +
		"time\n" +
		"\n"
	if string(data) != want {
		t.Errorf("SRT mismatch:\ngot:\n%s\nwant:\n%s", data, want)
	}
}

func TestGenerateSRTEmptyTrack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.srt")
	if err := GenerateSRT(nil, path); err == nil {
		t.Error("expected error for empty track")
	}
}
