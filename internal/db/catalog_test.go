package db

import (
	"testing"
)

func TestParseCatalog(t *testing.T) {
	raw := `[{"title":"Serena Williams: tennis short","url":"https://example.com/v","thumbnailUrl":"https://example.com/t","videoKey":"abc","thumbKey":"def","createdAt":"2026-01-02T15:04:05Z"}]`

	videos := parseCatalog("owner-1", raw)
	if len(videos) != 1 {
		t.Fatalf("got %d videos, want 1", len(videos))
	}
	if videos[0].VideoKey != "abc" {
		t.Errorf("videoKey = %q, want abc", videos[0].VideoKey)
	}
	if videos[0].Title == "" || videos[0].URL == "" || videos[0].ThumbnailURL == "" {
		t.Errorf("record missing fields: %+v", videos[0])
	}
}

func TestParseCatalogUnparsableIsEmpty(t *testing.T) {
	for _, raw := range []string{"", "not json", `{"title":"object not array"}`, "null"} {
		videos := parseCatalog("owner-1", raw)
		if videos == nil {
			t.Errorf("parseCatalog(%q) returned nil", raw)
		}
		if len(videos) != 0 {
			t.Errorf("parseCatalog(%q) = %d videos, want 0", raw, len(videos))
		}
	}
}
