package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bobarin/clipforge/internal/models"
	"github.com/bobarin/clipforge/internal/services"
	"github.com/bobarin/clipforge/internal/workspace"
)

// ---------------------------------------------------------------------------
// Fakes: each capability is replaced with an in-memory implementation that
// can be told to fail at a specific scene.
// ---------------------------------------------------------------------------

type fakeScripts struct {
	sceneCount int
	err        error
}

func (f *fakeScripts) GenerateScenes(ctx context.Context, subject, domain string) ([]models.Scene, error) {
	if f.err != nil {
		return nil, f.err
	}
	scenes := make([]models.Scene, f.sceneCount)
	for i := range scenes {
		scenes[i] = models.Scene{
			Index:         i,
			ImagePrompt:   fmt.Sprintf("%s portrait %d", subject, i),
			NarrationText: fmt.Sprintf("%s narration %d", subject, i),
		}
	}
	return scenes, nil
}

type fakeSpeech struct {
	stagger bool
}

func (f *fakeSpeech) SynthesizeSpeech(ctx context.Context, text string) ([]byte, error) {
	if f.stagger {
		// Scene indices trail the narration text; make earlier scenes
		// finish last so completion order is the reverse of scene order.
		if i := strings.LastIndexByte(text, ' '); i >= 0 {
			if n, err := strconv.Atoi(text[i+1:]); err == nil {
				time.Sleep(time.Duration(3-n) * 10 * time.Millisecond)
			}
		}
	}
	return []byte("mp3:" + text), nil
}

type fakeImages struct {
	failPromptSubstr string
}

func (f *fakeImages) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	if f.failPromptSubstr != "" && strings.Contains(prompt, f.failPromptSubstr) {
		return nil, errors.New("image model unavailable")
	}
	return []byte("png:" + prompt), nil
}

type fakeTranscriber struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeTranscriber) TranscribeAudio(ctx context.Context, audioPath string) (models.CaptionTrack, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return models.CaptionTrack{
		{Text: "hello", StartMs: 0, EndMs: 500},
		{Text: "world", StartMs: 500, EndMs: 1200},
	}, nil
}

type fakeTranscoder struct {
	mu           sync.Mutex
	failSegment  string // substring of output path that should fail
	concatInputs []string
}

func (f *fakeTranscoder) RenderSegment(ctx context.Context, imagePath, audioPath, subtitlePath, outputPath string, durationSec float64) error {
	if f.failSegment != "" && strings.Contains(outputPath, f.failSegment) {
		return &services.SubprocessError{
			Cmd:    "ffmpeg",
			Output: "Error while filtering: subtitle stream not found",
			Err:    errors.New("exit status 1"),
		}
	}
	return os.WriteFile(outputPath, []byte(fmt.Sprintf("segment %.2fs", durationSec)), 0644)
}

func (f *fakeTranscoder) Concatenate(ctx context.Context, segmentPaths []string, outputPath string) error {
	f.mu.Lock()
	f.concatInputs = append([]string(nil), segmentPaths...)
	f.mu.Unlock()
	return os.WriteFile(outputPath, []byte("final"), 0644)
}

func (f *fakeTranscoder) GetVideoDuration(ctx context.Context, path string) (int, error) {
	return 3600, nil
}

type fakeStore struct {
	mu      sync.Mutex
	uploads map[string]string
	deletes []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{uploads: make(map[string]string)}
}

func (f *fakeStore) UploadFile(ctx context.Context, key, localPath, contentType string) error {
	if _, err := os.Stat(localPath); err != nil {
		return fmt.Errorf("upload source missing: %w", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads[key] = localPath
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, key)
	delete(f.uploads, key)
	return nil
}

func (f *fakeStore) GetSignedURL(ctx context.Context, key string, expiresIn int) (string, error) {
	return fmt.Sprintf("https://store.example/%s?expires=%d", key, expiresIn), nil
}

type fakeCatalog struct {
	mu      sync.Mutex
	byOwner map[string][]models.VideoRecord
	failOn  error
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{byOwner: make(map[string][]models.VideoRecord)}
}

func (f *fakeCatalog) ReadCatalog(ctx context.Context, ownerID string) ([]models.VideoRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byOwner[ownerID]; !ok {
		f.byOwner[ownerID] = []models.VideoRecord{}
	}
	out := make([]models.VideoRecord, len(f.byOwner[ownerID]))
	copy(out, f.byOwner[ownerID])
	return out, nil
}

func (f *fakeCatalog) AppendVideo(ctx context.Context, ownerID string, record models.VideoRecord) error {
	if f.failOn != nil {
		return f.failOn
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byOwner[ownerID] = append(f.byOwner[ownerID], record)
	return nil
}

func (f *fakeCatalog) RemoveVideo(ctx context.Context, ownerID, videoKey string) (models.VideoRecord, []models.VideoRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	videos := f.byOwner[ownerID]
	for i, v := range videos {
		if v.VideoKey == videoKey {
			remaining := append(append([]models.VideoRecord(nil), videos[:i]...), videos[i+1:]...)
			f.byOwner[ownerID] = remaining
			return v, remaining, nil
		}
	}
	return models.VideoRecord{}, nil, models.ErrVideoNotFound
}

func (f *fakeCatalog) size(ownerID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byOwner[ownerID])
}

// ---------------------------------------------------------------------------

type fixture struct {
	orch       *Orchestrator
	root       string
	scripts    *fakeScripts
	images     *fakeImages
	transcribe *fakeTranscriber
	transcoder *fakeTranscoder
	store      *fakeStore
	catalog    *fakeCatalog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	root := t.TempDir()
	ws, err := workspace.NewManager(root)
	if err != nil {
		t.Fatalf("workspace manager: %v", err)
	}

	f := &fixture{
		root:       root,
		scripts:    &fakeScripts{sceneCount: 3},
		images:     &fakeImages{},
		transcribe: &fakeTranscriber{},
		transcoder: &fakeTranscoder{},
		store:      newFakeStore(),
		catalog:    newFakeCatalog(),
	}
	f.orch = New(
		f.scripts,
		&fakeSpeech{},
		f.images,
		f.transcribe,
		f.transcoder,
		f.store,
		f.catalog,
		nil, // tracker optional
		ws,
		3,
		518400,
	)
	return f
}

// workspaceCount returns how many job directories currently exist.
func (f *fixture) workspaceCount(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir(f.root)
	if err != nil {
		t.Fatalf("read workspace root: %v", err)
	}
	return len(entries)
}

func TestCreateVideoSuccess(t *testing.T) {
	f := newFixture(t)

	record, err := f.orch.CreateVideo(context.Background(), "Serena Williams", "tennis", "owner-1")
	if err != nil {
		t.Fatalf("CreateVideo: %v", err)
	}

	if record.Title == "" || record.URL == "" || record.ThumbnailURL == "" {
		t.Errorf("record missing fields: %+v", record)
	}
	if f.catalog.size("owner-1") != 1 {
		t.Errorf("catalog has %d records, want 1", f.catalog.size("owner-1"))
	}
	if len(f.store.uploads) != 2 {
		t.Errorf("store holds %d objects, want 2 (video + thumbnail)", len(f.store.uploads))
	}
	if got := f.workspaceCount(t); got != 0 {
		t.Errorf("%d workspaces remain after success, want 0", got)
	}
}

func TestCreateVideoPreservesSceneOrder(t *testing.T) {
	f := newFixture(t)
	// Make scene tasks complete in reverse order.
	f.orch.speech = &fakeSpeech{stagger: true}

	if _, err := f.orch.CreateVideo(context.Background(), "Pelé", "football", "owner-1"); err != nil {
		t.Fatalf("CreateVideo: %v", err)
	}

	if len(f.transcoder.concatInputs) != 3 {
		t.Fatalf("concatenated %d segments, want 3", len(f.transcoder.concatInputs))
	}
	for i, path := range f.transcoder.concatInputs {
		if !strings.Contains(path, fmt.Sprintf("_%d.mp4", i)) {
			t.Errorf("segment %d out of order: %s", i, path)
		}
	}
}

func TestImageFailureFailsAssetStage(t *testing.T) {
	f := newFixture(t)
	f.images.failPromptSubstr = "portrait 1"

	_, err := f.orch.CreateVideo(context.Background(), "Ada Lovelace", "mathematics", "owner-1")
	if err == nil {
		t.Fatal("expected failure")
	}

	se, ok := models.AsStageError(err)
	if !ok {
		t.Fatalf("expected StageError, got %T", err)
	}
	if se.Stage != models.StageAssetGeneration || se.Kind != models.ErrUpstream {
		t.Errorf("unexpected stage/kind: %+v", se)
	}
	if se.Scene != 1 {
		t.Errorf("scene = %d, want 1", se.Scene)
	}

	// No later stage ran, the workspace is gone, and nothing was persisted.
	if f.transcribe.calls != 0 {
		t.Errorf("transcriber ran %d times after asset failure", f.transcribe.calls)
	}
	if f.catalog.size("owner-1") != 0 {
		t.Error("catalog mutated on failed job")
	}
	if len(f.store.uploads) != 0 {
		t.Error("objects uploaded on failed job")
	}
	if got := f.workspaceCount(t); got != 0 {
		t.Errorf("%d workspaces remain after failure, want 0", got)
	}
}

func TestRenderFailureFailsRenderingStage(t *testing.T) {
	f := newFixture(t)
	f.transcoder.failSegment = "_2.mp4"

	_, err := f.orch.CreateVideo(context.Background(), "Marie Curie", "physics", "owner-1")
	if err == nil {
		t.Fatal("expected failure")
	}

	se, ok := models.AsStageError(err)
	if !ok {
		t.Fatalf("expected StageError, got %T", err)
	}
	if se.Stage != models.StageRendering || se.Kind != models.ErrSubprocess {
		t.Errorf("unexpected stage/kind: %+v", se)
	}
	if !strings.Contains(se.Diagnostic, "subtitle stream not found") {
		t.Errorf("diagnostic not carried through: %q", se.Diagnostic)
	}

	if len(f.transcoder.concatInputs) != 0 {
		t.Error("assembly ran after render failure")
	}
	if f.catalog.size("owner-1") != 0 {
		t.Error("catalog mutated on failed job")
	}
	if got := f.workspaceCount(t); got != 0 {
		t.Errorf("%d workspaces remain after failure, want 0", got)
	}
}

func TestWrongSceneCountIsValidationError(t *testing.T) {
	f := newFixture(t)
	f.scripts.sceneCount = 5

	_, err := f.orch.CreateVideo(context.Background(), "Usain Bolt", "sprinting", "owner-1")
	if err == nil {
		t.Fatal("expected failure")
	}

	se, ok := models.AsStageError(err)
	if !ok {
		t.Fatalf("expected StageError, got %T", err)
	}
	if se.Stage != models.StageScripting || se.Kind != models.ErrValidation {
		t.Errorf("unexpected stage/kind: %+v", se)
	}
	if got := f.workspaceCount(t); got != 0 {
		t.Errorf("%d workspaces remain, want 0", got)
	}
}

func TestCatalogFailureRemovesUploadedObjects(t *testing.T) {
	f := newFixture(t)
	f.catalog.failOn = errors.New("catalog write timeout")

	_, err := f.orch.CreateVideo(context.Background(), "Michael Jordan", "basketball", "owner-1")
	if err == nil {
		t.Fatal("expected failure")
	}

	se, ok := models.AsStageError(err)
	if !ok || se.Kind != models.ErrPersistence {
		t.Fatalf("expected persistence error, got %v", err)
	}
	if len(f.store.uploads) != 0 {
		t.Errorf("%d objects stranded after catalog failure", len(f.store.uploads))
	}
	if got := f.workspaceCount(t); got != 0 {
		t.Errorf("%d workspaces remain, want 0", got)
	}
}

func TestDeleteVideo(t *testing.T) {
	f := newFixture(t)

	record, err := f.orch.CreateVideo(context.Background(), "Simone Biles", "gymnastics", "owner-1")
	if err != nil {
		t.Fatalf("CreateVideo: %v", err)
	}

	remaining, err := f.orch.DeleteVideo(context.Background(), "owner-1", record.VideoKey)
	if err != nil {
		t.Fatalf("DeleteVideo: %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("%d records remain, want 0", len(remaining))
	}

	videoDeletes, thumbDeletes := 0, 0
	for _, key := range f.store.deletes {
		switch key {
		case record.VideoKey:
			videoDeletes++
		case record.ThumbKey:
			thumbDeletes++
		}
	}
	if videoDeletes != 1 {
		t.Errorf("store delete issued %d times for the video key, want 1", videoDeletes)
	}
	if thumbDeletes != 1 {
		t.Errorf("store delete issued %d times for the thumbnail key, want 1", thumbDeletes)
	}
	if len(f.store.uploads) != 0 {
		t.Errorf("%d objects remain in the store after delete", len(f.store.uploads))
	}
}

func TestDeleteOtherOwnersKeyLeavesStorage(t *testing.T) {
	f := newFixture(t)

	record, err := f.orch.CreateVideo(context.Background(), "Roger Federer", "tennis", "owner-1")
	if err != nil {
		t.Fatalf("CreateVideo: %v", err)
	}

	_, err = f.orch.DeleteVideo(context.Background(), "owner-2", record.VideoKey)
	if !errors.Is(err, models.ErrVideoNotFound) {
		t.Fatalf("expected ErrVideoNotFound, got %v", err)
	}

	if len(f.store.deletes) != 0 {
		t.Errorf("store delete issued for a key outside the caller's catalog: %v", f.store.deletes)
	}
	if _, ok := f.store.uploads[record.VideoKey]; !ok {
		t.Error("owner-1's video object is gone")
	}
	if f.catalog.size("owner-1") != 1 {
		t.Error("owner-1's catalog changed")
	}
}

func TestDeleteUnknownVideoIsNotFound(t *testing.T) {
	f := newFixture(t)

	record, err := f.orch.CreateVideo(context.Background(), "Lionel Messi", "football", "owner-1")
	if err != nil {
		t.Fatalf("CreateVideo: %v", err)
	}

	_, err = f.orch.DeleteVideo(context.Background(), "owner-1", "no-such-key")
	if !errors.Is(err, models.ErrVideoNotFound) {
		t.Fatalf("expected ErrVideoNotFound, got %v", err)
	}

	videos, err := f.orch.ListVideos(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("ListVideos: %v", err)
	}
	if len(videos) != 1 || videos[0].VideoKey != record.VideoKey {
		t.Errorf("catalog changed by failed delete: %+v", videos)
	}
}

func TestListVideosCreatesCatalogLazily(t *testing.T) {
	f := newFixture(t)

	videos, err := f.orch.ListVideos(context.Background(), "fresh-owner")
	if err != nil {
		t.Fatalf("ListVideos: %v", err)
	}
	if videos == nil || len(videos) != 0 {
		t.Errorf("expected empty catalog, got %v", videos)
	}
}
