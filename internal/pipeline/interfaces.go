package pipeline

import (
	"context"

	"github.com/google/uuid"

	"github.com/bobarin/clipforge/internal/models"
)

// Upstream generation capabilities. Each is an opaque, stateless service
// constructed once at process start and injected into the orchestrator.

type ScriptGenerator interface {
	GenerateScenes(ctx context.Context, subject, domain string) ([]models.Scene, error)
}

type SpeechSynthesizer interface {
	SynthesizeSpeech(ctx context.Context, text string) ([]byte, error)
}

type ImageSynthesizer interface {
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
}

type Transcriber interface {
	TranscribeAudio(ctx context.Context, audioPath string) (models.CaptionTrack, error)
}

// Transcoder drives the subprocess transcoding engine.
type Transcoder interface {
	RenderSegment(ctx context.Context, imagePath, audioPath, subtitlePath, outputPath string, durationSec float64) error
	Concatenate(ctx context.Context, segmentPaths []string, outputPath string) error
	GetVideoDuration(ctx context.Context, path string) (int, error)
}

// ObjectStore is the durable store for published artifacts.
type ObjectStore interface {
	UploadFile(ctx context.Context, key, localPath, contentType string) error
	Delete(ctx context.Context, key string) error
	GetSignedURL(ctx context.Context, key string, expiresIn int) (string, error)
}

// CatalogStore persists the per-owner video list.
type CatalogStore interface {
	ReadCatalog(ctx context.Context, ownerID string) ([]models.VideoRecord, error)
	AppendVideo(ctx context.Context, ownerID string, record models.VideoRecord) error
	RemoveVideo(ctx context.Context, ownerID, videoKey string) (models.VideoRecord, []models.VideoRecord, error)
}

// StageTracker records live job progress for the status endpoint.
type StageTracker interface {
	SetStage(ctx context.Context, jobID uuid.UUID, ownerID string, stage models.JobStage, message string) error
}

// Workspaces manages per-job staging directories.
type Workspaces interface {
	Create(jobID uuid.UUID) (string, error)
	Destroy(path string)
}
