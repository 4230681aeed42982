package models

import (
	"time"

	"github.com/google/uuid"
)

// Enums

// JobStage tracks how far a synthesis job has progressed. Every stage must
// fully succeed before the next one starts; "failed" is reachable from any
// non-terminal stage.
type JobStage string

const (
	StageScripting       JobStage = "scripting"
	StageAssetGeneration JobStage = "asset_generation"
	StageCaptioning      JobStage = "captioning"
	StageRendering       JobStage = "rendering"
	StageAssembling      JobStage = "assembling"
	StagePublishing      JobStage = "publishing"
	StageDone            JobStage = "done"
	StageFailed          JobStage = "failed"
)

// Terminal reports whether a job in this stage will make no further progress.
func (s JobStage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

// Models

// Scene is one narrative unit: an image prompt plus narration text, rendered
// into one video segment. Artifact paths are filled in as stages complete;
// a path is only set after its producing stage succeeded for this scene.
type Scene struct {
	Index         int    `json:"index"`
	ImagePrompt   string `json:"image_prompt"`
	NarrationText string `json:"narration_text"`

	AudioPath   string `json:"audio_path,omitempty"`
	ImagePath   string `json:"image_path,omitempty"`
	CaptionPath string `json:"caption_path,omitempty"`
	SegmentPath string `json:"segment_path,omitempty"`

	Captions CaptionTrack `json:"captions,omitempty"`
}

// CaptionEntry is one word with its timing from transcription.
type CaptionEntry struct {
	Text    string `json:"text"`
	StartMs int    `json:"start_ms"`
	EndMs   int    `json:"end_ms"`
}

// CaptionTrack is the ordered word-level timing for one scene's narration.
// The last entry's EndMs is the authoritative scene duration.
type CaptionTrack []CaptionEntry

// DurationMs returns the track's end time, or 0 for an empty track.
func (t CaptionTrack) DurationMs() int {
	if len(t) == 0 {
		return 0
	}
	return t[len(t)-1].EndMs
}

// Job is the orchestrator-owned state for one in-flight synthesis run. The
// workspace directory is keyed by the job ID so concurrent jobs for the same
// owner stay isolated.
type Job struct {
	ID            uuid.UUID `json:"id"`
	OwnerID       string    `json:"owner_id"`
	Subject       string    `json:"subject"`
	Domain        string    `json:"domain"`
	WorkspacePath string    `json:"workspace_path,omitempty"`
	Scenes        []Scene   `json:"scenes,omitempty"`
	Stage         JobStage  `json:"stage"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// VideoRecord is the only entity that outlives a job. It is appended to the
// owner's catalog once publishing succeeds.
type VideoRecord struct {
	Title        string    `json:"title"`
	URL          string    `json:"url"`
	ThumbnailURL string    `json:"thumbnailUrl"`
	VideoKey     string    `json:"videoKey"`
	ThumbKey     string    `json:"thumbKey"`
	CreatedAt    time.Time `json:"createdAt"`
}

// DTOs

type CreateVideoRequest struct {
	Subject string `json:"subject"`
	Domain  string `json:"domain"`
	OwnerID string `json:"ownerId"`
}

type CreateVideoResponse struct {
	Success bool        `json:"success"`
	Data    VideoRecord `json:"data"`
}

type ListVideosResponse struct {
	Success bool          `json:"success"`
	Videos  []VideoRecord `json:"videos"`
}

type DeleteVideoResponse struct {
	Success bool          `json:"success"`
	Videos  []VideoRecord `json:"videos"`
}

type JobStatusResponse struct {
	JobID   uuid.UUID `json:"jobId"`
	Stage   JobStage  `json:"stage"`
	Message string    `json:"message,omitempty"`
}

// ErrorResponse is the single user-facing failure shape. Diagnostic carries
// the underlying cause and is only populated when diagnostics are enabled.
type ErrorResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Diagnostic string `json:"diagnostic,omitempty"`
}
