package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bobarin/clipforge/internal/models"
	"github.com/bobarin/clipforge/internal/services"
)

// ---------------------------------------------------------------------------
// Orchestrator: the multi-stage synthesis pipeline
//
// Stages run strictly in order; within a stage, per-scene tasks fan out
// concurrently and the stage is a barrier: it only succeeds when every task
// succeeded. Scene index is preserved through every stage by writing results
// into index-addressed slots, so out-of-order task completion never reorders
// the final video. Any failure destroys the job workspace before the error
// reaches the caller.
// ---------------------------------------------------------------------------

type Orchestrator struct {
	scripts    ScriptGenerator
	speech     SpeechSynthesizer
	images     ImageSynthesizer
	transcribe Transcriber
	transcoder Transcoder
	store      ObjectStore
	catalog    CatalogStore
	tracker    StageTracker
	workspaces Workspaces

	sceneCount   int
	signedURLTTL int
}

func New(
	scripts ScriptGenerator,
	speech SpeechSynthesizer,
	images ImageSynthesizer,
	transcribe Transcriber,
	transcoder Transcoder,
	store ObjectStore,
	catalog CatalogStore,
	tracker StageTracker,
	workspaces Workspaces,
	sceneCount int,
	signedURLTTL int,
) *Orchestrator {
	return &Orchestrator{
		scripts:      scripts,
		speech:       speech,
		images:       images,
		transcribe:   transcribe,
		transcoder:   transcoder,
		store:        store,
		catalog:      catalog,
		tracker:      tracker,
		workspaces:   workspaces,
		sceneCount:   sceneCount,
		signedURLTTL: signedURLTTL,
	}
}

// CreateVideo runs the whole pipeline for one request and returns the
// published record. On failure the workspace is gone, the catalog is
// untouched, and the returned error is a *models.StageError.
func (o *Orchestrator) CreateVideo(ctx context.Context, subject, domain, ownerID string) (models.VideoRecord, error) {
	job := &models.Job{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Subject:   subject,
		Domain:    domain,
		Stage:     models.StageScripting,
		CreatedAt: time.Now(),
	}

	log.Printf("[Pipeline] job %s: starting (owner=%s, subject=%q, domain=%q)", job.ID, ownerID, subject, domain)

	// The publisher owns teardown on the happy path; this defer owns it on
	// every earlier exit, including panics unwinding through here.
	published := false
	defer func() {
		if !published {
			o.workspaces.Destroy(job.WorkspacePath)
		}
	}()

	record, err := o.run(ctx, job, &published)
	if err != nil {
		job.Stage = models.StageFailed
		se, _ := models.AsStageError(err)
		if se != nil {
			job.ErrorMessage = se.Error()
		} else {
			job.ErrorMessage = err.Error()
		}
		log.Printf("[Pipeline] job %s: failed: %v", job.ID, err)
		o.setStage(ctx, job, job.ErrorMessage)
		return models.VideoRecord{}, err
	}

	job.Stage = models.StageDone
	o.setStage(ctx, job, "")
	log.Printf("[Pipeline] job %s: done (title=%q)", job.ID, record.Title)
	return record, nil
}

func (o *Orchestrator) run(ctx context.Context, job *models.Job, published *bool) (models.VideoRecord, error) {
	path, err := o.workspaces.Create(job.ID)
	if err != nil {
		return models.VideoRecord{}, models.NewStageError(models.ErrWorkspace, models.StageScripting, err)
	}
	job.WorkspacePath = path

	o.setStage(ctx, job, "")
	if err := o.runScripting(ctx, job); err != nil {
		return models.VideoRecord{}, err
	}

	o.advance(ctx, job, models.StageAssetGeneration)
	if err := o.runAssetGeneration(ctx, job); err != nil {
		return models.VideoRecord{}, err
	}

	o.advance(ctx, job, models.StageCaptioning)
	if err := o.runCaptioning(ctx, job); err != nil {
		return models.VideoRecord{}, err
	}

	o.advance(ctx, job, models.StageRendering)
	if err := o.runRendering(ctx, job); err != nil {
		return models.VideoRecord{}, err
	}

	o.advance(ctx, job, models.StageAssembling)
	finalPath, err := o.runAssembling(ctx, job)
	if err != nil {
		return models.VideoRecord{}, err
	}

	o.advance(ctx, job, models.StagePublishing)
	return o.publish(ctx, job, finalPath, published)
}

func (o *Orchestrator) advance(ctx context.Context, job *models.Job, stage models.JobStage) {
	job.Stage = stage
	job.UpdatedAt = time.Now()
	o.setStage(ctx, job, "")
}

// setStage records progress in the tracker. Tracking is advisory; a tracker
// outage never fails the job.
func (o *Orchestrator) setStage(ctx context.Context, job *models.Job, message string) {
	if o.tracker == nil {
		return
	}
	if err := o.tracker.SetStage(ctx, job.ID, job.OwnerID, job.Stage, message); err != nil {
		log.Printf("[Pipeline] job %s: failed to track stage %s: %v", job.ID, job.Stage, err)
	}
}

// runScripting calls the script capability and validates the scene list
// shape once, up front. Every later stage trusts the count.
func (o *Orchestrator) runScripting(ctx context.Context, job *models.Job) error {
	scenes, err := o.scripts.GenerateScenes(ctx, job.Subject, job.Domain)
	if err != nil {
		return models.NewStageError(models.ErrUpstream, models.StageScripting, err)
	}

	if len(scenes) != o.sceneCount {
		return models.NewStageError(models.ErrValidation, models.StageScripting,
			fmt.Errorf("script produced %d scenes, want %d", len(scenes), o.sceneCount))
	}

	job.Scenes = scenes
	log.Printf("[Pipeline] job %s: scripted %d scenes", job.ID, len(scenes))
	return nil
}

// runAssetGeneration fans out two leaf tasks per scene (narration audio and
// scene image) and waits for all of them. One failure fails the stage; no
// later stage ever sees a partial scene.
func (o *Orchestrator) runAssetGeneration(ctx context.Context, job *models.Job) error {
	g, gctx := errgroup.WithContext(ctx)

	for i := range job.Scenes {
		scene := &job.Scenes[i]

		g.Go(func() error {
			audio, err := o.speech.SynthesizeSpeech(gctx, scene.NarrationText)
			if err != nil {
				return models.NewSceneError(models.ErrUpstream, models.StageAssetGeneration, scene.Index,
					fmt.Errorf("narration synthesis: %w", err))
			}

			path := o.scenePath(job, scene.Index, ".mp3")
			if err := os.WriteFile(path, audio, 0644); err != nil {
				return models.NewSceneError(models.ErrWorkspace, models.StageAssetGeneration, scene.Index,
					fmt.Errorf("failed to write audio: %w", err))
			}

			scene.AudioPath = path
			return nil
		})

		g.Go(func() error {
			image, err := o.images.GenerateImage(gctx, scene.ImagePrompt)
			if err != nil {
				return models.NewSceneError(models.ErrUpstream, models.StageAssetGeneration, scene.Index,
					fmt.Errorf("image synthesis: %w", err))
			}

			path := o.scenePath(job, scene.Index, ".png")
			if err := os.WriteFile(path, image, 0644); err != nil {
				return models.NewSceneError(models.ErrWorkspace, models.StageAssetGeneration, scene.Index,
					fmt.Errorf("failed to write image: %w", err))
			}

			scene.ImagePath = path
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	log.Printf("[Pipeline] job %s: synthesized %d audio + %d image assets", job.ID, len(job.Scenes), len(job.Scenes))
	return nil
}

// runCaptioning transcribes each scene's narration into word-level timing,
// writing the timing document into the workspace.
func (o *Orchestrator) runCaptioning(ctx context.Context, job *models.Job) error {
	g, gctx := errgroup.WithContext(ctx)

	for i := range job.Scenes {
		scene := &job.Scenes[i]

		g.Go(func() error {
			if _, err := os.Stat(scene.AudioPath); err != nil {
				return models.NewSceneError(models.ErrUpstream, models.StageCaptioning, scene.Index,
					fmt.Errorf("narration audio missing: %w", err))
			}

			track, err := o.transcribe.TranscribeAudio(gctx, scene.AudioPath)
			if err != nil {
				return models.NewSceneError(models.ErrUpstream, models.StageCaptioning, scene.Index,
					fmt.Errorf("transcription: %w", err))
			}

			path := o.scenePath(job, scene.Index, ".words.json")
			doc, err := json.Marshal(track)
			if err != nil {
				return models.NewSceneError(models.ErrUpstream, models.StageCaptioning, scene.Index,
					fmt.Errorf("failed to encode caption track: %w", err))
			}
			if err := os.WriteFile(path, doc, 0644); err != nil {
				return models.NewSceneError(models.ErrWorkspace, models.StageCaptioning, scene.Index,
					fmt.Errorf("failed to write caption track: %w", err))
			}

			scene.Captions = track
			scene.CaptionPath = path
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	log.Printf("[Pipeline] job %s: captioned %d scenes", job.ID, len(job.Scenes))
	return nil
}

// runRendering builds one subtitle-burned segment per scene. The scene
// duration is the last caption entry's end time; renders run concurrently
// over disjoint inputs.
func (o *Orchestrator) runRendering(ctx context.Context, job *models.Job) error {
	g, gctx := errgroup.WithContext(ctx)

	for i := range job.Scenes {
		scene := &job.Scenes[i]

		g.Go(func() error {
			durationSec := float64(scene.Captions.DurationMs()) / 1000.0

			subtitlePath := o.scenePath(job, scene.Index, ".srt")
			if err := services.GenerateSRT(scene.Captions, subtitlePath); err != nil {
				return models.NewSceneError(models.ErrWorkspace, models.StageRendering, scene.Index,
					fmt.Errorf("failed to generate subtitles: %w", err))
			}

			segmentPath := o.scenePath(job, scene.Index, ".mp4")
			if err := o.transcoder.RenderSegment(gctx, scene.ImagePath, scene.AudioPath, subtitlePath, segmentPath, durationSec); err != nil {
				return subprocessSceneError(models.StageRendering, scene.Index, err)
			}

			scene.SegmentPath = segmentPath
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	log.Printf("[Pipeline] job %s: rendered %d segments", job.ID, len(job.Scenes))
	return nil
}

// runAssembling concatenates the segments in scene order into the final
// video.
func (o *Orchestrator) runAssembling(ctx context.Context, job *models.Job) (string, error) {
	segments := make([]string, len(job.Scenes))
	for i, scene := range job.Scenes {
		segments[i] = scene.SegmentPath
	}

	finalPath := filepath.Join(job.WorkspacePath, fmt.Sprintf("%s_final.mp4", job.ID))
	if err := o.transcoder.Concatenate(ctx, segments, finalPath); err != nil {
		return "", subprocessJobError(models.StageAssembling, err)
	}

	if durationMs, err := o.transcoder.GetVideoDuration(ctx, finalPath); err == nil {
		log.Printf("[Pipeline] job %s: assembled final video (%.1fs)", job.ID, float64(durationMs)/1000.0)
	} else {
		log.Printf("[Pipeline] job %s: assembled final video (duration probe failed: %v)", job.ID, err)
	}
	return finalPath, nil
}

// ListVideos returns the owner's full catalog, creating it lazily.
func (o *Orchestrator) ListVideos(ctx context.Context, ownerID string) ([]models.VideoRecord, error) {
	videos, err := o.catalog.ReadCatalog(ctx, ownerID)
	if err != nil {
		return nil, models.NewStageError(models.ErrPersistence, models.StageDone, err)
	}
	return videos, nil
}

// DeleteVideo removes one catalog record by key, then deletes the stored
// video and thumbnail objects. The catalog is consulted first: a key the
// owner's catalog does not hold reports not-found without touching storage,
// so one owner can never destroy another owner's objects.
func (o *Orchestrator) DeleteVideo(ctx context.Context, ownerID, videoKey string) ([]models.VideoRecord, error) {
	removed, remaining, err := o.catalog.RemoveVideo(ctx, ownerID, videoKey)
	if err != nil {
		if errors.Is(err, models.ErrVideoNotFound) {
			return nil, err
		}
		return nil, models.NewStageError(models.ErrPersistence, models.StageDone, err)
	}

	o.removeObjects(ctx, removed.VideoKey, removed.ThumbKey)

	log.Printf("[Pipeline] deleted video %s for owner %s", videoKey, ownerID)
	return remaining, nil
}

func (o *Orchestrator) scenePath(job *models.Job, index int, extension string) string {
	return filepath.Join(job.WorkspacePath, fmt.Sprintf("%s_%d%s", job.ID, index, extension))
}

// subprocessSceneError lifts a transcoder failure into a scene-attributed
// StageError, preserving the captured diagnostic output.
func subprocessSceneError(stage models.JobStage, scene int, err error) error {
	se := models.NewSceneError(models.ErrSubprocess, stage, scene, err)
	var sub *services.SubprocessError
	if errors.As(err, &sub) {
		se.Diagnostic = sub.Output
	}
	return se
}

func subprocessJobError(stage models.JobStage, err error) error {
	se := models.NewStageError(models.ErrSubprocess, stage, err)
	var sub *services.SubprocessError
	if errors.As(err, &sub) {
		se.Diagnostic = sub.Output
	}
	return se
}
