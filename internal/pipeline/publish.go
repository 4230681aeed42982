package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/bobarin/clipforge/internal/models"
	"github.com/bobarin/clipforge/internal/storage"
)

// publish uploads the final video and thumbnail under freshly minted random
// keys, mints signed URLs, and appends the record to the owner's catalog.
// The workspace is destroyed no matter how publishing ends; it holds the
// last references to the job's temporary files.
func (o *Orchestrator) publish(ctx context.Context, job *models.Job, finalPath string, published *bool) (models.VideoRecord, error) {
	*published = true
	defer o.workspaces.Destroy(job.WorkspacePath)

	// Scene 0's image doubles as the gallery thumbnail.
	thumbnailPath := job.Scenes[0].ImagePath

	videoKey := storage.NewObjectKey(".mp4")
	thumbKey := storage.NewObjectKey(".png")

	if err := o.store.UploadFile(ctx, videoKey, finalPath, "video/mp4"); err != nil {
		return models.VideoRecord{}, models.NewStageError(models.ErrStorage, models.StagePublishing,
			fmt.Errorf("failed to upload video: %w", err))
	}

	if err := o.store.UploadFile(ctx, thumbKey, thumbnailPath, "image/png"); err != nil {
		o.removeObjects(ctx, videoKey)
		return models.VideoRecord{}, models.NewStageError(models.ErrStorage, models.StagePublishing,
			fmt.Errorf("failed to upload thumbnail: %w", err))
	}

	videoURL, err := o.store.GetSignedURL(ctx, videoKey, o.signedURLTTL)
	if err != nil {
		o.removeObjects(ctx, videoKey, thumbKey)
		return models.VideoRecord{}, models.NewStageError(models.ErrStorage, models.StagePublishing,
			fmt.Errorf("failed to sign video URL: %w", err))
	}

	thumbURL, err := o.store.GetSignedURL(ctx, thumbKey, o.signedURLTTL)
	if err != nil {
		o.removeObjects(ctx, videoKey, thumbKey)
		return models.VideoRecord{}, models.NewStageError(models.ErrStorage, models.StagePublishing,
			fmt.Errorf("failed to sign thumbnail URL: %w", err))
	}

	record := models.VideoRecord{
		Title:        fmt.Sprintf("%s: %s short", job.Subject, job.Domain),
		URL:          videoURL,
		ThumbnailURL: thumbURL,
		VideoKey:     videoKey,
		ThumbKey:     thumbKey,
		CreatedAt:    time.Now(),
	}

	if err := o.catalog.AppendVideo(ctx, job.OwnerID, record); err != nil {
		// The objects are already durable; remove them so a failed catalog
		// write doesn't strand unreachable uploads.
		o.removeObjects(ctx, videoKey, thumbKey)
		return models.VideoRecord{}, models.NewStageError(models.ErrPersistence, models.StagePublishing,
			fmt.Errorf("failed to append catalog record: %w", err))
	}

	log.Printf("[Pipeline] job %s: published %s (video=%s, thumb=%s)", job.ID, record.Title, videoKey, thumbKey)
	return record, nil
}

// removeObjects best-effort deletes stored objects during publish unwinding
// and video deletion. Failures are logged only; the catalog is already the
// source of truth by the time this runs.
func (o *Orchestrator) removeObjects(ctx context.Context, keys ...string) {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := o.store.Delete(ctx, key); err != nil {
			log.Printf("[Pipeline] failed to remove object %s: %v", key, err)
		}
	}
}
