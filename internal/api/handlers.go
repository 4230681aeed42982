package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bobarin/clipforge/internal/jobs"
	"github.com/bobarin/clipforge/internal/models"
)

// VideoService is the orchestrator surface the handlers need.
type VideoService interface {
	CreateVideo(ctx context.Context, subject, domain, ownerID string) (models.VideoRecord, error)
	ListVideos(ctx context.Context, ownerID string) ([]models.VideoRecord, error)
	DeleteVideo(ctx context.Context, ownerID, videoKey string) ([]models.VideoRecord, error)
}

// JobStatuses reads live job state for the polling endpoint.
type JobStatuses interface {
	Get(ctx context.Context, jobID uuid.UUID) (*jobs.State, error)
}

type Handler struct {
	videos VideoService
	status JobStatuses

	// exposeDiagnostics gates the diagnostic field in failure responses.
	// Off in production so subprocess output never leaks to clients.
	exposeDiagnostics bool
}

func NewHandler(videos VideoService, status JobStatuses, exposeDiagnostics bool) *Handler {
	return &Handler{
		videos:            videos,
		status:            status,
		exposeDiagnostics: exposeDiagnostics,
	}
}

// CreateVideo handles POST /api/videos
func (h *Handler) CreateVideo(w http.ResponseWriter, r *http.Request) {
	var req models.CreateVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	if req.Subject == "" {
		h.respondError(w, http.StatusBadRequest, "subject is required", nil)
		return
	}
	if req.Domain == "" {
		h.respondError(w, http.StatusBadRequest, "domain is required", nil)
		return
	}
	if req.OwnerID == "" {
		h.respondError(w, http.StatusBadRequest, "ownerId is required", nil)
		return
	}

	record, err := h.videos.CreateVideo(r.Context(), req.Subject, req.Domain, req.OwnerID)
	if err != nil {
		status, message, diagnostic := h.mapPipelineError(err)
		h.respondError(w, status, message, diagnostic)
		return
	}

	respondJSON(w, http.StatusCreated, models.CreateVideoResponse{
		Success: true,
		Data:    record,
	})
}

// ListVideos handles GET /api/videos?ownerId=
func (h *Handler) ListVideos(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("ownerId")
	if ownerID == "" {
		h.respondError(w, http.StatusBadRequest, "ownerId query parameter is required", nil)
		return
	}

	videos, err := h.videos.ListVideos(r.Context(), ownerID)
	if err != nil {
		status, message, diagnostic := h.mapPipelineError(err)
		h.respondError(w, status, message, diagnostic)
		return
	}

	respondJSON(w, http.StatusOK, models.ListVideosResponse{
		Success: true,
		Videos:  videos,
	})
}

// DeleteVideo handles DELETE /api/videos?ownerId=&videoKey=
func (h *Handler) DeleteVideo(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("ownerId")
	videoKey := r.URL.Query().Get("videoKey")
	if ownerID == "" || videoKey == "" {
		h.respondError(w, http.StatusBadRequest, "ownerId and videoKey query parameters are required", nil)
		return
	}

	remaining, err := h.videos.DeleteVideo(r.Context(), ownerID, videoKey)
	if err != nil {
		if errors.Is(err, models.ErrVideoNotFound) {
			h.respondError(w, http.StatusNotFound, "Video not found", nil)
			return
		}
		status, message, diagnostic := h.mapPipelineError(err)
		h.respondError(w, status, message, diagnostic)
		return
	}

	respondJSON(w, http.StatusOK, models.DeleteVideoResponse{
		Success: true,
		Videos:  remaining,
	})
}

// GetJobStatus handles GET /api/videos/jobs/{jobID}
func (h *Handler) GetJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid job ID", nil)
		return
	}

	state, err := h.status.Get(r.Context(), jobID)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "Failed to read job status", nil)
		return
	}
	if state == nil {
		h.respondError(w, http.StatusNotFound, "Job not found", nil)
		return
	}

	respondJSON(w, http.StatusOK, models.JobStatusResponse{
		JobID:   state.JobID,
		Stage:   state.Stage,
		Message: state.Message,
	})
}

// Health check
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// mapPipelineError translates a pipeline failure into an HTTP status, a
// generic user-facing message, and an optional diagnostic. The message never
// carries the wrapped cause: command lines and workspace paths only travel
// in the diagnostic, which stays gated.
func (h *Handler) mapPipelineError(err error) (int, string, *string) {
	se, ok := models.AsStageError(err)
	if !ok {
		return http.StatusInternalServerError, "Video generation failed", nil
	}

	status := http.StatusInternalServerError
	message := "Video generation failed"
	switch se.Kind {
	case models.ErrValidation:
		status = http.StatusUnprocessableEntity
		message = "Generated script was rejected"
	case models.ErrUpstream:
		status = http.StatusBadGateway
		message = "An upstream generation service failed"
	case models.ErrSubprocess:
		message = "Video processing failed"
	case models.ErrStorage:
		message = "Video storage operation failed"
	case models.ErrPersistence:
		message = "Video catalog operation failed"
	case models.ErrWorkspace:
		message = "Could not prepare the job workspace"
	}

	var diagnostic *string
	if h.exposeDiagnostics {
		detail := se.Error()
		if se.Diagnostic != "" {
			detail += "\n" + se.Diagnostic
		}
		diagnostic = &detail
	}

	return status, message, diagnostic
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string, diagnostic *string) {
	resp := models.ErrorResponse{
		Success: false,
		Message: message,
	}
	if diagnostic != nil {
		resp.Diagnostic = *diagnostic
	}
	respondJSON(w, status, resp)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
