package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/bobarin/clipforge/internal/models"
)

// Tracker records each job's live pipeline stage in Redis so clients can
// poll progress while the synchronous create-video request is running.
// Entries expire on their own; the tracker holds no durable state.
type Tracker struct {
	client *redis.Client
}

// State is the tracked snapshot of one job.
type State struct {
	JobID     uuid.UUID       `json:"job_id"`
	OwnerID   string          `json:"owner_id"`
	Stage     models.JobStage `json:"stage"`
	Message   string          `json:"message,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

const stateTTL = 24 * time.Hour

func New(redisURL string) (*Tracker, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Tracker{client: client}, nil
}

func (t *Tracker) Close() error {
	return t.client.Close()
}

func stateKey(jobID uuid.UUID) string {
	return "job:" + jobID.String()
}

// SetStage records a stage transition. Tracking is advisory: failures are
// returned so callers can log them, but the pipeline never fails because of
// the tracker.
func (t *Tracker) SetStage(ctx context.Context, jobID uuid.UUID, ownerID string, stage models.JobStage, message string) error {
	state := State{
		JobID:     jobID,
		OwnerID:   ownerID,
		Stage:     stage,
		Message:   message,
		UpdatedAt: time.Now(),
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal job state: %w", err)
	}

	return t.client.Set(ctx, stateKey(jobID), data, stateTTL).Err()
}

// Get returns the tracked state for a job, or nil when unknown or expired.
func (t *Tracker) Get(ctx context.Context, jobID uuid.UUID) (*State, error) {
	data, err := t.client.Get(ctx, stateKey(jobID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job state: %w", err)
	}

	var state State
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job state: %w", err)
	}

	return &state, nil
}
