package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures. Each stage converts its local
// failures into exactly one StageError; the orchestrator maps the kind to a
// user-facing message and keeps the wrapped cause as a gated diagnostic.
type ErrorKind string

const (
	ErrValidation  ErrorKind = "validation"  // input or script shape rejected
	ErrUpstream    ErrorKind = "upstream"    // a generation capability failed or returned garbage
	ErrSubprocess  ErrorKind = "subprocess"  // ffmpeg exited non-zero
	ErrStorage     ErrorKind = "storage"     // durable object store put/sign/delete failed
	ErrPersistence ErrorKind = "persistence" // catalog read/write failed
	ErrWorkspace   ErrorKind = "workspace"   // staging directory could not be created
)

// StageError is the one error shape that crosses stage boundaries. Scene is
// -1 for failures not tied to a single scene. Diagnostic holds subprocess
// output or raw upstream payload excerpts, surfaced only when diagnostics
// are enabled.
type StageError struct {
	Kind       ErrorKind
	Stage      JobStage
	Scene      int
	Diagnostic string
	Err        error
}

func (e *StageError) Error() string {
	if e.Scene >= 0 {
		return fmt.Sprintf("%s failed (scene %d, %s): %v", e.Stage, e.Scene, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s failed (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError builds a job-level StageError (no scene attribution).
func NewStageError(kind ErrorKind, stage JobStage, err error) *StageError {
	return &StageError{Kind: kind, Stage: stage, Scene: -1, Err: err}
}

// NewSceneError builds a StageError attributed to one scene's task.
func NewSceneError(kind ErrorKind, stage JobStage, scene int, err error) *StageError {
	return &StageError{Kind: kind, Stage: stage, Scene: scene, Err: err}
}

// AsStageError extracts the StageError from an error chain, if present.
func AsStageError(err error) (*StageError, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// ErrVideoNotFound is returned by the catalog when a delete targets an
// unknown video key. The catalog is left unchanged in that case.
var ErrVideoNotFound = errors.New("video not found")
