package workspace

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Manager creates and destroys per-job staging directories. Every job gets
// its own directory under the root, keyed by job ID, so concurrent jobs
// never share files even when they belong to the same owner.
type Manager struct {
	root string
}

func NewManager(root string) (*Manager, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create workspace root %s: %w", root, err)
	}
	return &Manager{root: root}, nil
}

// Create makes the staging directory for a job. Safe to call more than once
// for the same job.
func (m *Manager) Create(jobID uuid.UUID) (string, error) {
	path := filepath.Join(m.root, jobID.String())
	if err := os.MkdirAll(path, 0755); err != nil {
		return "", fmt.Errorf("failed to create workspace %s: %w", path, err)
	}
	return path, nil
}

// Destroy removes a job's staging directory. It never returns an error: an
// orphaned directory must not block error propagation, so failures are only
// logged.
func (m *Manager) Destroy(path string) {
	if path == "" {
		return
	}
	if err := os.RemoveAll(path); err != nil {
		log.Printf("[Workspace] failed to remove %s: %v", path, err)
	}
}
