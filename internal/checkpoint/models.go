// internal/checkpoint/models.go
package checkpoint

import (
	"time"

	"codemedic/internal/gitinfo"
)

// Checkpoint is a named, full point-in-time snapshot of selected files,
// independent of per-action backups
type Checkpoint struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Timestamp   time.Time           `json:"timestamp"`
	Files       []FileSnapshot      `json:"files"`
	ErrorCount  *int                `json:"error_count,omitempty"`
	Git         *gitinfo.Annotation `json:"git,omitempty"`
}

// FileSnapshot captures one file's content, or its absence, at
// checkpoint time
type FileSnapshot struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Existed bool   `json:"existed"`
	Hash    string `json:"hash,omitempty"`
}

// RestoreError records a single failed path during restore
type RestoreError struct {
	Path string `json:"path"`
	Err  string `json:"error"`
}

// RestoreResult aggregates a checkpoint restore; per-file failures are
// collected rather than aborting the batch
type RestoreResult struct {
	CheckpointID string         `json:"checkpoint_id"`
	Success      bool           `json:"success"`
	Restored     []string       `json:"restored"`
	Failures     []RestoreError `json:"failures,omitempty"`
}
