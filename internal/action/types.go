// internal/action/types.go
package action

import (
	"sync"
	"time"
)

// Kind is the type of a requested mutation
type Kind string

const (
	KindCreate Kind = "create"
	KindModify Kind = "modify"
	KindDelete Kind = "delete"
	KindShell  Kind = "shell"
)

// Status is the lifecycle state of a queued action
type Status string

const (
	StatusPending   Status = "pending"
	StatusExecuting Status = "executing"
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
)

// Action is one requested mutation. Immutable once enqueued.
type Action struct {
	Kind    Kind   `json:"kind" yaml:"kind"`
	Path    string `json:"path,omitempty" yaml:"path,omitempty"`
	Content string `json:"content,omitempty" yaml:"content,omitempty"`
	Command string `json:"command,omitempty" yaml:"command,omitempty"`
}

// IsFileKind reports whether the action mutates a single file
func (a Action) IsFileKind() bool {
	return a.Kind == KindCreate || a.Kind == KindModify || a.Kind == KindDelete
}

// FileBackup is the pre-image of a touched file, captured strictly
// before the underlying write or delete. PriorContent == nil means the
// file did not exist: rollback of a create must delete, rollback of a
// modify must restore.
type FileBackup struct {
	Path         string    `json:"path"`
	PriorContent *string   `json:"prior_content,omitempty"`
	CapturedAt   time.Time `json:"captured_at"`
}

// Existed reports whether the file existed before the action
func (b *FileBackup) Existed() bool {
	return b.PriorContent != nil
}

// LineDiff summarizes a write as added/removed/unchanged line counts
type LineDiff struct {
	Added     int `json:"added"`
	Removed   int `json:"removed"`
	Unchanged int `json:"unchanged"`
}

// Result is the terminal outcome of one action
type Result struct {
	Success bool      `json:"success"`
	Error   string    `json:"error,omitempty"`
	Output  string    `json:"output,omitempty"`
	Diff    *LineDiff `json:"diff,omitempty"`
	// RewrittenTo lists the tracked delete paths a shell command was
	// converted into
	RewrittenTo []string `json:"rewritten_to,omitempty"`
}

// QueuedAction wraps an Action with queue metadata. Created at enqueue
// time and mutated only by the executor.
type QueuedAction struct {
	ID          string      `json:"id"`
	Action      Action      `json:"action"`
	Status      Status      `json:"status"`
	EnqueuedAt  time.Time   `json:"enqueued_at"`
	StartedAt   time.Time   `json:"started_at,omitempty"`
	CompletedAt time.Time   `json:"completed_at,omitempty"`
	Backup      *FileBackup `json:"backup,omitempty"`
	Result      *Result     `json:"result,omitempty"`
}

// HistoryEntry archives a completed action. CanRollback is true only
// for successful file actions holding a backup; shell actions are never
// individually rollback-eligible.
type HistoryEntry struct {
	ID          string        `json:"id"`
	Action      *QueuedAction `json:"action"`
	Result      string        `json:"result"`
	Timestamp   time.Time     `json:"timestamp"`
	CanRollback bool          `json:"can_rollback"`
}

// History is an append-only ring of completed actions, oldest evicted
// first beyond the configured maximum
type History struct {
	mu      sync.Mutex
	entries []*HistoryEntry
	max     int
}

// DefaultHistorySize bounds the history ring when not configured
const DefaultHistorySize = 100

// NewHistory creates a bounded history ring
func NewHistory(max int) *History {
	if max <= 0 {
		max = DefaultHistorySize
	}
	return &History{max: max}
}

// Add appends an entry, evicting the oldest beyond capacity
func (h *History) Add(entry *HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append(h.entries, entry)
	if len(h.entries) > h.max {
		h.entries = h.entries[len(h.entries)-h.max:]
	}
}

// Entries returns a copy of the archive, oldest first
func (h *History) Entries() []*HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*HistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Find returns the entry with the given id
func (h *History) Find(id string) (*HistoryEntry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, e := range h.entries {
		if e.ID == id {
			return e, true
		}
	}
	return nil, false
}

// Len returns the number of archived entries
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
