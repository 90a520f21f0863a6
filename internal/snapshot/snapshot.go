// internal/snapshot/snapshot.go
package snapshot

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"codemedic/internal/diag"
)

// Snapshot is an immutable, labeled capture of project diagnostics
type Snapshot struct {
	ID         string            `json:"id"`
	Timestamp  time.Time         `json:"timestamp"`
	Label      string            `json:"label"`
	ErrorCount int               `json:"error_count"`
	ByFile     map[string]int    `json:"by_file"`
	Errors     []diag.Diagnostic `json:"errors"`
}

// FromDiagnostics builds a snapshot from a deduplicated diagnostic list
func FromDiagnostics(label string, errors []diag.Diagnostic) *Snapshot {
	errors = diag.Dedupe(errors)
	byFile := make(map[string]int)
	for _, e := range errors {
		byFile[e.File]++
	}
	return &Snapshot{
		ID:         uuid.New().String(),
		Timestamp:  time.Now(),
		Label:      label,
		ErrorCount: len(errors),
		ByFile:     byFile,
		Errors:     errors,
	}
}

// Tracker captures snapshots via a collector and holds the baseline
// that later snapshots are compared against
type Tracker struct {
	collector *diag.Collector

	mu       sync.Mutex
	baseline *Snapshot
}

// NewTracker creates a Tracker over the given collector
func NewTracker(collector *diag.Collector) *Tracker {
	return &Tracker{collector: collector}
}

// CaptureBaseline runs the configured checks and stores the result as
// the baseline for subsequent comparisons
func (t *Tracker) CaptureBaseline(ctx context.Context) (*Snapshot, error) {
	snap, err := t.capture(ctx, "baseline")
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.baseline = snap
	t.mu.Unlock()

	log.Printf("[Snapshot] Baseline captured: %d errors", snap.ErrorCount)
	return snap, nil
}

// CaptureSnapshot runs the configured checks without altering baseline
func (t *Tracker) CaptureSnapshot(ctx context.Context, label string) (*Snapshot, error) {
	return t.capture(ctx, label)
}

func (t *Tracker) capture(ctx context.Context, label string) (*Snapshot, error) {
	if t.collector == nil {
		return nil, fmt.Errorf("no collector configured")
	}
	results := t.collector.CollectAll(ctx)
	return FromDiagnostics(label, diag.AllDiagnostics(results)), nil
}

// Baseline returns the current baseline snapshot, or nil
func (t *Tracker) Baseline() *Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.baseline
}

// Reset discards the baseline
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.baseline = nil
}
