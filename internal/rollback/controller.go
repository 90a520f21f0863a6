// internal/rollback/controller.go
package rollback

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"codemedic/internal/events"
	"codemedic/internal/host"
	"codemedic/internal/snapshot"
	"codemedic/internal/verify"
)

// ChangeKind is the kind of a tracked file change
type ChangeKind string

const (
	ChangeCreate ChangeKind = "create"
	ChangeModify ChangeKind = "modify"
	ChangeDelete ChangeKind = "delete"
)

// Severity grades a rollback decision
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// FileChange is one tracked mutation inside a batch. RolledBack is a
// one-way flag.
type FileChange struct {
	Path            string         `json:"path"`
	Kind            ChangeKind     `json:"kind"`
	OriginalContent *string        `json:"original_content,omitempty"`
	NewContent      *string        `json:"new_content,omitempty"`
	Timestamp       time.Time      `json:"timestamp"`
	RolledBack      bool           `json:"rolled_back"`
	VerifyResult    *verify.Result `json:"verify_result,omitempty"`
}

// Decision is a pure value computed from diagnostics evidence
type Decision struct {
	ShouldRollback  bool     `json:"should_rollback"`
	Reason          string   `json:"reason"`
	FilesToRollback []string `json:"files_to_rollback"`
	Severity        Severity `json:"severity"`
}

// RestoreError records a single failed path during rollback
type RestoreError struct {
	Path string `json:"path"`
	Err  string `json:"error"`
}

// Result aggregates a rollback pass. Success means no failures; a
// partial failure never aborts restoration of the remaining files.
type Result struct {
	Success  bool           `json:"success"`
	Restored []string       `json:"restored"`
	Failures []RestoreError `json:"failures,omitempty"`
}

// ErrNotTracking is returned when a batch operation runs before
// StartTracking
var ErrNotTracking = errors.New("no batch is being tracked")

// Controller tracks one batch of changes between StartTracking and a
// rollback-or-commit decision. Batches do not nest.
type Controller struct {
	host     host.Host
	tracker  *snapshot.Tracker
	verifier *verify.Verifier
	hub      *events.Hub

	// threshold is the accepted error-count increase; rollback is
	// recommended only above it
	threshold    int
	autoRollback bool

	mu       sync.Mutex
	tracking bool
	baseline *snapshot.Snapshot
	changes  map[string]*FileChange
}

// Option configures a Controller
type Option func(*Controller)

// WithThreshold sets the accepted error-count increase (default 0)
func WithThreshold(n int) Option {
	return func(c *Controller) { c.threshold = n }
}

// WithAutoRollback makes CheckErrorIncrease execute the rollback it
// recommends
func WithAutoRollback(enabled bool) Option {
	return func(c *Controller) { c.autoRollback = enabled }
}

// WithVerifier enables VerifyAndDecide
func WithVerifier(v *verify.Verifier) Option {
	return func(c *Controller) { c.verifier = v }
}

// WithHub attaches an event hub
func WithHub(hub *events.Hub) Option {
	return func(c *Controller) { c.hub = hub }
}

// New creates a Controller
func New(h host.Host, tracker *snapshot.Tracker, opts ...Option) *Controller {
	c := &Controller{
		host:    h,
		tracker: tracker,
		changes: make(map[string]*FileChange),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StartTracking clears all prior state and captures a fresh baseline
func (c *Controller) StartTracking(ctx context.Context) (*snapshot.Snapshot, error) {
	baseline, err := c.tracker.CaptureBaseline(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture baseline: %w", err)
	}

	c.mu.Lock()
	c.tracking = true
	c.baseline = baseline
	c.changes = make(map[string]*FileChange)
	c.mu.Unlock()

	log.Printf("[Rollback] Tracking started, baseline has %d errors", baseline.ErrorCount)
	return baseline, nil
}

// StartTrackingWith begins a batch against a caller-supplied baseline,
// for callers that already ran the diagnostics pass
func (c *Controller) StartTrackingWith(baseline *snapshot.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracking = true
	c.baseline = baseline
	c.changes = make(map[string]*FileChange)
}

// RecordChange captures the original content of path before the caller
// mutates it. Re-recording a path overwrites the tracked change.
func (c *Controller) RecordChange(path string, kind ChangeKind, newContent string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.tracking {
		return ErrNotTracking
	}

	var original *string
	if content, err := c.host.ReadFile(path); err == nil {
		original = &content
	}

	change := &FileChange{
		Path:      path,
		Kind:      kind,
		Timestamp: time.Now(),
	}
	if kind != ChangeDelete {
		change.NewContent = &newContent
	}
	if kind != ChangeCreate || original != nil {
		// A create that overwrites a pre-existing file keeps the prior
		// content so rollback restores rather than deletes
		change.OriginalContent = original
	}

	c.changes[path] = change
	return nil
}

// Changes returns a copy of the tracked changes
func (c *Controller) Changes() []*FileChange {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*FileChange, 0, len(c.changes))
	for _, ch := range c.changes {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// CheckErrorIncrease re-snapshots the project and compares against the
// baseline. Above the threshold, every tracked path becomes a rollback
// candidate; with auto-rollback enabled the rollback also executes.
func (c *Controller) CheckErrorIncrease(ctx context.Context) (*Decision, *snapshot.Comparison, error) {
	c.mu.Lock()
	if !c.tracking {
		c.mu.Unlock()
		return nil, nil, ErrNotTracking
	}
	baseline := c.baseline
	c.mu.Unlock()

	current, err := c.tracker.CaptureSnapshot(ctx, "post-change")
	if err != nil {
		return nil, nil, fmt.Errorf("capture snapshot: %w", err)
	}

	cmp := snapshot.Compare(baseline, current)
	decision := &Decision{Severity: SeverityNone, Reason: cmp.Summary}

	if !cmp.Acceptable(c.threshold) {
		decision.ShouldRollback = true
		decision.FilesToRollback = c.trackedPaths()
		decision.Severity = SeverityError
		if cmp.Delta > c.threshold+5 {
			decision.Severity = SeverityCritical
		}
		decision.Reason = fmt.Sprintf("error count rose from %d to %d (threshold %d): %s",
			baseline.ErrorCount, current.ErrorCount, c.threshold, cmp.Summary)
	} else if len(cmp.NewErrors) > 0 {
		decision.Severity = SeverityWarning
	}

	if decision.ShouldRollback && c.autoRollback {
		c.emitTriggered(decision)
		result := c.Rollback(decision.FilesToRollback...)
		log.Printf("[Rollback] Auto rollback restored %d file(s), %d failure(s)",
			len(result.Restored), len(result.Failures))
	}

	return decision, cmp, nil
}

// VerifyAndDecide runs the per-file verifier and flags just that path
func (c *Controller) VerifyAndDecide(ctx context.Context, path string) (*Decision, error) {
	c.mu.Lock()
	if !c.tracking {
		c.mu.Unlock()
		return nil, ErrNotTracking
	}
	change := c.changes[path]
	verifier := c.verifier
	c.mu.Unlock()

	if verifier == nil {
		return nil, fmt.Errorf("no verifier configured")
	}

	vr := verifier.VerifyFile(ctx, path)
	if change != nil {
		c.mu.Lock()
		change.VerifyResult = vr
		c.mu.Unlock()
	}

	decision := &Decision{Severity: SeverityNone, Reason: "file verified clean"}
	if vr.ShouldRollback {
		decision.ShouldRollback = true
		decision.FilesToRollback = []string{path}
		decision.Severity = SeverityError
		decision.Reason = vr.RollbackReason
	} else if !vr.Passed {
		// Verification tooling failed; not evidence against the edit
		decision.Severity = SeverityWarning
		decision.Reason = "verification tool failed; no rollback"
	}
	return decision, nil
}

// Rollback restores the given paths (default: all tracked paths not
// yet rolled back) in reverse chronological order, newest first. A
// failed path is collected and the remaining files still restore.
func (c *Controller) Rollback(paths ...string) *Result {
	c.mu.Lock()
	var targets []*FileChange
	if len(paths) == 0 {
		for _, ch := range c.changes {
			if !ch.RolledBack {
				targets = append(targets, ch)
			}
		}
	} else {
		for _, p := range paths {
			if ch, ok := c.changes[p]; ok && !ch.RolledBack {
				targets = append(targets, ch)
			}
		}
	}
	c.mu.Unlock()

	// Newest first: later changes may depend on earlier ones
	sort.Slice(targets, func(i, j int) bool {
		return targets[i].Timestamp.After(targets[j].Timestamp)
	})

	result := &Result{Success: true}
	for _, ch := range targets {
		if err := c.restore(ch); err != nil {
			result.Failures = append(result.Failures, RestoreError{Path: ch.Path, Err: err.Error()})
			continue
		}
		c.mu.Lock()
		ch.RolledBack = true
		c.mu.Unlock()
		result.Restored = append(result.Restored, ch.Path)
		c.emitFSChanged(ch.Path)
	}
	result.Success = len(result.Failures) == 0

	if c.hub != nil {
		c.hub.EmitRollbackCompleted(events.RollbackEvent{
			Paths:    paths,
			Restored: len(result.Restored),
			Failed:   len(result.Failures),
		})
	}
	return result
}

// Commit ends the batch, keeping all changes in place
func (c *Controller) Commit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracking = false
	c.changes = make(map[string]*FileChange)
	c.baseline = nil
	c.tracker.Reset()
}

// Tracking reports whether a batch is active
func (c *Controller) Tracking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracking
}

// Baseline returns the batch baseline snapshot
func (c *Controller) Baseline() *snapshot.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.baseline
}

// restore reverses one change according to its kind
func (c *Controller) restore(ch *FileChange) error {
	switch ch.Kind {
	case ChangeCreate:
		if ch.OriginalContent != nil {
			// The create overwrote a pre-existing file
			return c.host.WriteFile(ch.Path, *ch.OriginalContent)
		}
		return c.host.Remove(ch.Path)

	case ChangeModify:
		if ch.OriginalContent == nil {
			return fmt.Errorf("no original content recorded for %s", ch.Path)
		}
		return c.host.WriteFile(ch.Path, *ch.OriginalContent)

	case ChangeDelete:
		if ch.OriginalContent == nil {
			// The file was already absent when the delete was recorded;
			// there is nothing to put back
			return nil
		}
		if dir := filepath.Dir(ch.Path); dir != "." && dir != "/" {
			if err := c.host.MkdirAll(dir); err != nil {
				return fmt.Errorf("recreate parent directory: %w", err)
			}
		}
		return c.host.WriteFile(ch.Path, *ch.OriginalContent)

	default:
		return fmt.Errorf("unknown change kind: %s", ch.Kind)
	}
}

func (c *Controller) trackedPaths() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	paths := make([]string, 0, len(c.changes))
	for path, ch := range c.changes {
		if !ch.RolledBack {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths
}

func (c *Controller) emitTriggered(d *Decision) {
	if c.hub == nil {
		return
	}
	c.hub.EmitRollbackTriggered(events.RollbackEvent{
		Reason: d.Reason,
		Paths:  d.FilesToRollback,
	})
}

func (c *Controller) emitFSChanged(path string) {
	if c.hub == nil {
		return
	}
	c.hub.EmitFileSystemChanged(events.FileSystemChangedEvent{Path: path, Kind: "restore"})
}
