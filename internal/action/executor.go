// internal/action/executor.go
package action

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sergi/go-diff/diffmatchpatch"

	"codemedic/internal/events"
	"codemedic/internal/host"
	"codemedic/internal/safety"
	"codemedic/internal/verify"
)

// Executor drains a queue of actions strictly in FIFO order, one at a
// time. Every file mutation captures a backup before the write, so
// rollback correctness depends on this total ordering.
type Executor struct {
	host     host.Host
	hub      *events.Hub
	verifier *verify.Verifier
	history  *History

	// verifyWrites enables the per-file verification hook after each
	// successful write, with same-action restore on failure
	verifyWrites bool

	mu         sync.Mutex
	queue      []*QueuedAction
	processing bool
}

// Option configures an Executor
type Option func(*Executor)

// WithHub attaches an event hub
func WithHub(hub *events.Hub) Option {
	return func(e *Executor) { e.hub = hub }
}

// WithVerifier enables post-write per-file verification
func WithVerifier(v *verify.Verifier) Option {
	return func(e *Executor) {
		e.verifier = v
		e.verifyWrites = v != nil
	}
}

// WithHistorySize bounds the execution history ring
func WithHistorySize(max int) Option {
	return func(e *Executor) { e.history = NewHistory(max) }
}

// NewExecutor creates an Executor over the given host
func NewExecutor(h host.Host, opts ...Option) *Executor {
	e := &Executor{
		host:    h,
		history: NewHistory(DefaultHistorySize),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// History returns the execution history ring
func (e *Executor) History() *History {
	return e.history
}

// Enqueue adds actions to the queue and returns their queue wrappers
func (e *Executor) Enqueue(actions []Action) []*QueuedAction {
	e.mu.Lock()
	defer e.mu.Unlock()

	queued := make([]*QueuedAction, 0, len(actions))
	for _, a := range actions {
		qa := &QueuedAction{
			ID:         uuid.New().String(),
			Action:     a,
			Status:     StatusPending,
			EnqueuedAt: time.Now(),
		}
		e.queue = append(e.queue, qa)
		queued = append(queued, qa)
	}
	return queued
}

// ProcessQueue drains the queue sequentially. A failed action does not
// stop the queue; stop-on-error is a caller-level policy.
func (e *Executor) ProcessQueue(ctx context.Context) []*QueuedAction {
	e.mu.Lock()
	if e.processing {
		e.mu.Unlock()
		return nil
	}
	e.processing = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.processing = false
		e.mu.Unlock()
	}()

	var processed []*QueuedAction
	for {
		e.mu.Lock()
		if len(e.queue) == 0 {
			e.mu.Unlock()
			return processed
		}
		qa := e.queue[0]
		e.queue = e.queue[1:]
		e.mu.Unlock()

		e.execute(ctx, qa)
		processed = append(processed, qa)
	}
}

// QueueLen returns the number of pending actions
func (e *Executor) QueueLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// execute runs one action to completion and archives it
func (e *Executor) execute(ctx context.Context, qa *QueuedAction) {
	qa.Status = StatusExecuting
	qa.StartedAt = time.Now()
	e.emitStarted(qa)

	var result *Result
	switch qa.Action.Kind {
	case KindCreate, KindModify:
		result = e.executeWrite(ctx, qa)
	case KindDelete:
		result = e.executeDelete(qa)
	case KindShell:
		result = e.executeShell(ctx, qa)
	default:
		result = &Result{Success: false, Error: fmt.Sprintf("unknown action kind: %s", qa.Action.Kind)}
	}

	qa.Result = result
	qa.CompletedAt = time.Now()
	if result.Success {
		qa.Status = StatusSuccess
		e.emitCompleted(qa)
	} else {
		qa.Status = StatusError
		e.emitErrored(qa)
	}

	e.archive(qa)
}

// executeWrite applies a create or modify: backup, mkdir, write, diff
func (e *Executor) executeWrite(ctx context.Context, qa *QueuedAction) *Result {
	path := qa.Action.Path

	// Capture pre-image strictly before the write. A read failure is
	// treated as absent.
	var prior *string
	if content, err := e.host.ReadFile(path); err == nil {
		prior = &content
	} else if !errors.Is(err, host.ErrNotFound) {
		log.Printf("[Executor] Backup read failed for %s: %v (treating as absent)", path, err)
	}
	qa.Backup = &FileBackup{
		Path:         path,
		PriorContent: prior,
		CapturedAt:   time.Now(),
	}

	if dir := filepath.Dir(path); dir != "." && dir != "/" {
		if err := e.host.MkdirAll(dir); err != nil {
			return &Result{Success: false, Error: fmt.Sprintf("create parent directory: %v", err)}
		}
	}

	if err := e.host.WriteFile(path, qa.Action.Content); err != nil {
		return &Result{Success: false, Error: fmt.Sprintf("write %s: %v", path, err)}
	}

	old := ""
	if prior != nil {
		old = *prior
	}
	result := &Result{Success: true, Diff: lineDiff(old, qa.Action.Content)}
	e.emitFSChanged(path, string(qa.Action.Kind))

	// Optional per-file verification with same-action restore: the
	// just-written file is put back before the action reports failure
	if e.verifyWrites && e.verifier != nil {
		vr := e.verifier.VerifyFile(ctx, path)
		if vr.ShouldRollback {
			if err := e.restoreBackup(qa.Backup); err != nil {
				return &Result{
					Success: false,
					Error:   fmt.Sprintf("verification failed (%s) and restore also failed: %v", vr.RollbackReason, err),
				}
			}
			e.emitFSChanged(path, "restore")
			return &Result{Success: false, Error: fmt.Sprintf("verification failed: %s (file restored)", vr.RollbackReason)}
		}
	}

	return result
}

// executeDelete removes a file, backing it up first. Deleting a
// missing file succeeds as a no-op with nothing to track.
func (e *Executor) executeDelete(qa *QueuedAction) *Result {
	path := qa.Action.Path

	if !e.host.Exists(path) {
		return &Result{Success: true, Output: "no-op: file does not exist"}
	}

	// Directories are removable but not content-restorable; only plain
	// files get a backup
	if content, err := e.host.ReadFile(path); err == nil {
		qa.Backup = &FileBackup{
			Path:         path,
			PriorContent: &content,
			CapturedAt:   time.Now(),
		}
	}

	if err := e.host.Remove(path); err != nil {
		return &Result{Success: false, Error: fmt.Sprintf("remove %s: %v", path, err)}
	}
	e.emitFSChanged(path, "delete")
	return &Result{Success: true}
}

// executeShell classifies then runs a shell command. Deletion commands
// become tracked delete actions; destructive git commands are blocked.
func (e *Executor) executeShell(ctx context.Context, qa *QueuedAction) *Result {
	command := qa.Action.Command
	verdict := safety.Classify(command)

	switch verdict.Kind {
	case safety.Block:
		log.Printf("[Executor] Blocked shell command: %s (%s)", command, verdict.Reason)
		return &Result{Success: false, Error: fmt.Sprintf("command blocked: %s", verdict.Reason)}

	case safety.RewriteDeletes:
		e.emitProgress(fmt.Sprintf("Rewriting %q into %d tracked delete(s)", command, len(verdict.Paths)))
		allOK := true
		var failures []string
		for _, path := range verdict.Paths {
			child := &QueuedAction{
				ID:         uuid.New().String(),
				Action:     Action{Kind: KindDelete, Path: path},
				Status:     StatusPending,
				EnqueuedAt: time.Now(),
			}
			e.execute(ctx, child)
			if child.Status != StatusSuccess {
				allOK = false
				failures = append(failures, fmt.Sprintf("%s: %s", path, child.Result.Error))
			}
		}
		result := &Result{Success: allOK, RewrittenTo: verdict.Paths}
		if !allOK {
			result.Error = strings.Join(failures, "; ")
		}
		return result
	}

	var listener func([]byte)
	if e.hub != nil {
		listener = e.hub.EmitTerminal
	}
	exitCode, output, err := e.host.Spawn(ctx, []string{"sh", "-c", command}, "", listener)
	if err != nil {
		return &Result{Success: false, Error: fmt.Sprintf("spawn: %v", err), Output: string(output)}
	}
	if exitCode != 0 {
		return &Result{Success: false, Error: fmt.Sprintf("exit code %d", exitCode), Output: string(output)}
	}
	return &Result{Success: true, Output: string(output)}
}

// restoreBackup reverses a single write from its pre-image
func (e *Executor) restoreBackup(b *FileBackup) error {
	if b.Existed() {
		return e.host.WriteFile(b.Path, *b.PriorContent)
	}
	return e.host.Remove(b.Path)
}

// RollbackEntry restores a single archived action from its backup.
// Idempotent: a second call on an already-rolled-back entry is a no-op.
func (e *Executor) RollbackEntry(id string) error {
	entry, ok := e.history.Find(id)
	if !ok {
		return fmt.Errorf("history entry not found: %s", id)
	}
	if !entry.CanRollback {
		return nil
	}
	if entry.Action.Backup == nil {
		return fmt.Errorf("entry %s has no backup", id)
	}

	if err := e.restoreBackup(entry.Action.Backup); err != nil {
		return fmt.Errorf("restore %s: %w", entry.Action.Backup.Path, err)
	}
	entry.CanRollback = false
	e.emitFSChanged(entry.Action.Backup.Path, "restore")
	return nil
}

// archive appends the completed action to history
func (e *Executor) archive(qa *QueuedAction) {
	resultText := "success"
	if qa.Status == StatusError {
		resultText = qa.Result.Error
	}
	e.history.Add(&HistoryEntry{
		ID:          qa.ID,
		Action:      qa,
		Result:      resultText,
		Timestamp:   qa.CompletedAt,
		CanRollback: qa.Status == StatusSuccess && qa.Action.IsFileKind() && qa.Backup != nil,
	})
}

// lineDiff computes added/removed/unchanged line counts between two
// contents using a line-granular diff
func lineDiff(old, new string) *LineDiff {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(old, new)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	d := &LineDiff{}
	for _, diff := range diffs {
		n := countLines(diff.Text)
		switch diff.Type {
		case diffmatchpatch.DiffInsert:
			d.Added += n
		case diffmatchpatch.DiffDelete:
			d.Removed += n
		default:
			d.Unchanged += n
		}
	}
	return d
}

func countLines(text string) int {
	if text == "" {
		return 0
	}
	n := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}

func (e *Executor) emitStarted(qa *QueuedAction) {
	if e.hub == nil {
		return
	}
	e.hub.EmitActionStarted(actionEvent(qa))
}

func (e *Executor) emitCompleted(qa *QueuedAction) {
	if e.hub == nil {
		return
	}
	e.hub.EmitActionCompleted(actionEvent(qa))
}

func (e *Executor) emitErrored(qa *QueuedAction) {
	if e.hub == nil {
		return
	}
	e.hub.EmitActionErrored(actionEvent(qa))
}

func (e *Executor) emitFSChanged(path, kind string) {
	if e.hub == nil {
		return
	}
	e.hub.EmitFileSystemChanged(events.FileSystemChangedEvent{Path: path, Kind: kind})
}

func (e *Executor) emitProgress(message string) {
	if e.hub == nil {
		return
	}
	e.hub.EmitProgress(message)
}

func actionEvent(qa *QueuedAction) events.ActionEvent {
	ev := events.ActionEvent{
		ActionID: qa.ID,
		Kind:     string(qa.Action.Kind),
		Path:     qa.Action.Path,
		Command:  qa.Action.Command,
		Status:   string(qa.Status),
	}
	if qa.Result != nil {
		ev.Error = qa.Result.Error
	}
	return ev
}
