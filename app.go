// app.go
package main

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"codemedic/internal/action"
	"codemedic/internal/checkpoint"
	"codemedic/internal/config"
	"codemedic/internal/detect"
	"codemedic/internal/diag"
	"codemedic/internal/events"
	"codemedic/internal/evidence"
	"codemedic/internal/host"
	"codemedic/internal/ptyrun"
	"codemedic/internal/rollback"
	"codemedic/internal/safety"
	"codemedic/internal/snapshot"
	"codemedic/internal/store"
	"codemedic/internal/verify"
	"codemedic/internal/watcher"
)

// Session owns one project's verification-and-recovery engine: the
// executor, diagnostics collector, rollback controller, checkpoint
// manager, and evidence reporter, all sharing one host and event hub.
type Session struct {
	ProjectPath string

	cfg        *config.Config
	host       *host.Local
	hub        *events.Hub
	collector  *diag.Collector
	tracker    *snapshot.Tracker
	verifier   *verify.Verifier
	executor   *action.Executor
	controller *rollback.Controller
	checkpoint *checkpoint.Manager
	reporter   *evidence.Reporter
	store      *store.Store
	watcher    *watcher.Watcher
}

// NewSession wires a session for the project at projectPath
func NewSession(ctx context.Context, projectPath string) (*Session, error) {
	abs, err := filepath.Abs(projectPath)
	if err != nil {
		return nil, fmt.Errorf("resolve project path: %w", err)
	}

	cfg, err := config.Load(abs)
	if err != nil {
		return nil, err
	}

	s := &Session{
		ProjectPath: abs,
		cfg:         cfg,
		host:        host.NewLocal(abs),
		hub:         events.New(ctx),
		reporter:    evidence.NewReporter(),
	}

	// Detectors: config overrides first, then package.json probing
	var detectors []detect.Detector
	if overrides := cfg.ToolOverrides(); overrides != nil {
		detectors = append(detectors, overrides)
	}
	detectors = append(detectors, detect.NewNodeDetector(abs))
	detector := &detect.Layered{Detectors: detectors}

	s.collector = diag.NewCollector(s.host, detector,
		diag.WithTimeout(cfg.Timeout()),
		diag.WithFamilies(cfg.Families()...),
		diag.WithHub(s.hub),
	)
	s.tracker = snapshot.NewTracker(s.collector)

	verifyOpts := []verify.Option{}
	if cfg.Verify.Policy == "critical-only" {
		verifyOpts = append(verifyOpts,
			verify.WithPolicy(verify.PolicyCriticalOnly),
			verify.WithCriticalCodes(cfg.Verify.CriticalCodes...),
		)
	}
	s.verifier = verify.New(s.collector, verifyOpts...)

	executorOpts := []action.Option{
		action.WithHub(s.hub),
		action.WithHistorySize(cfg.Rollback.HistorySize),
	}
	if cfg.Verify.Enabled {
		executorOpts = append(executorOpts, action.WithVerifier(s.verifier))
	}
	s.executor = action.NewExecutor(s.host, executorOpts...)

	s.controller = rollback.New(s.host, s.tracker,
		rollback.WithThreshold(cfg.Rollback.Threshold),
		rollback.WithAutoRollback(cfg.Rollback.Auto),
		rollback.WithVerifier(s.verifier),
		rollback.WithHub(s.hub),
	)

	checkpointOpts := []checkpoint.Option{
		checkpoint.WithMax(cfg.Checkpoints.Max),
		checkpoint.WithHub(s.hub),
		checkpoint.WithProjectPath(abs),
	}
	if cfg.Checkpoints.Persist {
		if dir, err := config.CheckpointDir(abs); err == nil {
			checkpointOpts = append(checkpointOpts, checkpoint.WithStorage(checkpoint.NewStorage(dir, 3)))
		}
	}
	s.checkpoint = checkpoint.NewManager(s.host, checkpointOpts...)

	if dbPath, err := config.DatabasePath(); err == nil {
		if db, err := store.Open(dbPath); err == nil {
			s.store = db
		} else {
			log.Printf("[Session] Session store unavailable: %v", err)
		}
	}

	return s, nil
}

// SetEmitter routes engine events to the presentation layer
func (s *Session) SetEmitter(e events.Emitter) {
	s.hub.SetEmitter(e)
}

// Hub exposes the event hub for component-level wiring
func (s *Session) Hub() *events.Hub {
	return s.hub
}

// StartWatcher begins reporting out-of-band project edits
func (s *Session) StartWatcher() error {
	w, err := watcher.New(s.ProjectPath, s.hub)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		w.Close()
		return err
	}
	s.watcher = w
	return nil
}

// BatchResult summarizes one ApplyBatch run
type BatchResult struct {
	Actions    []*action.QueuedAction `json:"actions"`
	Baseline   *snapshot.Snapshot     `json:"baseline"`
	Comparison *snapshot.Comparison   `json:"comparison"`
	RolledBack bool                   `json:"rolled_back"`
	Rollback   *rollback.Result       `json:"rollback,omitempty"`
	Report     string                 `json:"report"`
}

// ApplyBatch runs the full transaction: capture baseline, apply the
// actions, re-measure, decide, and roll back when the project got
// worse. The evidence reporter records before/after counts either way.
func (s *Session) ApplyBatch(ctx context.Context, actions []action.Action) (*BatchResult, error) {
	// Baseline pass: one diagnostics run feeds counts and snapshot
	s.hub.EmitProgress("Capturing baseline diagnostics...")
	preResults := s.collector.CollectAll(ctx)
	s.reporter.CapturePreChangeState(evidence.CountsFromResults(preResults))
	baseline := snapshot.FromDiagnostics("baseline", diag.AllDiagnostics(preResults))
	s.controller.StartTrackingWith(baseline)

	// Record every file mutation before the executor applies it. Shell
	// actions the classifier rewrites into deletes are tracked the same
	// way, so a batch rollback restores files removed via the shell.
	for _, a := range actions {
		switch {
		case a.IsFileKind():
			if err := s.controller.RecordChange(a.Path, changeKind(a.Kind), a.Content); err != nil {
				return nil, err
			}
			if s.watcher != nil {
				s.watcher.Suppress(a.Path)
			}
		case a.Kind == action.KindShell:
			verdict := safety.Classify(a.Command)
			if verdict.Kind != safety.RewriteDeletes {
				continue
			}
			for _, path := range verdict.Paths {
				if err := s.controller.RecordChange(path, rollback.ChangeDelete, ""); err != nil {
					return nil, err
				}
				if s.watcher != nil {
					s.watcher.Suppress(path)
				}
			}
		}
	}

	queued := s.executor.Enqueue(actions)
	s.executor.ProcessQueue(ctx)
	s.persistHistory()

	// Re-measure and decide
	s.hub.EmitProgress("Re-measuring diagnostics after changes...")
	postResults := s.collector.CollectAll(ctx)
	s.reporter.CapturePostChangeState(evidence.CountsFromResults(postResults))
	post := snapshot.FromDiagnostics("post-change", diag.AllDiagnostics(postResults))
	cmp := snapshot.Compare(baseline, post)

	result := &BatchResult{
		Actions:    queued,
		Baseline:   baseline,
		Comparison: cmp,
	}

	if !cmp.Acceptable(s.cfg.Rollback.Threshold) && s.cfg.Rollback.Auto {
		s.hub.EmitRollbackTriggered(events.RollbackEvent{Reason: cmp.Summary})
		result.RolledBack = true
		result.Rollback = s.controller.Rollback()
		log.Printf("[Session] Batch rolled back: %s", cmp.Summary)
	} else {
		s.controller.Commit()
	}

	result.Report = s.reporter.GenerateReport()
	return result, nil
}

// RunInteractive executes a shell command inside a pseudo-terminal,
// streaming raw output through the event hub. Destructive commands are
// refused under the same rules as queued shell actions.
func (s *Session) RunInteractive(ctx context.Context, command string) error {
	verdict := safety.Classify(command)
	if verdict.Kind == safety.Block {
		return fmt.Errorf("refusing to run %q: %s", command, verdict.Reason)
	}
	runner := ptyrun.New(24, 80)
	return runner.Run(ctx, command, s.ProjectPath, func(data []byte) {
		s.hub.EmitTerminal(data)
	})
}

// Verify runs all configured diagnostics and returns the results
func (s *Session) Verify(ctx context.Context) []*diag.Result {
	return s.collector.CollectAll(ctx)
}

// CaptureEvidence records a diagnostics pass as pre- or post-change
// state for the evidence reporter
func (s *Session) CaptureEvidence(ctx context.Context, post bool) []*diag.Result {
	results := s.collector.CollectAll(ctx)
	counts := evidence.CountsFromResults(results)
	if post {
		s.reporter.CapturePostChangeState(counts)
	} else {
		s.reporter.CapturePreChangeState(counts)
	}
	return results
}

// Reporter exposes the evidence reporter
func (s *Session) Reporter() *evidence.Reporter {
	return s.reporter
}

// Executor exposes the action executor
func (s *Session) Executor() *action.Executor {
	return s.executor
}

// Controller exposes the rollback controller
func (s *Session) Controller() *rollback.Controller {
	return s.controller
}

// Checkpoints exposes the checkpoint manager
func (s *Session) Checkpoints() *checkpoint.Manager {
	return s.checkpoint
}

// CreateCheckpoint snapshots the given paths under a name, indexing it
// in the session store when available
func (s *Session) CreateCheckpoint(name string, paths []string, description string) (*checkpoint.Checkpoint, error) {
	cp, err := s.checkpoint.Create(name, paths, checkpoint.CreateOptions{Description: description})
	if err != nil {
		return nil, err
	}
	if s.store != nil {
		if err := s.store.SaveCheckpoint(cp); err != nil {
			log.Printf("[Session] Checkpoint index write failed: %v", err)
		}
	}
	return cp, nil
}

// RestoreCheckpoint writes a checkpoint's files back to the project
func (s *Session) RestoreCheckpoint(id string) (*checkpoint.RestoreResult, error) {
	if s.watcher != nil {
		if cp, err := s.checkpoint.Get(id); err == nil {
			for _, f := range cp.Files {
				s.watcher.Suppress(f.Path)
			}
		}
	}
	return s.checkpoint.Restore(id)
}

// History returns the durable action history, newest first
func (s *Session) History(limit int) ([]store.HistoryRecord, error) {
	if s.store == nil {
		return nil, fmt.Errorf("session store unavailable")
	}
	return s.store.ListHistory(limit)
}

// persistHistory flushes the in-memory history ring to the store
func (s *Session) persistHistory() {
	if s.store == nil {
		return
	}
	for _, entry := range s.executor.History().Entries() {
		if err := s.store.SaveHistoryEntry(entry); err != nil {
			log.Printf("[Session] History write failed: %v", err)
			return
		}
	}
}

// Close releases the watcher and store
func (s *Session) Close() {
	if s.watcher != nil {
		s.watcher.Close()
	}
	if s.store != nil {
		s.store.Close()
	}
}

func changeKind(kind action.Kind) rollback.ChangeKind {
	switch kind {
	case action.KindCreate:
		return rollback.ChangeCreate
	case action.KindDelete:
		return rollback.ChangeDelete
	default:
		return rollback.ChangeModify
	}
}
