// internal/checkpoint/manager.go
package checkpoint

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"codemedic/internal/events"
	"codemedic/internal/gitinfo"
	"codemedic/internal/host"
)

// DefaultMaxCheckpoints bounds the checkpoint collection when not
// configured; oldest checkpoints are evicted first
const DefaultMaxCheckpoints = 20

// ErrNotFound is returned when a checkpoint id is unknown
var ErrNotFound = errors.New("checkpoint not found")

// CreateOptions tunes checkpoint creation
type CreateOptions struct {
	Description string
	// ErrorCount records the diagnostics error count at creation time
	ErrorCount *int
}

// Manager holds named, manually-triggered multi-file snapshots,
// independent of per-action backups. Unlike the rollback controller,
// which tracks changes incrementally, a checkpoint is a full
// point-in-time capture of exactly the requested paths.
type Manager struct {
	host        host.Host
	storage     *Storage
	hub         *events.Hub
	projectPath string
	max         int

	mu          sync.Mutex
	checkpoints map[string]*Checkpoint
	order       []string
}

// Option configures a Manager
type Option func(*Manager)

// WithStorage enables durable persistence of checkpoints
func WithStorage(storage *Storage) Option {
	return func(m *Manager) { m.storage = storage }
}

// WithMax bounds the number of retained checkpoints
func WithMax(max int) Option {
	return func(m *Manager) { m.max = max }
}

// WithHub attaches an event hub
func WithHub(hub *events.Hub) Option {
	return func(m *Manager) { m.hub = hub }
}

// WithProjectPath enables git annotation of checkpoints
func WithProjectPath(path string) Option {
	return func(m *Manager) { m.projectPath = path }
}

// NewManager creates a checkpoint manager over the given host
func NewManager(h host.Host, opts ...Option) *Manager {
	m := &Manager{
		host:        h,
		max:         DefaultMaxCheckpoints,
		checkpoints: make(map[string]*Checkpoint),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create captures the current content (or absence) of exactly the
// requested paths. Eviction of the oldest checkpoint past the cap
// never blocks creation.
func (m *Manager) Create(name string, paths []string, opts CreateOptions) (*Checkpoint, error) {
	if name == "" {
		return nil, fmt.Errorf("checkpoint name is required")
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("at least one path is required")
	}

	cp := &Checkpoint{
		ID:          uuid.New().String(),
		Name:        name,
		Description: opts.Description,
		Timestamp:   time.Now(),
		ErrorCount:  opts.ErrorCount,
	}
	if m.projectPath != "" {
		cp.Git = gitinfo.TryAnnotate(m.projectPath)
	}

	for _, path := range paths {
		snap := FileSnapshot{Path: path}
		if content, err := m.host.ReadFile(path); err == nil {
			snap.Content = content
			snap.Existed = true
			snap.Hash = HashContent(content)
		}
		cp.Files = append(cp.Files, snap)
	}

	m.mu.Lock()
	m.checkpoints[cp.ID] = cp
	m.order = append(m.order, cp.ID)
	evicted := m.evictLocked()
	m.mu.Unlock()

	if m.storage != nil {
		if err := m.storage.Save(cp); err != nil {
			log.Printf("[Checkpoint] Persist failed for %s: %v", cp.Name, err)
		}
		for _, id := range evicted {
			m.storage.Delete(id)
		}
	}

	if m.hub != nil {
		m.hub.EmitCheckpointCreated(events.CheckpointEvent{
			CheckpointID: cp.ID,
			Name:         cp.Name,
			Files:        len(cp.Files),
		})
	}
	log.Printf("[Checkpoint] Created %q with %d file(s)", name, len(cp.Files))
	return cp, nil
}

// evictLocked drops the oldest checkpoints beyond the cap. Caller holds
// the lock. Returns the evicted ids.
func (m *Manager) evictLocked() []string {
	var evicted []string
	for len(m.order) > m.max {
		oldest := m.order[0]
		m.order = m.order[1:]
		delete(m.checkpoints, oldest)
		evicted = append(evicted, oldest)
	}
	return evicted
}

// Restore writes back every snapshot file, deleting files that did not
// exist at checkpoint time. Per-file failures are collected.
func (m *Manager) Restore(id string) (*RestoreResult, error) {
	cp, err := m.Get(id)
	if err != nil {
		return nil, err
	}

	result := &RestoreResult{CheckpointID: id, Success: true}
	for _, snap := range cp.Files {
		if err := m.restoreFile(snap); err != nil {
			result.Failures = append(result.Failures, RestoreError{Path: snap.Path, Err: err.Error()})
			continue
		}
		result.Restored = append(result.Restored, snap.Path)
	}
	result.Success = len(result.Failures) == 0

	if m.hub != nil {
		m.hub.EmitCheckpointRestored(events.CheckpointEvent{
			CheckpointID: cp.ID,
			Name:         cp.Name,
			Files:        len(result.Restored),
		})
	}
	log.Printf("[Checkpoint] Restored %q: %d file(s), %d failure(s)", cp.Name, len(result.Restored), len(result.Failures))
	return result, nil
}

func (m *Manager) restoreFile(snap FileSnapshot) error {
	if !snap.Existed {
		if m.host.Exists(snap.Path) {
			return m.host.Remove(snap.Path)
		}
		return nil
	}
	if dir := filepath.Dir(snap.Path); dir != "." && dir != "/" {
		if err := m.host.MkdirAll(dir); err != nil {
			return fmt.Errorf("create parent directory: %w", err)
		}
	}
	return m.host.WriteFile(snap.Path, snap.Content)
}

// Get returns a checkpoint by id, falling back to durable storage
func (m *Manager) Get(id string) (*Checkpoint, error) {
	m.mu.Lock()
	cp, ok := m.checkpoints[id]
	m.mu.Unlock()
	if ok {
		return cp, nil
	}
	if m.storage != nil {
		if cp, err := m.storage.Load(id); err == nil {
			return cp, nil
		}
	}
	return nil, ErrNotFound
}

// List returns all retained checkpoints, oldest first, without contents
func (m *Manager) List() []Checkpoint {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Checkpoint, 0, len(m.order))
	for _, id := range m.order {
		cp := m.checkpoints[id]
		summary := *cp
		summary.Files = nil
		out = append(out, summary)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// Delete removes a checkpoint by id
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	_, ok := m.checkpoints[id]
	if ok {
		delete(m.checkpoints, id)
		for i, ordered := range m.order {
			if ordered == id {
				m.order = append(m.order[:i], m.order[i+1:]...)
				break
			}
		}
	}
	m.mu.Unlock()

	if m.storage != nil && m.storage.Has(id) {
		if err := m.storage.Delete(id); err != nil {
			return err
		}
		ok = true
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}
