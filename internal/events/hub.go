// internal/events/hub.go
package events

import (
	"context"
)

// Emitter delivers events to the presentation layer
type Emitter interface {
	Emit(eventName string, payload interface{})
}

// Hub is the single dispatch point for engine events
type Hub struct {
	ctx     context.Context
	emitter Emitter
}

// New creates a new Hub
func New(ctx context.Context) *Hub {
	return &Hub{ctx: ctx}
}

// SetEmitter sets the downstream emitter
func (h *Hub) SetEmitter(e Emitter) {
	h.emitter = e
}

// emit is the single send path
func (h *Hub) emit(eventName string, payload interface{}) {
	if h.emitter != nil {
		h.emitter.Emit(eventName, payload)
	}
}

// Emit sends an arbitrary event
func (h *Hub) Emit(eventName string, payload interface{}) {
	h.emit(eventName, payload)
}

// Action lifecycle events

type ActionEvent struct {
	ActionID string `json:"action_id"`
	Kind     string `json:"kind"`
	Path     string `json:"path,omitempty"`
	Command  string `json:"command,omitempty"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

func (h *Hub) EmitActionStarted(event ActionEvent) {
	h.emit("action:started", event)
}

func (h *Hub) EmitActionCompleted(event ActionEvent) {
	h.emit("action:completed", event)
}

func (h *Hub) EmitActionErrored(event ActionEvent) {
	h.emit("action:errored", event)
}

// Filesystem events

type FileSystemChangedEvent struct {
	Path string `json:"path"`
	Kind string `json:"kind"` // "create", "modify", "delete"
	// External marks changes not made by the executor (watcher-observed)
	External bool `json:"external,omitempty"`
}

func (h *Hub) EmitFileSystemChanged(event FileSystemChangedEvent) {
	h.emit("fs:changed", event)
}

// Rollback events

type RollbackEvent struct {
	Reason   string   `json:"reason"`
	Paths    []string `json:"paths"`
	Restored int      `json:"restored"`
	Failed   int      `json:"failed"`
}

func (h *Hub) EmitRollbackTriggered(event RollbackEvent) {
	h.emit("rollback:triggered", event)
}

func (h *Hub) EmitRollbackCompleted(event RollbackEvent) {
	h.emit("rollback:completed", event)
}

// Diagnostics phase events

type PhaseCompleteEvent struct {
	Family       string `json:"family"`
	Success      bool   `json:"success"`
	Skipped      bool   `json:"skipped"`
	ErrorCount   int    `json:"error_count"`
	WarningCount int    `json:"warning_count"`
	DurationMs   int64  `json:"duration_ms"`
}

func (h *Hub) EmitPhaseComplete(event PhaseCompleteEvent) {
	h.emit("phase:complete", event)
}

// Checkpoint events

type CheckpointEvent struct {
	CheckpointID string `json:"checkpoint_id"`
	Name         string `json:"name"`
	Files        int    `json:"files"`
}

func (h *Hub) EmitCheckpointCreated(event CheckpointEvent) {
	h.emit("checkpoint:created", event)
}

func (h *Hub) EmitCheckpointRestored(event CheckpointEvent) {
	h.emit("checkpoint:restored", event)
}

// EmitProgress sends a human-readable progress message
func (h *Hub) EmitProgress(message string) {
	h.emit("progress", map[string]interface{}{
		"message": message,
	})
}

// EmitTerminal streams raw subprocess output bytes
func (h *Hub) EmitTerminal(data []byte) {
	h.emit("terminal", map[string]interface{}{
		"data": string(data),
	})
}
