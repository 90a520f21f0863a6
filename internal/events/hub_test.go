// internal/events/hub_test.go
package events

import (
	"context"
	"testing"
)

type recordingEmitter struct {
	names    []string
	payloads []interface{}
}

func (r *recordingEmitter) Emit(eventName string, payload interface{}) {
	r.names = append(r.names, eventName)
	r.payloads = append(r.payloads, payload)
}

func TestHubWithoutEmitterDropsEvents(t *testing.T) {
	h := New(context.Background())
	// Must not panic
	h.EmitProgress("working")
	h.EmitActionStarted(ActionEvent{ActionID: "a"})
}

func TestHubRoutesTypedEvents(t *testing.T) {
	h := New(context.Background())
	rec := &recordingEmitter{}
	h.SetEmitter(rec)

	h.EmitActionStarted(ActionEvent{ActionID: "a1"})
	h.EmitActionCompleted(ActionEvent{ActionID: "a1"})
	h.EmitFileSystemChanged(FileSystemChangedEvent{Path: "f.txt", Kind: "modify"})
	h.EmitRollbackTriggered(RollbackEvent{Reason: "errors rose"})
	h.EmitPhaseComplete(PhaseCompleteEvent{Family: "typecheck"})
	h.EmitCheckpointCreated(CheckpointEvent{Name: "cp"})
	h.EmitProgress("hello")
	h.EmitTerminal([]byte("raw"))

	want := []string{
		"action:started", "action:completed", "fs:changed",
		"rollback:triggered", "phase:complete", "checkpoint:created",
		"progress", "terminal",
	}
	if len(rec.names) != len(want) {
		t.Fatalf("Got %d events, want %d", len(rec.names), len(want))
	}
	for i, name := range want {
		if rec.names[i] != name {
			t.Errorf("Event %d = %q, want %q", i, rec.names[i], name)
		}
	}

	progress, ok := rec.payloads[6].(map[string]interface{})
	if !ok || progress["message"] != "hello" {
		t.Errorf("Progress payload = %v", rec.payloads[6])
	}
	terminal, ok := rec.payloads[7].(map[string]interface{})
	if !ok || terminal["data"] != "raw" {
		t.Errorf("Terminal payload = %v", rec.payloads[7])
	}
}
