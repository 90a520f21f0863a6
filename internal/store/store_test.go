// internal/store/store_test.go
package store

import (
	"path/filepath"
	"testing"
	"time"

	"codemedic/internal/action"
	"codemedic/internal/checkpoint"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestHistoryRoundTrip(t *testing.T) {
	s := openTestStore(t)

	base := time.Now().Add(-time.Minute)
	entries := []*action.HistoryEntry{
		{
			ID: "id-1",
			Action: &action.QueuedAction{
				ID:          "id-1",
				Action:      action.Action{Kind: action.KindCreate, Path: "a.txt"},
				Status:      action.StatusSuccess,
				EnqueuedAt:  base,
				CompletedAt: base.Add(time.Second),
			},
			Result:      "success",
			CanRollback: true,
		},
		{
			ID: "id-2",
			Action: &action.QueuedAction{
				ID:         "id-2",
				Action:     action.Action{Kind: action.KindShell, Command: "npm test"},
				Status:     action.StatusError,
				EnqueuedAt: base.Add(10 * time.Second),
			},
			Result: "exit code 1",
		},
	}
	for _, e := range entries {
		if err := s.SaveHistoryEntry(e); err != nil {
			t.Fatalf("SaveHistoryEntry failed: %v", err)
		}
	}

	records, err := s.ListHistory(10)
	if err != nil {
		t.Fatalf("ListHistory failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Got %d records, want 2", len(records))
	}

	// Newest first
	if records[0].ID != "id-2" || records[1].ID != "id-1" {
		t.Errorf("Order wrong: %s, %s", records[0].ID, records[1].ID)
	}
	if records[0].Command != "npm test" || records[0].Status != "error" {
		t.Errorf("Shell row wrong: %+v", records[0])
	}
	if !records[1].CanRollback || records[1].Path != "a.txt" {
		t.Errorf("File row wrong: %+v", records[1])
	}
	if records[1].CompletedAt.IsZero() {
		t.Error("CompletedAt should be set for the finished action")
	}
}

func TestSaveHistoryEntryIsIdempotent(t *testing.T) {
	s := openTestStore(t)

	entry := &action.HistoryEntry{
		ID: "dup",
		Action: &action.QueuedAction{
			ID:         "dup",
			Action:     action.Action{Kind: action.KindModify, Path: "f.txt"},
			Status:     action.StatusSuccess,
			EnqueuedAt: time.Now(),
		},
		Result: "success",
	}
	if err := s.SaveHistoryEntry(entry); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveHistoryEntry(entry); err != nil {
		t.Fatalf("Re-saving the same entry should upsert: %v", err)
	}

	records, err := s.ListHistory(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Errorf("Got %d records, want 1", len(records))
	}
}

func TestCheckpointIndex(t *testing.T) {
	s := openTestStore(t)

	errCount := 4
	cp := &checkpoint.Checkpoint{
		ID:          "cp-1",
		Name:        "before-refactor",
		Description: "pre work",
		Timestamp:   time.Now(),
		Files: []checkpoint.FileSnapshot{
			{Path: "a.ts", Existed: true},
			{Path: "b.ts", Existed: true},
		},
		ErrorCount: &errCount,
	}
	if err := s.SaveCheckpoint(cp); err != nil {
		t.Fatalf("SaveCheckpoint failed: %v", err)
	}

	records, err := s.ListCheckpoints()
	if err != nil {
		t.Fatalf("ListCheckpoints failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Got %d records", len(records))
	}
	r := records[0]
	if r.Name != "before-refactor" || r.FileCount != 2 {
		t.Errorf("Record wrong: %+v", r)
	}
	if r.ErrorCount == nil || *r.ErrorCount != 4 {
		t.Errorf("ErrorCount = %v", r.ErrorCount)
	}

	if err := s.DeleteCheckpoint("cp-1"); err != nil {
		t.Fatalf("DeleteCheckpoint failed: %v", err)
	}
	records, _ = s.ListCheckpoints()
	if len(records) != 0 {
		t.Error("Index row should be gone after delete")
	}
}
