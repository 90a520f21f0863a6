// internal/rollback/controller_test.go
package rollback

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"codemedic/internal/host"
	"codemedic/internal/snapshot"
)

func newTestController(t *testing.T, opts ...Option) (*Controller, string) {
	t.Helper()
	dir := t.TempDir()
	c := New(host.NewLocal(dir), snapshot.NewTracker(nil), opts...)
	c.StartTrackingWith(snapshot.FromDiagnostics("baseline", nil))
	return c, dir
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("Failed to read %s: %v", name, err)
	}
	return string(data)
}

func TestRecordChangeRequiresTracking(t *testing.T) {
	dir := t.TempDir()
	c := New(host.NewLocal(dir), snapshot.NewTracker(nil))

	if err := c.RecordChange("a.txt", ChangeModify, "x"); err != ErrNotTracking {
		t.Errorf("Expected ErrNotTracking, got %v", err)
	}
}

func TestRollbackRestoresEachKind(t *testing.T) {
	c, dir := newTestController(t)

	// modify: original must come back
	writeFile(t, dir, "mod.txt", "original")
	if err := c.RecordChange("mod.txt", ChangeModify, "changed"); err != nil {
		t.Fatal(err)
	}
	writeFile(t, dir, "mod.txt", "changed")

	// create: the file must disappear
	if err := c.RecordChange("new.txt", ChangeCreate, "fresh"); err != nil {
		t.Fatal(err)
	}
	writeFile(t, dir, "new.txt", "fresh")

	// delete: the file must be recreated
	writeFile(t, dir, "gone.txt", "precious")
	if err := c.RecordChange("gone.txt", ChangeDelete, ""); err != nil {
		t.Fatal(err)
	}
	os.Remove(filepath.Join(dir, "gone.txt"))

	result := c.Rollback()
	if !result.Success {
		t.Fatalf("Rollback failed: %+v", result.Failures)
	}
	if len(result.Restored) != 3 {
		t.Errorf("Restored %d paths, want 3", len(result.Restored))
	}

	if got := readFile(t, dir, "mod.txt"); got != "original" {
		t.Errorf("mod.txt = %q, want %q", got, "original")
	}
	if _, err := os.Stat(filepath.Join(dir, "new.txt")); !os.IsNotExist(err) {
		t.Error("new.txt should have been removed")
	}
	if got := readFile(t, dir, "gone.txt"); got != "precious" {
		t.Errorf("gone.txt = %q, want %q", got, "precious")
	}
}

func TestRollbackCreateThatOverwroteExistingFile(t *testing.T) {
	c, dir := newTestController(t)

	// A create aimed at a path that already had content must restore the
	// prior content on rollback, not delete the file
	writeFile(t, dir, "conf.txt", "old settings")
	if err := c.RecordChange("conf.txt", ChangeCreate, "new settings"); err != nil {
		t.Fatal(err)
	}
	writeFile(t, dir, "conf.txt", "new settings")

	result := c.Rollback()
	if !result.Success {
		t.Fatalf("Rollback failed: %+v", result.Failures)
	}
	if got := readFile(t, dir, "conf.txt"); got != "old settings" {
		t.Errorf("conf.txt = %q, want %q", got, "old settings")
	}
}

func TestRollbackNewestFirst(t *testing.T) {
	c, dir := newTestController(t)

	for i, name := range []string{"first.txt", "second.txt", "third.txt"} {
		writeFile(t, dir, name, "original")
		if err := c.RecordChange(name, ChangeModify, "changed"); err != nil {
			t.Fatal(err)
		}
		writeFile(t, dir, name, "changed")
		if i < 2 {
			time.Sleep(2 * time.Millisecond)
		}
	}

	result := c.Rollback()
	if len(result.Restored) != 3 {
		t.Fatalf("Restored %d, want 3", len(result.Restored))
	}
	want := []string{"third.txt", "second.txt", "first.txt"}
	for i, path := range result.Restored {
		if path != want[i] {
			t.Errorf("Restore order[%d] = %s, want %s", i, path, want[i])
		}
	}
}

func TestRollbackCollectsPartialFailures(t *testing.T) {
	c, dir := newTestController(t)

	// A modify recorded after the file was already gone has no original
	// content and cannot be restored
	if err := c.RecordChange("unrestorable.txt", ChangeModify, "new"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(2 * time.Millisecond)

	writeFile(t, dir, "ok.txt", "original")
	if err := c.RecordChange("ok.txt", ChangeModify, "changed"); err != nil {
		t.Fatal(err)
	}
	writeFile(t, dir, "ok.txt", "changed")

	result := c.Rollback()
	if result.Success {
		t.Fatal("Expected partial failure")
	}
	if len(result.Failures) != 1 || result.Failures[0].Path != "unrestorable.txt" {
		t.Errorf("Failures = %+v", result.Failures)
	}
	// The failure must not abort the rest of the pass
	if len(result.Restored) != 1 || result.Restored[0] != "ok.txt" {
		t.Errorf("Restored = %v, want [ok.txt]", result.Restored)
	}
	if got := readFile(t, dir, "ok.txt"); got != "original" {
		t.Errorf("ok.txt = %q, want %q", got, "original")
	}
}

func TestRollbackDeleteOfAbsentFileIsNoOp(t *testing.T) {
	c, dir := newTestController(t)

	// Deleting a file that never existed leaves nothing to put back;
	// rolling that back must succeed without recreating anything
	if err := c.RecordChange("ghost.txt", ChangeDelete, ""); err != nil {
		t.Fatal(err)
	}

	result := c.Rollback()
	if !result.Success {
		t.Fatalf("Rollback failures: %+v", result.Failures)
	}
	if len(result.Restored) != 1 || result.Restored[0] != "ghost.txt" {
		t.Errorf("Restored = %v, want [ghost.txt]", result.Restored)
	}
	if _, err := os.Stat(filepath.Join(dir, "ghost.txt")); !os.IsNotExist(err) {
		t.Error("ghost.txt must not exist after rollback")
	}
}

func TestRollbackIsIdempotentPerChange(t *testing.T) {
	c, dir := newTestController(t)

	writeFile(t, dir, "a.txt", "v1")
	if err := c.RecordChange("a.txt", ChangeModify, "v2"); err != nil {
		t.Fatal(err)
	}
	writeFile(t, dir, "a.txt", "v2")

	if r := c.Rollback(); len(r.Restored) != 1 {
		t.Fatalf("First rollback restored %d", len(r.Restored))
	}

	writeFile(t, dir, "a.txt", "v3")
	if r := c.Rollback(); len(r.Restored) != 0 {
		t.Error("Second rollback must skip already-restored changes")
	}
	if got := readFile(t, dir, "a.txt"); got != "v3" {
		t.Errorf("a.txt = %q, want %q", got, "v3")
	}
}

func TestRollbackSelectedPaths(t *testing.T) {
	c, dir := newTestController(t)

	for _, name := range []string{"keep.txt", "revert.txt"} {
		writeFile(t, dir, name, "original")
		if err := c.RecordChange(name, ChangeModify, "changed"); err != nil {
			t.Fatal(err)
		}
		writeFile(t, dir, name, "changed")
	}

	result := c.Rollback("revert.txt")
	if len(result.Restored) != 1 || result.Restored[0] != "revert.txt" {
		t.Fatalf("Restored = %v", result.Restored)
	}
	if got := readFile(t, dir, "keep.txt"); got != "changed" {
		t.Errorf("keep.txt = %q, should be untouched", got)
	}
}

func TestCommitEndsTracking(t *testing.T) {
	c, dir := newTestController(t)

	writeFile(t, dir, "a.txt", "original")
	if err := c.RecordChange("a.txt", ChangeModify, "changed"); err != nil {
		t.Fatal(err)
	}
	c.Commit()

	if c.Tracking() {
		t.Error("Commit must end the batch")
	}
	if len(c.Changes()) != 0 {
		t.Error("Commit must clear tracked changes")
	}
	if err := c.RecordChange("a.txt", ChangeModify, "again"); err != ErrNotTracking {
		t.Errorf("Expected ErrNotTracking after commit, got %v", err)
	}
}

func TestDeleteRollbackRecreatesParentDirectories(t *testing.T) {
	c, dir := newTestController(t)

	if err := os.MkdirAll(filepath.Join(dir, "sub/deep"), 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, dir, "sub/deep/f.txt", "content")
	if err := c.RecordChange("sub/deep/f.txt", ChangeDelete, ""); err != nil {
		t.Fatal(err)
	}
	if err := os.RemoveAll(filepath.Join(dir, "sub")); err != nil {
		t.Fatal(err)
	}

	result := c.Rollback()
	if !result.Success {
		t.Fatalf("Rollback failed: %+v", result.Failures)
	}
	if got := readFile(t, dir, "sub/deep/f.txt"); got != "content" {
		t.Errorf("Content = %q", got)
	}
}
