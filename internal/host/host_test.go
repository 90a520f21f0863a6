// internal/host/host_test.go
package host

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalReadWriteRoundTrip(t *testing.T) {
	l := NewLocal(t.TempDir())

	if err := l.WriteFile("a.txt", "hello"); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	content, err := l.ReadFile("a.txt")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if content != "hello" {
		t.Errorf("Content = %q", content)
	}
	if !l.Exists("a.txt") {
		t.Error("Exists should see the written file")
	}
}

func TestLocalReadMissingFile(t *testing.T) {
	l := NewLocal(t.TempDir())

	_, err := l.ReadFile("nope.txt")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestLocalResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	l := NewLocal(dir)

	if err := l.MkdirAll("sub/deep"); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := l.WriteFile("sub/deep/f.txt", "x"); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	// The file must land under the root, not the process cwd
	if _, err := os.Stat(filepath.Join(dir, "sub/deep/f.txt")); err != nil {
		t.Errorf("File not under root: %v", err)
	}

	if err := l.Remove("sub"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if l.Exists("sub") {
		t.Error("Directory tree should be gone")
	}
}

func TestLocalSpawnRunsInRoot(t *testing.T) {
	dir := t.TempDir()
	l := NewLocal(dir)

	var streamed []byte
	exitCode, output, err := l.Spawn(context.Background(), []string{"pwd"}, "", func(chunk []byte) {
		streamed = append(streamed, chunk...)
	})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	if exitCode != 0 {
		t.Errorf("Exit code = %d", exitCode)
	}
	got := strings.TrimSpace(string(output))
	// macOS tempdirs resolve through /private; compare suffixes
	if !strings.HasSuffix(got, filepath.Base(dir)) {
		t.Errorf("pwd = %q, want under %q", got, dir)
	}
	if string(streamed) != string(output) {
		t.Error("Listener should receive the same bytes as the buffered output")
	}
}

func TestLocalSpawnNonzeroExit(t *testing.T) {
	l := NewLocal(t.TempDir())

	exitCode, _, err := l.Spawn(context.Background(), []string{"sh", "-c", "exit 3"}, "", nil)
	if err != nil {
		t.Fatalf("Spawn errored: %v", err)
	}
	if exitCode != 3 {
		t.Errorf("Exit code = %d, want 3", exitCode)
	}
}
