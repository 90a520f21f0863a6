// internal/host/host.go
package host

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"codemedic/internal/process"
)

// ErrNotFound is returned by ReadFile when the target does not exist
var ErrNotFound = errors.New("file not found")

// Host is the minimal execution surface this engine depends on.
// Everything else (sandboxing, virtual filesystems, remoting) lives
// behind an implementation of this interface.
type Host interface {
	// ReadFile returns the file content, or ErrNotFound
	ReadFile(path string) (string, error)
	// WriteFile writes content, creating the file if needed
	WriteFile(path string, content string) error
	// MkdirAll creates the directory and any missing parents
	MkdirAll(path string) error
	// Remove deletes a file or directory tree
	Remove(path string) error
	// Exists reports whether the path exists
	Exists(path string) bool
	// Spawn runs argv in dir, streaming combined output to listener,
	// and returns the exit code once the process finishes or ctx expires
	Spawn(ctx context.Context, argv []string, dir string, listener process.OutputListener) (int, []byte, error)
}

// Local is the default Host backed by the OS filesystem and os/exec
type Local struct {
	// Root, when set, resolves relative paths against a project directory
	Root string
}

// NewLocal creates a Host rooted at the given project directory
func NewLocal(root string) *Local {
	return &Local{Root: root}
}

func (l *Local) resolve(path string) string {
	if l.Root == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(l.Root, path)
}

// ReadFile returns the file content, or ErrNotFound
func (l *Local) ReadFile(path string) (string, error) {
	data, err := os.ReadFile(l.resolve(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", err
	}
	return string(data), nil
}

// WriteFile writes content with 0644 permissions
func (l *Local) WriteFile(path string, content string) error {
	return os.WriteFile(l.resolve(path), []byte(content), 0644)
}

// MkdirAll creates the directory and any missing parents
func (l *Local) MkdirAll(path string) error {
	return os.MkdirAll(l.resolve(path), 0755)
}

// Remove deletes a file or directory tree
func (l *Local) Remove(path string) error {
	return os.RemoveAll(l.resolve(path))
}

// Exists reports whether the path exists
func (l *Local) Exists(path string) bool {
	_, err := os.Stat(l.resolve(path))
	return err == nil
}

// Spawn runs argv under the project root
func (l *Local) Spawn(ctx context.Context, argv []string, dir string, listener process.OutputListener) (int, []byte, error) {
	if dir == "" {
		dir = l.Root
	} else if !filepath.IsAbs(dir) {
		dir = filepath.Join(l.Root, dir)
	}
	return process.Run(ctx, argv, dir, listener)
}
