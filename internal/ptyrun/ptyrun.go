// internal/ptyrun/ptyrun.go
package ptyrun

import (
	"context"
	"os"
	"sync"

	gopty "github.com/aymanbagabas/go-pty"
)

// Runner executes a shell command inside a pseudo-terminal so tools
// emit their interactive output (colors, progress bars) verbatim for
// the terminal byte stream. One command per Runner.
type Runner struct {
	Rows int
	Cols int

	mu     sync.Mutex
	pty    gopty.Pty
	closed bool
}

// New creates a Runner with the given terminal dimensions
func New(rows, cols int) *Runner {
	if rows <= 0 {
		rows = 24
	}
	if cols <= 0 {
		cols = 80
	}
	return &Runner{Rows: rows, Cols: cols}
}

// Run executes command via `sh -c` in cwd, streaming raw PTY bytes to
// onData, and returns once the command exits or ctx is cancelled.
func (r *Runner) Run(ctx context.Context, command, cwd string, onData func([]byte)) error {
	p, err := gopty.New()
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.pty = p
	r.mu.Unlock()
	defer r.Close()

	if err := p.Resize(r.Cols, r.Rows); err != nil {
		return err
	}

	cmd := p.Command("sh", "-c", command)
	cmd.Dir = cwd
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")

	if err := cmd.Start(); err != nil {
		return err
	}

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		buf := make([]byte, 4096)
		for {
			n, err := p.Read(buf)
			if n > 0 && onData != nil {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				onData(chunk)
			}
			if err != nil {
				return
			}
		}
	}()

	waitDone := make(chan error, 1)
	go func() { waitDone <- cmd.Wait() }()

	select {
	case err := <-waitDone:
		<-readDone
		return err
	case <-ctx.Done():
		// Abandon: closing the PTY unblocks the reader; the process is
		// left to the host to reap
		r.Close()
		return ctx.Err()
	}
}

// Close releases the PTY
func (r *Runner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.pty == nil {
		return nil
	}
	r.closed = true
	return r.pty.Close()
}
