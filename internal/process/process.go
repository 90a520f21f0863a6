// internal/process/process.go
package process

import (
	"context"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// OutputListener receives incremental chunks of combined stdout/stderr
type OutputListener func(chunk []byte)

// Command is a managed external tool invocation
type Command struct {
	Argv []string
	Dir  string
	Env  []string

	cmd      *exec.Cmd
	listener OutputListener

	mu       sync.Mutex
	output   []byte
	done     chan struct{}
	running  bool
	exitCode int
}

// New creates a managed command. listener may be nil.
func New(argv []string, dir string, listener OutputListener) *Command {
	return &Command{
		Argv:     argv,
		Dir:      dir,
		listener: listener,
		done:     make(chan struct{}),
		exitCode: -1,
	}
}

// Start launches the process and begins streaming output
func (c *Command) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cmd = exec.CommandContext(ctx, c.Argv[0], c.Argv[1:]...)
	c.cmd.Dir = c.Dir
	if c.Env != nil {
		c.cmd.Env = c.Env
	}

	// Set process group for proper signal handling
	c.cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}

	stdout, err := c.cmd.StdoutPipe()
	if err != nil {
		return err
	}
	c.cmd.Stderr = c.cmd.Stdout

	if err := c.cmd.Start(); err != nil {
		return err
	}
	c.running = true

	go func() {
		c.consume(stdout)
		c.cmd.Wait()

		c.mu.Lock()
		c.running = false
		if c.cmd.ProcessState != nil {
			c.exitCode = c.cmd.ProcessState.ExitCode()
		}
		c.mu.Unlock()
		close(c.done)
	}()

	return nil
}

// consume streams combined output in small chunks until EOF
func (c *Command) consume(r io.Reader) {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])

			c.mu.Lock()
			c.output = append(c.output, chunk...)
			c.mu.Unlock()

			if c.listener != nil {
				c.listener(chunk)
			}
		}
		if err != nil {
			return
		}
	}
}

// Wait blocks until the process exits or the context expires.
// On context expiry the process is abandoned and ctx.Err() is returned.
func (c *Command) Wait(ctx context.Context) (int, error) {
	select {
	case <-c.done:
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.exitCode, nil
	case <-ctx.Done():
		return -1, ctx.Err()
	}
}

// Output returns all output captured so far
func (c *Command) Output() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]byte, len(c.output))
	copy(out, c.output)
	return out
}

// IsRunning returns whether the process is still alive
func (c *Command) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Signal sends a signal to the process
func (c *Command) Signal(sig os.Signal) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.cmd == nil || c.cmd.Process == nil {
		return nil
	}
	return c.cmd.Process.Signal(sig)
}

// GracefulShutdown walks the SIGINT -> SIGTERM -> SIGKILL ladder
func (c *Command) GracefulShutdown(ctx context.Context) error {
	c.Signal(syscall.SIGINT)

	select {
	case <-c.done:
		return nil
	case <-time.After(5 * time.Second):
	case <-ctx.Done():
		return ctx.Err()
	}

	c.Signal(syscall.SIGTERM)

	select {
	case <-c.done:
		return nil
	case <-time.After(3 * time.Second):
	case <-ctx.Done():
		return ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cmd != nil && c.cmd.Process != nil {
		return c.cmd.Process.Kill()
	}
	return nil
}

// Done returns a channel that closes when the process exits
func (c *Command) Done() <-chan struct{} {
	return c.done
}

// Run starts the command and waits for completion under ctx.
// Returns the exit code and captured combined output.
func Run(ctx context.Context, argv []string, dir string, listener OutputListener) (int, []byte, error) {
	cmd := New(argv, dir, listener)
	if err := cmd.Start(ctx); err != nil {
		return -1, nil, err
	}
	code, err := cmd.Wait(ctx)
	return code, cmd.Output(), err
}
