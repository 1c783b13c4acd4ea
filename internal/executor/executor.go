// Package executor runs a CommandRequest on the agent host: a
// timeout-bounded subprocess with captured, size-limited stdout/stderr
// and its own process group so a timeout kills the whole child tree,
// not just the shell.
package executor

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/screencontrol/core/internal/logging"
	"github.com/screencontrol/core/pkg/protocol"
)

var log = logging.L("executor")

const (
	// DefaultTimeout applies when a CommandRequest doesn't set one.
	DefaultTimeout = 300 * time.Second
	// MaxTimeout caps even an explicit request.
	MaxTimeout = 3600 * time.Second
	// MaxOutputBytes bounds how much of stdout/stderr is kept.
	MaxOutputBytes = 1024 * 1024
)

// Executor runs commands and tracks the ones currently in flight so
// they can be cancelled.
type Executor struct {
	mu      sync.Mutex
	running map[string]context.CancelFunc
}

// New returns an Executor with no commands running.
func New() *Executor {
	return &Executor{running: make(map[string]context.CancelFunc)}
}

// Run executes req and blocks until it completes, times out, or ctx is
// cancelled. id identifies the execution for Cancel.
func (e *Executor) Run(ctx context.Context, id string, req *protocol.CommandRequest) (*protocol.CommandResponse, error) {
	timeout := time.Duration(req.TimeoutSec) * time.Second
	if req.TimeoutSec < 0 {
		timeout = 0
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if timeout > MaxTimeout {
		timeout = MaxTimeout
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, req.Command, req.Args...)
	if req.Cwd != "" {
		cmd.Dir = req.Cwd
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &limitedWriter{buf: &stdout, limit: MaxOutputBytes}
	cmd.Stderr = &limitedWriter{buf: &stderr, limit: MaxOutputBytes}
	setProcessGroup(cmd)

	e.mu.Lock()
	e.running[id] = cancel
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.running, id)
		e.mu.Unlock()
	}()

	log.Info("running command", "id", id, "command", req.Command, "timeout", timeout)
	err := cmd.Run()

	resp := &protocol.CommandResponse{Stdout: stdout.String(), Stderr: stderr.String()}

	if runCtx.Err() == context.DeadlineExceeded {
		if killErr := killProcessGroup(cmd); killErr != nil {
			log.Warn("failed to kill process group after timeout", "id", id, "error", killErr)
		}
		resp.TimedOut = true
		resp.ExitCode = -1
		log.Warn("command timed out", "id", id, "timeout", timeout)
		return resp, nil
	}

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			resp.ExitCode = exitErr.ExitCode()
			return resp, nil
		}
		return nil, fmt.Errorf("executor: run command: %w", err)
	}

	resp.ExitCode = 0
	return resp, nil
}

// Cancel terminates a running command by id, if one is running.
func (e *Executor) Cancel(id string) error {
	e.mu.Lock()
	cancel, ok := e.running[id]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("executor: no running command %q", id)
	}
	cancel()
	return nil
}

// RunningCount returns the number of in-flight commands.
func (e *Executor) RunningCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.running)
}

// limitedWriter caps how many bytes it retains, silently dropping the
// rest so a runaway command can't exhaust agent memory.
type limitedWriter struct {
	buf     *bytes.Buffer
	limit   int
	written int
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	remaining := w.limit - w.written
	if remaining <= 0 {
		return len(p), nil
	}
	n := len(p)
	if n > remaining {
		n = remaining
	}
	w.buf.Write(p[:n])
	w.written += n
	return len(p), nil
}
