package executor

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/screencontrol/core/pkg/protocol"
)

func echoCommand(arg string) *protocol.CommandRequest {
	if runtime.GOOS == "windows" {
		return &protocol.CommandRequest{Command: "cmd", Args: []string{"/C", "echo " + arg}}
	}
	return &protocol.CommandRequest{Command: "echo", Args: []string{arg}}
}

func sleepCommand(seconds int) *protocol.CommandRequest {
	if runtime.GOOS == "windows" {
		return &protocol.CommandRequest{Command: "cmd", Args: []string{"/C", "timeout", "/T", "5"}, TimeoutSec: seconds}
	}
	return &protocol.CommandRequest{Command: "sleep", Args: []string{"5"}, TimeoutSec: seconds}
}

func TestRunCapturesStdout(t *testing.T) {
	e := New()

	resp, err := e.Run(context.Background(), "exec-1", echoCommand("hello"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resp.ExitCode != 0 {
		t.Fatalf("exit code = %d, want 0", resp.ExitCode)
	}
	if resp.TimedOut {
		t.Fatal("expected TimedOut false")
	}
	if got := resp.Stdout; len(got) == 0 {
		t.Fatal("expected non-empty stdout")
	}
	if e.RunningCount() != 0 {
		t.Fatal("expected no running commands after completion")
	}
}

func TestRunReportsNonZeroExit(t *testing.T) {
	e := New()

	req := &protocol.CommandRequest{Command: "false"}
	if runtime.GOOS == "windows" {
		req = &protocol.CommandRequest{Command: "cmd", Args: []string{"/C", "exit 1"}}
	}

	resp, err := e.Run(context.Background(), "exec-2", req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resp.ExitCode == 0 {
		t.Fatal("expected non-zero exit code")
	}
}

func TestRunTimesOutLongCommand(t *testing.T) {
	e := New()

	resp, err := e.Run(context.Background(), "exec-3", sleepCommand(1))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !resp.TimedOut {
		t.Fatal("expected TimedOut true")
	}
	if e.RunningCount() != 0 {
		t.Fatal("expected no running commands after timeout")
	}
}

func TestRunDefaultTimeoutAppliedWhenUnset(t *testing.T) {
	e := New()

	req := echoCommand("hi")
	req.TimeoutSec = 0

	resp, err := e.Run(context.Background(), "exec-4", req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resp.ExitCode != 0 {
		t.Fatalf("exit code = %d, want 0", resp.ExitCode)
	}
}

func TestCancelStopsRunningCommand(t *testing.T) {
	e := New()
	req := sleepCommand(30)

	done := make(chan struct{})
	go func() {
		e.Run(context.Background(), "exec-5", req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	if err := e.Cancel("exec-5"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("expected cancelled command to return promptly")
	}
}

func TestCancelUnknownIDFails(t *testing.T) {
	e := New()
	if err := e.Cancel("no-such-exec"); err == nil {
		t.Fatal("expected error cancelling unknown execution")
	}
}
