package consent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/screencontrol/core/internal/ipc"
)

func withDialog(t *testing.T, fn nativeDialog) {
	t.Helper()
	prev := showNativeDialog
	showNativeDialog = fn
	t.Cleanup(func() { showNativeDialog = prev })
}

func TestPromptGranted(t *testing.T) {
	withDialog(t, func(requester, sessionType string, timeoutSecs uint64) (bool, error) {
		return true, nil
	})

	got := Prompt(context.Background(), "alice", "desktop", time.Second)
	if got != Granted {
		t.Fatalf("expected Granted, got %v", got)
	}
}

func TestPromptDenied(t *testing.T) {
	withDialog(t, func(requester, sessionType string, timeoutSecs uint64) (bool, error) {
		return false, nil
	})

	got := Prompt(context.Background(), "alice", "desktop", time.Second)
	if got != Denied {
		t.Fatalf("expected Denied, got %v", got)
	}
}

func TestPromptNoDisplay(t *testing.T) {
	withDialog(t, func(requester, sessionType string, timeoutSecs uint64) (bool, error) {
		return false, errors.New("no display server available")
	})

	got := Prompt(context.Background(), "alice", "desktop", time.Second)
	if got != NoDisplay {
		t.Fatalf("expected NoDisplay, got %v", got)
	}
}

func TestPromptTimesOut(t *testing.T) {
	withDialog(t, func(requester, sessionType string, timeoutSecs uint64) (bool, error) {
		time.Sleep(200 * time.Millisecond)
		return true, nil
	})

	start := time.Now()
	got := Prompt(context.Background(), "alice", "desktop", 5*time.Millisecond)
	elapsed := time.Since(start)

	if got != TimedOut {
		t.Fatalf("expected TimedOut, got %v", got)
	}
	// timeout floor is 5s in Prompt when requested below it, but here the
	// context races the floor via the explicit timeout param passed straight
	// to time.After — verify it didn't wait for the dialog goroutine's sleep.
	if elapsed > 100*time.Millisecond {
		t.Fatalf("expected prompt to return promptly on timeout, took %v", elapsed)
	}
}

func TestPromptContextCancelled(t *testing.T) {
	withDialog(t, func(requester, sessionType string, timeoutSecs uint64) (bool, error) {
		time.Sleep(500 * time.Millisecond)
		return true, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	got := Prompt(ctx, "alice", "desktop", 5*time.Second)
	if got != TimedOut {
		t.Fatalf("expected TimedOut on context cancellation, got %v", got)
	}
}

type fakeRelay struct {
	resp ipc.ConsentResponse
	err  error
}

func (f *fakeRelay) RequestConsent(id, identityKey string, req ipc.ConsentRequest, timeout time.Duration) (ipc.ConsentResponse, error) {
	return f.resp, f.err
}

func TestPromptForSessionFallsBackWithoutRelay(t *testing.T) {
	SetRelay(nil)
	withDialog(t, func(requester, sessionType string, timeoutSecs uint64) (bool, error) {
		return true, nil
	})

	got := PromptForSession(context.Background(), "1000", "alice", "desktop", time.Second)
	if got != Granted {
		t.Fatalf("expected fallback to native dialog to grant, got %v", got)
	}
}

func TestPromptForSessionFallsBackWithEmptyIdentity(t *testing.T) {
	SetRelay(&fakeRelay{resp: ipc.ConsentResponse{Result: "denied"}})
	t.Cleanup(func() { SetRelay(nil) })
	withDialog(t, func(requester, sessionType string, timeoutSecs uint64) (bool, error) {
		return true, nil
	})

	got := PromptForSession(context.Background(), "", "alice", "desktop", time.Second)
	if got != Granted {
		t.Fatalf("expected empty identity to bypass relay and use native dialog, got %v", got)
	}
}
