package heartbeat

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/screencontrol/core/pkg/protocol"
)

type fakeCollector struct {
	sample Sample
	err    error
}

func (f *fakeCollector) Collect() (Sample, error) { return f.sample, f.err }

type fakeSender struct {
	mu   sync.Mutex
	sent []*protocol.Envelope
}

func (f *fakeSender) Send(env *protocol.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, env)
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func newIDGen() IDFunc {
	n := 0
	return func() string {
		n++
		return "env-" + strconv.Itoa(n)
	}
}

func TestSendOnceBuildsHeartbeatFromSample(t *testing.T) {
	sender := &fakeSender{}
	collector := &fakeCollector{sample: Sample{CPUPercent: 42.5, MemUsed: 100, MemTotal: 200, IPAddress: "10.0.0.5"}}
	e := New("agent-1", collector, sender, newIDGen())

	e.sendOnce(context.Background())

	if sender.count() != 1 {
		t.Fatalf("expected 1 envelope sent, got %d", sender.count())
	}
	hb, ok := sender.sent[0].Payload.(*protocol.Heartbeat)
	if !ok {
		t.Fatalf("expected *protocol.Heartbeat payload, got %T", sender.sent[0].Payload)
	}
	if hb.AgentID != "agent-1" || hb.CPUPercent != 42.5 || hb.IPAddress != "10.0.0.5" {
		t.Fatalf("unexpected heartbeat payload: %+v", hb)
	}
}

func TestSendOnceToleratesCollectorError(t *testing.T) {
	sender := &fakeSender{}
	collector := &fakeCollector{err: errBoom}
	e := New("agent-1", collector, sender, newIDGen())

	e.sendOnce(context.Background())

	if sender.count() != 1 {
		t.Fatalf("expected heartbeat still sent despite collector error, got %d", sender.count())
	}
}

func TestHandleAckUpdatesInterval(t *testing.T) {
	e := New("agent-1", &fakeCollector{}, &fakeSender{}, newIDGen())

	e.HandleAck(context.Background(), &protocol.HeartbeatAck{IntervalSecs: 15})

	if got := e.intervalSecs.Load(); got != 15 {
		t.Fatalf("interval = %d, want 15", got)
	}
}

func TestHandleAckZeroIntervalLeavesPreviousValue(t *testing.T) {
	e := New("agent-1", &fakeCollector{}, &fakeSender{}, newIDGen())
	e.intervalSecs.Store(20)

	e.HandleAck(context.Background(), &protocol.HeartbeatAck{IntervalSecs: 0})

	if got := e.intervalSecs.Load(); got != 20 {
		t.Fatalf("interval = %d, want unchanged 20", got)
	}
}

type fakeThumbnailer struct {
	called chan string
}

func (f *fakeThumbnailer) CaptureAndUpload(ctx context.Context, uploadURL string) error {
	f.called <- uploadURL
	return nil
}

func TestHandleAckTriggersThumbnailUpload(t *testing.T) {
	thumb := &fakeThumbnailer{called: make(chan string, 1)}
	e := New("agent-1", &fakeCollector{}, &fakeSender{}, newIDGen())
	e.Thumbnailer = thumb

	e.HandleAck(context.Background(), &protocol.HeartbeatAck{ThumbnailUploadURL: "https://example/upload"})

	select {
	case url := <-thumb.called:
		if url != "https://example/upload" {
			t.Fatalf("upload url = %q", url)
		}
	case <-time.After(time.Second):
		t.Fatal("thumbnailer was not invoked")
	}
}

type fakeUpdater struct {
	called chan string
}

func (f *fakeUpdater) UpdateTo(ctx context.Context, version, downloadURL, sha256 string) error {
	f.called <- version
	return nil
}

func TestHandleAckTriggersUpdateWhenAvailable(t *testing.T) {
	upd := &fakeUpdater{called: make(chan string, 1)}
	e := New("agent-1", &fakeCollector{}, &fakeSender{}, newIDGen())
	e.Updater = upd

	e.HandleAck(context.Background(), &protocol.HeartbeatAck{UpdateAvailable: true, UpdateVersion: "1.2.3"})

	select {
	case v := <-upd.called:
		if v != "1.2.3" {
			t.Fatalf("version = %q", v)
		}
	case <-time.After(time.Second):
		t.Fatal("updater was not invoked")
	}
}

func TestRunStopsOnStop(t *testing.T) {
	e := New("agent-1", &fakeCollector{}, &fakeSender{}, newIDGen())
	e.intervalSecs.Store(3600)

	doneCh := make(chan struct{})
	go func() {
		e.Run(context.Background())
		close(doneCh)
	}()

	time.Sleep(10 * time.Millisecond)
	e.Stop()

	select {
	case <-doneCh:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestRunStopsOnContextCancellation(t *testing.T) {
	e := New("agent-1", &fakeCollector{}, &fakeSender{}, newIDGen())
	e.intervalSecs.Store(3600)

	ctx, cancel := context.WithCancel(context.Background())
	doneCh := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(doneCh)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-doneCh:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

type boomErr struct{}

func (boomErr) Error() string { return "boom" }

var errBoom = boomErr{}
