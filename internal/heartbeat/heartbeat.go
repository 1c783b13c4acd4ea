// Package heartbeat owns the agent's periodic heartbeat loop: sampling
// host metrics, sending them to the server as protocol.Heartbeat
// envelopes, and reacting to the server's HeartbeatAck (interval
// renegotiation, thumbnail-upload triggers, update-available hints).
package heartbeat

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/screencontrol/core/internal/logging"
	"github.com/screencontrol/core/pkg/protocol"
)

var log = logging.L("heartbeat")

const defaultInterval = 30 * time.Second

// Sender delivers an envelope to the server. Satisfied by *session.Client.
type Sender interface {
	Send(env *protocol.Envelope) error
}

// IDFunc generates envelope IDs.
type IDFunc func() string

// Thumbnailer captures and uploads a desktop thumbnail to a pre-signed
// URL handed out by the server in a HeartbeatAck.
type Thumbnailer interface {
	CaptureAndUpload(ctx context.Context, uploadURL string) error
}

// Updater downloads and installs an advertised agent version.
type Updater interface {
	UpdateTo(ctx context.Context, version, downloadURL, sha256 string) error
}

// Engine runs the heartbeat ticker and dispatches HeartbeatAck reactions.
type Engine struct {
	AgentID     string
	Collector   Collector
	Sender      Sender
	NewID       IDFunc
	Thumbnailer Thumbnailer
	Updater     Updater

	intervalSecs atomic.Int64
	done         chan struct{}
}

// New builds an Engine with the default heartbeat interval. Thumbnailer
// and Updater may be nil; the corresponding ack fields are then ignored.
func New(agentID string, collector Collector, sender Sender, newID IDFunc) *Engine {
	e := &Engine{
		AgentID:   agentID,
		Collector: collector,
		Sender:    sender,
		NewID:     newID,
		done:      make(chan struct{}),
	}
	e.intervalSecs.Store(int64(defaultInterval / time.Second))
	return e
}

// Run sends an immediate heartbeat, then ticks at the currently
// negotiated interval until ctx is canceled or Stop is called. Blocking;
// run it in its own goroutine.
func (e *Engine) Run(ctx context.Context) {
	e.sendOnce(ctx)

	for {
		wait := time.Duration(e.intervalSecs.Load()) * time.Second
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-e.done:
			timer.Stop()
			return
		case <-timer.C:
			e.sendOnce(ctx)
		}
	}
}

// Stop ends the Run loop.
func (e *Engine) Stop() {
	select {
	case <-e.done:
	default:
		close(e.done)
	}
}

func (e *Engine) sendOnce(ctx context.Context) {
	sample, err := e.Collector.Collect()
	if err != nil {
		log.Warn("metrics collection failed", "error", err)
	}

	hb := &protocol.Heartbeat{
		AgentID:    e.AgentID,
		CPUPercent: sample.CPUPercent,
		MemUsed:    sample.MemUsed,
		MemTotal:   sample.MemTotal,
		DiskUsed:   sample.DiskUsed,
		DiskTotal:  sample.DiskTotal,
		UptimeSecs: sample.UptimeSecs,
		IPAddress:  sample.IPAddress,
	}

	env := &protocol.Envelope{ID: e.NewID(), Payload: hb}
	if err := e.Sender.Send(env); err != nil {
		log.Warn("heartbeat send failed", "error", err)
	}
}

// HandleAck reacts to the server's response to a heartbeat: renegotiates
// the tick interval, and fires the thumbnail/update side effects the ack
// requests. Safe to call from the session client's dispatch goroutine.
func (e *Engine) HandleAck(ctx context.Context, ack *protocol.HeartbeatAck) {
	if ack.IntervalSecs > 0 {
		e.intervalSecs.Store(int64(ack.IntervalSecs))
	}

	if ack.ThumbnailUploadURL != "" && e.Thumbnailer != nil {
		go func() {
			if err := e.Thumbnailer.CaptureAndUpload(ctx, ack.ThumbnailUploadURL); err != nil {
				log.Warn("thumbnail capture/upload failed", "error", err)
			}
		}()
	}

	if ack.UpdateAvailable && e.Updater != nil {
		go func() {
			if err := e.Updater.UpdateTo(ctx, ack.UpdateVersion, ack.UpdateDownloadURL, ack.UpdateSHA256); err != nil {
				log.Error("agent update failed", "version", ack.UpdateVersion, "error", err)
			}
		}()
	}
}
