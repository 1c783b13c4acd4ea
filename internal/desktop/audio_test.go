package desktop

import (
	"sync"
	"testing"
	"time"

	"github.com/screencontrol/core/pkg/protocol"
)

type fakeAudioCapturer struct {
	mu       sync.Mutex
	callback func(pcm []float32, sampleRate, channels int)
	stopped  bool
}

func (c *fakeAudioCapturer) Start(callback func(pcm []float32, sampleRate, channels int)) error {
	c.mu.Lock()
	c.callback = callback
	c.mu.Unlock()
	return nil
}

func (c *fakeAudioCapturer) Stop() {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()
}

func (c *fakeAudioCapturer) push(pcm []float32, rate, channels int) {
	c.mu.Lock()
	cb := c.callback
	c.mu.Unlock()
	if cb != nil {
		cb(pcm, rate, channels)
	}
}

func TestAudioSessionEncodesFullFrames(t *testing.T) {
	capturer := &fakeAudioCapturer{}
	sender := &fakeSender{}

	sess := NewAudioSession("sess-1", sender, capturer, opusDefaultBitrate)
	if err := sess.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sess.Stop()

	frameSamples := opusFrameSamples()
	pcm := make([]float32, frameSamples) // mono @ 48kHz: exactly one opus frame once upmixed...
	for i := range pcm {
		pcm[i] = 0.1
	}
	capturer.push(pcm, targetSampleRate, 1)

	deadline := time.After(time.Second)
	for sender.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("expected an audio frame to be sent")
		case <-time.After(5 * time.Millisecond):
		}
	}

	env := sender.sent[0]
	af, ok := env.Payload.(*protocol.AudioFrame)
	if !ok {
		t.Fatalf("payload type = %T, want *protocol.AudioFrame", env.Payload)
	}
	if af.SampleRate != targetSampleRate || af.Channels != targetChannels {
		t.Fatalf("AudioFrame = %+v, want SampleRate=%d Channels=%d", af, targetSampleRate, targetChannels)
	}
}

func TestAudioSessionBuffersPartialFrames(t *testing.T) {
	capturer := &fakeAudioCapturer{}
	sender := &fakeSender{}

	sess := NewAudioSession("sess-1", sender, capturer, opusDefaultBitrate)
	if err := sess.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sess.Stop()

	// Far fewer samples than one opus frame needs once resampled.
	capturer.push([]float32{0.1, 0.2}, targetSampleRate, 1)
	time.Sleep(50 * time.Millisecond)

	if got := sender.count(); got != 0 {
		t.Fatalf("expected no send for a partial frame, got %d", got)
	}
}

func TestNewAudioCapturerReturnsUnsupported(t *testing.T) {
	c := newAudioCapturer()
	err := c.Start(func(pcm []float32, sampleRate, channels int) {})
	if err != ErrNotSupported {
		t.Fatalf("err = %v, want ErrNotSupported", err)
	}
}
