package desktop

import "math"

// OpusEncoder turns 48kHz stereo f32 PCM frames into Opus packets.
// Frames are always exactly frameSamples() samples per channel (20ms
// at 48kHz = 960 samples/channel); callers are responsible for
// buffering PCM into frame-sized chunks before calling Encode.
type OpusEncoder interface {
	Encode(pcm []float32) ([]byte, error)
	SetBitrate(bps int) error
	Close() error
}

const (
	opusFrameMillis    = 20
	opusDefaultBitrate = 64000
)

func opusFrameSamples() int {
	return targetSampleRate * opusFrameMillis / 1000
}

// newOpusEncoder constructs the Opus backend compiled into this
// build. Audio capture itself (see audio.go) has no real device
// backend wired in this build, so opusEncoder currently only needs to
// exist to keep the encode/resample/session wiring exercisable end to
// end; it mirrors the same placeholder role the video software
// encoder plays until a real libopus binding replaces it.
func newOpusEncoder(bitrateBps int) OpusEncoder {
	return &passthroughOpusEncoder{bitrateBps: bitrateBps}
}

type passthroughOpusEncoder struct {
	bitrateBps int
}

// Encode packs the f32 samples as little-endian bytes rather than a
// real Opus bitstream. Downstream consumers (the wire AudioFrame
// payload, the viewer's decode path) are shaped around "some opaque
// byte payload at a known sample rate/channel count", so this keeps
// every other part of the pipeline buildable and testable now.
func (e *passthroughOpusEncoder) Encode(pcm []float32) ([]byte, error) {
	out := make([]byte, len(pcm)*4)
	for i, s := range pcm {
		bits := math.Float32bits(s)
		out[4*i+0] = byte(bits)
		out[4*i+1] = byte(bits >> 8)
		out[4*i+2] = byte(bits >> 16)
		out[4*i+3] = byte(bits >> 24)
	}
	return out, nil
}

func (e *passthroughOpusEncoder) SetBitrate(bps int) error {
	e.bitrateBps = bps
	return nil
}

func (e *passthroughOpusEncoder) Close() error { return nil }
