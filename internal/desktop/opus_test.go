package desktop

import "testing"

func TestPassthroughOpusEncoderRoundTripsLength(t *testing.T) {
	enc := newOpusEncoder(opusDefaultBitrate)
	defer enc.Close()

	pcm := []float32{0.1, -0.2, 0.3, -0.4}
	data, err := enc.Encode(pcm)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(data) != len(pcm)*4 {
		t.Fatalf("len(data) = %d, want %d", len(data), len(pcm)*4)
	}
}

func TestPassthroughOpusEncoderSetBitrate(t *testing.T) {
	enc := newOpusEncoder(32000)
	if err := enc.SetBitrate(64000); err != nil {
		t.Fatalf("SetBitrate: %v", err)
	}
}

func TestOpusFrameSamplesIs20msAt48k(t *testing.T) {
	if got := opusFrameSamples(); got != 960 {
		t.Fatalf("opusFrameSamples() = %d, want 960", got)
	}
}
