package desktop

import "testing"

func TestResampleLinearPassesThroughAt48kStereo(t *testing.T) {
	src := []float32{0.1, 0.2, 0.3, 0.4}
	out := resampleLinear(src, 48000, 2)
	if len(out) != len(src) {
		t.Fatalf("len(out) = %d, want %d for a pass-through rate/channel match", len(out), len(src))
	}
}

func TestResampleLinearUpmixesMono(t *testing.T) {
	src := []float32{0.5, 0.25}
	out := resampleLinear(src, 48000, 1)
	want := []float32{0.5, 0.5, 0.25, 0.25}
	if len(out) != len(want) {
		t.Fatalf("len(out) = %d, want %d", len(out), len(want))
	}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("out[%d] = %f, want %f", i, out[i], want[i])
		}
	}
}

func TestResampleLinearDownsamplesRate(t *testing.T) {
	// 96kHz mono -> 48kHz: half the samples in, so roughly half out
	// (before the stereo upmix doubles it back).
	src := make([]float32, 960)
	for i := range src {
		src[i] = float32(i) / 960
	}
	out := resampleLinear(src, 96000, 1)
	wantFrames := 480
	if len(out) != wantFrames*2 {
		t.Fatalf("len(out) = %d, want %d (stereo frames at target rate)", len(out), wantFrames*2)
	}
}

func TestResampleLinearEmptyInput(t *testing.T) {
	if out := resampleLinear(nil, 48000, 2); out != nil {
		t.Fatalf("expected nil output for empty input, got %v", out)
	}
}

func TestResampleLinearDownmixesSurround(t *testing.T) {
	// 4-channel, one frame: average should be 0.5
	src := []float32{0, 0.5, 1, 0.5}
	out := resampleLinear(src, 48000, 4)
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2", len(out))
	}
	if out[0] != 0.5 || out[1] != 0.5 {
		t.Fatalf("out = %v, want [0.5 0.5]", out)
	}
}
