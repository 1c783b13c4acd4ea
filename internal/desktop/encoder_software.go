package desktop

import (
	"image"
	"sync"
)

func init() {
	registerBackend(CodecH264, newSoftwareH264Encoder)
	registerBackend(CodecJPEG, newJPEGEncoder)
}

// softwareH264Encoder is a placeholder passthrough standing in for a
// real libopenh264 binding, matching the same placeholder role the
// capture pipeline's own software backend plays until hardware
// encoding is wired: it satisfies VideoEncoder's shape and contract
// (quality/bitrate/fps clamps, keyframe signaling) so the rest of the
// capture loop, session wiring and wire protocol can be built and
// tested against it now, with the actual bitstream production the one
// piece deferred to a real codec binding.
type softwareH264Encoder struct {
	mu      sync.Mutex
	cfg     EncoderConfig
	frame   uint64
	keyframeEvery uint64
}

func newSoftwareH264Encoder(cfg EncoderConfig) (VideoEncoder, error) {
	return &softwareH264Encoder{cfg: cfg, keyframeEvery: 60}, nil
}

func (e *softwareH264Encoder) Encode(img *image.RGBA) ([]byte, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	isKeyframe := e.frame%e.keyframeEvery == 0
	e.frame++

	// Passthrough: emit the raw RGBA pixels as the "bitstream" so
	// every other stage of the pipeline (framing, sequencing, the
	// access-unit splitter, the viewer decode path) can be exercised
	// end to end before a real H.264 encoder replaces this body.
	out := make([]byte, len(img.Pix))
	copy(out, img.Pix)
	return out, isKeyframe, nil
}

func (e *softwareH264Encoder) SetQuality(quality int) error {
	if !encodeQuality(quality).valid() {
		return ErrInvalidQuality
	}
	e.mu.Lock()
	e.cfg.Quality = quality
	e.mu.Unlock()
	return nil
}

func (e *softwareH264Encoder) SetBitrate(kbps int) error {
	if kbps <= 0 {
		return ErrInvalidBitrate
	}
	e.mu.Lock()
	e.cfg.BitrateKbps = kbps
	e.mu.Unlock()
	return nil
}

func (e *softwareH264Encoder) SetFPS(fps int) error {
	if fps <= 0 {
		return ErrInvalidFPS
	}
	e.mu.Lock()
	e.cfg.FPS = fps
	e.mu.Unlock()
	return nil
}

func (e *softwareH264Encoder) Close() error { return nil }
func (e *softwareH264Encoder) Name() string { return "software-h264-passthrough" }
