package desktop

import (
	"bytes"
	"image"
	"image/jpeg"
	"sync"
)

// jpegEncoder backs the JPEG fallback codec for viewers or links that
// can't or don't want H.264 (low-powered viewer, no decoder wired
// yet). Quality maps directly onto image/jpeg's Options.Quality; JPEG
// has no inter-frame keyframe concept so every frame reports true.
type jpegEncoder struct {
	mu  sync.Mutex
	cfg EncoderConfig
}

func newJPEGEncoder(cfg EncoderConfig) (VideoEncoder, error) {
	return &jpegEncoder{cfg: cfg}, nil
}

func (e *jpegEncoder) Encode(img *image.RGBA) ([]byte, bool, error) {
	e.mu.Lock()
	quality := e.cfg.Quality
	e.mu.Unlock()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, false, err
	}
	return buf.Bytes(), true, nil
}

func (e *jpegEncoder) SetQuality(quality int) error {
	if !encodeQuality(quality).valid() {
		return ErrInvalidQuality
	}
	e.mu.Lock()
	e.cfg.Quality = quality
	e.mu.Unlock()
	return nil
}

func (e *jpegEncoder) SetBitrate(kbps int) error {
	if kbps <= 0 {
		return ErrInvalidBitrate
	}
	e.mu.Lock()
	e.cfg.BitrateKbps = kbps
	e.mu.Unlock()
	return nil
}

func (e *jpegEncoder) SetFPS(fps int) error {
	if fps <= 0 {
		return ErrInvalidFPS
	}
	e.mu.Lock()
	e.cfg.FPS = fps
	e.mu.Unlock()
	return nil
}

func (e *jpegEncoder) Close() error { return nil }
func (e *jpegEncoder) Name() string { return "jpeg" }
