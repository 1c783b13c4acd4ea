package desktop

import (
	"errors"
	"fmt"
	"image"
	"sync"
)

var (
	ErrInvalidCodec   = errors.New("desktop: invalid codec")
	ErrInvalidQuality = errors.New("desktop: invalid quality")
	ErrInvalidBitrate = errors.New("desktop: invalid bitrate")
	ErrInvalidFPS     = errors.New("desktop: invalid fps")
)

// VideoCodec names an encode target.
type VideoCodec string

const (
	CodecH264 VideoCodec = "h264"
	CodecJPEG VideoCodec = "jpeg"
)

func (c VideoCodec) valid() bool {
	return c == CodecH264 || c == CodecJPEG
}

type encodeQuality int

func (q encodeQuality) valid() bool {
	return q >= 1 && q <= 100
}

// EncoderConfig parameterizes a video encoder backend at construction.
type EncoderConfig struct {
	Codec       VideoCodec
	Width       int
	Height      int
	Quality     int
	BitrateKbps int
	FPS         int
}

// VideoEncoder turns raw RGBA frames into a wire-ready bitstream
// (H.264 access units or JPEG images).
type VideoEncoder interface {
	Encode(img *image.RGBA) (data []byte, isKeyframe bool, err error)
	SetQuality(quality int) error
	SetBitrate(kbps int) error
	SetFPS(fps int) error
	Close() error
	Name() string
}

// encoderBackend constructs a VideoEncoder for a given configuration.
// Backends register themselves in init() so the set compiled in
// varies by platform/build tag without this file needing to know
// which ones exist.
type encoderBackend func(cfg EncoderConfig) (VideoEncoder, error)

var (
	backendsMu sync.Mutex
	backends   = map[VideoCodec]encoderBackend{}
)

func registerBackend(codec VideoCodec, b encoderBackend) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[codec] = b
}

// NewVideoEncoder constructs the encoder registered for cfg.Codec.
func NewVideoEncoder(cfg EncoderConfig) (VideoEncoder, error) {
	if !cfg.Codec.valid() {
		return nil, ErrInvalidCodec
	}
	if !encodeQuality(cfg.Quality).valid() {
		return nil, ErrInvalidQuality
	}
	if cfg.BitrateKbps <= 0 {
		return nil, ErrInvalidBitrate
	}
	if cfg.FPS <= 0 {
		return nil, ErrInvalidFPS
	}

	backendsMu.Lock()
	b, ok := backends[cfg.Codec]
	backendsMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("desktop: no encoder backend registered for codec %q", cfg.Codec)
	}
	return b(cfg)
}
