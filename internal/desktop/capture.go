// Package desktop implements the agent-side capture and encode
// pipeline: platform screen capture, H.264/JPEG encoding, audio
// capture and Opus encoding, and the per-session loop that emits
// DesktopFrame/AudioFrame envelopes at the negotiated quality.
package desktop

import (
	"errors"
	"image"

	"github.com/screencontrol/core/internal/logging"
)

var log = logging.L("desktop")

// ErrNotSupported is returned by capturers/encoders unavailable on the
// current platform or build.
var ErrNotSupported = errors.New("desktop: not supported on this platform")

// ScreenCapturer captures full or partial frames of one display.
type ScreenCapturer interface {
	Capture() (*image.RGBA, error)
	CaptureRegion(x, y, width, height int) (*image.RGBA, error)
	GetScreenBounds() (width, height int, err error)
	Close() error
}

// CaptureConfig selects which display to capture.
type CaptureConfig struct {
	DisplayIndex int
}

// NewScreenCapturer returns the platform-specific capturer
// (capture_linux.go, capture_darwin.go, capture_windows.go,
// capture_other.go).
func NewScreenCapturer(config CaptureConfig) (ScreenCapturer, error) {
	return newPlatformCapturer(config)
}
