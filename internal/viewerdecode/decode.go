// Package viewerdecode turns desktop-frame and cursor envelopes the
// viewer receives into images a rendering surface can present, and keeps
// a small per-session cursor shape cache.
package viewerdecode

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"sync"

	"github.com/screencontrol/core/internal/logging"
	"github.com/screencontrol/core/pkg/protocol"
)

var log = logging.L("viewerdecode")

// Surface receives fully decoded frames for presentation. A concrete
// GUI/GL implementation is an out-of-scope collaborator; this package
// only needs the interface to stay headlessly testable.
type Surface interface {
	WriteFrame(img *image.YCbCr)
}

// CursorShape is a decoded cursor bitmap cached by cursor ID.
type CursorShape struct {
	CursorID int
	RGBA     *image.RGBA
	HotspotX int
	HotspotY int
}

// CursorSurface receives cursor shape and position updates.
type CursorSurface interface {
	SetCursor(shape *CursorShape)
	MoveCursor(x, y int)
}

// Decoder turns desktop-frame and cursor envelopes into images for a
// Surface, and maintains a cursor shape cache keyed by cursor ID.
//
// H.264 frames currently ride the same raw-RGBA passthrough bitstream
// the agent's software encoder emits (internal/desktop's
// softwareH264Encoder) rather than a real Annex-B stream, so there is no
// SPS/PPS to recover resolution from; decodeH264 tracks the most recent
// screen-info dimensions instead. Swapping in a real decoder binding
// only touches decodeH264 and SetScreenInfo stays useful regardless,
// since the real bitstream still needs the active monitor size for
// anything else that isn't carried in-band.
type Decoder struct {
	mu sync.Mutex

	screenWidth  int
	screenHeight int

	cursors map[int]*CursorShape
}

// New creates a decoder with an empty cursor cache.
func New() *Decoder {
	return &Decoder{cursors: make(map[int]*CursorShape)}
}

// SetScreenInfo records the active monitor's dimensions from the most
// recent screen-info envelope.
func (d *Decoder) SetScreenInfo(info *protocol.ScreenInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, m := range info.Monitors {
		if m.Index == info.ActiveMonitor {
			d.screenWidth = m.Width
			d.screenHeight = m.Height
			return
		}
	}
}

// HandleFrame decodes a desktop-frame envelope and writes the result to
// surface. It returns nil without writing if the frame can't be decoded
// yet (an H.264 frame arriving before any screen-info envelope).
func (d *Decoder) HandleFrame(frame *protocol.DesktopFrame, surface Surface) error {
	switch frame.Codec {
	case protocol.CodecJPEG:
		return d.decodeJPEG(frame, surface)
	case protocol.CodecH264:
		return d.decodeH264(frame, surface)
	default:
		return fmt.Errorf("viewerdecode: unknown codec %v", frame.Codec)
	}
}

func (d *Decoder) decodeJPEG(frame *protocol.DesktopFrame, surface Surface) error {
	img, err := jpeg.Decode(bytes.NewReader(frame.Data))
	if err != nil {
		return fmt.Errorf("viewerdecode: jpeg decode: %w", err)
	}

	yuv, err := toYCbCr(img)
	if err != nil {
		return err
	}
	surface.WriteFrame(yuv)
	return nil
}

func (d *Decoder) decodeH264(frame *protocol.DesktopFrame, surface Surface) error {
	d.mu.Lock()
	w, h := d.screenWidth, d.screenHeight
	d.mu.Unlock()

	if w == 0 || h == 0 {
		log.Warn("h264 frame arrived before screen-info, dropping")
		return nil
	}

	want := w * h * 4
	if len(frame.Data) != want {
		return fmt.Errorf("viewerdecode: h264 passthrough frame size %d does not match %dx%d RGBA", len(frame.Data), w, h)
	}

	rgba := &image.RGBA{
		Pix:    frame.Data,
		Stride: w * 4,
		Rect:   image.Rect(0, 0, w, h),
	}
	surface.WriteFrame(rgbaToYCbCr(rgba))
	return nil
}

// HandleCursorData decodes and caches a cursor's RGBA shape keyed by
// cursor ID.
func (d *Decoder) HandleCursorData(cd *protocol.CursorData) (*CursorShape, error) {
	want := cd.Width * cd.Height * 4
	if len(cd.RGBA) != want {
		return nil, fmt.Errorf("viewerdecode: cursor rgba size %d does not match %dx%d", len(cd.RGBA), cd.Width, cd.Height)
	}

	shape := &CursorShape{
		CursorID: cd.CursorID,
		RGBA: &image.RGBA{
			Pix:    cd.RGBA,
			Stride: cd.Width * 4,
			Rect:   image.Rect(0, 0, cd.Width, cd.Height),
		},
		HotspotX: cd.HotspotX,
		HotspotY: cd.HotspotY,
	}

	d.mu.Lock()
	d.cursors[cd.CursorID] = shape
	d.mu.Unlock()
	return shape, nil
}

// HandleCursorPosition moves the cached shape for a cursor-position
// update on cursorSurface. It returns false if the cursor's shape hasn't
// arrived yet, in which case the caller should hold the position until
// it does.
func (d *Decoder) HandleCursorPosition(cp *protocol.CursorPosition, cursorSurface CursorSurface) bool {
	d.mu.Lock()
	shape, ok := d.cursors[cp.CursorID]
	d.mu.Unlock()
	if !ok {
		return false
	}
	cursorSurface.SetCursor(shape)
	cursorSurface.MoveCursor(cp.X, cp.Y)
	return true
}

func toYCbCr(img image.Image) (*image.YCbCr, error) {
	switch v := img.(type) {
	case *image.YCbCr:
		return v, nil
	case *image.Gray:
		return grayToYCbCr(v), nil
	default:
		return nil, fmt.Errorf("viewerdecode: unexpected jpeg image type %T", img)
	}
}

func grayToYCbCr(g *image.Gray) *image.YCbCr {
	b := g.Bounds()
	yuv := image.NewYCbCr(b, image.YCbCrSubsampleRatio444)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			yuv.Y[yuv.YOffset(x, y)] = g.GrayAt(x, y).Y
			yuv.Cb[yuv.COffset(x, y)] = 128
			yuv.Cr[yuv.COffset(x, y)] = 128
		}
	}
	return yuv
}

func rgbaToYCbCr(img *image.RGBA) *image.YCbCr {
	b := img.Bounds()
	yuv := image.NewYCbCr(b, image.YCbCrSubsampleRatio420)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			yy, cb, cr := color.RGBToYCbCr(uint8(r>>8), uint8(g>>8), uint8(bl>>8))
			yuv.Y[yuv.YOffset(x, y)] = yy
			yuv.Cb[yuv.COffset(x, y)] = cb
			yuv.Cr[yuv.COffset(x, y)] = cr
		}
	}
	return yuv
}
