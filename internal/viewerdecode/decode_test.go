package viewerdecode

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/screencontrol/core/pkg/protocol"
)

type fakeSurface struct {
	frames []*image.YCbCr
}

func (f *fakeSurface) WriteFrame(img *image.YCbCr) {
	f.frames = append(f.frames, img)
}

type fakeCursorSurface struct {
	shape  *CursorShape
	x, y   int
	moves  int
}

func (f *fakeCursorSurface) SetCursor(shape *CursorShape) { f.shape = shape }
func (f *fakeCursorSurface) MoveCursor(x, y int) {
	f.x, f.y = x, y
	f.moves++
}

func testJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func TestHandleFrameJPEGDecodesToSurface(t *testing.T) {
	d := New()
	surface := &fakeSurface{}

	frame := &protocol.DesktopFrame{
		Codec: protocol.CodecJPEG,
		Data:  testJPEG(t, 16, 8),
		Width: 16,
		Height: 8,
	}

	if err := d.HandleFrame(frame, surface); err != nil {
		t.Fatalf("HandleFrame: %v", err)
	}
	if len(surface.frames) != 1 {
		t.Fatalf("expected 1 frame written, got %d", len(surface.frames))
	}
	b := surface.frames[0].Bounds()
	if b.Dx() != 16 || b.Dy() != 8 {
		t.Fatalf("unexpected decoded bounds: %v", b)
	}
}

func TestHandleFrameH264DropsBeforeScreenInfo(t *testing.T) {
	d := New()
	surface := &fakeSurface{}

	frame := &protocol.DesktopFrame{Codec: protocol.CodecH264, Data: make([]byte, 64)}
	if err := d.HandleFrame(frame, surface); err != nil {
		t.Fatalf("HandleFrame: %v", err)
	}
	if len(surface.frames) != 0 {
		t.Fatalf("expected no frame written before screen-info, got %d", len(surface.frames))
	}
}

func TestHandleFrameH264ReconstructsFromScreenInfo(t *testing.T) {
	d := New()
	surface := &fakeSurface{}

	d.SetScreenInfo(&protocol.ScreenInfo{
		Monitors:      []protocol.Monitor{{Index: 0, Width: 4, Height: 2}},
		ActiveMonitor: 0,
	})

	frame := &protocol.DesktopFrame{Codec: protocol.CodecH264, Data: make([]byte, 4*2*4)}
	if err := d.HandleFrame(frame, surface); err != nil {
		t.Fatalf("HandleFrame: %v", err)
	}
	if len(surface.frames) != 1 {
		t.Fatalf("expected 1 frame written, got %d", len(surface.frames))
	}
	b := surface.frames[0].Bounds()
	if b.Dx() != 4 || b.Dy() != 2 {
		t.Fatalf("unexpected reconstructed bounds: %v", b)
	}
}

func TestHandleFrameH264RejectsMismatchedSize(t *testing.T) {
	d := New()
	surface := &fakeSurface{}
	d.SetScreenInfo(&protocol.ScreenInfo{
		Monitors:      []protocol.Monitor{{Index: 0, Width: 4, Height: 2}},
		ActiveMonitor: 0,
	})

	frame := &protocol.DesktopFrame{Codec: protocol.CodecH264, Data: make([]byte, 3)}
	if err := d.HandleFrame(frame, surface); err == nil {
		t.Fatal("expected error for mismatched frame size")
	}
}

func TestCursorDataThenPositionMovesSurface(t *testing.T) {
	d := New()
	cs := &fakeCursorSurface{}

	cd := &protocol.CursorData{CursorID: 7, Width: 2, Height: 2, HotspotX: 1, HotspotY: 1, RGBA: make([]byte, 2*2*4)}
	shape, err := d.HandleCursorData(cd)
	if err != nil {
		t.Fatalf("HandleCursorData: %v", err)
	}
	if shape.CursorID != 7 {
		t.Fatalf("unexpected cursor id: %d", shape.CursorID)
	}

	cp := &protocol.CursorPosition{CursorID: 7, X: 100, Y: 200}
	if !d.HandleCursorPosition(cp, cs) {
		t.Fatal("expected cached cursor shape to be found")
	}
	if cs.shape != shape || cs.x != 100 || cs.y != 200 || cs.moves != 1 {
		t.Fatalf("unexpected cursor surface state: %+v", cs)
	}
}

func TestCursorPositionWithoutShapeReturnsFalse(t *testing.T) {
	d := New()
	cs := &fakeCursorSurface{}

	cp := &protocol.CursorPosition{CursorID: 99, X: 1, Y: 1}
	if d.HandleCursorPosition(cp, cs) {
		t.Fatal("expected false for unknown cursor id")
	}
	if cs.moves != 0 {
		t.Fatalf("expected no move, got %d", cs.moves)
	}
}
