//go:build darwin

package desktop

/*
#cgo LDFLAGS: -framework CoreGraphics -framework CoreFoundation -framework CoreVideo

#include <CoreGraphics/CoreGraphics.h>
#include <stdlib.h>
#include <string.h>

static CGDirectDisplayID display_id_for_index(int index) {
	CGDirectDisplayID ids[32];
	uint32_t count = 0;
	CGGetActiveDisplayList(32, ids, &count);
	if ((uint32_t)index >= count) {
		return CGMainDisplayID();
	}
	return ids[index];
}

static int display_dims(int index, int *w, int *h) {
	CGDirectDisplayID id = display_id_for_index(index);
	*w = (int)CGDisplayPixelsWide(id);
	*h = (int)CGDisplayPixelsHigh(id);
	return 0;
}

// grab_region snapshots the given rectangle of the display at index
// into out (pre-allocated width*height*4 bytes, BGRA byte order — the
// native layout CGDisplayCreateImage returns). Returns 0 on success.
static int grab_region(int index, int x, int y, int width, int height, unsigned char *out) {
	CGDirectDisplayID id = display_id_for_index(index);
	CGImageRef full = CGDisplayCreateImage(id);
	if (!full) return -1;

	CGRect rect = CGRectMake(x, y, width, height);
	CGImageRef cropped = CGImageCreateWithImageInRect(full, rect);
	CGImageRelease(full);
	if (!cropped) return -1;

	CGColorSpaceRef colorSpace = CGColorSpaceCreateDeviceRGB();
	CGContextRef ctx = CGBitmapContextCreate(out, width, height, 8, width * 4, colorSpace,
		kCGImageAlphaNoneSkipFirst | kCGBitmapByteOrder32Little);
	CGColorSpaceRelease(colorSpace);
	if (!ctx) {
		CGImageRelease(cropped);
		return -1;
	}

	CGContextDrawImage(ctx, CGRectMake(0, 0, width, height), cropped);
	CGContextRelease(ctx);
	CGImageRelease(cropped);
	return 0;
}
*/
import "C"

import (
	"fmt"
	"image"
	"sync"
	"unsafe"
)

// quartzCapturer captures via the classic synchronous
// CGDisplayCreateImage API. The teacher's production capturer uses
// ScreenCaptureKit's async stream-output delegate for lower latency
// and zero-copy IOSurface handoff; that path needs a running
// CMSampleBuffer pull loop and an Objective-C delegate object wired
// through cgo, which is too much surface to get right without a
// compiler to check it against. CGDisplayCreateImage is the same API
// macOS screen recorders used for a decade before ScreenCaptureKit and
// is adequate for a polled capture loop.
type quartzCapturer struct {
	mu           sync.Mutex
	displayIndex int
	closed       bool
}

func newPlatformCapturer(config CaptureConfig) (ScreenCapturer, error) {
	return &quartzCapturer{displayIndex: config.DisplayIndex}, nil
}

func (c *quartzCapturer) GetScreenBounds() (int, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, 0, ErrNotSupported
	}
	var w, h C.int
	C.display_dims(C.int(c.displayIndex), &w, &h)
	return int(w), int(h), nil
}

func (c *quartzCapturer) Capture() (*image.RGBA, error) {
	w, h, err := c.GetScreenBounds()
	if err != nil {
		return nil, err
	}
	return c.CaptureRegion(0, 0, w, h)
}

func (c *quartzCapturer) CaptureRegion(x, y, width, height int) (*image.RGBA, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrNotSupported
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("desktop: invalid capture region %dx%d", width, height)
	}

	buf := make([]byte, width*height*4)
	if C.grab_region(C.int(c.displayIndex), C.int(x), C.int(y), C.int(width), C.int(height),
		(*C.uchar)(unsafe.Pointer(&buf[0]))) != 0 {
		return nil, fmt.Errorf("desktop: CGDisplayCreateImage failed for region %d,%d %dx%d", x, y, width, height)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	bgraToRGBA(buf, img.Pix)
	return img, nil
}

func (c *quartzCapturer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func listMonitors() ([]MonitorInfo, error) {
	w0, h0, err := (&quartzCapturer{}).GetScreenBounds()
	if err != nil {
		return nil, err
	}
	return []MonitorInfo{{Index: 0, Name: "display-0", Width: w0, Height: h0, IsPrimary: true}}, nil
}
