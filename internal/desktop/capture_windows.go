//go:build windows

package desktop

import (
	"fmt"
	"image"
	"sync"
	"syscall"
	"unsafe"
)

var (
	user32                 = syscall.NewLazyDLL("user32.dll")
	gdi32                  = syscall.NewLazyDLL("gdi32.dll")
	procGetDesktopWindow   = user32.NewProc("GetDesktopWindow")
	procGetDC              = user32.NewProc("GetDC")
	procReleaseDC          = user32.NewProc("ReleaseDC")
	procGetSystemMetrics   = user32.NewProc("GetSystemMetrics")
	procCreateCompatibleDC = gdi32.NewProc("CreateCompatibleDC")
	procCreateCompatibleBM = gdi32.NewProc("CreateCompatibleBitmap")
	procSelectObject       = gdi32.NewProc("SelectObject")
	procBitBlt             = gdi32.NewProc("BitBlt")
	procDeleteDC           = gdi32.NewProc("DeleteDC")
	procDeleteObject       = gdi32.NewProc("DeleteObject")
	procGetDIBits          = gdi32.NewProc("GetDIBits")
)

const (
	smCxScreen   = 0
	smCyScreen   = 1
	srcCopy      = 0x00CC0020
	dibRGBColors = 0
	biRGB        = 0
)

type bitmapInfoHeader struct {
	size          uint32
	width         int32
	height        int32
	planes        uint16
	bitCount      uint16
	compression   uint32
	sizeImage     uint32
	xPelsPerMeter int32
	yPelsPerMeter int32
	clrUsed       uint32
	clrImportant  uint32
}

type bitmapInfo struct {
	header bitmapInfoHeader
	colors [1]uint32
}

// gdiCapturer captures via the classic GDI BitBlt-to-DIB path. The
// teacher's production capturer targets DXGI desktop duplication for
// a GPU-resident, change-only frame stream; that needs an IDXGIOutput1
// COM object graph that's large to reproduce correctly without a
// compiler, so this keeps to the older, simpler GDI screen-copy route
// every pre-Windows-8 remote-desktop tool used.
type gdiCapturer struct {
	mu     sync.Mutex
	closed bool
}

func newPlatformCapturer(config CaptureConfig) (ScreenCapturer, error) {
	return &gdiCapturer{}, nil
}

func (c *gdiCapturer) GetScreenBounds() (int, int, error) {
	w, _, _ := procGetSystemMetrics.Call(smCxScreen)
	h, _, _ := procGetSystemMetrics.Call(smCyScreen)
	return int(w), int(h), nil
}

func (c *gdiCapturer) Capture() (*image.RGBA, error) {
	w, h, err := c.GetScreenBounds()
	if err != nil {
		return nil, err
	}
	return c.CaptureRegion(0, 0, w, h)
}

func (c *gdiCapturer) CaptureRegion(x, y, width, height int) (*image.RGBA, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrNotSupported
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("desktop: invalid capture region %dx%d", width, height)
	}

	desktop, _, _ := procGetDesktopWindow.Call()
	srcDC, _, _ := procGetDC.Call(desktop)
	if srcDC == 0 {
		return nil, fmt.Errorf("desktop: GetDC failed")
	}
	defer procReleaseDC.Call(desktop, srcDC)

	memDC, _, _ := procCreateCompatibleDC.Call(srcDC)
	if memDC == 0 {
		return nil, fmt.Errorf("desktop: CreateCompatibleDC failed")
	}
	defer procDeleteDC.Call(memDC)

	bmp, _, _ := procCreateCompatibleBM.Call(srcDC, uintptr(width), uintptr(height))
	if bmp == 0 {
		return nil, fmt.Errorf("desktop: CreateCompatibleBitmap failed")
	}
	defer procDeleteObject.Call(bmp)

	oldObj, _, _ := procSelectObject.Call(memDC, bmp)
	defer procSelectObject.Call(memDC, oldObj)

	ok, _, _ := procBitBlt.Call(memDC, 0, 0, uintptr(width), uintptr(height),
		srcDC, uintptr(x), uintptr(y), srcCopy)
	if ok == 0 {
		return nil, fmt.Errorf("desktop: BitBlt failed")
	}

	info := bitmapInfo{header: bitmapInfoHeader{
		size:        uint32(unsafe.Sizeof(bitmapInfoHeader{})),
		width:       int32(width),
		height:      -int32(height), // negative: top-down DIB
		planes:      1,
		bitCount:    32,
		compression: biRGB,
	}}

	buf := make([]byte, width*height*4)
	res, _, _ := procGetDIBits.Call(memDC, bmp, 0, uintptr(height),
		uintptr(unsafe.Pointer(&buf[0])), uintptr(unsafe.Pointer(&info)), dibRGBColors)
	if res == 0 {
		return nil, fmt.Errorf("desktop: GetDIBits failed")
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	bgraToRGBA(buf, img.Pix)
	return img, nil
}

func (c *gdiCapturer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func listMonitors() ([]MonitorInfo, error) {
	w, h, err := (&gdiCapturer{}).GetScreenBounds()
	if err != nil {
		return nil, err
	}
	return []MonitorInfo{{Index: 0, Name: "display-0", Width: w, Height: h, IsPrimary: true}}, nil
}
