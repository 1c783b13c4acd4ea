package desktop

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"time"
)

const (
	thumbnailWidth   = 320
	thumbnailQuality = 60
)

// CaptureThumbnail grabs a single downscaled JPEG snapshot of the
// primary display and PUTs it to uploadURL, a short-lived presigned
// URL the server mints and pushes down in a HeartbeatAck. Agents
// never hold object-store credentials directly; the server always
// hands them a scoped URL for exactly this one object.
func CaptureThumbnail(ctx context.Context, client *http.Client, uploadURL string) error {
	capturer, err := NewScreenCapturer(CaptureConfig{})
	if err != nil {
		return fmt.Errorf("desktop: thumbnail capturer: %w", err)
	}
	defer capturer.Close()

	img, err := capturer.Capture()
	if err != nil {
		return fmt.Errorf("desktop: thumbnail capture: %w", err)
	}

	scaled := scaleToWidth(img, thumbnailWidth)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: thumbnailQuality}); err != nil {
		return fmt.Errorf("desktop: thumbnail encode: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPut, uploadURL, bytes.NewReader(buf.Bytes()))
	if err != nil {
		return fmt.Errorf("desktop: thumbnail request: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("desktop: thumbnail upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("desktop: thumbnail upload failed with status %d", resp.StatusCode)
	}
	return nil
}

// scaleToWidth does nearest-neighbor downscaling to targetWidth,
// preserving aspect ratio. Thumbnails have no quality requirement
// beyond "recognizable", so a full resampling filter isn't worth the
// import.
func scaleToWidth(src *image.RGBA, targetWidth int) *image.RGBA {
	bounds := src.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	if srcW <= targetWidth {
		return src
	}

	targetHeight := srcH * targetWidth / srcW
	dst := image.NewRGBA(image.Rect(0, 0, targetWidth, targetHeight))

	for y := 0; y < targetHeight; y++ {
		srcY := y * srcH / targetHeight
		for x := 0; x < targetWidth; x++ {
			srcX := x * srcW / targetWidth
			dst.Set(x, y, src.At(bounds.Min.X+srcX, bounds.Min.Y+srcY))
		}
	}
	return dst
}
