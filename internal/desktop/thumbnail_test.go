package desktop

import (
	"image"
	"testing"
)

func TestScaleToWidthPreservesAspectRatio(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 1280, 720))
	scaled := scaleToWidth(src, 320)

	if scaled.Bounds().Dx() != 320 {
		t.Fatalf("width = %d, want 320", scaled.Bounds().Dx())
	}
	if got, want := scaled.Bounds().Dy(), 180; got != want {
		t.Fatalf("height = %d, want %d", got, want)
	}
}

func TestScaleToWidthNoopWhenAlreadyNarrower(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 200, 100))
	scaled := scaleToWidth(src, 320)
	if scaled != src {
		t.Fatal("expected scaleToWidth to return the source image unchanged when already narrower than target")
	}
}
