// Package ttesting contains helpers shared by the tests of other packages.
package ttesting

import (
	"image"
	"image/color"
	"testing"
	"time"
)

func AssertEqualInt(t *testing.T, name string, got, want int) {
	t.Helper()
	t.Run(name, func(t *testing.T) {
		if got != want {
			t.Errorf("got %d; want %d", got, want)
		}
	})
}

func AssertEqualDuration(t *testing.T, name string, got, want time.Duration) {
	t.Helper()
	t.Run(name, func(t *testing.T) {
		if got != want {
			t.Errorf("got %v; want %v", got, want)
		}
	})
}

// AssertPixel compares the pixel of img at (x, y) with want, both converted
// to non-premultiplied RGBA.
func AssertPixel(t *testing.T, name string, img image.Image, x, y int, want color.NRGBA) {
	t.Helper()
	t.Run(name, func(t *testing.T) {
		got := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
		if got != want {
			t.Errorf("pixel (%d,%d): got %v; want %v", x, y, got, want)
		}
	})
}
