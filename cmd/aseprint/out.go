package main

import (
	"image"

	"github.com/nfnt/resize"

	"badc0de.net/pkg/go-aseprite/imageprint"
)

// fit shrinks img to the terminal when -downsize is set. Every pixel takes
// two columns in the text modes, so those get half the width.
func fit(img image.Image, m imageprint.Mode) image.Image {
	if !*downsize {
		return img
	}
	ts, err := getTermSize()
	if err != nil {
		return img
	}
	if ts.XPixel != 0 && ts.YPixel != 0 && (m == imageprint.ModeRasTerm || m == imageprint.ModeITerm) {
		// Prefer printing out in native size if there's a chance we print
		// out an image rather than pixels.
		return resize.Thumbnail(ts.XPixel/2, ts.YPixel/2, img, resize.NearestNeighbor)
	}
	if ts.Cols == 0 || ts.Rows == 0 {
		return img
	}
	return resize.Thumbnail(ts.Cols/2, ts.Rows-1, img, resize.NearestNeighbor)
}
