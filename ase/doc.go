// Package ase implements a decoder for Aseprite sprite files (.ase and
// .aseprite).
//
// The decoder flattens every frame into a single RGBA image, keeping the
// per-frame display duration, along with the tags (named frame ranges with a
// playback direction) and slices stored in the file. Layers are blended with
// the normal blend mode only.
//
// Importing the package also registers the "aseprite" format with the image
// package; image.Decode then returns the first frame.
package ase
