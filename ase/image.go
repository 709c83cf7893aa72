package ase

// This file contains the glue registering the format with the image package,
// modeled after the public interface of image/gif: Decode returns the first
// frame only, while Read and Decode in decode.go return every frame.

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"io"
)

func init() {
	image.RegisterFormat("aseprite", "????\xE0\xA5", decodeFirst, DecodeConfig)
}

func decodeFirst(r io.Reader) (image.Image, error) {
	f, err := Read(r)
	if err != nil {
		return nil, err
	}
	return f.Frames[0].Image, nil
}

// DecodeConfig returns the dimensions of the sprite canvas without decoding
// any frame.
func DecodeConfig(r io.Reader) (image.Config, error) {
	b := make([]byte, headerSize)
	if _, err := io.ReadFull(r, b); err != nil {
		return image.Config{}, formatErrorf(0, err, "could not read header")
	}
	var h header
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, &h); err != nil {
		return image.Config{}, formatErrorf(0, err, "could not read header")
	}
	if h.Magic != fileMagic {
		return image.Config{}, formatErrorf(4, nil, "bad magic: got %04x, want %04x", h.Magic, fileMagic)
	}
	switch ColorMode(h.ColorDepth) {
	case ColorModeIndexed, ColorModeGrayscale, ColorModeRGBA:
	default:
		return image.Config{}, formatErrorf(12, nil, "unsupported color depth %d", h.ColorDepth)
	}
	return image.Config{
		ColorModel: color.RGBAModel,
		Width:      int(h.Width),
		Height:     int(h.Height),
	}, nil
}
