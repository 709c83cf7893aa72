package ase

// This file contains the in-memory representation of a decoded sprite file.

import (
	"fmt"
	"image"
	"image/color"
	"time"
)

// ColorMode is the color depth of a sprite, in bits per pixel.
type ColorMode uint16

const (
	ColorModeIndexed   ColorMode = 8
	ColorModeGrayscale ColorMode = 16
	ColorModeRGBA      ColorMode = 32
)

func (m ColorMode) String() string {
	switch m {
	case ColorModeIndexed:
		return "indexed"
	case ColorModeGrayscale:
		return "grayscale"
	case ColorModeRGBA:
		return "rgba"
	default:
		return fmt.Sprintf("ColorMode(%d)", uint16(m))
	}
}

func (m ColorMode) bytesPerPixel() int {
	return int(m) / 8
}

// Direction is the default playback direction stored on a tag.
type Direction uint8

const (
	Forward Direction = iota
	Reverse
	PingPong
	PingPongReverse
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Reverse:
		return "reverse"
	case PingPong:
		return "pingpong"
	case PingPongReverse:
		return "pingpong_reverse"
	default:
		return fmt.Sprintf("Direction(%d)", uint8(d))
	}
}

// ParseDirection is the inverse of Direction.String.
func ParseDirection(s string) (Direction, error) {
	for d := Forward; d <= PingPongReverse; d++ {
		if d.String() == s {
			return d, nil
		}
	}
	return 0, fmt.Errorf("ase: unknown direction %q", s)
}

// LayerType distinguishes image layers from groups and tilemaps.
type LayerType uint16

const (
	LayerNormal LayerType = iota
	LayerGroup
	LayerTilemap
)

// LayerFlags is the bit set stored on every layer.
type LayerFlags uint16

const (
	LayerVisible LayerFlags = 1 << iota
	LayerEditable
	LayerLockMovement
	LayerBackground
	LayerPreferLinkedCels
	LayerCollapsed
	LayerReference
)

type Layer struct {
	Name       string
	Flags      LayerFlags
	Type       LayerType
	ChildLevel int
	BlendMode  uint16
	Opacity    uint8
}

func (l Layer) Visible() bool {
	return l.Flags&LayerVisible != 0
}

// Background layers ignore the transparent palette index of indexed sprites.
func (l Layer) Background() bool {
	return l.Flags&LayerBackground != 0
}

// Frame is one flattened frame of the sprite. It is not modified after
// decoding.
type Frame struct {
	Image    *image.RGBA
	Duration time.Duration
}

// Tag is a named, inclusive range of frames.
type Tag struct {
	Name      string
	From, To  int
	Direction Direction
	// Repeat is the number of passes to play; 0 means forever.
	Repeat int
}

// Len returns the number of frames covered by the tag.
func (t Tag) Len() int {
	return t.To - t.From + 1
}

type SliceKey struct {
	Frame  int
	Bounds image.Rectangle
	// Center is the nine-patch center, if any.
	Center *image.Rectangle
	Pivot  *image.Point
}

type Slice struct {
	Name string
	Keys []SliceKey
}

// File is a decoded sprite file.
type File struct {
	Width, Height int
	ColorMode     ColorMode
	// TransparentIndex is the palette entry treated as transparent on
	// non-background layers of indexed sprites.
	TransparentIndex uint8
	Layers           []Layer
	Palette          color.Palette
	Frames           []Frame
	Tags             []Tag
	Slices           []Slice
}

// Tag returns the tag with the passed name.
func (f *File) Tag(name string) (Tag, bool) {
	for _, t := range f.Tags {
		if t.Name == name {
			return t, true
		}
	}
	return Tag{}, false
}

// Images returns the frame images in frame order.
func (f *File) Images() []*image.RGBA {
	imgs := make([]*image.RGBA, len(f.Frames))
	for i, fr := range f.Frames {
		imgs[i] = fr.Image
	}
	return imgs
}
