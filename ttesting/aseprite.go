package ttesting

// This file contains an encoder for small sprite files, so that tests can
// construct their own inputs instead of relying on datafiles.

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"image"
	"image/color"
	"time"
)

// Layer flags used by the builder.
const (
	LayerVisible    = 1
	LayerBackground = 8
)

// Tag directions.
const (
	Forward         = 0
	Reverse         = 1
	PingPong        = 2
	PingPongReverse = 3
)

// AseCel describes a cel chunk. Pixels are in the sprite's color depth.
type AseCel struct {
	Layer      int
	X, Y       int
	W, H       int
	Opacity    uint8
	ZIndex     int
	Pixels     []byte
	Compressed bool
	// Linked cels reuse the pixels of the same layer in LinkFrame.
	Linked    bool
	LinkFrame int
}

type aseLayer struct {
	name       string
	flags      uint16
	group      bool
	childLevel uint16
	opacity    uint8
}

type aseTag struct {
	name      string
	from, to  uint16
	direction uint8
	repeat    uint16
}

type aseSlice struct {
	name  string
	frame uint32
	r     image.Rectangle
	pivot *image.Point
}

type aseFrame struct {
	duration time.Duration
	cels     []AseCel
}

// AseBuilder assembles a sprite file.
type AseBuilder struct {
	w, h        int
	depth       uint16
	flags       uint32
	transparent uint8
	layers      []aseLayer
	palette     []color.NRGBA
	tags        []aseTag
	slices      []aseSlice
	frames      []aseFrame
}

// NewAse starts a 32 bit sprite of the passed canvas size.
func NewAse(w, h int) *AseBuilder {
	return &AseBuilder{w: w, h: h, depth: 32, flags: 1}
}

func (b *AseBuilder) Depth(bpp uint16) *AseBuilder {
	b.depth = bpp
	return b
}

func (b *AseBuilder) TransparentIndex(idx uint8) *AseBuilder {
	b.transparent = idx
	return b
}

func (b *AseBuilder) Layer(name string, flags uint16, opacity uint8) *AseBuilder {
	b.layers = append(b.layers, aseLayer{name: name, flags: flags, opacity: opacity})
	return b
}

// ChildLayer adds a layer nested at the passed level below the last group.
func (b *AseBuilder) ChildLayer(name string, flags uint16, level int) *AseBuilder {
	b.layers = append(b.layers, aseLayer{name: name, flags: flags, childLevel: uint16(level), opacity: 255})
	return b
}

func (b *AseBuilder) Group(name string, flags uint16, level int) *AseBuilder {
	b.layers = append(b.layers, aseLayer{name: name, flags: flags, group: true, childLevel: uint16(level), opacity: 255})
	return b
}

func (b *AseBuilder) Palette(cols ...color.NRGBA) *AseBuilder {
	b.palette = append(b.palette, cols...)
	return b
}

func (b *AseBuilder) Tag(name string, from, to int, direction uint8, repeat int) *AseBuilder {
	b.tags = append(b.tags, aseTag{name: name, from: uint16(from), to: uint16(to), direction: direction, repeat: uint16(repeat)})
	return b
}

func (b *AseBuilder) Slice(name string, frame int, r image.Rectangle, pivot *image.Point) *AseBuilder {
	b.slices = append(b.slices, aseSlice{name: name, frame: uint32(frame), r: r, pivot: pivot})
	return b
}

func (b *AseBuilder) Frame(d time.Duration, cels ...AseCel) *AseBuilder {
	b.frames = append(b.frames, aseFrame{duration: d, cels: cels})
	return b
}

// SolidCel returns a 32 bit cel on layer 0 covering w x h with one color.
func SolidCel(w, h int, c color.NRGBA) AseCel {
	pix := make([]byte, 0, w*h*4)
	for i := 0; i < w*h; i++ {
		pix = append(pix, c.R, c.G, c.B, c.A)
	}
	return AseCel{W: w, H: h, Opacity: 255, Pixels: pix}
}

// FrameColor is the color Strip paints frame i with.
func FrameColor(i int) color.NRGBA {
	return color.NRGBA{R: uint8(40 * (i + 1)), G: uint8(255 - 30*i), B: uint8(17 * i), A: 255}
}

// Strip builds a single layer 32 bit sprite with one solid frame per passed
// duration, frame i painted with FrameColor(i).
func Strip(w, h int, durations ...time.Duration) *AseBuilder {
	b := NewAse(w, h).Layer("Layer 1", LayerVisible, 255)
	for i, d := range durations {
		cel := SolidCel(w, h, FrameColor(i))
		cel.Compressed = i%2 == 1
		b.Frame(d, cel)
	}
	return b
}

// Bytes encodes the sprite.
func (b *AseBuilder) Bytes() []byte {
	var body bytes.Buffer
	for i, fr := range b.frames {
		var chunks [][]byte
		if i == 0 {
			chunks = append(chunks, b.firstFrameChunks()...)
		}
		for _, c := range fr.cels {
			chunks = append(chunks, chunk(0x2005, b.celData(c)))
		}
		size := 16
		for _, c := range chunks {
			size += len(c)
		}
		write(&body, struct {
			Size      uint32
			Magic     uint16
			OldChunks uint16
			Duration  uint16
			_         [2]byte
			NewChunks uint32
		}{
			Size:      uint32(size),
			Magic:     0xF1FA,
			OldChunks: uint16(len(chunks)),
			Duration:  uint16(fr.duration / time.Millisecond),
			NewChunks: uint32(len(chunks)),
		})
		for _, c := range chunks {
			body.Write(c)
		}
	}

	var out bytes.Buffer
	write(&out, struct {
		FileSize       uint32
		Magic          uint16
		Frames         uint16
		Width, Height  uint16
		ColorDepth     uint16
		Flags          uint32
		Speed          uint16
		_              [8]byte
		TransparentIdx uint8
		_              [3]byte
		NumColors      uint16
		PixelW, PixelH uint8
		_              [8]byte
		_              [84]byte
	}{
		FileSize:       uint32(128 + body.Len()),
		Magic:          0xA5E0,
		Frames:         uint16(len(b.frames)),
		Width:          uint16(b.w),
		Height:         uint16(b.h),
		ColorDepth:     b.depth,
		Flags:          b.flags,
		Speed:          100,
		TransparentIdx: b.transparent,
		NumColors:      uint16(len(b.palette)),
		PixelW:         1,
		PixelH:         1,
	})
	out.Write(body.Bytes())
	return out.Bytes()
}

func (b *AseBuilder) firstFrameChunks() [][]byte {
	var chunks [][]byte
	if len(b.palette) > 0 {
		var p bytes.Buffer
		write(&p, []uint32{uint32(len(b.palette)), 0, uint32(len(b.palette) - 1)})
		p.Write(make([]byte, 8))
		for _, c := range b.palette {
			write(&p, uint16(0))
			p.Write([]byte{c.R, c.G, c.B, c.A})
		}
		chunks = append(chunks, chunk(0x2019, p.Bytes()))
	}
	for _, l := range b.layers {
		var p bytes.Buffer
		typ := uint16(0)
		if l.group {
			typ = 1
		}
		write(&p, []uint16{l.flags, typ, l.childLevel, 0, 0, 0})
		p.Write([]byte{l.opacity, 0, 0, 0})
		writeString(&p, l.name)
		chunks = append(chunks, chunk(0x2004, p.Bytes()))
	}
	if len(b.tags) > 0 {
		var p bytes.Buffer
		write(&p, uint16(len(b.tags)))
		p.Write(make([]byte, 8))
		for _, t := range b.tags {
			write(&p, []uint16{t.from, t.to})
			p.WriteByte(t.direction)
			write(&p, t.repeat)
			p.Write(make([]byte, 10))
			writeString(&p, t.name)
		}
		chunks = append(chunks, chunk(0x2018, p.Bytes()))
	}
	for _, s := range b.slices {
		var p bytes.Buffer
		flags := uint32(0)
		if s.pivot != nil {
			flags = 2
		}
		write(&p, []uint32{1, flags, 0})
		writeString(&p, s.name)
		write(&p, s.frame)
		write(&p, []int32{int32(s.r.Min.X), int32(s.r.Min.Y)})
		write(&p, []uint32{uint32(s.r.Dx()), uint32(s.r.Dy())})
		if s.pivot != nil {
			write(&p, []int32{int32(s.pivot.X), int32(s.pivot.Y)})
		}
		chunks = append(chunks, chunk(0x2022, p.Bytes()))
	}
	return chunks
}

func (b *AseBuilder) celData(c AseCel) []byte {
	var p bytes.Buffer
	typ := uint16(0)
	switch {
	case c.Linked:
		typ = 1
	case c.Compressed:
		typ = 2
	}
	write(&p, uint16(c.Layer))
	write(&p, []int16{int16(c.X), int16(c.Y)})
	p.WriteByte(c.Opacity)
	write(&p, typ)
	write(&p, int16(c.ZIndex))
	p.Write(make([]byte, 5))
	switch typ {
	case 1:
		write(&p, uint16(c.LinkFrame))
	case 2:
		write(&p, []uint16{uint16(c.W), uint16(c.H)})
		zw := zlib.NewWriter(&p)
		zw.Write(c.Pixels)
		zw.Close()
	default:
		write(&p, []uint16{uint16(c.W), uint16(c.H)})
		p.Write(c.Pixels)
	}
	return p.Bytes()
}

func chunk(typ uint16, data []byte) []byte {
	var p bytes.Buffer
	write(&p, uint32(6+len(data)))
	write(&p, typ)
	p.Write(data)
	return p.Bytes()
}

func write(buf *bytes.Buffer, v interface{}) {
	binary.Write(buf, binary.LittleEndian, v)
}

func writeString(buf *bytes.Buffer, s string) {
	write(buf, uint16(len(s)))
	buf.WriteString(s)
}
