package ase

// This file contains code directly related to reading the chunks of the
// sprite file format. Flattening the layers into frame images lives in
// compose.go.

import (
	"bytes"
	"encoding/binary"
	"image/color"
	"io"
	"io/ioutil"
	"time"

	"github.com/golang/glog"
)

// MaxPixels bounds the area of the canvas and of every compressed cel.
// Larger sprites are rejected with a FormatError before any pixel buffer is
// allocated.
const MaxPixels = 1 << 24

const (
	fileMagic  = 0xA5E0
	frameMagic = 0xF1FA

	headerSize      = 128
	frameHeaderSize = 16
	chunkHeaderSize = 6

	// Header flag: layer opacity field holds a valid value.
	flagLayerOpacity = 1
)

// Chunk types.
const (
	chunkOldPalette    = 0x0004
	chunkOldPalette64  = 0x0011
	chunkLayer         = 0x2004
	chunkCel           = 0x2005
	chunkCelExtra      = 0x2006
	chunkColorProfile  = 0x2007
	chunkExternalFiles = 0x2008
	chunkMask          = 0x2016
	chunkPath          = 0x2017
	chunkTags          = 0x2018
	chunkPalette       = 0x2019
	chunkUserData      = 0x2020
	chunkSlice         = 0x2022
	chunkTileset       = 0x2023
)

// Cel types.
const (
	celRaw = iota
	celLinked
	celCompressed
	celCompressedTilemap
)

type header struct {
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
	GridX, GridY   int16
	GridW, GridH   uint16
	_              [84]byte
}

type frameHeader struct {
	Size      uint32
	Magic     uint16
	OldChunks uint16
	Duration  uint16
	_         [2]byte
	NewChunks uint32
}

func (fh *frameHeader) chunks() int {
	if fh.NewChunks == 0 {
		return int(fh.OldChunks)
	}
	return int(fh.NewChunks)
}

type layerChunk struct {
	Flags      uint16
	Type       uint16
	ChildLevel uint16
	DefaultW   uint16
	DefaultH   uint16
	BlendMode  uint16
	Opacity    uint8
	_          [3]byte
}

type celChunk struct {
	Layer   uint16
	X, Y    int16
	Opacity uint8
	Type    uint16
	ZIndex  int16
	_       [5]byte
}

type tagEntry struct {
	From, To  uint16
	Direction uint8
	Repeat    uint16
	_         [10]byte
}

type paletteChunk struct {
	Size, First, Last uint32
	_                 [8]byte
}

type paletteEntry struct {
	Flags      uint16
	R, G, B, A uint8
}

type sliceChunk struct {
	Keys  uint32
	Flags uint32
	_     uint32
}

type sliceKey struct {
	Frame uint32
	X, Y  int32
	W, H  uint32
}

type sliceCenter struct {
	X, Y int32
	W, H uint32
}

type slicePivot struct {
	X, Y int32
}

// cel is a cel chunk kept until every chunk has been read, since the palette
// may follow the pixel data it applies to.
type cel struct {
	layer   int
	x, y    int
	opacity uint8
	z       int
	w, h    int
	pixels  []byte
	// link is the frame holding the pixel data, or -1.
	link int
	// off is where the chunk started, for error reporting.
	off int64
}

type decoder struct {
	h    header
	f    *File
	cels [][]cel

	sawNewPalette bool
}

// Read reads a whole sprite file from r and decodes it.
func Read(r io.Reader) (*File, error) {
	b, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, formatErrorf(0, err, "could not read sprite data")
	}
	return Decode(b)
}

// Decode decodes a sprite file held in b. The same input always yields an
// equal File.
func Decode(b []byte) (*File, error) {
	d := &decoder{}
	if err := d.readHeader(b); err != nil {
		return nil, err
	}

	off := int64(headerSize)
	for i := 0; i < len(d.cels); i++ {
		n, err := d.readFrame(b, off, i)
		if err != nil {
			return nil, err
		}
		off += n
	}
	if off < int64(len(b)) {
		glog.V(2).Infof("ase: %d trailing bytes ignored", int64(len(b))-off)
	}

	if err := d.validateTags(); err != nil {
		return nil, err
	}
	if err := d.compose(); err != nil {
		return nil, err
	}
	return d.f, nil
}

func (d *decoder) readHeader(b []byte) error {
	if len(b) < headerSize {
		return formatErrorf(0, io.ErrUnexpectedEOF, "truncated header: got %d bytes, want %d", len(b), headerSize)
	}
	if err := binary.Read(bytes.NewReader(b[:headerSize]), binary.LittleEndian, &d.h); err != nil {
		return formatErrorf(0, err, "could not read header")
	}
	if d.h.Magic != fileMagic {
		return formatErrorf(4, nil, "bad magic: got %04x, want %04x", d.h.Magic, fileMagic)
	}
	mode := ColorMode(d.h.ColorDepth)
	switch mode {
	case ColorModeIndexed, ColorModeGrayscale, ColorModeRGBA:
	default:
		return formatErrorf(12, nil, "unsupported color depth %d", d.h.ColorDepth)
	}
	if d.h.Width == 0 || d.h.Height == 0 {
		return formatErrorf(8, nil, "empty canvas %dx%d", d.h.Width, d.h.Height)
	}
	if int(d.h.Width)*int(d.h.Height) > MaxPixels {
		return formatErrorf(8, nil, "canvas %dx%d exceeds %d pixels", d.h.Width, d.h.Height, MaxPixels)
	}
	if d.h.Frames == 0 {
		return formatErrorf(6, nil, "no frames")
	}

	d.f = &File{
		Width:            int(d.h.Width),
		Height:           int(d.h.Height),
		ColorMode:        mode,
		TransparentIndex: d.h.TransparentIdx,
		Frames:           make([]Frame, d.h.Frames),
	}
	d.cels = make([][]cel, d.h.Frames)
	return nil
}

// readFrame reads the frame starting at off and returns its size in bytes.
func (d *decoder) readFrame(b []byte, off int64, idx int) (int64, error) {
	if int64(len(b))-off < frameHeaderSize {
		return 0, formatErrorf(off, io.ErrUnexpectedEOF, "truncated frame %d header", idx)
	}
	var fh frameHeader
	if err := binary.Read(bytes.NewReader(b[off:off+frameHeaderSize]), binary.LittleEndian, &fh); err != nil {
		return 0, formatErrorf(off, err, "could not read frame %d header", idx)
	}
	if fh.Magic != frameMagic {
		return 0, formatErrorf(off+4, nil, "bad frame %d magic: got %04x, want %04x", idx, fh.Magic, frameMagic)
	}
	if fh.Size < frameHeaderSize || int64(fh.Size) > int64(len(b))-off {
		return 0, formatErrorf(off, io.ErrUnexpectedEOF, "frame %d size %d out of bounds", idx, fh.Size)
	}

	dur := fh.Duration
	if dur == 0 {
		dur = d.h.Speed
	}
	d.f.Frames[idx].Duration = time.Duration(dur) * time.Millisecond

	end := off + int64(fh.Size)
	pos := off + frameHeaderSize
	for c := 0; c < fh.chunks(); c++ {
		if end-pos < chunkHeaderSize {
			return 0, formatErrorf(pos, io.ErrUnexpectedEOF, "truncated chunk %d in frame %d", c, idx)
		}
		size := int64(binary.LittleEndian.Uint32(b[pos:]))
		typ := binary.LittleEndian.Uint16(b[pos+4:])
		if size < chunkHeaderSize || size > end-pos {
			return 0, formatErrorf(pos, nil, "chunk %04x in frame %d has bad size %d", typ, idx, size)
		}
		cr := &chunkReader{r: bytes.NewReader(b[pos+chunkHeaderSize : pos+size]), off: pos}
		if err := d.readChunk(cr, typ, idx); err != nil {
			return 0, err
		}
		pos += size
	}
	return int64(fh.Size), nil
}

func (d *decoder) readChunk(cr *chunkReader, typ uint16, frame int) error {
	switch typ {
	case chunkLayer:
		return d.readLayer(cr)
	case chunkCel:
		return d.readCel(cr, frame)
	case chunkTags:
		return d.readTags(cr)
	case chunkPalette:
		return d.readPalette(cr)
	case chunkOldPalette, chunkOldPalette64:
		if d.sawNewPalette {
			return nil
		}
		return d.readOldPalette(cr, typ == chunkOldPalette64)
	case chunkSlice:
		return d.readSlice(cr)
	case chunkCelExtra, chunkColorProfile, chunkExternalFiles, chunkMask, chunkPath, chunkUserData, chunkTileset:
		return nil
	default:
		glog.V(2).Infof("ase: skipping unknown chunk %04x at %d", typ, cr.off)
		return nil
	}
}

func (d *decoder) readLayer(cr *chunkReader) error {
	var lc layerChunk
	cr.read(&lc)
	name := cr.str()
	if cr.err != nil {
		return cr.fail("could not read layer chunk")
	}
	d.f.Layers = append(d.f.Layers, Layer{
		Name:       name,
		Flags:      LayerFlags(lc.Flags),
		Type:       LayerType(lc.Type),
		ChildLevel: int(lc.ChildLevel),
		BlendMode:  lc.BlendMode,
		Opacity:    lc.Opacity,
	})
	return nil
}

func (d *decoder) readCel(cr *chunkReader, frame int) error {
	var cc celChunk
	cr.read(&cc)
	if cr.err != nil {
		return cr.fail("could not read cel chunk")
	}
	c := cel{
		layer:   int(cc.Layer),
		x:       int(cc.X),
		y:       int(cc.Y),
		opacity: cc.Opacity,
		z:       int(cc.ZIndex),
		link:    -1,
		off:     cr.off,
	}

	bpp := d.f.ColorMode.bytesPerPixel()
	switch cc.Type {
	case celRaw:
		var w, h uint16
		cr.read(&w)
		cr.read(&h)
		c.w, c.h = int(w), int(h)
		c.pixels = cr.bytes(c.w * c.h * bpp)
		if cr.err != nil {
			return cr.fail("could not read raw cel")
		}
	case celLinked:
		var link uint16
		cr.read(&link)
		if cr.err != nil {
			return cr.fail("could not read linked cel")
		}
		if int(link) >= frame {
			return formatErrorf(cr.off, nil, "cel in frame %d links to frame %d", frame, link)
		}
		c.link = int(link)
	case celCompressed:
		var w, h uint16
		cr.read(&w)
		cr.read(&h)
		c.w, c.h = int(w), int(h)
		if cr.err != nil {
			return cr.fail("could not read compressed cel")
		}
		if c.w*c.h > MaxPixels {
			return formatErrorf(cr.off, nil, "cel %dx%d in frame %d exceeds %d pixels", c.w, c.h, frame, MaxPixels)
		}
		pix, err := inflate(cr.rest(), c.w*c.h*bpp)
		if cr.err != nil {
			return cr.fail("could not read compressed cel")
		}
		if err != nil {
			return formatErrorf(cr.off, err, "corrupt compressed cel in frame %d", frame)
		}
		c.pixels = pix
	case celCompressedTilemap:
		glog.Warningf("ase: tilemap cel in frame %d layer %d is not supported; skipping", frame, c.layer)
		return nil
	default:
		return formatErrorf(cr.off, nil, "unknown cel type %d", cc.Type)
	}

	d.cels[frame] = append(d.cels[frame], c)
	return nil
}

func (d *decoder) readTags(cr *chunkReader) error {
	var count uint16
	cr.read(&count)
	cr.skip(8)
	for i := 0; i < int(count) && cr.err == nil; i++ {
		var te tagEntry
		cr.read(&te)
		name := cr.str()
		if cr.err != nil {
			break
		}
		d.f.Tags = append(d.f.Tags, Tag{
			Name:      name,
			From:      int(te.From),
			To:        int(te.To),
			Direction: Direction(te.Direction),
			Repeat:    int(te.Repeat),
		})
	}
	if cr.err != nil {
		return cr.fail("could not read tags chunk")
	}
	return nil
}

func (d *decoder) readPalette(cr *chunkReader) error {
	var pc paletteChunk
	cr.read(&pc)
	if cr.err != nil {
		return cr.fail("could not read palette chunk")
	}
	if pc.Last < pc.First || pc.Last >= pc.Size || pc.Size > 65536 {
		return formatErrorf(cr.off, nil, "bad palette range %d-%d of %d", pc.First, pc.Last, pc.Size)
	}
	if !d.sawNewPalette {
		d.f.Palette = nil
		d.sawNewPalette = true
	}
	d.growPalette(int(pc.Size))
	for i := pc.First; i <= pc.Last; i++ {
		var pe paletteEntry
		cr.read(&pe)
		if pe.Flags&1 != 0 {
			cr.str()
		}
		if cr.err != nil {
			return cr.fail("could not read palette entry")
		}
		d.f.Palette[i] = color.NRGBA{R: pe.R, G: pe.G, B: pe.B, A: pe.A}
	}
	return nil
}

func (d *decoder) readOldPalette(cr *chunkReader, sixBit bool) error {
	var packets uint16
	cr.read(&packets)
	idx := 0
	for p := 0; p < int(packets) && cr.err == nil; p++ {
		var skip, count uint8
		cr.read(&skip)
		cr.read(&count)
		idx += int(skip)
		n := int(count)
		if n == 0 {
			n = 256
		}
		d.growPalette(idx + n)
		for i := 0; i < n; i++ {
			var rgb [3]uint8
			cr.read(&rgb)
			if cr.err != nil {
				break
			}
			if sixBit {
				for j := range rgb {
					rgb[j] = rgb[j]<<2 | rgb[j]>>4
				}
			}
			d.f.Palette[idx] = color.NRGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 0xFF}
			idx++
		}
	}
	if cr.err != nil {
		return cr.fail("could not read old palette chunk")
	}
	return nil
}

func (d *decoder) growPalette(n int) {
	for len(d.f.Palette) < n {
		d.f.Palette = append(d.f.Palette, color.NRGBA{})
	}
}

func (d *decoder) readSlice(cr *chunkReader) error {
	var sc sliceChunk
	cr.read(&sc)
	s := Slice{Name: cr.str()}
	for i := 0; i < int(sc.Keys) && cr.err == nil; i++ {
		var sk sliceKey
		cr.read(&sk)
		key := SliceKey{
			Frame:  int(sk.Frame),
			Bounds: rect(sk.X, sk.Y, sk.W, sk.H),
		}
		if sc.Flags&1 != 0 {
			var c sliceCenter
			cr.read(&c)
			r := rect(c.X, c.Y, c.W, c.H)
			key.Center = &r
		}
		if sc.Flags&2 != 0 {
			var p slicePivot
			cr.read(&p)
			pt := pointOf(p.X, p.Y)
			key.Pivot = &pt
		}
		s.Keys = append(s.Keys, key)
	}
	if cr.err != nil {
		return cr.fail("could not read slice chunk")
	}
	d.f.Slices = append(d.f.Slices, s)
	return nil
}

func (d *decoder) validateTags() error {
	for _, t := range d.f.Tags {
		if t.From > t.To || t.To >= len(d.f.Frames) {
			return formatErrorf(0, nil, "tag %q range %d-%d outside %d frames", t.Name, t.From, t.To, len(d.f.Frames))
		}
	}
	return nil
}

// chunkReader reads little endian values out of a single chunk. The first
// failure sticks; callers check err once after a group of reads.
type chunkReader struct {
	r   *bytes.Reader
	off int64
	err error
}

func (cr *chunkReader) read(v interface{}) {
	if cr.err != nil {
		return
	}
	cr.err = binary.Read(cr.r, binary.LittleEndian, v)
}

func (cr *chunkReader) skip(n int) {
	if cr.err != nil {
		return
	}
	if cr.r.Len() < n {
		cr.err = io.ErrUnexpectedEOF
		return
	}
	cr.r.Seek(int64(n), io.SeekCurrent)
}

func (cr *chunkReader) bytes(n int) []byte {
	if cr.err != nil {
		return nil
	}
	if cr.r.Len() < n {
		cr.err = io.ErrUnexpectedEOF
		return nil
	}
	b := make([]byte, n)
	io.ReadFull(cr.r, b)
	return b
}

func (cr *chunkReader) rest() []byte {
	return cr.bytes(cr.r.Len())
}

func (cr *chunkReader) str() string {
	var n uint16
	cr.read(&n)
	return string(cr.bytes(int(n)))
}

func (cr *chunkReader) fail(reason string) error {
	return formatErrorf(cr.off, cr.err, "%s", reason)
}
