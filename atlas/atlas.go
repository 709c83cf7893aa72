package atlas

import (
	"flag"
	"fmt"
	"image"
	"image/draw"
	"sort"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

var (
	ErrNoTextures     = errors.New("no textures to pack")
	ErrZeroSized      = errors.New("zero sized texture")
	ErrNotEnoughSpace = errors.New("textures do not fit in the maximum atlas size")
)

// BuildError is returned by Build when the textures cannot be packed. It
// wraps one of ErrNoTextures, ErrZeroSized or ErrNotEnoughSpace.
type BuildError struct {
	Err error
	// Texture is the insertion index of the offending texture, or -1.
	Texture int
	// Size is the largest atlas size that was attempted.
	Size image.Point
}

func (e *BuildError) Error() string {
	if e.Texture >= 0 {
		return fmt.Sprintf("atlas: texture %d: %v", e.Texture, e.Err)
	}
	return fmt.Sprintf("atlas: %v (tried up to %dx%d)", e.Err, e.Size.X, e.Size.Y)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// Options controls atlas growth.
type Options struct {
	// InitialSize is the side of the first atlas size tried.
	InitialSize int
	// MaxSize bounds both sides of the atlas.
	MaxSize int
	// Padding is the number of empty pixels kept between textures.
	Padding int
}

func DefaultOptions() Options {
	return Options{InitialSize: 256, MaxSize: 2048}
}

// SetupFlags registers --atlas_initial_size, --atlas_max_size and
// --atlas_padding, with defaults from DefaultOptions, storing into o.
func SetupFlags(o *Options) {
	d := DefaultOptions()
	flag.IntVar(&o.InitialSize, "atlas_initial_size", d.InitialSize, "side of the first atlas size tried, in pixels")
	flag.IntVar(&o.MaxSize, "atlas_max_size", d.MaxSize, "maximum atlas width and height, in pixels")
	flag.IntVar(&o.Padding, "atlas_padding", d.Padding, "empty pixels between packed textures")
}

type entry struct {
	handle Handle
	img    *image.RGBA
}

// Builder collects textures to be packed.
type Builder struct {
	opts    Options
	entries []entry
}

func NewBuilder(opts Options) *Builder {
	if opts.MaxSize <= 0 {
		opts.MaxSize = DefaultOptions().MaxSize
	}
	if opts.InitialSize <= 0 || opts.InitialSize > opts.MaxSize {
		opts.InitialSize = opts.MaxSize
	}
	if opts.Padding < 0 {
		opts.Padding = 0
	}
	return &Builder{opts: opts}
}

// Add queues the texture img, previously uploaded under h.
func (b *Builder) Add(h Handle, img *image.RGBA) {
	b.entries = append(b.entries, entry{handle: h, img: img})
}

func (b *Builder) Len() int {
	return len(b.entries)
}

// Atlas is a packed texture atlas.
type Atlas struct {
	Image *image.RGBA
	// Rects holds the area of every packed texture, in packing order.
	Rects   []image.Rectangle
	handles map[Handle]int
}

// TextureIndex returns the index into Rects of the texture added under h.
func (a *Atlas) TextureIndex(h Handle) (int, bool) {
	idx, ok := a.handles[h]
	return idx, ok
}

func (a *Atlas) Len() int {
	return len(a.Rects)
}

// SubImage returns the part of the atlas holding the texture at slot.
func (a *Atlas) SubImage(slot int) *image.RGBA {
	return a.Image.SubImage(a.Rects[slot]).(*image.RGBA)
}

// Build packs the queued textures. The atlas starts at InitialSize on both
// sides and doubles its smaller side until the textures fit or MaxSize is
// reached.
func (b *Builder) Build() (*Atlas, error) {
	if len(b.entries) == 0 {
		return nil, &BuildError{Err: ErrNoTextures, Texture: -1}
	}

	// Unpadded: the last texture of a shelf and the bottom shelf need none.
	area := 0
	for i, e := range b.entries {
		sz := e.img.Bounds().Size()
		if sz.X <= 0 || sz.Y <= 0 {
			return nil, &BuildError{Err: ErrZeroSized, Texture: i}
		}
		if sz.X > b.opts.MaxSize || sz.Y > b.opts.MaxSize {
			return nil, &BuildError{Err: ErrNotEnoughSpace, Texture: i, Size: image.Pt(b.opts.MaxSize, b.opts.MaxSize)}
		}
		area += sz.X * sz.Y
	}
	limit := image.Pt(b.opts.MaxSize, b.opts.MaxSize)
	if area > limit.X*limit.Y {
		return nil, &BuildError{Err: ErrNotEnoughSpace, Texture: -1, Size: limit}
	}

	order := make([]int, len(b.entries))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		si := b.entries[order[i]].img.Bounds().Size()
		sj := b.entries[order[j]].img.Bounds().Size()
		if si.Y != sj.Y {
			return si.Y > sj.Y
		}
		return si.X > sj.X
	})

	size := image.Pt(b.opts.InitialSize, b.opts.InitialSize)
	for {
		rects, ok := b.pack(order, size)
		if ok {
			glog.V(2).Infof("atlas: packed %d textures into %dx%d", len(order), size.X, size.Y)
			return b.assemble(order, rects, size), nil
		}
		if size == limit {
			return nil, &BuildError{Err: ErrNotEnoughSpace, Texture: -1, Size: limit}
		}
		glog.V(3).Infof("atlas: %d textures do not fit in %dx%d, growing", len(order), size.X, size.Y)
		size = grow(size, limit)
	}
}

// pack places the textures in shelves, left to right and top to bottom, in
// the passed order.
func (b *Builder) pack(order []int, size image.Point) ([]image.Rectangle, bool) {
	pad := b.opts.Padding
	rects := make([]image.Rectangle, 0, len(order))
	x, y, shelf := 0, 0, 0
	for _, idx := range order {
		sz := b.entries[idx].img.Bounds().Size()
		if x+sz.X > size.X {
			x = 0
			y += shelf
			shelf = 0
		}
		if x+sz.X > size.X || y+sz.Y > size.Y {
			return nil, false
		}
		rects = append(rects, image.Rect(x, y, x+sz.X, y+sz.Y))
		x += sz.X + pad
		if sz.Y+pad > shelf {
			shelf = sz.Y + pad
		}
	}
	return rects, true
}

func (b *Builder) assemble(order []int, rects []image.Rectangle, size image.Point) *Atlas {
	a := &Atlas{
		Image:   image.NewRGBA(image.Rectangle{Max: size}),
		Rects:   rects,
		handles: make(map[Handle]int, len(order)),
	}
	for slot, idx := range order {
		e := b.entries[idx]
		draw.Draw(a.Image, rects[slot], e.img, e.img.Bounds().Min, draw.Src)
		a.handles[e.handle] = slot
	}
	return a
}

func grow(size, limit image.Point) image.Point {
	if size.X <= size.Y && size.X < limit.X {
		size.X *= 2
		if size.X > limit.X {
			size.X = limit.X
		}
		return size
	}
	if size.Y < limit.Y {
		size.Y *= 2
		if size.Y > limit.Y {
			size.Y = limit.Y
		}
		return size
	}
	size.X *= 2
	if size.X > limit.X {
		size.X = limit.X
	}
	return size
}
