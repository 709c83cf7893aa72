// Package sprite implements the lifecycle of a sprite asset.
//
// A sprite file is first decoded into a Decoded value, outside of any frame
// loop. Build then uploads the frames to a texture store, packs them into an
// atlas and yields a Ready value, which is what entities are rendered from.
// Build consumes the decoded data: a Decoded can be built only once.
package sprite

import (
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"

	"badc0de.net/pkg/go-aseprite/anim"
	"badc0de.net/pkg/go-aseprite/ase"
	"badc0de.net/pkg/go-aseprite/atlas"
)

// MissingAssetDataError is returned by Build when the decoded data was
// already consumed by an earlier Build.
type MissingAssetDataError struct {
	Name string
}

func (e *MissingAssetDataError) Error() string {
	return fmt.Sprintf("sprite %q: decoded data already consumed", e.Name)
}

var generation uint64

// Decoded is a decoded sprite file that was not built yet.
type Decoded struct {
	name string

	mu   sync.Mutex
	file *ase.File
}

// Decode parses the Aseprite file b. The name is used in errors and logs.
func Decode(name string, b []byte) (*Decoded, error) {
	f, err := ase.Decode(b)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding sprite %q", name)
	}
	glog.V(2).Infof("sprite %q: %dx%d, %d frames, %d tags", name, f.Width, f.Height, len(f.Frames), len(f.Tags))
	return &Decoded{name: name, file: f}, nil
}

// NewDecoded wraps an already decoded file.
func NewDecoded(name string, f *ase.File) *Decoded {
	return &Decoded{name: name, file: f}
}

func (d *Decoded) Name() string {
	return d.name
}

// File returns the decoded document, or nil once Build was called.
func (d *Decoded) File() *ase.File {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.file
}

func (d *Decoded) take() *ase.File {
	d.mu.Lock()
	defer d.mu.Unlock()
	f := d.file
	d.file = nil
	return f
}

// Build uploads every frame to store, packs them into an atlas, uploads the
// atlas and releases the per-frame textures.
//
// The decoded data is consumed whether or not the build succeeds. Packing
// failures are reported as *atlas.BuildError.
func (d *Decoded) Build(store atlas.TextureStore, opts atlas.Options) (*Ready, error) {
	f := d.take()
	if f == nil {
		return nil, &MissingAssetDataError{Name: d.name}
	}

	handles := make([]atlas.Handle, 0, len(f.Frames))
	defer func() {
		for _, h := range handles {
			store.Release(h)
		}
	}()

	b := atlas.NewBuilder(opts)
	for i, fr := range f.Frames {
		sz := fr.Image.Bounds().Size()
		h, err := store.Add(atlas.Pixels(fr.Image), sz.X, sz.Y)
		if err != nil {
			return nil, errors.Wrapf(err, "sprite %q: uploading frame %d", d.name, i)
		}
		handles = append(handles, h)
		img, ok := store.Image(h)
		if !ok {
			return nil, errors.Errorf("sprite %q: texture of frame %d vanished", d.name, i)
		}
		b.Add(h, img)
	}

	a, err := b.Build()
	if err != nil {
		return nil, errors.Wrapf(err, "sprite %q", d.name)
	}

	// The packer reorders textures, so the slot of every frame is looked up.
	frameToSlot := make([]int, len(handles))
	for i, h := range handles {
		slot, ok := a.TextureIndex(h)
		if !ok {
			return nil, errors.Errorf("sprite %q: frame %d missing from atlas", d.name, i)
		}
		frameToSlot[i] = slot
	}

	sz := a.Image.Bounds().Size()
	ah, err := store.Add(atlas.Pixels(a.Image), sz.X, sz.Y)
	if err != nil {
		return nil, errors.Wrapf(err, "sprite %q: uploading atlas", d.name)
	}

	durations := make(anim.Durations, len(f.Frames))
	for i, fr := range f.Frames {
		durations[i] = fr.Duration
	}

	r := &Ready{
		Name:        d.name,
		Atlas:       a,
		AtlasHandle: ah,
		FrameToSlot: frameToSlot,
		Info: Info{
			Size:      image.Pt(f.Width, f.Height),
			Tags:      f.Tags,
			Slices:    f.Slices,
			Durations: durations,
		},
		Generation: atomic.AddUint64(&generation, 1),
		tags:       anim.NewTags(f.Tags),
	}
	glog.V(1).Infof("sprite %q: built generation %d, atlas %dx%d", d.name, r.Generation, sz.X, sz.Y)
	return r, nil
}

// Info is the part of the decoded file kept after building.
type Info struct {
	// Size is the canvas size, which is the size of every frame.
	Size      image.Point
	Tags      []ase.Tag
	Slices    []ase.Slice
	Durations anim.Durations
}

// Ready is a built sprite. It is never modified after Build returns it.
type Ready struct {
	Name        string
	Atlas       *atlas.Atlas
	AtlasHandle atlas.Handle
	// FrameToSlot maps a source frame index to its index in Atlas.Rects.
	FrameToSlot []int
	Info        Info
	// Generation is distinct for every successful Build in the process.
	Generation uint64

	tags anim.Tags
}

// Tag looks up a tag by name; it returns an *anim.UnknownTagError if the
// sprite has no such tag.
func (r *Ready) Tag(name string) (ase.Tag, error) {
	return r.tags.Lookup(name)
}

func (r *Ready) Tags() anim.Tags {
	return r.tags
}

// DefaultTag is the tag played when none is configured: the first tag of the
// file, or all frames looping forward.
func (r *Ready) DefaultTag() ase.Tag {
	if len(r.Info.Tags) > 0 {
		return r.Info.Tags[0]
	}
	return ase.Tag{From: 0, To: r.FrameCount() - 1}
}

// Duration implements anim.Timeline.
func (r *Ready) Duration(frame int) time.Duration {
	return r.Info.Durations.Duration(frame)
}

func (r *Ready) FrameCount() int {
	return len(r.FrameToSlot)
}

func (r *Ready) Slices() []ase.Slice {
	return r.Info.Slices
}

// FrameRect returns the area of the atlas holding frame.
func (r *Ready) FrameRect(frame int) (image.Rectangle, error) {
	if frame < 0 || frame >= len(r.FrameToSlot) {
		return image.Rectangle{}, errors.Errorf("sprite %q: frame %d out of range [0, %d)", r.Name, frame, len(r.FrameToSlot))
	}
	return r.Atlas.Rects[r.FrameToSlot[frame]], nil
}

// FrameImage returns the image of frame cut out of the atlas. With a non-nil
// size, the frame is scaled to it with nearest neighbour sampling.
func (r *Ready) FrameImage(frame int, size *image.Point) (image.Image, error) {
	rect, err := r.FrameRect(frame)
	if err != nil {
		return nil, err
	}
	img := r.Atlas.Image.SubImage(rect)
	if size == nil || *size == rect.Size() {
		return img, nil
	}
	if size.X <= 0 || size.Y <= 0 {
		return nil, errors.Errorf("sprite %q: invalid display size %dx%d", r.Name, size.X, size.Y)
	}
	return resize.Resize(uint(size.X), uint(size.Y), img, resize.NearestNeighbor), nil
}

// Release drops the atlas texture from store.
func (r *Ready) Release(store atlas.TextureStore) {
	store.Release(r.AtlasHandle)
}
