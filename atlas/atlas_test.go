package atlas

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func addAll(t *testing.T, store *MemoryStore, b *Builder, imgs ...*image.RGBA) []Handle {
	var handles []Handle
	for _, img := range imgs {
		h, err := store.Add(Pixels(img), img.Bounds().Dx(), img.Bounds().Dy())
		require.NoError(t, err)
		b.Add(h, img)
		handles = append(handles, h)
	}
	return handles
}

func TestBuildIdenticalFrames(t *testing.T) {
	store := NewMemoryStore()
	b := NewBuilder(Options{InitialSize: 16, MaxSize: 64})

	var imgs []*image.RGBA
	for i := 0; i < 5; i++ {
		imgs = append(imgs, solid(16, 16, color.RGBA{R: uint8(50 * i), A: 255}))
	}
	handles := addAll(t, store, b, imgs...)

	a, err := b.Build()
	require.NoError(t, err)

	size := a.Image.Bounds().Size()
	assert.LessOrEqual(t, size.X, 64)
	assert.LessOrEqual(t, size.Y, 64)
	assert.Equal(t, 5, a.Len())

	seen := map[int]bool{}
	for i, h := range handles {
		slot, ok := a.TextureIndex(h)
		require.True(t, ok)
		assert.False(t, seen[slot], "slot %d assigned twice", slot)
		seen[slot] = true
		assert.Equal(t, imgs[i].At(0, 0), a.SubImage(slot).At(a.Rects[slot].Min.X, a.Rects[slot].Min.Y))
	}
}

func TestBuildReordersByHeight(t *testing.T) {
	store := NewMemoryStore()
	b := NewBuilder(Options{InitialSize: 64, MaxSize: 64})

	short := solid(10, 4, color.RGBA{R: 255, A: 255})
	tall := solid(10, 20, color.RGBA{G: 255, A: 255})
	handles := addAll(t, store, b, short, tall)

	a, err := b.Build()
	require.NoError(t, err)

	shortSlot, _ := a.TextureIndex(handles[0])
	tallSlot, _ := a.TextureIndex(handles[1])
	assert.Equal(t, 1, shortSlot)
	assert.Equal(t, 0, tallSlot)
	assert.Equal(t, image.Pt(10, 20), a.Rects[tallSlot].Size())
	assert.Equal(t, image.Pt(10, 4), a.Rects[shortSlot].Size())
	assert.False(t, a.Rects[0].Overlaps(a.Rects[1]))

	r := a.Rects[shortSlot]
	assert.Equal(t, color.RGBA{R: 255, A: 255}, a.Image.RGBAAt(r.Min.X, r.Min.Y))
}

func TestBuildGrows(t *testing.T) {
	store := NewMemoryStore()
	b := NewBuilder(Options{InitialSize: 16, MaxSize: 128})
	addAll(t, store, b, solid(16, 16, color.RGBA{A: 255}), solid(16, 16, color.RGBA{A: 255}), solid(16, 16, color.RGBA{A: 255}))

	a, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, image.Pt(32, 32), a.Image.Bounds().Size())
}

func TestBuildPadding(t *testing.T) {
	store := NewMemoryStore()
	b := NewBuilder(Options{InitialSize: 64, MaxSize: 64, Padding: 2})
	addAll(t, store, b, solid(8, 8, color.RGBA{A: 255}), solid(8, 8, color.RGBA{A: 255}))

	a, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 8), a.Rects[0])
	assert.Equal(t, image.Rect(10, 0, 18, 8), a.Rects[1])
}

func TestBuildPaddingExactFit(t *testing.T) {
	t.Run("single texture", func(t *testing.T) {
		b := NewBuilder(Options{InitialSize: 16, MaxSize: 16, Padding: 1})
		addAll(t, NewMemoryStore(), b, solid(16, 16, color.RGBA{A: 255}))

		a, err := b.Build()
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 16, 16), a.Rects[0])
	})

	t.Run("grid", func(t *testing.T) {
		b := NewBuilder(Options{InitialSize: 32, MaxSize: 32, Padding: 2})
		var imgs []*image.RGBA
		for i := 0; i < 4; i++ {
			imgs = append(imgs, solid(15, 15, color.RGBA{A: 255}))
		}
		addAll(t, NewMemoryStore(), b, imgs...)

		a, err := b.Build()
		require.NoError(t, err)
		assert.Equal(t, image.Pt(32, 32), a.Image.Bounds().Size())
		assert.Equal(t, []image.Rectangle{
			image.Rect(0, 0, 15, 15),
			image.Rect(17, 0, 32, 15),
			image.Rect(0, 17, 15, 32),
			image.Rect(17, 17, 32, 32),
		}, a.Rects)
	})
}

func TestBuildErrors(t *testing.T) {
	t.Run("no textures", func(t *testing.T) {
		_, err := NewBuilder(DefaultOptions()).Build()
		var be *BuildError
		require.ErrorAs(t, err, &be)
		assert.ErrorIs(t, err, ErrNoTextures)
	})

	t.Run("zero sized", func(t *testing.T) {
		b := NewBuilder(DefaultOptions())
		b.Add(1, solid(4, 4, color.RGBA{}))
		b.Add(2, image.NewRGBA(image.Rect(0, 0, 0, 4)))
		_, err := b.Build()
		var be *BuildError
		require.ErrorAs(t, err, &be)
		assert.ErrorIs(t, err, ErrZeroSized)
		assert.Equal(t, 1, be.Texture)
	})

	t.Run("area exceeds maximum", func(t *testing.T) {
		b := NewBuilder(Options{InitialSize: 16, MaxSize: 32})
		for i := 0; i < 3; i++ {
			b.Add(Handle(i+1), solid(20, 20, color.RGBA{}))
		}
		_, err := b.Build()
		assert.ErrorIs(t, err, ErrNotEnoughSpace)
	})

	t.Run("does not fit after growing", func(t *testing.T) {
		b := NewBuilder(Options{InitialSize: 16, MaxSize: 32})
		b.Add(1, solid(20, 20, color.RGBA{}))
		b.Add(2, solid(20, 20, color.RGBA{}))
		_, err := b.Build()
		var be *BuildError
		require.ErrorAs(t, err, &be)
		assert.ErrorIs(t, err, ErrNotEnoughSpace)
		assert.Equal(t, image.Pt(32, 32), be.Size)
	})

	t.Run("texture larger than maximum", func(t *testing.T) {
		b := NewBuilder(Options{MaxSize: 16})
		b.Add(1, solid(17, 1, color.RGBA{}))
		_, err := b.Build()
		assert.ErrorIs(t, err, ErrNotEnoughSpace)
	})
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.Add(make([]byte, 3), 1, 1)
	assert.Error(t, err)
	_, err = s.Add(nil, 0, 1)
	assert.ErrorIs(t, err, ErrZeroSized)

	h, err := s.Add([]byte{1, 2, 3, 4}, 1, 1)
	require.NoError(t, err)
	img, ok := s.Image(h)
	require.True(t, ok)
	assert.Equal(t, color.RGBA{1, 2, 3, 4}, img.RGBAAt(0, 0))
	assert.Equal(t, 1, s.Len())

	s.Release(h)
	_, ok = s.Image(h)
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestPixelsOfSubImage(t *testing.T) {
	img := solid(4, 4, color.RGBA{R: 9, A: 255})
	sub := img.SubImage(image.Rect(1, 1, 3, 2)).(*image.RGBA)
	pix := Pixels(sub)
	assert.Len(t, pix, 2*1*4)
	assert.Equal(t, []byte{9, 0, 0, 255, 9, 0, 0, 255}, pix)
}
