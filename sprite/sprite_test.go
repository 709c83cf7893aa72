package sprite

import (
	"image"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"badc0de.net/pkg/go-aseprite/anim"
	"badc0de.net/pkg/go-aseprite/ase"
	"badc0de.net/pkg/go-aseprite/atlas"
	"badc0de.net/pkg/go-aseprite/ttesting"
)

const ms = time.Millisecond

func decodeStrip(t *testing.T, n int) *Decoded {
	t.Helper()
	durations := make([]time.Duration, n)
	for i := range durations {
		durations[i] = time.Duration(i+1) * 10 * ms
	}
	b := ttesting.Strip(6, 4, durations...).
		Tag("all", 0, n-1, ttesting.Forward, 0).
		Tag("pp", 0, n-1, ttesting.PingPong, 0).
		Bytes()
	d, err := Decode("strip", b)
	require.NoError(t, err)
	return d
}

func TestBuild(t *testing.T) {
	store := atlas.NewMemoryStore()
	r, err := decodeStrip(t, 5).Build(store, atlas.DefaultOptions())
	require.NoError(t, err)

	require.Len(t, r.FrameToSlot, 5)
	seen := map[int]bool{}
	for i, slot := range r.FrameToSlot {
		assert.False(t, seen[slot], "slot %d used twice", slot)
		seen[slot] = true
		assert.Equal(t, image.Pt(6, 4), r.Atlas.Rects[slot].Size(), "frame %d", i)
	}

	// Only the combined atlas remains uploaded.
	assert.Equal(t, 1, store.Len())
	img, ok := store.Image(r.AtlasHandle)
	require.True(t, ok)
	assert.Equal(t, r.Atlas.Image.Bounds(), img.Bounds())

	for i := 0; i < 5; i++ {
		f, err := r.FrameImage(i, nil)
		require.NoError(t, err)
		o := f.Bounds().Min
		ttesting.AssertPixel(t, "frame pixel", f, o.X+2, o.Y+1, ttesting.FrameColor(i))
		assert.Equal(t, time.Duration(i+1)*10*ms, r.Duration(i))
	}
	assert.Equal(t, image.Pt(6, 4), r.Info.Size)
	assert.Equal(t, 5, r.FrameCount())
	assert.NotZero(t, r.Generation)
	assert.Equal(t, []string{"all", "pp"}, r.Tags().Names())
	assert.Equal(t, "all", r.DefaultTag().Name)

	r.Release(store)
	assert.Equal(t, 0, store.Len())
}

func TestBuildConsumesData(t *testing.T) {
	d := decodeStrip(t, 2)
	store := atlas.NewMemoryStore()

	r1, err := d.Build(store, atlas.DefaultOptions())
	require.NoError(t, err)
	assert.Nil(t, d.File())

	_, err = d.Build(store, atlas.DefaultOptions())
	var missing *MissingAssetDataError
	require.True(t, errors.As(err, &missing), "got %v", err)
	assert.Equal(t, "strip", missing.Name)

	d2 := decodeStrip(t, 2)
	r2, err := d2.Build(store, atlas.DefaultOptions())
	require.NoError(t, err)
	assert.NotEqual(t, r1.Generation, r2.Generation)
}

func TestBuildFailure(t *testing.T) {
	d := decodeStrip(t, 3)
	store := atlas.NewMemoryStore()

	_, err := d.Build(store, atlas.Options{InitialSize: 4, MaxSize: 8})
	var be *atlas.BuildError
	require.True(t, errors.As(err, &be), "got %v", err)
	assert.True(t, errors.Is(err, atlas.ErrNotEnoughSpace))
	assert.Equal(t, 0, store.Len(), "frame textures must be released")

	_, err = d.Build(store, atlas.DefaultOptions())
	var missing *MissingAssetDataError
	assert.True(t, errors.As(err, &missing))
}

func TestDecodeError(t *testing.T) {
	_, err := Decode("junk", []byte("definitely not a sprite"))
	var fe *ase.FormatError
	require.True(t, errors.As(err, &fe), "got %v", err)
	assert.Contains(t, err.Error(), `"junk"`)
}

func TestTagLookup(t *testing.T) {
	r, err := decodeStrip(t, 3).Build(atlas.NewMemoryStore(), atlas.DefaultOptions())
	require.NoError(t, err)

	tag, err := r.Tag("pp")
	require.NoError(t, err)
	assert.Equal(t, ase.PingPong, tag.Direction)

	_, err = r.Tag("jump")
	var ute *anim.UnknownTagError
	require.True(t, errors.As(err, &ute))
	assert.Equal(t, []string{"all", "pp"}, ute.Known)
}

func TestDefaultTagWithoutTags(t *testing.T) {
	d, err := Decode("untagged", ttesting.Strip(2, 2, 10*ms, 10*ms, 10*ms).Bytes())
	require.NoError(t, err)
	r, err := d.Build(atlas.NewMemoryStore(), atlas.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, ase.Tag{From: 0, To: 2}, r.DefaultTag())
}

func TestFrameImageResize(t *testing.T) {
	r, err := decodeStrip(t, 2).Build(atlas.NewMemoryStore(), atlas.DefaultOptions())
	require.NoError(t, err)

	img, err := r.FrameImage(1, &image.Point{X: 12, Y: 8})
	require.NoError(t, err)
	assert.Equal(t, image.Pt(12, 8), img.Bounds().Size())
	ttesting.AssertPixel(t, "scaled pixel", img, img.Bounds().Min.X+11, img.Bounds().Min.Y+7, ttesting.FrameColor(1))

	_, err = r.FrameImage(2, nil)
	assert.Error(t, err)
	_, err = r.FrameImage(0, &image.Point{X: 0, Y: 3})
	assert.Error(t, err)
}
