package resource

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"badc0de.net/pkg/go-aseprite/ase"
	"badc0de.net/pkg/go-aseprite/atlas"
	"badc0de.net/pkg/go-aseprite/sprite"
	"badc0de.net/pkg/go-aseprite/ttesting"
)

const ms = time.Millisecond

func build(t *testing.T, b *ttesting.AseBuilder) *sprite.Ready {
	t.Helper()
	d, err := sprite.Decode("test", b.Bytes())
	require.NoError(t, err)
	r, err := d.Build(atlas.NewMemoryStore(), atlas.DefaultOptions())
	require.NoError(t, err)
	return r
}

func open(t *testing.T) *File {
	t.Helper()
	f, err := Open(filepath.Join(t.TempDir(), "sprites.res"))
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestPutGet(t *testing.T) {
	f := open(t)
	r := build(t, ttesting.Strip(5, 3, 100*ms, 40*ms, 60*ms).
		Tag("walk", 0, 2, ttesting.PingPong, 3))
	require.NoError(t, f.Put("hero", r))

	rec, err := f.Get("hero")
	require.NoError(t, err)
	assert.Equal(t, "hero", rec.Name)
	assert.Equal(t, 5, rec.Width)
	assert.Equal(t, 3, rec.Height)
	assert.Equal(t, []int{100, 40, 60}, rec.Durations)
	assert.Equal(t, 40*ms, rec.Duration(1))
	assert.Len(t, rec.FrameToSlot, 3)

	tag, ok := rec.Tag("walk")
	require.True(t, ok)
	assert.Equal(t, ase.Tag{Name: "walk", From: 0, To: 2, Direction: ase.PingPong, Repeat: 3}, tag)
	_, ok = rec.Tag("run")
	assert.False(t, ok)

	for i := 0; i < 3; i++ {
		img, err := rec.Frame(i)
		require.NoError(t, err)
		o := img.Bounds().Min
		ttesting.AssertPixel(t, "stored frame", img, o.X+4, o.Y+2, ttesting.FrameColor(i))
	}
	_, err = rec.Frame(3)
	assert.Error(t, err)

	_, err = f.Get("villain")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestTagIndex(t *testing.T) {
	f := open(t)
	require.NoError(t, f.Put("hero", build(t, ttesting.Strip(2, 2, 10*ms, 10*ms).
		Tag("walk", 0, 1, ttesting.Forward, 0).
		Tag("idle", 0, 0, ttesting.Forward, 0))))
	require.NoError(t, f.Put("dog", build(t, ttesting.Strip(2, 2, 10*ms).
		Tag("walk", 0, 0, ttesting.Forward, 0))))

	names, err := f.Names()
	require.NoError(t, err)
	assert.Equal(t, []string{"dog", "hero"}, names)

	walkers, err := f.SpritesWithTag("walk")
	require.NoError(t, err)
	assert.Equal(t, []string{"dog", "hero"}, walkers)

	// Replacing a sprite updates the tag index.
	require.NoError(t, f.Put("hero", build(t, ttesting.Strip(2, 2, 10*ms).
		Tag("sit", 0, 0, ttesting.Forward, 0))))
	walkers, err = f.SpritesWithTag("walk")
	require.NoError(t, err)
	assert.Equal(t, []string{"dog"}, walkers)
	idlers, err := f.SpritesWithTag("idle")
	require.NoError(t, err)
	assert.Empty(t, idlers)
	sitters, err := f.SpritesWithTag("sit")
	require.NoError(t, err)
	assert.Equal(t, []string{"hero"}, sitters)
}

func TestReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sprites.res")
	f, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, f.Put("hero", build(t, ttesting.Strip(2, 2, 10*ms))))
	require.NoError(t, f.Close())

	f, err = Open(path)
	require.NoError(t, err)
	defer f.Close()
	rec, err := f.Get("hero")
	require.NoError(t, err)
	assert.Equal(t, []int{10}, rec.Durations)
}
