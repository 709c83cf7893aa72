package web

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/gif"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vincent-petithory/dataurl"

	"badc0de.net/pkg/go-aseprite/atlas"
	"badc0de.net/pkg/go-aseprite/pipeline"
	"badc0de.net/pkg/go-aseprite/ttesting"
)

const ms = time.Millisecond

func setup(t *testing.T) (*mux.Router, *pipeline.Pipeline) {
	t.Helper()
	src := pipeline.NewMemorySource()
	src.Set("chars/hero.aseprite", ttesting.Strip(4, 3, 100*ms, 100*ms, 200*ms, 50*ms).
		Tag("walk", 0, 2, ttesting.Forward, 0).
		Tag("wave", 0, 3, ttesting.PingPong, 0).
		Slice("hitbox", 0, image.Rect(1, 1, 3, 3), &image.Point{X: 2, Y: 2}).
		Bytes())
	p := pipeline.New(src, atlas.NewMemoryStore(), pipeline.DefaultOptions())
	t.Cleanup(p.Close)
	require.NoError(t, p.Preload(context.Background(), "chars/hero.aseprite"))

	r := mux.NewRouter()
	NewHandler(p).RegisterRoutes(r)
	return r, p
}

func do(r http.Handler, method, path string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestSprites(t *testing.T) {
	r, _ := setup(t)
	rec := do(r, http.MethodGet, "/sprites")
	require.Equal(t, http.StatusOK, rec.Code)

	var out []spriteSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "chars/hero.aseprite", out[0].Name)
	assert.Equal(t, 4, out[0].Frames)
	assert.Equal(t, []string{"walk", "wave"}, out[0].Tags)
}

func TestSpriteJSON(t *testing.T) {
	r, _ := setup(t)
	rec := do(r, http.MethodGet, "/sprite/chars/hero.aseprite.json")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out spriteJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, 4, out.Width)
	assert.Equal(t, 3, out.Height)
	require.Len(t, out.Slots, 4)
	assert.Equal(t, 200, out.Slots[2].Duration)
	require.Len(t, out.TagSet, 2)
	assert.Equal(t, "pingpong", out.TagSet[1].Direction)
	require.Len(t, out.Slices, 1)
	assert.Equal(t, &[2]int{2, 2}, out.Slices[0].Keys[0].Pivot)

	du, err := dataurl.DecodeString(out.Atlas)
	require.NoError(t, err)
	assert.Equal(t, "image/png", du.ContentType())
	_, err = png.Decode(bytes.NewReader(du.Data))
	assert.NoError(t, err)

	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)
	rec = do(r, http.MethodGet, "/sprite/chars/hero.aseprite.json", "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, rec.Code)

	rec = do(r, http.MethodGet, "/sprite/villain.ase.json")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFramePNG(t *testing.T) {
	r, _ := setup(t)
	rec := do(r, http.MethodGet, "/sprite/chars/hero.aseprite/frame/2.png")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	img, err := png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(4, 3), img.Bounds().Size())
	ttesting.AssertPixel(t, "frame 2", img, 1, 1, ttesting.FrameColor(2))

	rec = do(r, http.MethodGet, "/sprite/chars/hero.aseprite/frame/2.png?w=8&h=9")
	require.Equal(t, http.StatusOK, rec.Code)
	img, err = png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(8, 9), img.Bounds().Size())

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/sprite/chars/hero.aseprite/frame/2.png?w=8").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/sprite/chars/hero.aseprite/frame/4.png").Code)

	rec = do(r, http.MethodGet, "/sprite/chars/hero.aseprite/atlas.png")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
}

func TestTagGIF(t *testing.T) {
	r, _ := setup(t)
	rec := do(r, http.MethodGet, "/sprite/chars/hero.aseprite/tag/wave.gif")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	g, err := gif.DecodeAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, []int{10, 10, 20, 5, 20, 10}, g.Delay)

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/sprite/chars/hero.aseprite/tag/jump.gif").Code)
}

func TestEntities(t *testing.T) {
	r, p := setup(t)
	id, err := p.Spawn("chars/hero.aseprite", pipeline.Animation{Tag: "walk"})
	require.NoError(t, err)
	p.Tick(150 * ms)

	rec := do(r, http.MethodGet, "/entities")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []entityJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)
	assert.Equal(t, 1, list[0].Frame)

	rec = do(r, http.MethodPost, "/entity/1/toggle")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, strings.Contains(rec.Body.String(), `"direction":"backward"`), rec.Body.String())

	rec = do(r, http.MethodPut, "/entity/1/tag/wave")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var e entityJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	assert.Equal(t, "wave", e.Tag)
	assert.Equal(t, "forward", e.Direction)

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPut, "/entity/1/tag/jump").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPost, "/entity/9/toggle").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(r, http.MethodGet, "/entity/1/toggle").Code)

	rec = do(r, http.MethodGet, "/entity/1/frame.png")
	require.Equal(t, http.StatusOK, rec.Code)
	img, err := png.Decode(rec.Body)
	require.NoError(t, err)
	ttesting.AssertPixel(t, "entity frame", img, 0, 0, ttesting.FrameColor(0))
}
