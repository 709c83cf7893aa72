package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"time"

	"github.com/vincent-petithory/dataurl"

	"badc0de.net/pkg/go-aseprite/pipeline"
)

type spriteSummary struct {
	Name       string   `json:"name"`
	Generation uint64   `json:"generation"`
	Frames     int      `json:"frames"`
	Tags       []string `json:"tags"`
}

type frameJSON struct {
	Rect     [4]int `json:"rect"`
	Duration int    `json:"durationMs"`
}

type tagJSON struct {
	Name      string `json:"name"`
	From      int    `json:"from"`
	To        int    `json:"to"`
	Direction string `json:"direction"`
	Repeat    int    `json:"repeat"`
}

type sliceKeyJSON struct {
	Frame  int     `json:"frame"`
	Bounds [4]int  `json:"bounds"`
	Center *[4]int `json:"center,omitempty"`
	Pivot  *[2]int `json:"pivot,omitempty"`
}

type sliceJSON struct {
	Name string         `json:"name"`
	Keys []sliceKeyJSON `json:"keys"`
}

type spriteJSON struct {
	spriteSummary
	Width  int         `json:"width"`
	Height int         `json:"height"`
	Atlas  string      `json:"atlas"`
	Slots  []frameJSON `json:"slots"`
	TagSet []tagJSON   `json:"tagRanges"`
	Slices []sliceJSON `json:"slices"`
}

type entityJSON struct {
	ID        pipeline.EntityID `json:"id"`
	Sprite    string            `json:"sprite"`
	Tag       string            `json:"tag"`
	Bound     bool              `json:"bound"`
	Frame     int               `json:"frame"`
	Direction string            `json:"direction,omitempty"`
	Finished  bool              `json:"finished"`
	Size      *[2]int           `json:"size,omitempty"`
}

func rect4(r image.Rectangle) [4]int {
	return [4]int{r.Min.X, r.Min.Y, r.Max.X, r.Max.Y}
}

func writeJSON(w http.ResponseWriter, r *http.Request, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		httpError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

func (h *Handler) spritesHandler(w http.ResponseWriter, r *http.Request) {
	out := []spriteSummary{}
	for _, name := range h.p.Assets() {
		rd, ok := h.p.Asset(name)
		if !ok {
			continue
		}
		out = append(out, spriteSummary{Name: name, Generation: rd.Generation, Frames: rd.FrameCount(), Tags: rd.Tags().Names()})
	}
	writeJSON(w, r, out)
}

func (h *Handler) spriteHandler(w http.ResponseWriter, r *http.Request) {
	rd, ok := h.ready(w, r)
	if !ok {
		return
	}
	etag := fmt.Sprintf(`W/"sprite:%d:%s:%d:application/json"`, generation, rd.Name, rd.Generation)
	if notModified(w, r, etag) {
		return
	}

	buf := &bytes.Buffer{}
	if err := png.Encode(buf, rd.Atlas.Image); err != nil {
		httpError(w, r, err)
		return
	}
	atlasURL, err := dataurl.New(buf.Bytes(), "image/png").MarshalText()
	if err != nil {
		httpError(w, r, err)
		return
	}

	out := spriteJSON{
		spriteSummary: spriteSummary{Name: rd.Name, Generation: rd.Generation, Frames: rd.FrameCount(), Tags: rd.Tags().Names()},
		Width:         rd.Info.Size.X,
		Height:        rd.Info.Size.Y,
		Atlas:         string(atlasURL),
		Slots:         []frameJSON{},
		TagSet:        []tagJSON{},
		Slices:        []sliceJSON{},
	}
	for i := 0; i < rd.FrameCount(); i++ {
		fr, _ := rd.FrameRect(i)
		out.Slots = append(out.Slots, frameJSON{Rect: rect4(fr), Duration: int(rd.Duration(i) / time.Millisecond)})
	}
	for _, t := range rd.Info.Tags {
		out.TagSet = append(out.TagSet, tagJSON{Name: t.Name, From: t.From, To: t.To, Direction: t.Direction.String(), Repeat: t.Repeat})
	}
	for _, s := range rd.Slices() {
		sj := sliceJSON{Name: s.Name}
		for _, k := range s.Keys {
			kj := sliceKeyJSON{Frame: k.Frame, Bounds: rect4(k.Bounds)}
			if k.Center != nil {
				c := rect4(*k.Center)
				kj.Center = &c
			}
			if k.Pivot != nil {
				kj.Pivot = &[2]int{k.Pivot.X, k.Pivot.Y}
			}
			sj.Keys = append(sj.Keys, kj)
		}
		out.Slices = append(out.Slices, sj)
	}
	writeJSON(w, r, out)
}

func (h *Handler) entity(id pipeline.EntityID) (entityJSON, error) {
	asset, a, err := h.p.Entity(id)
	if err != nil {
		return entityJSON{}, err
	}
	e := entityJSON{ID: id, Sprite: asset, Tag: a.Tag}
	if a.Size != nil {
		e.Size = &[2]int{a.Size.X, a.Size.Y}
	}
	if c, ok := h.p.Cursor(id); ok {
		e.Bound = true
		e.Tag = c.Tag().Name
		e.Frame = c.Frame()
		e.Direction = c.Direction().String()
		e.Finished = c.Finished()
	}
	return e, nil
}

func (h *Handler) writeEntity(w http.ResponseWriter, r *http.Request, id pipeline.EntityID) {
	e, err := h.entity(id)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, r, e)
}

func (h *Handler) entitiesHandler(w http.ResponseWriter, r *http.Request) {
	out := []entityJSON{}
	for _, id := range h.p.Entities() {
		e, err := h.entity(id)
		if err != nil {
			// Despawned meanwhile.
			continue
		}
		out = append(out, e)
	}
	writeJSON(w, r, out)
}
