package web

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"strconv"

	"github.com/golang/glog"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"golang.org/x/net/trace"
	"golang.org/x/sync/singleflight"

	"badc0de.net/pkg/go-aseprite/anim"
	"badc0de.net/pkg/go-aseprite/pipeline"
	"badc0de.net/pkg/go-aseprite/sprite"
)

// generation is part of every ETag; bump it if the way images are generated
// changes.
const generation = 1

// Handler serves the sprites and entities of a pipeline.
type Handler struct {
	p    *pipeline.Pipeline
	gifs singleflight.Group
}

// NewHandler constructs web handler for the passed pipeline.
func NewHandler(p *pipeline.Pipeline) *Handler {
	return &Handler{p: p}
}

func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/sprites", h.traced("sprites", h.spritesHandler)).Methods(http.MethodGet)
	r.HandleFunc("/sprite/{name:.+}/atlas.png", h.traced("atlas", h.atlasHandler)).Methods(http.MethodGet)
	r.HandleFunc("/sprite/{name:.+}/frame/{idx:[0-9]+}.png", h.traced("frame", h.frameHandler)).Methods(http.MethodGet)
	r.HandleFunc("/sprite/{name:.+}/tag/{tag}.gif", h.traced("gif", h.tagGIFHandler)).Methods(http.MethodGet)
	r.HandleFunc("/sprite/{name:.+}.json", h.traced("sprite", h.spriteHandler)).Methods(http.MethodGet)

	r.HandleFunc("/entities", h.traced("entities", h.entitiesHandler)).Methods(http.MethodGet)
	r.HandleFunc("/entity/{id:[0-9]+}/frame.png", h.traced("entity", h.entityFrameHandler)).Methods(http.MethodGet)
	r.HandleFunc("/entity/{id:[0-9]+}/toggle", h.traced("toggle", h.toggleHandler)).Methods(http.MethodPost)
	r.HandleFunc("/entity/{id:[0-9]+}/tag/{tag}", h.traced("settag", h.setTagHandler)).Methods(http.MethodPut)
}

// traced records every request in an x/net/trace trace, visible on
// /debug/requests.
func (h *Handler) traced(family string, f http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tr := trace.New("web."+family, r.URL.Path)
		defer tr.Finish()
		f(w, r.WithContext(trace.NewContext(r.Context(), tr)))
	}
}

func traceError(r *http.Request, err error) {
	if tr, ok := trace.FromContext(r.Context()); ok {
		tr.LazyPrintf("%v", err)
		tr.SetError()
	}
}

// httpError maps pipeline errors to status codes.
func httpError(w http.ResponseWriter, r *http.Request, err error) {
	traceError(r, err)
	var ute *anim.UnknownTagError
	switch {
	case errors.As(err, &ute):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, pipeline.ErrUnknownEntity):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, pipeline.ErrNotReady):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		glog.Errorf("web: %s: %v", r.URL.Path, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *Handler) ready(w http.ResponseWriter, r *http.Request) (*sprite.Ready, bool) {
	name := mux.Vars(r)["name"]
	rd, ok := h.p.Asset(name)
	if !ok {
		traceError(r, errors.Errorf("no sprite %q", name))
		http.Error(w, fmt.Sprintf("sprite %q not found", name), http.StatusNotFound)
		return nil, false
	}
	return rd, true
}

// notModified sets caching headers and reports whether the client already
// has the resource.
func notModified(w http.ResponseWriter, r *http.Request, etag string) bool {
	w.Header().Set("Cache-Control", "public; max-age=3600")
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return true
	}
	return false
}

func writePNG(w http.ResponseWriter, r *http.Request, img image.Image) {
	buf := &bytes.Buffer{}
	if err := png.Encode(buf, img); err != nil {
		httpError(w, r, errors.Wrap(err, "encoding png"))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

func (h *Handler) atlasHandler(w http.ResponseWriter, r *http.Request) {
	rd, ok := h.ready(w, r)
	if !ok {
		return
	}
	etag := fmt.Sprintf(`W/"atlas:%d:%s:%d:image/png"`, generation, rd.Name, rd.Generation)
	if notModified(w, r, etag) {
		return
	}
	writePNG(w, r, rd.Atlas.Image)
}

func (h *Handler) frameHandler(w http.ResponseWriter, r *http.Request) {
	rd, ok := h.ready(w, r)
	if !ok {
		return
	}
	idx, err := strconv.Atoi(mux.Vars(r)["idx"])
	if err != nil || idx >= rd.FrameCount() {
		http.Error(w, "idx out of range", http.StatusNotFound)
		return
	}

	var size *image.Point
	if ws, hs := r.URL.Query().Get("w"), r.URL.Query().Get("h"); ws != "" || hs != "" {
		sw, errW := strconv.Atoi(ws)
		sh, errH := strconv.Atoi(hs)
		if errW != nil || errH != nil || sw <= 0 || sh <= 0 || sw > 4096 || sh > 4096 {
			http.Error(w, "w and h must be given together, between 1 and 4096", http.StatusBadRequest)
			return
		}
		size = &image.Point{X: sw, Y: sh}
	}

	etag := fmt.Sprintf(`W/"frame:%d:%s:%d:%d:%v:image/png"`, generation, rd.Name, rd.Generation, idx, size)
	if notModified(w, r, etag) {
		return
	}
	img, err := rd.FrameImage(idx, size)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writePNG(w, r, img)
}

func (h *Handler) tagGIFHandler(w http.ResponseWriter, r *http.Request) {
	rd, ok := h.ready(w, r)
	if !ok {
		return
	}
	tag, err := rd.Tag(mux.Vars(r)["tag"])
	if err != nil {
		httpError(w, r, err)
		return
	}

	etag := fmt.Sprintf(`W/"gif:%d:%s:%d:%s:image/gif"`, generation, rd.Name, rd.Generation, tag.Name)
	if notModified(w, r, etag) {
		return
	}

	// Concurrent requests for the same GIF share one rendering.
	v, err, shared := h.gifs.Do(etag, func() (interface{}, error) {
		return renderTagGIF(rd, tag)
	})
	if err != nil {
		httpError(w, r, err)
		return
	}
	if tr, ok := trace.FromContext(r.Context()); ok && shared {
		tr.LazyPrintf("shared rendering")
	}
	w.Header().Set("Content-Type", "image/gif")
	w.WriteHeader(http.StatusOK)
	w.Write(v.([]byte))
}

func (h *Handler) entityID(w http.ResponseWriter, r *http.Request) (pipeline.EntityID, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	if err != nil {
		http.Error(w, "id not a number", http.StatusBadRequest)
		return 0, false
	}
	return pipeline.EntityID(id), true
}

func (h *Handler) entityFrameHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := h.entityID(w, r)
	if !ok {
		return
	}
	img, err := h.p.Frame(id)
	if err != nil {
		httpError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writePNG(w, r, img)
}

func (h *Handler) toggleHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := h.entityID(w, r)
	if !ok {
		return
	}
	if err := h.p.Toggle(id); err != nil {
		httpError(w, r, err)
		return
	}
	h.writeEntity(w, r, id)
}

func (h *Handler) setTagHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := h.entityID(w, r)
	if !ok {
		return
	}
	if err := h.p.SetTag(id, mux.Vars(r)["tag"]); err != nil {
		httpError(w, r, err)
		return
	}
	h.writeEntity(w, r, id)
}
