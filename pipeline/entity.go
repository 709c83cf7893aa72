package pipeline

import (
	"image"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"badc0de.net/pkg/go-aseprite/anim"
	"badc0de.net/pkg/go-aseprite/ase"
	"badc0de.net/pkg/go-aseprite/sprite"
)

var (
	ErrUnknownEntity = errors.New("unknown entity")
	ErrNotReady      = errors.New("asset not ready")
)

// EntityID identifies an entity spawned in a pipeline.
type EntityID uint32

// Animation is the playback configuration of an entity.
type Animation struct {
	// Tag is the name of the tag to play. Empty plays the sprite's first tag,
	// or all of its frames if it has none.
	Tag string
	// Size, when set, is the size frames are displayed at.
	Size *image.Point
}

type entity struct {
	asset  string
	anim   Animation
	cursor *anim.Cursor
	// generation of the Ready the cursor was resolved against; 0 when unbound.
	generation uint64
}

// Spawn creates an entity playing a on the sprite called asset. The asset
// does not need to be loaded yet; if it is, an unknown tag is an error.
func (p *Pipeline) Spawn(asset string, a Animation) (EntityID, error) {
	if asset == "" {
		return 0, errors.New("spawning entity: empty asset name")
	}
	if err := checkSize(a.Size); err != nil {
		return 0, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	e := &entity{asset: asset, anim: a}
	if r := p.readyLocked(asset); r != nil {
		tag, err := resolve(r, a.Tag)
		if err != nil {
			return 0, errors.Wrapf(err, "spawning entity on %q", asset)
		}
		e.bind(r, tag)
	}
	p.nextID++
	id := p.nextID
	p.entities.Put(id, e)
	p.order = append(p.order, id)
	glog.V(1).Infof("pipeline: spawned entity %d on %q", id, asset)
	return id, nil
}

// Despawn removes an entity.
func (p *Pipeline) Despawn(id EntityID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.entityLocked(id); err != nil {
		return err
	}
	p.entities.Del(id)
	for i, o := range p.order {
		if o == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	return nil
}

// SetTag switches the entity to the named tag, restarting playback. If the
// entity's asset is ready, a tag it lacks is an *anim.UnknownTagError and
// the entity keeps playing its current tag.
func (p *Pipeline) SetTag(id EntityID, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, err := p.entityLocked(id)
	if err != nil {
		return err
	}
	if r := p.readyLocked(e.asset); r != nil {
		tag, err := resolve(r, name)
		if err != nil {
			return errors.Wrapf(err, "entity %d", id)
		}
		e.bind(r, tag)
	} else {
		e.unbind()
	}
	e.anim.Tag = name
	return nil
}

// Toggle reverses the entity's playback direction.
func (p *Pipeline) Toggle(id EntityID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, err := p.entityLocked(id)
	if err != nil {
		return err
	}
	if e.cursor != nil {
		e.cursor.Toggle()
	}
	return nil
}

// SetCustomSize sets the size the entity's frames are displayed at. A nil
// size restores the sprite's own size.
func (p *Pipeline) SetCustomSize(id EntityID, size *image.Point) error {
	if err := checkSize(size); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	e, err := p.entityLocked(id)
	if err != nil {
		return err
	}
	e.anim.Size = size
	return nil
}

// Cursor returns a copy of the entity's playback state. It is false while
// the entity is not bound to a built asset.
func (p *Pipeline) Cursor(id EntityID) (anim.Cursor, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entities.Get(id)
	if !ok || e.cursor == nil {
		return anim.Cursor{}, false
	}
	return *e.cursor, true
}

// Entity returns the asset name and animation configuration of an entity.
func (p *Pipeline) Entity(id EntityID) (string, Animation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, err := p.entityLocked(id)
	if err != nil {
		return "", Animation{}, err
	}
	return e.asset, e.anim, nil
}

// Entities returns the live entities in spawn order.
func (p *Pipeline) Entities() []EntityID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]EntityID(nil), p.order...)
}

// Frame renders the current frame of an entity, at its custom size if one
// is set.
func (p *Pipeline) Frame(id EntityID) (image.Image, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, err := p.entityLocked(id)
	if err != nil {
		return nil, err
	}
	r := p.readyLocked(e.asset)
	if r == nil {
		return nil, errors.Wrapf(ErrNotReady, "entity %d: %q", id, e.asset)
	}
	if e.generation != r.Generation {
		p.rebindLocked(id, e, r)
	}
	if e.cursor == nil {
		return nil, errors.Wrapf(ErrNotReady, "entity %d: tag %q", id, e.anim.Tag)
	}
	return r.FrameImage(e.cursor.Frame(), e.anim.Size)
}

func (p *Pipeline) animate(dt time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range p.order {
		e, ok := p.entities.Get(id)
		if !ok {
			continue
		}
		r := p.readyLocked(e.asset)
		if r == nil {
			e.unbind()
			continue
		}
		if e.generation != r.Generation {
			p.rebindLocked(id, e, r)
		}
		if e.cursor != nil {
			e.cursor.Advance(dt, r)
		}
	}
}

// rebindLocked resolves the entity's tag against a new version of its
// asset. If the tag is gone the entity stays still until it gets a new tag.
func (p *Pipeline) rebindLocked(id EntityID, e *entity, r *sprite.Ready) {
	tag, err := resolve(r, e.anim.Tag)
	if err != nil {
		e.unbind()
		e.generation = r.Generation
		p.report(errors.Wrapf(err, "entity %d", id))
		return
	}
	glog.V(2).Infof("pipeline: entity %d bound to %q generation %d", id, e.asset, r.Generation)
	e.bind(r, tag)
}

func (p *Pipeline) readyLocked(name string) *sprite.Ready {
	a, ok := p.assets[name]
	if !ok {
		return nil
	}
	return a.ready.Load()
}

func (p *Pipeline) entityLocked(id EntityID) (*entity, error) {
	e, ok := p.entities.Get(id)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownEntity, "entity %d", id)
	}
	return e, nil
}

func (e *entity) bind(r *sprite.Ready, tag ase.Tag) {
	e.cursor = anim.NewCursor(tag)
	e.generation = r.Generation
}

func (e *entity) unbind() {
	e.cursor = nil
	e.generation = 0
}

func resolve(r *sprite.Ready, name string) (ase.Tag, error) {
	if name == "" {
		return r.DefaultTag(), nil
	}
	return r.Tag(name)
}

func checkSize(size *image.Point) error {
	if size != nil && (size.X <= 0 || size.Y <= 0) {
		return errors.Errorf("invalid display size %dx%d", size.X, size.Y)
	}
	return nil
}
