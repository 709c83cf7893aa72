// Package scene reads YAML descriptions of entities and spawns them into a
// pipeline.
//
// A scene file looks like this:
//
//	entities:
//	- name: hero
//	  sprite: chars/hero.aseprite
//	  tag: walk
//	  size: [64, 64]
//	- name: coin
//	  sprite: coin.ase
package scene

import (
	"image"
	"io"
	"io/ioutil"
	"sort"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"badc0de.net/pkg/go-aseprite/pipeline"
)

// Entity describes one entity of a scene.
type Entity struct {
	Name   string `yaml:"name"`
	Sprite string `yaml:"sprite"`
	Tag    string `yaml:"tag,omitempty"`
	Size   []int  `yaml:"size,omitempty,flow"`
}

// Animation returns the playback configuration of the entity.
func (e Entity) Animation() pipeline.Animation {
	a := pipeline.Animation{Tag: e.Tag}
	if len(e.Size) == 2 {
		a.Size = &image.Point{X: e.Size[0], Y: e.Size[1]}
	}
	return a
}

type Scene struct {
	Entities []Entity `yaml:"entities"`
}

// Load parses and validates a scene.
func Load(r io.Reader) (*Scene, error) {
	b, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading scene")
	}
	s := &Scene{}
	if err := yaml.UnmarshalStrict(b, s); err != nil {
		return nil, errors.Wrap(err, "parsing scene")
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scene) validate() error {
	names := map[string]bool{}
	for i, e := range s.Entities {
		if e.Name == "" {
			return errors.Errorf("scene entity %d: missing name", i)
		}
		if names[e.Name] {
			return errors.Errorf("scene entity %q: duplicate name", e.Name)
		}
		names[e.Name] = true
		if e.Sprite == "" {
			return errors.Errorf("scene entity %q: missing sprite", e.Name)
		}
		if len(e.Size) != 0 && (len(e.Size) != 2 || e.Size[0] <= 0 || e.Size[1] <= 0) {
			return errors.Errorf("scene entity %q: size must be two positive numbers, got %v", e.Name, e.Size)
		}
	}
	return nil
}

// Sprites returns the distinct sprite names used by the scene, sorted.
func (s *Scene) Sprites() []string {
	seen := map[string]bool{}
	var sprites []string
	for _, e := range s.Entities {
		if !seen[e.Sprite] {
			seen[e.Sprite] = true
			sprites = append(sprites, e.Sprite)
		}
	}
	sort.Strings(sprites)
	return sprites
}

// Marshal encodes the scene as YAML.
func (s *Scene) Marshal() ([]byte, error) {
	return yaml.Marshal(s)
}

// Apply spawns every entity of the scene into p and returns their ids by
// name. If any entity fails to spawn, the ones already spawned are removed.
func (s *Scene) Apply(p *pipeline.Pipeline) (map[string]pipeline.EntityID, error) {
	ids := make(map[string]pipeline.EntityID, len(s.Entities))
	for _, e := range s.Entities {
		id, err := p.Spawn(e.Sprite, e.Animation())
		if err != nil {
			for _, id := range ids {
				p.Despawn(id)
			}
			return nil, errors.Wrapf(err, "scene entity %q", e.Name)
		}
		glog.V(1).Infof("scene: %q is entity %d", e.Name, id)
		ids[e.Name] = id
	}
	return ids, nil
}
