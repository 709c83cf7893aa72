// Package resource stores built sprites in a bbolt resource file.
//
// The file has three buckets: "atlases" maps a sprite name to its atlas as
// PNG, "sprites" maps a sprite name to its YAML metadata, and "tags" maps a
// tag name to the YAML list of sprites having that tag.
package resource

import (
	"bytes"
	"image"
	"image/png"
	"sort"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
	"gopkg.in/yaml.v2"

	"badc0de.net/pkg/go-aseprite/ase"
	"badc0de.net/pkg/go-aseprite/sprite"
)

var (
	atlasesBucket = []byte("atlases")
	spritesBucket = []byte("sprites")
	tagsBucket    = []byte("tags")
)

var ErrNotFound = errors.New("sprite not found in resource file")

// TagMeta is a tag as stored in sprite metadata.
type TagMeta struct {
	Name      string `yaml:"name"`
	From      int    `yaml:"from"`
	To        int    `yaml:"to"`
	Direction string `yaml:"direction"`
	Repeat    int    `yaml:"repeat,omitempty"`
}

// Meta is the metadata stored for every sprite.
type Meta struct {
	Name   string `yaml:"name"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	// Rects holds the atlas slots as [x0, y0, x1, y1].
	Rects       [][4]int  `yaml:"rects,flow"`
	FrameToSlot []int     `yaml:"frameToSlot,flow"`
	Durations   []int     `yaml:"durations,flow"`
	Tags        []TagMeta `yaml:"tags"`
}

// Record is a sprite read back from a resource file.
type Record struct {
	Meta
	Atlas image.Image
}

// Duration implements anim.Timeline.
func (r *Record) Duration(frame int) time.Duration {
	if frame < 0 || frame >= len(r.Durations) {
		return 0
	}
	return time.Duration(r.Durations[frame]) * time.Millisecond
}

// Tag returns the named tag.
func (r *Record) Tag(name string) (ase.Tag, bool) {
	for _, t := range r.Tags {
		if t.Name != name {
			continue
		}
		dir, err := ase.ParseDirection(t.Direction)
		if err != nil {
			glog.Warningf("resource: sprite %q tag %q: %v", r.Name, name, err)
		}
		return ase.Tag{Name: t.Name, From: t.From, To: t.To, Direction: dir, Repeat: t.Repeat}, true
	}
	return ase.Tag{}, false
}

// Frame returns the image of a source frame.
func (r *Record) Frame(frame int) (image.Image, error) {
	if frame < 0 || frame >= len(r.FrameToSlot) {
		return nil, errors.Errorf("sprite %q: frame %d out of range", r.Name, frame)
	}
	slot := r.FrameToSlot[frame]
	if slot < 0 || slot >= len(r.Rects) {
		return nil, errors.Errorf("sprite %q: frame %d has bad slot %d", r.Name, frame, slot)
	}
	rc := r.Rects[slot]
	sub, ok := r.Atlas.(interface {
		SubImage(image.Rectangle) image.Image
	})
	if !ok {
		return nil, errors.Errorf("sprite %q: atlas cannot be cut", r.Name)
	}
	return sub.SubImage(image.Rect(rc[0], rc[1], rc[2], rc[3])), nil
}

// MetaOf describes a built sprite.
func MetaOf(r *sprite.Ready) Meta {
	m := Meta{
		Name:        r.Name,
		Width:       r.Info.Size.X,
		Height:      r.Info.Size.Y,
		FrameToSlot: append([]int(nil), r.FrameToSlot...),
	}
	for _, rc := range r.Atlas.Rects {
		m.Rects = append(m.Rects, [4]int{rc.Min.X, rc.Min.Y, rc.Max.X, rc.Max.Y})
	}
	for _, d := range r.Info.Durations {
		m.Durations = append(m.Durations, int(d/time.Millisecond))
	}
	for _, t := range r.Info.Tags {
		m.Tags = append(m.Tags, TagMeta{Name: t.Name, From: t.From, To: t.To, Direction: t.Direction.String(), Repeat: t.Repeat})
	}
	return m
}

// File is an open resource file.
type File struct {
	db *bolt.DB
}

// Open opens or creates the resource file at path.
func Open(path string) (*File, error) {
	db, err := bolt.Open(path, 0666, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening resource file %s", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{atlasesBucket, spritesBucket, tagsBucket} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return errors.Wrapf(err, "creating bucket %s", b)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &File{db: db}, nil
}

func (f *File) Close() error {
	return f.db.Close()
}

// Put stores a built sprite, replacing an earlier one of the same name.
func (f *File) Put(name string, r *sprite.Ready) error {
	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, r.Atlas.Image); err != nil {
		return errors.Wrapf(err, "encoding atlas of %q", name)
	}
	meta := MetaOf(r)
	meta.Name = name
	metaBytes, err := yaml.Marshal(&meta)
	if err != nil {
		return errors.Wrapf(err, "encoding metadata of %q", name)
	}

	return f.db.Update(func(tx *bolt.Tx) error {
		// Drop the sprite from the tag index first, its tags may have changed.
		if old := tx.Bucket(spritesBucket).Get([]byte(name)); old != nil {
			var oldMeta Meta
			if err := yaml.Unmarshal(old, &oldMeta); err != nil {
				return errors.Wrapf(err, "decoding old metadata of %q", name)
			}
			for _, t := range oldMeta.Tags {
				if err := updateTag(tx, t.Name, name, false); err != nil {
					return err
				}
			}
		}
		if err := tx.Bucket(atlasesBucket).Put([]byte(name), pngBuf.Bytes()); err != nil {
			return err
		}
		if err := tx.Bucket(spritesBucket).Put([]byte(name), metaBytes); err != nil {
			return err
		}
		for _, t := range meta.Tags {
			if err := updateTag(tx, t.Name, name, true); err != nil {
				return err
			}
		}
		glog.V(1).Infof("resource: stored %q, %d byte atlas", name, pngBuf.Len())
		return nil
	})
}

func updateTag(tx *bolt.Tx, tag, spriteName string, add bool) error {
	b := tx.Bucket(tagsBucket)
	var sprites []string
	if v := b.Get([]byte(tag)); v != nil {
		if err := yaml.Unmarshal(v, &sprites); err != nil {
			return errors.Wrapf(err, "decoding tag %q", tag)
		}
	}
	var out []string
	for _, s := range sprites {
		if s != spriteName {
			out = append(out, s)
		}
	}
	if add {
		out = append(out, spriteName)
		sort.Strings(out)
	}
	if len(out) == 0 {
		return b.Delete([]byte(tag))
	}
	v, err := yaml.Marshal(out)
	if err != nil {
		return err
	}
	return b.Put([]byte(tag), v)
}

// Get reads a sprite back.
func (f *File) Get(name string) (*Record, error) {
	rec := &Record{}
	err := f.db.View(func(tx *bolt.Tx) error {
		metaBytes := tx.Bucket(spritesBucket).Get([]byte(name))
		pngBytes := tx.Bucket(atlasesBucket).Get([]byte(name))
		if metaBytes == nil || pngBytes == nil {
			return errors.Wrapf(ErrNotFound, "%q", name)
		}
		if err := yaml.Unmarshal(metaBytes, &rec.Meta); err != nil {
			return errors.Wrapf(err, "decoding metadata of %q", name)
		}
		// Byte slices from bolt are only valid inside the transaction, and
		// png.Decode copies what it reads.
		img, err := png.Decode(bytes.NewReader(pngBytes))
		if err != nil {
			return errors.Wrapf(err, "decoding atlas of %q", name)
		}
		rec.Atlas = img
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Names returns the names of the stored sprites, sorted.
func (f *File) Names() ([]string, error) {
	var names []string
	err := f.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(spritesBucket).ForEach(func(k, _ []byte) error {
			names = append(names, string(k))
			return nil
		})
	})
	return names, err
}

// SpritesWithTag returns the names of the stored sprites having a tag
// called tag.
func (f *File) SpritesWithTag(tag string) ([]string, error) {
	var sprites []string
	err := f.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(tagsBucket).Get([]byte(tag))
		if v == nil {
			return nil
		}
		return yaml.Unmarshal(v, &sprites)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "reading tag %q", tag)
	}
	return sprites, nil
}
