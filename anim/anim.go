// Package anim implements playback of tagged frame ranges.
//
// A Cursor holds the playback position of one entity within one tag. It is
// advanced by the caller once per tick with the elapsed time, and looks up
// frame durations through a Timeline.
package anim

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"badc0de.net/pkg/go-aseprite/ase"
)

// Direction is the current playback direction of a cursor.
type Direction int

const (
	Forward Direction = iota
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// Timeline provides the display duration of source frames.
type Timeline interface {
	Duration(frame int) time.Duration
}

// Durations is a Timeline backed by a slice.
type Durations []time.Duration

func (d Durations) Duration(frame int) time.Duration {
	if frame < 0 || frame >= len(d) {
		return 0
	}
	return d[frame]
}

// UnknownTagError is returned when selecting a tag the sprite does not have.
type UnknownTagError struct {
	Name  string
	Known []string
}

func (e *UnknownTagError) Error() string {
	return fmt.Sprintf("anim: unknown tag %q (have: %s)", e.Name, strings.Join(e.Known, ", "))
}

// Tags is a lookup table of the tags of one sprite.
type Tags map[string]ase.Tag

func NewTags(tags []ase.Tag) Tags {
	t := make(Tags, len(tags))
	for _, tag := range tags {
		if _, dup := t[tag.Name]; dup {
			// Aseprite allows duplicate names; the first one wins.
			continue
		}
		t[tag.Name] = tag
	}
	return t
}

// Lookup returns the named tag, or an *UnknownTagError.
func (t Tags) Lookup(name string) (ase.Tag, error) {
	tag, ok := t[name]
	if !ok {
		return ase.Tag{}, &UnknownTagError{Name: name, Known: t.Names()}
	}
	return tag, nil
}

// Names returns the tag names, sorted.
func (t Tags) Names() []string {
	names := make([]string, 0, len(t))
	for n := range t {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
