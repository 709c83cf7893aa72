package anim

import (
	"time"

	"badc0de.net/pkg/go-aseprite/ase"
)

// Cursor is the playback state of one entity: the active tag, the current
// source frame, the time spent on it and the current direction.
//
// At the end of the tag's range a cursor wraps around (forward and reverse
// tags), bounces (ping-pong tags) or, once the tag's repeat count is used
// up, stays on the boundary frame and reports Finished.
type Cursor struct {
	tag      ase.Tag
	frame    int
	elapsed  time.Duration
	dir      Direction
	passes   int
	finished bool
}

// NewCursor returns a cursor positioned at the start of tag.
func NewCursor(tag ase.Tag) *Cursor {
	c := &Cursor{}
	c.SetTag(tag)
	return c
}

// SetTag switches to tag and rewinds: the frame becomes the tag's first
// frame in its default direction, elapsed time is cleared and the direction
// is reset. Nothing is kept from the previous tag.
func (c *Cursor) SetTag(tag ase.Tag) {
	*c = Cursor{tag: tag}
	switch tag.Direction {
	case ase.Reverse, ase.PingPongReverse:
		c.dir = Backward
		c.frame = tag.To
	default:
		c.dir = Forward
		c.frame = tag.From
	}
}

// Toggle reverses the playback direction immediately, keeping the frame and
// the elapsed time. A finished cursor starts playing again in the new
// direction from the start of its current frame, with a fresh repeat count.
func (c *Cursor) Toggle() {
	c.flip()
	if c.finished {
		c.finished = false
		c.elapsed = 0
		c.passes = 0
	}
}

func (c *Cursor) flip() {
	if c.dir == Forward {
		c.dir = Backward
	} else {
		c.dir = Forward
	}
}

func (c *Cursor) Tag() ase.Tag { return c.tag }
func (c *Cursor) Frame() int { return c.frame }
func (c *Cursor) FrameInTag() int { return c.frame - c.tag.From }
func (c *Cursor) Elapsed() time.Duration { return c.elapsed }
func (c *Cursor) Direction() Direction { return c.dir }
func (c *Cursor) Finished() bool { return c.finished }
func (c *Cursor) Passes() int { return c.passes }
func (c *Cursor) bouncing() bool { return c.tag.Direction == ase.PingPong || c.tag.Direction == ase.PingPongReverse }
func (c *Cursor) lastPass() bool { return c.tag.Repeat > 0 && c.passes+1 >= c.tag.Repeat }

// Advance moves the cursor forward in time by dt.
func (c *Cursor) Advance(dt time.Duration, tl Timeline) {
	if c.finished || dt <= 0 || !c.playable(tl) {
		return
	}

	c.elapsed += dt
	for {
		d := tl.Duration(c.frame)
		if c.elapsed < d {
			return
		}
		if !c.atBoundary() {
			c.elapsed -= d
			c.step()
			continue
		}

		if c.lastPass() {
			c.finished = true
			c.elapsed = d
			return
		}
		c.elapsed -= d
		c.passes++
		if c.bouncing() {
			c.flip()
			if c.tag.Len() > 1 {
				c.step()
			}
		} else if c.dir == Forward {
			c.frame = c.tag.From
		} else {
			c.frame = c.tag.To
		}
	}
}

func (c *Cursor) step() {
	if c.dir == Forward {
		c.frame++
	} else {
		c.frame--
	}
}

func (c *Cursor) atBoundary() bool {
	if c.dir == Forward {
		return c.frame >= c.tag.To
	}
	return c.frame <= c.tag.From
}

// playable reports whether any frame of the tag has a positive duration;
// otherwise advancing would never terminate.
func (c *Cursor) playable(tl Timeline) bool {
	for f := c.tag.From; f <= c.tag.To; f++ {
		if tl.Duration(f) > 0 {
			return true
		}
	}
	return false
}
