package web

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"time"

	"github.com/bradfitz/iter"
	"github.com/ericpauley/go-quantize/quantize"
	"github.com/pkg/errors"

	"badc0de.net/pkg/go-aseprite/anim"
	"badc0de.net/pkg/go-aseprite/ase"
	"badc0de.net/pkg/go-aseprite/sprite"
)

// tagFrames lists the frames of one loop of tag, in playback order, by
// stepping a cursor through it. A ping-pong loop goes there and back without
// repeating its end frames.
func tagFrames(rd *sprite.Ready, tag ase.Tag) ([]int, error) {
	n := tag.Len()
	if (tag.Direction == ase.PingPong || tag.Direction == ase.PingPongReverse) && n > 2 {
		n = 2*n - 2
	}
	tag.Repeat = 0
	c := anim.NewCursor(tag)
	frames := make([]int, 0, n)
	for range iter.N(n) {
		f := c.Frame()
		d := rd.Duration(f)
		if d <= 0 {
			return nil, errors.Errorf("tag %q: frame %d has no duration", tag.Name, f)
		}
		frames = append(frames, f)
		c.Advance(d-c.Elapsed(), rd)
	}
	return frames, nil
}

// renderTagGIF encodes one loop of tag as an animated GIF.
func renderTagGIF(rd *sprite.Ready, tag ase.Tag) ([]byte, error) {
	frames, err := tagFrames(rd, tag)
	if err != nil {
		return nil, err
	}

	g := &gif.GIF{}
	q := quantize.MedianCutQuantizer{AddTransparent: true}
	for _, f := range frames {
		img, err := rd.FrameImage(f, nil)
		if err != nil {
			return nil, err
		}
		b := img.Bounds()
		pal := q.Quantize(make(color.Palette, 0, 256), img)
		dst := image.NewPaletted(image.Rect(0, 0, b.Dx(), b.Dy()), pal)
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)

		g.Image = append(g.Image, dst)
		g.Delay = append(g.Delay, int(rd.Duration(f)/(10*time.Millisecond)))
		g.Disposal = append(g.Disposal, gif.DisposalBackground)
	}

	buf := &bytes.Buffer{}
	if err := gif.EncodeAll(buf, g); err != nil {
		return nil, errors.Wrapf(err, "encoding gif of tag %q", tag.Name)
	}
	return buf.Bytes(), nil
}
