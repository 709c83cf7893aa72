package ase

import (
	"bytes"
	"compress/zlib"
	"image"
	"image/color"
	"image/draw"
	"io"
	"io/ioutil"
	"sort"

	"github.com/pkg/errors"
)

// compose flattens the cels of every frame into the frame image.
func (d *decoder) compose() error {
	visible := layerVisibility(d.f.Layers)
	layerOpacity := d.h.Flags&flagLayerOpacity != 0

	for i := range d.f.Frames {
		img := image.NewRGBA(image.Rect(0, 0, d.f.Width, d.f.Height))

		cels := make([]cel, len(d.cels[i]))
		copy(cels, d.cels[i])
		sort.SliceStable(cels, func(a, b int) bool {
			oa, ob := cels[a].layer+cels[a].z, cels[b].layer+cels[b].z
			if oa != ob {
				return oa < ob
			}
			return cels[a].z < cels[b].z
		})

		for _, c := range cels {
			if c.layer >= len(d.f.Layers) {
				return formatErrorf(c.off, nil, "cel in frame %d references missing layer %d", i, c.layer)
			}
			layer := d.f.Layers[c.layer]
			if !visible[c.layer] || layer.Type != LayerNormal {
				continue
			}

			src, err := d.celImage(c, layer.Background())
			if err != nil {
				return err
			}
			if src == nil {
				continue
			}

			opacity := int(c.opacity)
			if layerOpacity {
				opacity = opacity * int(layer.Opacity) / 255
			}
			if opacity == 0 {
				continue
			}

			r := src.Bounds().Add(image.Pt(c.x, c.y))
			mask := image.NewUniform(color.Alpha{A: uint8(opacity)})
			draw.DrawMask(img, r, src, image.Point{}, mask, image.Point{}, draw.Over)
		}
		d.f.Frames[i].Image = img
	}
	return nil
}

// celImage converts the pixels of c (or of the cel it links to) into an
// image positioned at the origin.
func (d *decoder) celImage(c cel, background bool) (*image.NRGBA, error) {
	if c.link >= 0 {
		target, ok := d.findCel(c.link, c.layer)
		if !ok {
			// Linked cels of skipped tilemap cels end up here as well.
			return nil, nil
		}
		c.w, c.h, c.pixels = target.w, target.h, target.pixels
	}
	if c.w == 0 || c.h == 0 {
		return nil, nil
	}

	img := image.NewNRGBA(image.Rect(0, 0, c.w, c.h))
	bpp := d.f.ColorMode.bytesPerPixel()
	if len(c.pixels) < c.w*c.h*bpp {
		return nil, formatErrorf(c.off, io.ErrUnexpectedEOF, "cel pixel data too short")
	}
	for p := 0; p < c.w*c.h; p++ {
		px := c.pixels[p*bpp : (p+1)*bpp]
		var col color.NRGBA
		switch d.f.ColorMode {
		case ColorModeRGBA:
			col = color.NRGBA{R: px[0], G: px[1], B: px[2], A: px[3]}
		case ColorModeGrayscale:
			col = color.NRGBA{R: px[0], G: px[0], B: px[0], A: px[1]}
		case ColorModeIndexed:
			col = d.indexed(px[0], background)
		}
		copy(img.Pix[p*4:], []byte{col.R, col.G, col.B, col.A})
	}
	return img, nil
}

func (d *decoder) indexed(idx uint8, background bool) color.NRGBA {
	if idx == d.f.TransparentIndex && !background {
		return color.NRGBA{}
	}
	if int(idx) >= len(d.f.Palette) {
		return color.NRGBA{}
	}
	return color.NRGBAModel.Convert(d.f.Palette[idx]).(color.NRGBA)
}

func (d *decoder) findCel(frame, layer int) (cel, bool) {
	for _, c := range d.cels[frame] {
		if c.layer == layer && c.link < 0 {
			return c, true
		}
	}
	return cel{}, false
}

// layerVisibility resolves the effective visibility of every layer: a layer
// inside a hidden group is hidden too.
func layerVisibility(layers []Layer) []bool {
	visible := make([]bool, len(layers))
	var groups []bool
	for i, l := range layers {
		if l.ChildLevel < len(groups) {
			groups = groups[:l.ChildLevel]
		}
		v := l.Visible()
		if l.ChildLevel > 0 && l.ChildLevel <= len(groups) {
			v = v && groups[l.ChildLevel-1]
		}
		visible[i] = v
		if l.Type == LayerGroup {
			for len(groups) < l.ChildLevel {
				groups = append(groups, false)
			}
			groups = append(groups, v)
		}
	}
	return visible
}

func inflate(data []byte, want int) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "opening zlib stream")
	}
	defer zr.Close()

	// The buffer grows with the stream instead of trusting the cel header.
	out, err := ioutil.ReadAll(io.LimitReader(zr, int64(want)))
	if err != nil {
		return nil, errors.Wrapf(err, "inflating %d bytes", want)
	}
	if len(out) < want {
		return nil, errors.Wrapf(io.ErrUnexpectedEOF, "inflating %d bytes: got %d", want, len(out))
	}
	return out, nil
}

func rect(x, y int32, w, h uint32) image.Rectangle {
	return image.Rect(int(x), int(y), int(x)+int(w), int(y)+int(h))
}

func pointOf(x, y int32) image.Point {
	return image.Pt(int(x), int(y))
}
