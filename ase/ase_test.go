package ase

import (
	"bytes"
	"image"
	"image/color"
	"reflect"
	"testing"
	"time"

	"github.com/pkg/errors"

	"badc0de.net/pkg/go-aseprite/ttesting"
)

const ms = time.Millisecond

func TestDecodeStrip(t *testing.T) {
	b := ttesting.Strip(8, 4, 100*ms, 50*ms, 75*ms).
		Tag("walk", 0, 2, ttesting.Forward, 0).
		Tag("bounce", 1, 2, ttesting.PingPong, 2).
		Bytes()

	f, err := Decode(b)
	if err != nil {
		t.Fatalf("failed to decode: %s", err)
	}

	ttesting.AssertEqualInt(t, "width", f.Width, 8)
	ttesting.AssertEqualInt(t, "height", f.Height, 4)
	ttesting.AssertEqualInt(t, "frames", len(f.Frames), 3)
	ttesting.AssertEqualDuration(t, "frame 0 duration", f.Frames[0].Duration, 100*ms)
	ttesting.AssertEqualDuration(t, "frame 1 duration", f.Frames[1].Duration, 50*ms)
	ttesting.AssertEqualDuration(t, "frame 2 duration", f.Frames[2].Duration, 75*ms)
	for i := range f.Frames {
		ttesting.AssertPixel(t, "frame color", f.Frames[i].Image, 3, 2, ttesting.FrameColor(i))
	}

	if f.ColorMode != ColorModeRGBA {
		t.Errorf("color mode: got %v; want %v", f.ColorMode, ColorModeRGBA)
	}
	want := []Tag{
		{Name: "walk", From: 0, To: 2, Direction: Forward},
		{Name: "bounce", From: 1, To: 2, Direction: PingPong, Repeat: 2},
	}
	if !reflect.DeepEqual(f.Tags, want) {
		t.Errorf("tags: got %+v; want %+v", f.Tags, want)
	}
	if tag, ok := f.Tag("bounce"); !ok || tag.Len() != 2 {
		t.Errorf("Tag(bounce): got %+v, %v", tag, ok)
	}
	if _, ok := f.Tag("missing"); ok {
		t.Errorf("Tag(missing) unexpectedly found")
	}
}

func TestDecodeIsRepeatable(t *testing.T) {
	b := ttesting.Strip(5, 5, 10*ms, 20*ms).Tag("all", 0, 1, ttesting.Reverse, 0).Bytes()

	f1, err := Decode(b)
	if err != nil {
		t.Fatalf("first decode: %s", err)
	}
	f2, err := Read(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("second decode: %s", err)
	}
	if !reflect.DeepEqual(f1, f2) {
		t.Errorf("decoding the same bytes twice gave different results")
	}
}

func TestDecodeFormatErrors(t *testing.T) {
	good := ttesting.Strip(4, 4, 100*ms).Bytes()

	badMagic := append([]byte(nil), good...)
	badMagic[4] = 0

	badDepth := ttesting.Strip(4, 4, 100*ms).Depth(24).Bytes()

	badFrameMagic := append([]byte(nil), good...)
	badFrameMagic[128+4] = 0

	noFrames := ttesting.NewAse(4, 4).Bytes()

	badTag := ttesting.Strip(4, 4, 100*ms).Tag("oops", 0, 3, ttesting.Forward, 0).Bytes()

	hugeCanvas := ttesting.NewAse(65535, 65535).Layer("Layer 1", ttesting.LayerVisible, 255).Frame(100 * ms).Bytes()

	hugeCel := ttesting.Strip(4, 4, 100*ms).
		Frame(100*ms, ttesting.AseCel{W: 65535, H: 65535, Opacity: 255, Compressed: true}).
		Bytes()

	shortCel := ttesting.Strip(4, 4, 100*ms).
		Frame(100*ms, ttesting.AseCel{W: 4, H: 4, Opacity: 255, Compressed: true, Pixels: make([]byte, 10)}).
		Bytes()

	for name, b := range map[string][]byte{
		"empty":             nil,
		"short header":      good[:64],
		"bad magic":         badMagic,
		"unsupported depth": badDepth,
		"truncated frame":   good[:len(good)-10],
		"bad frame magic":   badFrameMagic,
		"no frames":         noFrames,
		"tag out of range":  badTag,
		"huge canvas":       hugeCanvas,
		"huge cel":          hugeCel,
		"short cel":         shortCel,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(b)
			if err == nil {
				t.Fatalf("decode succeeded; want FormatError")
			}
			var fe *FormatError
			if !errors.As(err, &fe) {
				t.Errorf("got %T (%v); want *FormatError", err, err)
			}
		})
	}
}

func TestDecodeIndexed(t *testing.T) {
	red := color.NRGBA{R: 255, A: 255}
	blue := color.NRGBA{B: 255, A: 255}
	b := ttesting.NewAse(2, 1).Depth(8).TransparentIndex(0).
		Palette(red, blue).
		Layer("bg", ttesting.LayerVisible|ttesting.LayerBackground, 255).
		Layer("fg", ttesting.LayerVisible, 255).
		Frame(100*ms,
			ttesting.AseCel{Layer: 0, W: 2, H: 1, Opacity: 255, Pixels: []byte{0, 0}},
			ttesting.AseCel{Layer: 1, W: 2, H: 1, Opacity: 255, Pixels: []byte{0, 1}, Compressed: true},
		).Bytes()

	f, err := Decode(b)
	if err != nil {
		t.Fatalf("failed to decode: %s", err)
	}
	if len(f.Palette) != 2 {
		t.Fatalf("palette: got %d entries; want 2", len(f.Palette))
	}
	// Index 0 is opaque red on the background layer and transparent above it.
	ttesting.AssertPixel(t, "background shows through", f.Frames[0].Image, 0, 0, red)
	ttesting.AssertPixel(t, "foreground paints", f.Frames[0].Image, 1, 0, blue)
}

func TestDecodeGrayscale(t *testing.T) {
	b := ttesting.NewAse(2, 1).Depth(16).
		Layer("gray", ttesting.LayerVisible, 255).
		Frame(100*ms, ttesting.AseCel{W: 2, H: 1, Opacity: 255, Pixels: []byte{0x80, 0xFF, 0xFF, 0x00}}).
		Bytes()

	f, err := Decode(b)
	if err != nil {
		t.Fatalf("failed to decode: %s", err)
	}
	ttesting.AssertPixel(t, "gray", f.Frames[0].Image, 0, 0, color.NRGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xFF})
	ttesting.AssertPixel(t, "transparent", f.Frames[0].Image, 1, 0, color.NRGBA{})
}

func TestDecodeLayers(t *testing.T) {
	green := color.NRGBA{G: 255, A: 255}
	red := color.NRGBA{R: 255, A: 255}

	b := ttesting.NewAse(3, 1).
		Layer("base", ttesting.LayerVisible, 255).
		Layer("hidden", 0, 255).
		Group("folder", 0, 0).
		ChildLayer("in hidden folder", ttesting.LayerVisible, 1).
		Layer("half", ttesting.LayerVisible, 128).
		Frame(100*ms,
			ttesting.SolidCel(3, 1, green),
			withLayer(ttesting.SolidCel(1, 1, red), 1, 0),
			withLayer(ttesting.SolidCel(1, 1, red), 3, 1),
			withLayer(ttesting.SolidCel(1, 1, red), 4, 2),
		).Bytes()

	f, err := Decode(b)
	if err != nil {
		t.Fatalf("failed to decode: %s", err)
	}
	if len(f.Layers) != 5 {
		t.Fatalf("layers: got %d; want 5", len(f.Layers))
	}
	img := f.Frames[0].Image
	ttesting.AssertPixel(t, "hidden layer", img, 0, 0, green)
	ttesting.AssertPixel(t, "layer in hidden group", img, 1, 0, green)

	half := color.NRGBAModel.Convert(img.At(2, 0)).(color.NRGBA)
	if half.R < 120 || half.R > 135 || half.A != 255 {
		t.Errorf("half opacity layer over green: got %v", half)
	}
}

func TestDecodeLinkedCel(t *testing.T) {
	c := ttesting.FrameColor(0)
	b := ttesting.NewAse(2, 2).
		Layer("only", ttesting.LayerVisible, 255).
		Frame(100*ms, ttesting.SolidCel(2, 2, c)).
		Frame(100*ms, ttesting.AseCel{Opacity: 255, Linked: true, LinkFrame: 0}).
		Bytes()

	f, err := Decode(b)
	if err != nil {
		t.Fatalf("failed to decode: %s", err)
	}
	ttesting.AssertPixel(t, "linked frame", f.Frames[1].Image, 1, 1, c)
}

func TestDecodeSlices(t *testing.T) {
	pivot := image.Pt(2, 3)
	b := ttesting.Strip(8, 8, 100*ms).
		Slice("hitbox", 0, image.Rect(1, 2, 5, 7), &pivot).
		Bytes()

	f, err := Decode(b)
	if err != nil {
		t.Fatalf("failed to decode: %s", err)
	}
	if len(f.Slices) != 1 || len(f.Slices[0].Keys) != 1 {
		t.Fatalf("slices: got %+v", f.Slices)
	}
	key := f.Slices[0].Keys[0]
	if f.Slices[0].Name != "hitbox" || key.Bounds != image.Rect(1, 2, 5, 7) {
		t.Errorf("slice: got %q %v", f.Slices[0].Name, key.Bounds)
	}
	if key.Pivot == nil || *key.Pivot != pivot {
		t.Errorf("pivot: got %v; want %v", key.Pivot, pivot)
	}
	if key.Center != nil {
		t.Errorf("center: got %v; want nil", key.Center)
	}
}

func TestImageDecode(t *testing.T) {
	b := ttesting.Strip(6, 3, 100*ms, 100*ms).Bytes()

	cfg, format, err := image.DecodeConfig(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("DecodeConfig: %s", err)
	}
	if format != "aseprite" || cfg.Width != 6 || cfg.Height != 3 {
		t.Errorf("DecodeConfig: got %q %dx%d", format, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("Decode: %s", err)
	}
	ttesting.AssertPixel(t, "first frame", img, 0, 0, ttesting.FrameColor(0))
}

func withLayer(c ttesting.AseCel, layer, x int) ttesting.AseCel {
	c.Layer = layer
	c.X = x
	return c
}

func TestParseDirection(t *testing.T) {
	for d := Forward; d <= PingPongReverse; d++ {
		got, err := ParseDirection(d.String())
		if err != nil || got != d {
			t.Errorf("ParseDirection(%q): got %v, %v; want %v", d.String(), got, err, d)
		}
	}
	if _, err := ParseDirection("sideways"); err == nil {
		t.Errorf("ParseDirection(sideways): want error")
	}
}
