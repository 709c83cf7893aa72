package imageprint

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"strings"
	"testing"
	"time"
)

func testImage() image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	img.Set(0, 0, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	img.Set(1, 0, color.NRGBA{R: 10, G: 10, B: 10, A: 255})
	img.Set(2, 1, color.NRGBA{R: 255, A: 255})
	return img
}

func TestPrintNoColor(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{W: &buf, Mode: ModeNoColor}
	if err := p.Print(testImage()); err != nil {
		t.Fatalf("Print: %v", err)
	}
	want := "##..  \n    ==\n"
	if buf.String() != want {
		t.Errorf("got %q; want %q", buf.String(), want)
	}
}

func TestPrint24bit(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{W: &buf, Mode: Mode24bit, Blanks: true}
	if err := p.Print(testImage()); err != nil {
		t.Fatalf("Print: %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines; want 2", len(lines))
	}
	if !strings.HasPrefix(lines[0], "\x1b[48;2;255;255;255m  \x1b[0m") {
		t.Errorf("line 0: got %q", lines[0])
	}
	if !strings.Contains(lines[1], "\x1b[48;2;255;0;0m  ") {
		t.Errorf("line 1: got %q", lines[1])
	}
}

func TestPrint256(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{W: &buf, Mode: Mode256}
	if err := p.Print(testImage()); err != nil {
		t.Fatalf("Print: %v", err)
	}
	if n := strings.Count(buf.String(), "\n"); n != 2 {
		t.Errorf("got %d lines; want 2", n)
	}
	if !strings.Contains(buf.String(), "##") {
		t.Errorf("missing shade in %q", buf.String())
	}
}

func TestParseMode(t *testing.T) {
	for _, m := range []Mode{Mode256, Mode24bit, ModeNoColor, ModeITerm, ModeRasTerm} {
		got, err := ParseMode(m.String())
		if err != nil || got != m {
			t.Errorf("ParseMode(%q): got %v, %v", m.String(), got, err)
		}
	}
	if _, err := ParseMode("crayon"); err == nil {
		t.Errorf("ParseMode(crayon): want error")
	}
}

func TestPlay(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{W: &buf, Mode: ModeNoColor}
	frames := 0
	err := p.Play(context.Background(), time.Millisecond, func(dt time.Duration) image.Image {
		if frames == 3 {
			return nil
		}
		frames++
		return testImage()
	})
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if n := strings.Count(buf.String(), "\x1b[2J"); n != 3 {
		t.Errorf("got %d frames drawn; want 3", n)
	}
}
