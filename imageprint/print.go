// Package imageprint prints images on terminal. UNSUPPORTED debug package.
//
// This package has an API with no stability guarantees.
package imageprint

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	ic "image/color"
	"image/png"
	"io"
	"os"
	"time"

	"github.com/gookit/color"
	"github.com/pkg/errors"
)

// Mode selects how images are drawn.
type Mode int

const (
	// Mode256 draws with 256color'd ascii art.
	Mode256 Mode = iota
	// Mode24bit draws using 24bit color escape sequences by changing background.
	Mode24bit
	// ModeNoColor draws without color escape sequences. Only makes sense
	// without blanks.
	ModeNoColor
	// ModeITerm draws using iTerm2's inline image escape sequences.
	//
	// https://www.iterm2.com/documentation-images.html
	ModeITerm
	// ModeRasTerm draws using the RasTerm library: kitty, iTerm or sixel,
	// whichever the terminal supports.
	ModeRasTerm
)

var modeNames = map[Mode]string{
	Mode256:     "256",
	Mode24bit:   "24bit",
	ModeNoColor: "nocolor",
	ModeITerm:   "iterm",
	ModeRasTerm: "rasterm",
}

func (m Mode) String() string {
	if n, ok := modeNames[m]; ok {
		return n
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode is the inverse of Mode.String.
func ParseMode(s string) (Mode, error) {
	for m, n := range modeNames {
		if n == s {
			return m, nil
		}
	}
	return 0, errors.Errorf("unknown print mode %q", s)
}

// Printer draws images on a terminal.
type Printer struct {
	// W defaults to os.Stdout.
	W      io.Writer
	Mode   Mode
	Blanks bool
	// Name is passed to iTerm along with the image.
	Name string
}

func (p *Printer) out() io.Writer {
	if p.W == nil {
		return os.Stdout
	}
	return p.W
}

// Print draws img.
func (p *Printer) Print(img image.Image) error {
	switch p.Mode {
	case Mode256, Mode24bit, ModeNoColor:
		return p.printText(img)
	case ModeITerm:
		return p.printITerm(img)
	case ModeRasTerm:
		return p.printRasTerm(img)
	}
	return errors.Errorf("unsupported print mode %v", p.Mode)
}

// Play draws the image returned by next every period, in place, until ctx is
// done or next returns nil. next receives the time since its previous call.
func (p *Printer) Play(ctx context.Context, period time.Duration, next func(dt time.Duration) image.Image) error {
	t := time.NewTicker(period)
	defer t.Stop()
	last := time.Now()
	var dt time.Duration
	for {
		img := next(dt)
		if img == nil {
			return nil
		}
		// Home the cursor and clear the screen.
		fmt.Fprint(p.out(), "\x1b[H\x1b[2J")
		if err := p.Print(img); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-t.C:
			dt = now.Sub(last)
			last = now
		}
	}
}

func (p *Printer) printText(img image.Image) error {
	w := &bytes.Buffer{}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			p.shade(w, img.At(x, y))
		}
		if p.Mode != ModeNoColor {
			w.WriteString("\x1b[0m")
		}
		w.WriteString("\n")
	}
	_, err := w.WriteTo(p.out())
	return err
}

func (p *Printer) shade(w *bytes.Buffer, col ic.Color) {
	cR, cG, cB, cA := col.RGBA()
	if cA == 0 {
		if p.Mode == ModeNoColor {
			w.WriteString("  ")
		} else {
			w.WriteString("\x1b[0m  ")
		}
		return
	}

	cell := "  "
	if !p.Blanks {
		a := ((cR + cG + cB) / 3) >> 8
		switch {
		case a < 32:
			cell = ".."
		case a < 64:
			cell = "--"
		case a < 128:
			cell = "=="
		default:
			cell = "##"
		}
	}

	r, g, bl := uint8(cR>>8), uint8(cG>>8), uint8(cB>>8)
	switch p.Mode {
	case ModeNoColor:
		w.WriteString(cell)
	case Mode24bit:
		fmt.Fprintf(w, "\x1b[48;2;%d;%d;%dm%s\x1b[0m", r, g, bl, cell)
	default:
		w.WriteString(color.RGB(r, g, bl, true).Sprint(cell))
	}
}

func (p *Printer) printITerm(img image.Image) error {
	if !isTermItermWez() {
		return errors.New("terminal does not look like iTerm")
	}
	name := base64.StdEncoding.EncodeToString([]byte(p.Name))
	b := &bytes.Buffer{}
	bEnc := base64.NewEncoder(base64.StdEncoding, b)
	if err := png.Encode(bEnc, img); err != nil {
		return errors.Wrap(err, "encoding png for iterm")
	}
	bEnc.Close()
	_, err := fmt.Fprintf(p.out(), "\n\033]1337;File=name=%s;inline=1;size=%d,width=%dpx;height=%dpx:%s\a\n", name, b.Len(), img.Bounds().Size().X, img.Bounds().Size().Y, b.String())
	return err
}
