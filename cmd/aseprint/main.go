// Command aseprint decodes an Aseprite file, packs it and prints the atlas,
// one frame, or a playing tag on the terminal.
//
//	aseprint hero.aseprite
//	aseprint -frame=2 -mode=256 hero.aseprite
//	aseprint -tag=walk https://example.com/sprites/hero.aseprite
//	aseprint -resource=sprites.res -tag=walk hero
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"io/ioutil"
	"os"
	"os/signal"
	"time"

	"badc0de.net/pkg/flagutil/v1"
	"github.com/common-nighthawk/go-figure"
	"github.com/golang/glog"
	"github.com/pkg/errors"

	"badc0de.net/pkg/go-aseprite/anim"
	"badc0de.net/pkg/go-aseprite/ase"
	"badc0de.net/pkg/go-aseprite/atlas"
	"badc0de.net/pkg/go-aseprite/imageprint"
	"badc0de.net/pkg/go-aseprite/paths"
	"badc0de.net/pkg/go-aseprite/resource"
	"badc0de.net/pkg/go-aseprite/sprite"
)

var (
	tagName      = flag.String("tag", "", "tag to play; empty prints the atlas or -frame")
	frameIdx     = flag.Int("frame", -1, "frame to print")
	mode         = flag.String("mode", "24bit", "print mode: 256, 24bit, nocolor, iterm or rasterm")
	blanks       = flag.Bool("blanks", true, "whether to just use colored blanks instead of some bad ascii art")
	downsize     = flag.Bool("downsize", true, "whether to shrink images to fit the terminal")
	banner       = flag.Bool("banner", true, "whether to print the tag name in big letters before playing")
	playFor      = flag.Duration("play_for", 0, "stop playing a looping tag after this long; 0 plays until interrupted")
	period       = flag.Duration("period", 50*time.Millisecond, "redraw period while playing")
	resourcePath = flag.String("resource", "", "read the sprite from this resource file instead of a sprite file")

	atlasOpts atlas.Options
)

// frames is what aseprint needs from a sprite, wherever it was loaded from.
type frames interface {
	anim.Timeline
	frame(i int) (image.Image, error)
	tag(name string) (ase.Tag, error)
	whole() image.Image
}

type readyFrames struct{ *sprite.Ready }

func (r readyFrames) frame(i int) (image.Image, error) { return r.FrameImage(i, nil) }
func (r readyFrames) tag(name string) (ase.Tag, error) { return r.Tag(name) }
func (r readyFrames) whole() image.Image { return r.Atlas.Image }

type recordFrames struct{ *resource.Record }

func (r recordFrames) frame(i int) (image.Image, error) { return r.Frame(i) }
func (r recordFrames) whole() image.Image { return r.Atlas }
func (r recordFrames) tag(name string) (ase.Tag, error) {
	t, ok := r.Tag(name)
	if !ok {
		var known []string
		for _, tm := range r.Tags {
			known = append(known, tm.Name)
		}
		return ase.Tag{}, &anim.UnknownTagError{Name: name, Known: known}
	}
	return t, nil
}

func readSprite(ctx context.Context, arg string) ([]byte, error) {
	if paths.IsURL(arg) {
		rc, err := paths.OpenURL(ctx, nil, arg)
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return ioutil.ReadAll(rc)
	}
	path := arg
	if _, err := os.Stat(path); err != nil {
		if found := paths.Find(arg); found != "" {
			path = found
		}
	}
	b, err := ioutil.ReadFile(path)
	return b, errors.Wrapf(err, "reading %s", arg)
}

func load(ctx context.Context, arg string) (frames, error) {
	if *resourcePath != "" {
		f, err := resource.Open(*resourcePath)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		rec, err := f.Get(arg)
		if err != nil {
			return nil, err
		}
		return recordFrames{rec}, nil
	}

	b, err := readSprite(ctx, arg)
	if err != nil {
		return nil, err
	}
	d, err := sprite.Decode(arg, b)
	if err != nil {
		return nil, err
	}
	rd, err := d.Build(atlas.NewMemoryStore(), atlasOpts)
	if err != nil {
		return nil, err
	}
	return readyFrames{rd}, nil
}

func play(ctx context.Context, p *imageprint.Printer, fr frames, tag ase.Tag) error {
	if *banner {
		figure.NewFigure(tag.Name, "", true).Print()
		fmt.Println()
		time.Sleep(time.Second)
	}
	if *playFor > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *playFor)
		defer cancel()
	}

	c := anim.NewCursor(tag)
	shownFinal := false
	err := p.Play(ctx, *period, func(dt time.Duration) image.Image {
		if shownFinal {
			return nil
		}
		c.Advance(dt, fr)
		shownFinal = c.Finished()
		img, err := fr.frame(c.Frame())
		if err != nil {
			glog.Errorf("frame %d: %v", c.Frame(), err)
			return nil
		}
		return fit(img, p.Mode)
	})
	if err == context.DeadlineExceeded || err == context.Canceled {
		return nil
	}
	return err
}

func run(ctx context.Context, arg string) error {
	m, err := imageprint.ParseMode(*mode)
	if err != nil {
		return err
	}
	p := &imageprint.Printer{Mode: m, Blanks: *blanks, Name: arg}

	fr, err := load(ctx, arg)
	if err != nil {
		return err
	}

	switch {
	case *tagName != "":
		tag, err := fr.tag(*tagName)
		if err != nil {
			return err
		}
		return play(ctx, p, fr, tag)
	case *frameIdx >= 0:
		img, err := fr.frame(*frameIdx)
		if err != nil {
			return err
		}
		return p.Print(fit(img, m))
	default:
		return p.Print(fit(fr.whole(), m))
	}
}

func main() {
	atlas.SetupFlags(&atlasOpts)
	flagutil.Parse()
	flag.Set("logtostderr", "true")

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <sprite file, url or resource name>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, flag.Arg(0)); err != nil {
		glog.Errorf("%v", err)
		glog.Flush()
		os.Exit(1)
	}
}
