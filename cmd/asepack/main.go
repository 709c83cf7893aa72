// Command asepack packs every sprite below a directory and stores the
// atlases and animation metadata in a bbolt resource file.
package main

import (
	"context"
	"flag"
	"os"

	"badc0de.net/pkg/flagutil/v1"
	"github.com/golang/glog"
	"github.com/pkg/errors"

	"badc0de.net/pkg/go-aseprite/atlas"
	"badc0de.net/pkg/go-aseprite/paths"
	"badc0de.net/pkg/go-aseprite/pipeline"
	"badc0de.net/pkg/go-aseprite/resource"
)

var (
	spritesPath      string
	resourceFilePath string
	keepGoing        bool

	atlasOpts atlas.Options
)

func parseFlags() {
	paths.SetupSpritesDirFlag("sprites",
		"Path to the directory where sprite files are stored.", &spritesPath)
	flag.StringVar(&resourceFilePath, "out", "./sprites.res",
		"Resource file to store atlases and animations.")
	flag.BoolVar(&keepGoing, "keep_going", false,
		"Store the sprites that could be packed even if others fail.")
	atlas.SetupFlags(&atlasOpts)

	flagutil.Parse()
	flag.Set("logtostderr", "true")
}

func pack(ctx context.Context) error {
	dir := paths.Dir(spritesPath)
	names, err := dir.List()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return errors.Errorf("no sprites found in %s", spritesPath)
	}

	opts := pipeline.DefaultOptions()
	opts.Atlas = atlasOpts
	opts.ErrorBuffer = len(names)
	p := pipeline.New(dir, atlas.NewMemoryStore(), opts)
	defer p.Close()

	if err := p.Preload(ctx, names...); err != nil {
		if !keepGoing {
			return err
		}
		glog.Warningf("some sprites failed, storing the rest: %v", err)
	}

	res, err := resource.Open(resourceFilePath)
	if err != nil {
		return err
	}
	defer res.Close()

	for _, name := range p.Assets() {
		rd, _ := p.Asset(name)
		if err := res.Put(name, rd); err != nil {
			return errors.Wrapf(err, "storing %q", name)
		}
		glog.Infof("packed %s: %d frames, %d tags", name, rd.FrameCount(), len(rd.Info.Tags))
	}
	return nil
}

func main() {
	parseFlags()
	if err := pack(context.Background()); err != nil {
		glog.Errorf("%v", err)
		glog.Flush()
		os.Exit(1)
	}
}
