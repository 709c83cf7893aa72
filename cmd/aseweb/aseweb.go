// Command aseweb serves a directory of Aseprite files over HTTP, rebuilding
// sprites as their files change.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"time"

	"badc0de.net/pkg/flagutil/v1"
	"github.com/golang/glog"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	_ "golang.org/x/net/trace"

	"badc0de.net/pkg/go-aseprite/atlas"
	"badc0de.net/pkg/go-aseprite/paths"
	"badc0de.net/pkg/go-aseprite/pipeline"
	"badc0de.net/pkg/go-aseprite/scene"
	"badc0de.net/pkg/go-aseprite/web"
)

var (
	listenAddress = flag.String("listen_address", ":8080", "http listen address for aseweb")
	pollPeriod    = flag.Duration("poll_period", time.Second, "how often to rescan sprite files where change notifications are unavailable")
	tickPeriod    = flag.Duration("tick_period", 16*time.Millisecond, "animation tick period")
	gzip          = flag.Bool("gzip", true, "whether to compress responses")

	spritesDir string
	scenePath  string
	atlasOpts  atlas.Options
)

func loadScene(ctx context.Context, p *pipeline.Pipeline) error {
	f, err := os.Open(scenePath)
	if err != nil {
		return err
	}
	defer f.Close()
	s, err := scene.Load(f)
	if err != nil {
		return err
	}
	if err := p.Preload(ctx, s.Sprites()...); err != nil {
		// Entities of broken sprites are spawned anyway and start playing
		// once the file is fixed.
		glog.Warningf("preloading scene sprites: %v", err)
	}
	ids, err := s.Apply(p)
	if err != nil {
		return err
	}
	glog.Infof("scene %s: spawned %d entities", scenePath, len(ids))
	return nil
}

func main() {
	paths.SetupSpritesDirFlag("sprites", "directory to serve sprites from", &spritesDir)
	paths.SetupFilePathFlag("scene.yaml", "scene", &scenePath)
	atlas.SetupFlags(&atlasOpts)
	flagutil.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opts := pipeline.DefaultOptions()
	opts.Atlas = atlasOpts
	dir := paths.Dir(spritesDir)
	p := pipeline.New(dir, atlas.NewMemoryStore(), opts)
	defer p.Close()

	if scenePath != "" {
		if err := loadScene(ctx, p); err != nil {
			glog.Fatalf("loading scene %s: %v", scenePath, err)
		}
	}

	go paths.NewWatcher(dir, p.Notify).Run(ctx, *pollPeriod)
	go p.Run(ctx, *tickPeriod)
	go func() {
		// Failures are already logged by the pipeline.
		for {
			select {
			case <-ctx.Done():
				return
			case <-p.Errors():
			}
		}
	}()

	r := mux.NewRouter()
	web.NewHandler(p).RegisterRoutes(r)
	r.HandleFunc("/sitemap.xml", sitemapHandler(p))
	r.PathPrefix("/debug/").Handler(http.DefaultServeMux)

	var h http.Handler = r
	if *gzip {
		h = handlers.CompressHandler(h)
	}
	srv := &http.Server{Addr: *listenAddress, Handler: handlers.CombinedLoggingHandler(os.Stderr, h)}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	glog.Infof("serving %s on %s", spritesDir, *listenAddress)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		glog.Fatal(err)
	}
}
