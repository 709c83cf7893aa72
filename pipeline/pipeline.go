// Package pipeline loads sprite files, builds their atlases and animates the
// entities displaying them.
//
// Asset change notifications are queued with Notify from any goroutine. Each
// call to Tick starts decoding the notified files in the background, builds
// the atlases of the files decoded since the previous tick, and then
// advances the animation cursor of every entity.
package pipeline

import (
	"context"
	"io/ioutil"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"github.com/kamstrup/intmap"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"badc0de.net/pkg/go-aseprite/atlas"
	"badc0de.net/pkg/go-aseprite/sprite"
)

// Options configures a Pipeline.
type Options struct {
	Atlas atlas.Options
	// ErrorBuffer is the capacity of the Errors channel. Errors are dropped
	// when it is full.
	ErrorBuffer int
}

func DefaultOptions() Options {
	return Options{Atlas: atlas.DefaultOptions(), ErrorBuffer: 16}
}

type asset struct {
	name  string
	ready atomic.Pointer[sprite.Ready]
	// seq is the number of the most recently started load.
	seq uint64
}

type loaded struct {
	name    string
	seq     uint64
	decoded *sprite.Decoded
	err     error
}

// Pipeline owns a texture store, the assets built into it and the entities
// animated from them.
type Pipeline struct {
	src   Source
	store atlas.TextureStore
	opts  Options

	ctx    context.Context
	cancel context.CancelFunc
	loads  sync.WaitGroup
	errs   chan error

	mu       sync.Mutex
	pending  []Event
	done     []loaded
	seq      uint64
	assets   map[string]*asset
	entities *intmap.Map[EntityID, *entity]
	order    []EntityID
	nextID   EntityID
}

// New returns a pipeline loading sprite files from src into store.
func New(src Source, store atlas.TextureStore, opts Options) *Pipeline {
	if opts.ErrorBuffer <= 0 {
		opts.ErrorBuffer = DefaultOptions().ErrorBuffer
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pipeline{
		src:      src,
		store:    store,
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		errs:     make(chan error, opts.ErrorBuffer),
		assets:   make(map[string]*asset),
		entities: intmap.New[EntityID, *entity](64),
	}
}

// Errors returns the channel asset failures are reported on.
func (p *Pipeline) Errors() <-chan error {
	return p.errs
}

// Notify queues an asset change notification. It never blocks.
func (p *Pipeline) Notify(ev Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = append(p.pending, ev)
}

// Tick runs one frame: it starts loading notified assets, builds the ones
// that finished decoding, and advances every entity by dt.
func (p *Pipeline) Tick(dt time.Duration) {
	p.startLoads()
	p.buildLoaded()
	p.animate(dt)
}

// Wait blocks until all started loads have finished decoding. Their atlases
// are built by the next Tick.
func (p *Pipeline) Wait() {
	p.loads.Wait()
}

// Close cancels in-flight loads and waits for them.
func (p *Pipeline) Close() {
	p.cancel()
	p.loads.Wait()
}

// Run calls Tick every period until ctx is done, passing the time elapsed
// since the previous call.
func (p *Pipeline) Run(ctx context.Context, period time.Duration) error {
	t := time.NewTicker(period)
	defer t.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-t.C:
			p.Tick(now.Sub(last))
			last = now
		}
	}
}

// Preload loads and builds the named assets concurrently, outside of Tick.
// It returns the first failure; every failure is also reported on Errors.
// A failing asset does not stop the others from loading.
func (p *Pipeline) Preload(ctx context.Context, names ...string) error {
	var g errgroup.Group
	for _, name := range names {
		name := name
		a, seq := p.begin(name)
		g.Go(func() error {
			d, err := p.decode(ctx, name)
			if err == nil {
				err = p.install(a, seq, d)
			} else {
				p.fail(a, seq, err)
			}
			return err
		})
	}
	return g.Wait()
}

// Asset returns the built sprite called name.
func (p *Pipeline) Asset(name string) (*sprite.Ready, bool) {
	p.mu.Lock()
	a, ok := p.assets[name]
	p.mu.Unlock()
	if !ok {
		return nil, false
	}
	r := a.ready.Load()
	return r, r != nil
}

// Assets returns the names of the assets that are built, sorted.
func (p *Pipeline) Assets() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var names []string
	for name, a := range p.assets {
		if a.ready.Load() != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// begin registers a new load of name and returns its sequence number.
func (p *Pipeline) begin(name string) (*asset, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	a := p.assetLocked(name)
	p.seq++
	a.seq = p.seq
	return a, a.seq
}

func (p *Pipeline) assetLocked(name string) *asset {
	a, ok := p.assets[name]
	if !ok {
		a = &asset{name: name}
		p.assets[name] = a
	}
	return a
}

func (p *Pipeline) startLoads() {
	p.mu.Lock()
	events := p.pending
	p.pending = nil
	p.mu.Unlock()

	for _, ev := range events {
		switch ev.Kind {
		case Added, Modified:
			glog.V(1).Infof("pipeline: %s %q, loading", ev.Kind, ev.Name)
			_, seq := p.begin(ev.Name)
			p.loads.Add(1)
			go p.load(ev.Name, seq)
		default:
			glog.V(1).Infof("pipeline: ignoring %s %q", ev.Kind, ev.Name)
		}
	}
}

func (p *Pipeline) load(name string, seq uint64) {
	defer p.loads.Done()
	d, err := p.decode(p.ctx, name)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done = append(p.done, loaded{name: name, seq: seq, decoded: d, err: err})
}

func (p *Pipeline) decode(ctx context.Context, name string) (*sprite.Decoded, error) {
	rc, err := p.src.Open(ctx, name)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %q", name)
	}
	defer rc.Close()
	b, err := ioutil.ReadAll(rc)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %q", name)
	}
	return sprite.Decode(name, b)
}

func (p *Pipeline) buildLoaded() {
	p.mu.Lock()
	done := p.done
	p.done = nil
	p.mu.Unlock()

	for _, l := range done {
		p.mu.Lock()
		a := p.assetLocked(l.name)
		p.mu.Unlock()
		if l.err != nil {
			p.fail(a, l.seq, l.err)
			continue
		}
		p.install(a, l.seq, l.decoded)
	}
}

// install builds d and makes it the current version of a, unless a newer
// load of a was started meanwhile.
func (p *Pipeline) install(a *asset, seq uint64, d *sprite.Decoded) error {
	if p.stale(a, seq) {
		glog.V(1).Infof("pipeline: dropping stale load of %q", a.name)
		return nil
	}
	r, err := d.Build(p.store, p.opts.Atlas)
	if err != nil {
		p.fail(a, seq, err)
		return err
	}
	if old := a.ready.Swap(r); old != nil {
		old.Release(p.store)
	}
	glog.Infof("pipeline: %q ready, generation %d, %d frames", a.name, r.Generation, r.FrameCount())
	return nil
}

// fail reports err and leaves a without a built version.
func (p *Pipeline) fail(a *asset, seq uint64, err error) {
	if p.stale(a, seq) {
		return
	}
	if old := a.ready.Swap(nil); old != nil {
		old.Release(p.store)
	}
	p.report(errors.Wrapf(err, "loading %q", a.name))
}

func (p *Pipeline) stale(a *asset, seq uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return a.seq != seq
}

func (p *Pipeline) report(err error) {
	glog.Errorf("pipeline: %v", err)
	select {
	case p.errs <- err:
	default:
		glog.Warningf("pipeline: error channel full, dropping error")
	}
}
