package paths

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/golang/glog"
	"github.com/pkg/errors"

	"badc0de.net/pkg/go-aseprite/pipeline"
)

type stamp struct {
	mod  time.Time
	size int64
}

// Watcher reports sprite files below a Dir that appeared, changed or
// disappeared. Run follows filesystem notifications; Scan compares the
// directory against what was seen before, and is used alone where
// notifications are unavailable.
type Watcher struct {
	dir    Dir
	notify func(pipeline.Event)
	seen   map[string]stamp
}

// NewWatcher returns a watcher of dir calling notify for every change. The
// first Scan reports every existing sprite as Added.
func NewWatcher(dir Dir, notify func(pipeline.Event)) *Watcher {
	return &Watcher{dir: dir, notify: notify, seen: make(map[string]stamp)}
}

// Scan walks the directory once.
func (w *Watcher) Scan() error {
	names, err := w.dir.List()
	if err != nil {
		return err
	}
	current := make(map[string]stamp, len(names))
	for _, name := range names {
		s, ok := w.stat(name)
		if !ok {
			// Removed between listing and stat; the next scan reports it.
			continue
		}
		current[name] = s
		w.update(name, s)
	}
	for name := range w.seen {
		if _, ok := current[name]; !ok {
			w.notify(pipeline.Event{Kind: pipeline.Removed, Name: name})
		}
	}
	w.seen = current
	return nil
}

// Run reports changes until ctx is done. It watches every directory below
// the root with fsnotify. If that fails, for instance on filesystems
// without change notifications, it falls back to scanning every period.
func (w *Watcher) Run(ctx context.Context, period time.Duration) error {
	fw, err := fsnotify.NewWatcher()
	if err == nil {
		err = w.addDirs(fw, string(w.dir))
		if err != nil {
			fw.Close()
		}
	}
	if err != nil {
		glog.Warningf("paths: not watching %s (%v); scanning every %v", string(w.dir), err, period)
		return w.poll(ctx, period)
	}
	defer fw.Close()

	if err := w.Scan(); err != nil {
		glog.Errorf("paths: scanning %s: %v", string(w.dir), err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handle(fw, ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			glog.Errorf("paths: watching %s: %v", string(w.dir), err)
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				if err := w.Scan(); err != nil {
					glog.Errorf("paths: scanning %s: %v", string(w.dir), err)
				}
			}
		}
	}
}

func (w *Watcher) poll(ctx context.Context, period time.Duration) error {
	if err := w.Scan(); err != nil {
		glog.Errorf("paths: scanning %s: %v", string(w.dir), err)
	}
	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if err := w.Scan(); err != nil {
				glog.Errorf("paths: scanning %s: %v", string(w.dir), err)
			}
		}
	}
}

// handle turns one filesystem notification into pipeline events.
func (w *Watcher) handle(fw *fsnotify.Watcher, ev fsnotify.Event) {
	glog.V(2).Infof("paths: %v", ev)
	rel, err := filepath.Rel(string(w.dir), ev.Name)
	if err != nil {
		return
	}
	name := filepath.ToSlash(rel)

	if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		w.forget(name)
		return
	}
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}

	st, err := os.Stat(ev.Name)
	if err != nil {
		return
	}
	if st.IsDir() {
		// Files created before the new directory was watched are only
		// found by walking it.
		if err := w.addDirs(fw, ev.Name); err != nil {
			glog.Errorf("paths: watching %s: %v", ev.Name, err)
		}
		if err := w.Scan(); err != nil {
			glog.Errorf("paths: scanning %s: %v", string(w.dir), err)
		}
		return
	}
	if !IsSprite(name) {
		return
	}
	s := stamp{mod: st.ModTime(), size: st.Size()}
	w.update(name, s)
	w.seen[name] = s
}

// forget reports name, or every sprite below it if it was a directory, as
// removed.
func (w *Watcher) forget(name string) {
	prefix := name + "/"
	for n := range w.seen {
		if n == name || strings.HasPrefix(n, prefix) {
			delete(w.seen, n)
			w.notify(pipeline.Event{Kind: pipeline.Removed, Name: n})
		}
	}
}

// update reports name as Added or Modified if s differs from what was seen.
func (w *Watcher) update(name string, s stamp) {
	old, ok := w.seen[name]
	switch {
	case !ok:
		w.notify(pipeline.Event{Kind: pipeline.Added, Name: name})
	case !old.mod.Equal(s.mod) || old.size != s.size:
		w.notify(pipeline.Event{Kind: pipeline.Modified, Name: name})
	}
}

func (w *Watcher) stat(name string) (stamp, bool) {
	st, err := os.Stat(filepath.Join(string(w.dir), filepath.FromSlash(name)))
	if err != nil {
		return stamp{}, false
	}
	return stamp{mod: st.ModTime(), size: st.Size()}, true
}

// addDirs watches root and every directory below it.
func (w *Watcher) addDirs(fw *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if err := fw.Add(p); err != nil {
			return errors.Wrapf(err, "watching %s", p)
		}
		return nil
	})
}
