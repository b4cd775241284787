package encloop

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/snadrus/encloop/internal/paths"
)

// watcher wakes the loop out of its idle sleep when something changes under
// the roots. Events are debounced: C fires once the tree has been quiet for
// the settle period, so a file being copied in does not trigger a rescan per
// write.
type watcher struct {
	fsw    *fsnotify.Watcher
	log    zerolog.Logger
	settle time.Duration

	C chan struct{}

	mu    sync.Mutex
	timer *time.Timer

	done chan struct{}
	wg   sync.WaitGroup
}

func newWatcher(roots []string, settle time.Duration, log zerolog.Logger) (*watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &watcher{
		fsw:    fsw,
		log:    log,
		settle: settle,
		C:      make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			continue
		}
		if !info.IsDir() {
			root = filepath.Dir(root)
		}
		w.addTree(root)
	}

	w.wg.Add(1)
	go w.run()
	return w, nil
}

// addTree watches dir and every non-hidden directory below it. fsnotify is
// not recursive.
func (w *watcher) addTree(dir string) {
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			w.log.Debug().Err(err).Str("path", p).Msg("watch: cannot access")
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && paths.IsHidden(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			w.log.Warn().Err(err).Str("path", p).Msg("watch: cannot add directory")
		}
		return nil
	})
}

func (w *watcher) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("watch error")
		}
	}
}

func (w *watcher) handle(ev fsnotify.Event) {
	// Markers and the history log are our own writes.
	if name := filepath.Base(ev.Name); paths.IsHidden(name) || paths.IsMarker(name) {
		return
	}
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
		return
	}
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			w.addTree(ev.Name)
		}
	}
	w.log.Debug().Str("path", ev.Name).Str("op", ev.Op.String()).Msg("change detected")

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.settle, w.fire)
}

func (w *watcher) fire() {
	select {
	case w.C <- struct{}{}:
	default:
	}
}

// drain discards a pending wake-up; the scan about to run covers it.
func (w *watcher) drain() {
	if w == nil {
		return
	}
	select {
	case <-w.C:
	default:
	}
}

func (w *watcher) Close() error {
	close(w.done)
	err := w.fsw.Close()
	w.wg.Wait()

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return err
}
