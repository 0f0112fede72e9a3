// Package fsnotify implements the ports.Watcher interface using
// github.com/fsnotify/fsnotify. It watches a flat drop directory for
// search-engine result files and settles write bursts before firing:
// a file being copied in emits one event per write, but the import
// must only start once the writes stop.
package fsnotify

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settleDelay is how long a file must stay quiet before onChange fires.
const settleDelay = 200 * time.Millisecond

// Result file extensions the watcher reacts to.
var resultExts = map[string]bool{
	".tsv": true,
	".tab": true,
	".txt": true,
}

// Suffixes of in-flight or editor files that never trigger an import.
var ignoreSuffixes = []string{
	".part",
	".tmp",
	".crdownload",
	".swp",
	"~",
}

// Watcher implements ports.Watcher using fsnotify.
type Watcher struct {
	fw      *fsnotify.Watcher
	done    chan struct{}
	stopped bool
	mu      sync.Mutex

	timers map[string]*time.Timer
	tmu    sync.Mutex
}

// NewWatcher creates a new drop-directory watcher.
func NewWatcher() (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fw:     fw,
		done:   make(chan struct{}),
		timers: make(map[string]*time.Timer),
	}, nil
}

// Watch starts monitoring dir. onChange is called with the absolute path
// of each new or rewritten result file once its writes settle.
func (w *Watcher) Watch(dir string, onChange func(path string)) error {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	if err := w.fw.Add(absDir); err != nil {
		return err
	}

	go func() {
		for {
			select {
			case event, ok := <-w.fw.Events:
				if !ok {
					return
				}
				if !isResultFile(event.Name) {
					continue
				}
				// Remove and rename-away carry no new data to import.
				if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
					w.schedule(event.Name, onChange)
				}

			case _, ok := <-w.fw.Errors:
				if !ok {
					return
				}
				// Errors are swallowed — fsnotify recovers automatically

			case <-w.done:
				return
			}
		}
	}()

	return nil
}

// schedule arms (or re-arms) the settle timer for one file. The callback
// fires once the file has been quiet for settleDelay.
func (w *Watcher) schedule(path string, onChange func(string)) {
	w.tmu.Lock()
	defer w.tmu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Reset(settleDelay)
		return
	}

	var t *time.Timer
	t = time.AfterFunc(settleDelay, func() {
		w.tmu.Lock()
		// A reset racing this fire leaves the entry in place; only the
		// fire that still owns the entry reports the file.
		if w.timers[path] != t {
			w.tmu.Unlock()
			return
		}
		delete(w.timers, path)
		w.tmu.Unlock()

		w.mu.Lock()
		stopped := w.stopped
		w.mu.Unlock()
		if stopped {
			return
		}
		onChange(path)
	})
	w.timers[path] = t
}

// Stop ends monitoring and releases all resources.
// Safe to call multiple times.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	w.mu.Unlock()

	close(w.done)

	w.tmu.Lock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
	w.tmu.Unlock()

	return w.fw.Close()
}

// isResultFile reports whether the path names a completed result file.
func isResultFile(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	lower := strings.ToLower(base)
	for _, suffix := range ignoreSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return false
		}
	}
	return resultExts[filepath.Ext(lower)]
}
