package ports

// Watcher monitors a drop directory for search-engine result files.
// The adapter (fsnotify) must filter out non-result files and settle
// write bursts before invoking onChange, so a file still being copied
// in does not trigger a half-file import. Only one Watch call should
// be active at a time.
type Watcher interface {
	// Watch starts monitoring dir. onChange is called with the absolute
	// path of each new or rewritten result file once its writes settle.
	// The callback may be invoked from any goroutine.
	Watch(dir string, onChange func(path string)) error

	// Stop ends monitoring and releases all resources. After Stop returns,
	// no further onChange calls will fire. Safe to call multiple times.
	Stop() error
}
