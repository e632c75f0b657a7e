// Package watch turns filesystem activity under a source tree into "settle"
// notifications. A burst of writes, a rip finishing, a tag editor saving a
// whole album, collapses into one notification once the tree has been quiet
// for the debounce window.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the settle window used when none is given.
const DefaultDebounce = 2 * time.Second

// Watcher watches a directory tree recursively and reports, via Events,
// whenever changes have settled.
type Watcher struct {
	fsw           *fsnotify.Watcher
	root          string
	includeHidden bool
	window        time.Duration
	log           *slog.Logger
	events        chan struct{}
}

// New creates a watcher over root. Pass 0 for window to use DefaultDebounce.
func New(root string, window time.Duration, includeHidden bool, log *slog.Logger) (*Watcher, error) {
	if window <= 0 {
		window = DefaultDebounce
	}
	if log == nil {
		log = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fsw:           fsw,
		root:          root,
		includeHidden: includeHidden,
		window:        window,
		log:           log,
		events:        make(chan struct{}, 1),
	}
	if err := w.addRecursive(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Events returns the settle notification channel. The channel holds at most
// one pending notification; changes during a run coalesce into the next one.
func (w *Watcher) Events() <-chan struct{} {
	return w.events
}

// Run processes filesystem events until ctx is done or the watcher is
// closed. Directories created while running are picked up automatically.
func (w *Watcher) Run(ctx context.Context) {
	debounced := debounce.New(w.window)
	notify := func() {
		select {
		case w.events <- struct{}{}:
		default: // a notification is already pending
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if w.handle(ev) {
				debounced(notify)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", "error", err)
		}
	}
}

// Close stops the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// handle reports whether the event should count toward a settle
// notification, registering newly created directories along the way.
func (w *Watcher) handle(ev fsnotify.Event) bool {
	if w.hidden(ev.Name) {
		return false
	}

	if ev.Op.Has(fsnotify.Create) {
		// Watch new directories; a fresh album dir appears before the
		// files inside it do.
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(ev.Name); err == nil {
				w.log.Debug("watching new directory", "path", ev.Name)
			}
		}
	}

	return ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write) ||
		ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename)
}

// addRecursive registers path and every directory below it. Non-directories
// and paths that vanish mid-walk are ignored.
func (w *Watcher) addRecursive(path string) error {
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == path {
				return err
			}
			return nil // raced with a delete, or unreadable; skip
		}
		if !d.IsDir() {
			return nil
		}
		if w.hidden(p) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			w.log.Warn("cannot watch directory", "path", p, "error", err)
		}
		return nil
	})
}

// hidden reports whether any path component below the root starts with a
// dot, matching the scanner's rule.
func (w *Watcher) hidden(path string) bool {
	if w.includeHidden {
		return false
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if part == "" || part == "." || part == ".." {
			continue
		}
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
