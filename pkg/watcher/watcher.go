// Package watcher reports settled changes to story modules, the story index
// and the configuration.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/grovetools/storyview/logging"
	"github.com/moby/patternmatcher"
	"github.com/sirupsen/logrus"
)

const defaultDebounce = 150 * time.Millisecond

// Change is one debounced batch of changes to preview sources.
type Change struct {
	// Modules are story modules that were written, created or removed,
	// relative to the watched root with forward slashes.
	Modules []string
	// Config is set when storyview.yml or one of its overrides changed.
	Config bool
	// Index is set when the external story index file changed.
	Index bool
}

// Empty reports whether nothing relevant changed.
func (c Change) Empty() bool {
	return len(c.Modules) == 0 && !c.Config && !c.Index
}

// Options select what a Watcher reports.
type Options struct {
	// Root is watched recursively; dot directories are skipped.
	Root string
	// Patterns select story modules under Root.
	Patterns []string
	// ConfigFiles and IndexFile are watched by exact path.
	ConfigFiles []string
	IndexFile   string
	Debounce    time.Duration
}

// Watcher watches the preview sources and reports changes in batches once
// writes have settled.
type Watcher struct {
	watcher  *fsnotify.Watcher
	opts     Options
	matcher  *patternmatcher.PatternMatcher
	exact    map[string]bool
	logger   *logrus.Entry
	onChange func(Change)

	mu      sync.Mutex
	pending Change
	modules map[string]bool
	timer   *time.Timer
	fire    chan struct{}
}

// New creates a watcher. onChange is called from Start's goroutine, one
// batch at a time.
func New(opts Options, onChange func(Change)) (*Watcher, error) {
	matcher, err := patternmatcher.New(opts.Patterns)
	if err != nil {
		return nil, err
	}
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher:  watcher,
		opts:     opts,
		matcher:  matcher,
		exact:    make(map[string]bool),
		logger:   logging.NewLogger("watcher"),
		onChange: onChange,
		modules:  make(map[string]bool),
		fire:     make(chan struct{}, 1),
	}

	if err := w.addTree(opts.Root); err != nil {
		watcher.Close()
		return nil, err
	}

	// fsnotify reports files through their directory, so exact files outside
	// the tree need their parent watched too.
	for _, f := range append(append([]string(nil), opts.ConfigFiles...), opts.IndexFile) {
		if f == "" {
			continue
		}
		abs, err := filepath.Abs(f)
		if err != nil {
			continue
		}
		w.exact[abs] = true
		if err := watcher.Add(filepath.Dir(abs)); err != nil {
			w.logger.WithError(err).Warnf("Failed to watch %s", filepath.Dir(abs))
		}
	}

	return w, nil
}

// addTree watches dir and every directory below it.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && skipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return err
		}
		w.logger.Debugf("Watching directory: %s", path)
		return nil
	})
}

func skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || name == "node_modules"
}

// Start delivers changes until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	defer w.stopTimer()
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.logger.Debugf("fsnotify event: %s op=%v", event.Name, event.Op)
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Errorf("Watcher error: %v", err)
		case <-w.fire:
			w.flush()
		case <-ctx.Done():
			w.watcher.Close()
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !skipDir(filepath.Base(event.Name)) {
			if err := w.addTree(event.Name); err != nil {
				w.logger.WithError(err).Warnf("Failed to watch new directory %s", event.Name)
			}
			return
		}
	}

	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	switch {
	case abs == w.absIndex():
		w.pending.Index = true
	case w.exact[abs]:
		w.pending.Config = true
	default:
		rel, ok := w.module(abs)
		if !ok {
			return
		}
		w.modules[rel] = true
	}

	// Trailing edge: every event pushes the batch back by the debounce window.
	if w.timer == nil {
		w.timer = time.AfterFunc(w.opts.Debounce, w.signal)
	} else {
		w.timer.Reset(w.opts.Debounce)
	}
}

func (w *Watcher) absIndex() string {
	if w.opts.IndexFile == "" {
		return ""
	}
	abs, _ := filepath.Abs(w.opts.IndexFile)
	return abs
}

// module reports the root-relative path of a story module.
func (w *Watcher) module(abs string) (string, bool) {
	root, err := filepath.Abs(w.opts.Root)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	matched, err := w.matcher.MatchesOrParentMatches(rel)
	if err != nil || !matched {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (w *Watcher) signal() {
	select {
	case w.fire <- struct{}{}:
	default:
	}
}

func (w *Watcher) flush() {
	w.mu.Lock()
	change := w.pending
	for m := range w.modules {
		change.Modules = append(change.Modules, m)
	}
	sort.Strings(change.Modules)
	w.pending = Change{}
	w.modules = make(map[string]bool)
	w.mu.Unlock()

	if change.Empty() {
		return
	}
	w.logger.WithFields(logrus.Fields{
		"modules": len(change.Modules),
		"config":  change.Config,
		"index":   change.Index,
	}).Info("Sources changed")
	if w.onChange != nil {
		w.onChange(change)
	}
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
