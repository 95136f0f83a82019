// Package watch rebuilds a project when its sources change.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/dosanma1/wheelforge/internal/logging"
)

// DefaultDebounce is how long the tree must stay quiet before a rebuild.
const DefaultDebounce = 500 * time.Millisecond

// DefaultIgnore lists path components that never trigger a rebuild.
var DefaultIgnore = []string{
	".git",
	".hg",
	".tox",
	".nox",
	".venv",
	"venv",
	"__pycache__",
	"build",
	"dist",
	"wheelhouse",
	"*.egg-info",
	"*.pyc",
	"*.pyd",
	"*.so",
	"*.whl",
	"*~",
	".*.swp",
}

// Config controls what a Watcher observes.
type Config struct {
	// Root is the project directory, watched recursively.
	Root string

	// Ignore holds glob patterns matched against each path component
	// relative to Root.
	Ignore []string

	// Debounce coalesces bursts of events into a single rebuild.
	Debounce time.Duration
}

// DefaultConfig watches root with the default ignore list plus extra.
func DefaultConfig(root string, extra ...string) *Config {
	return &Config{
		Root:     root,
		Ignore:   append(slices.Clone(DefaultIgnore), extra...),
		Debounce: DefaultDebounce,
	}
}

// ChangeFunc receives the sorted, Root-relative paths changed since the
// previous call.
type ChangeFunc func(ctx context.Context, changed []string)

// Watcher delivers debounced change batches for a directory tree.
type Watcher struct {
	config  *Config
	watcher *fsnotify.Watcher
	logger  *slog.Logger
}

// New creates a watcher and registers Root and every non-ignored
// subdirectory.
func New(config *Config) (*Watcher, error) {
	if config.Debounce <= 0 {
		config.Debounce = DefaultDebounce
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		config:  config,
		watcher: fsWatcher,
		logger:  logging.New("watch"),
	}
	if err := w.addRecursive(config.Root); err != nil {
		fsWatcher.Close()
		return nil, err
	}
	return w, nil
}

// Run blocks until ctx is cancelled, calling onChange once per quiet
// period. onChange runs on the Run goroutine; events that arrive while it
// runs are batched into the next call.
func (w *Watcher) Run(ctx context.Context, onChange ChangeFunc) error {
	defer w.watcher.Close()

	pending := make(map[string]struct{})
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			rel, ok := w.relevant(event)
			if !ok {
				continue
			}
			pending[rel] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.config.Debounce)
			} else {
				timer.Reset(w.config.Debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			clear(pending)
			slices.Sort(changed)

			w.logger.Debug("Change detected", slog.Int("files", len(changed)))
			onChange(ctx, changed)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Watch error", logging.Error(err))
		}
	}
}

// relevant filters an event and returns its Root-relative path. New
// directories are registered so their contents are observed too.
func (w *Watcher) relevant(event fsnotify.Event) (string, bool) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return "", false
	}

	rel, err := filepath.Rel(w.config.Root, event.Name)
	if err != nil || w.shouldIgnore(rel) {
		return "", false
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				w.logger.Warn("Failed to watch directory", logging.Dir(event.Name), logging.Error(err))
			}
		}
	}

	return filepath.ToSlash(rel), true
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.config.Root {
			if rel, err := filepath.Rel(w.config.Root, path); err == nil && w.shouldIgnore(rel) {
				return filepath.SkipDir
			}
		}
		return w.watcher.Add(path)
	})
}

// shouldIgnore reports whether any component of rel matches an ignore
// pattern.
func (w *Watcher) shouldIgnore(rel string) bool {
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if part == "" || part == "." {
			continue
		}
		for _, pattern := range w.config.Ignore {
			if matched, _ := doublestar.Match(pattern, part); matched {
				return true
			}
		}
	}
	return false
}
