package loader

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// DefaultDebounceDelay coalesces editor save bursts into one reload
const DefaultDebounceDelay = 250 * time.Millisecond

// Watcher observes the settings file locations and calls onChange once per
// burst of changes
type Watcher struct {
	watcher  *fsnotify.Watcher
	files    map[string]struct{}
	delay    time.Duration
	onChange func(ctx context.Context)

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher creates a watcher for the given candidate files. Parent
// directories that do not exist are skipped.
func NewWatcher(candidates []ScannedFile, delay time.Duration, onChange func(ctx context.Context)) (*Watcher, error) {
	if delay <= 0 {
		delay = DefaultDebounceDelay
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher:  fsw,
		files:    make(map[string]struct{}),
		delay:    delay,
		onChange: onChange,
	}

	dirs := make(map[string]struct{})
	for _, c := range candidates {
		abs, err := filepath.Abs(c.Path)
		if err != nil {
			abs = c.Path
		}
		w.files[filepath.Clean(abs)] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}

	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			if errors.Is(err, fs.ErrNotExist) || os.IsPermission(err) {
				log.Debug().Str("dir", dir).Err(err).Msg("Skipping settings directory")
				continue
			}
			fsw.Close()
			return nil, err
		}
		log.Debug().Str("dir", dir).Msg("Watching settings directory")
	}

	return w, nil
}

// Run processes events until ctx is cancelled, then closes the watcher
func (w *Watcher) Run(ctx context.Context) {
	defer w.close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("Settings watcher error")
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if !w.matches(event.Name) {
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	log.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("Settings file changed")
	w.debounce(ctx)
}

func (w *Watcher) matches(path string) bool {
	if !isSettingsFile(path) {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	_, ok := w.files[filepath.Clean(abs)]
	return ok
}

// debounce resets the pending timer so only the last event of a burst fires
func (w *Watcher) debounce(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.delay, func() {
		if ctx.Err() != nil {
			return
		}
		w.onChange(ctx)
	})
}

func (w *Watcher) close() {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	w.watcher.Close()
}
