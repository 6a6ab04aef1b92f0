package library

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/lbx/internal/shared"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the settle period used when none is configured.
const DefaultDebounce = 5 * time.Second

// Watcher monitors a directory tree for audio file changes and calls onChange once events settle.
//
// Calls never overlap; changes seen while a call runs queue at most one more call.
type Watcher struct {
	root     string
	debounce time.Duration
	onChange func(ctx context.Context)
	logger   *log.Logger

	fsw     *fsnotify.Watcher
	mu      sync.Mutex
	timer   *time.Timer
	trigger chan struct{}
}

// NewWatcher creates a Watcher for root. Pass 0 for debounce to use [DefaultDebounce].
func NewWatcher(root string, debounce time.Duration, onChange func(ctx context.Context), logger *log.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Watcher{
		root:     shared.ExpandHome(root),
		debounce: debounce,
		onChange: onChange,
		logger:   logger,
		trigger:  make(chan struct{}, 1),
	}
}

// Run watches until ctx is done. It returns an error only when watching cannot start.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	w.fsw = fsw
	defer fsw.Close()

	if err := w.addRecursive(w.root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.root, err)
	}
	w.logger.Info("Watching library", "root", w.root, "debounce", w.debounce)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.worker(ctx)
	}()

	defer func() {
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
			w.timer = nil
		}
		w.mu.Unlock()
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("Watcher error", "error", err)
		}
	}
}

func (w *Watcher) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.trigger:
			w.logger.Info("Library changed, rescanning", "root", w.root)
			w.onChange(ctx)
		}
	}
}

func (w *Watcher) addRecursive(root string) error {
	if _, err := os.Stat(root); err != nil {
		return err
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if watchErr := w.fsw.Add(path); watchErr != nil {
				w.logger.Warn("Cannot watch directory", "path", path, "error", watchErr)
			}
		}
		return nil
	})
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.addRecursive(event.Name)
			w.schedule()
			return
		}
	}

	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Write) {
		return
	}
	if !IsAudioFile(event.Name) {
		return
	}
	w.schedule()
}

// schedule restarts the debounce timer.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Reset(w.debounce)
		return
	}

	w.timer = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		w.timer = nil
		w.mu.Unlock()

		select {
		case w.trigger <- struct{}{}:
		default:
		}
	})
}
