package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/ternarybob/arbor"

	"healix/internal/corpus"
)

// DefaultDebounce coalesces the burst of write events an editor or copy produces.
const DefaultDebounce = 750 * time.Millisecond

type fileOp int

const (
	opUpsert fileOp = iota
	opRemove
)

// FileHandler is what the watcher drives; Pipeline implements it.
type FileHandler interface {
	IngestFile(ctx context.Context, path string) (Report, error)
	RemoveFile(ctx context.Context, path string) error
}

// Watcher re-indexes supported files in a directory as they change.
type Watcher struct {
	handler  FileHandler
	debounce time.Duration
	logger   arbor.ILogger

	mu      sync.Mutex
	pending map[string]fileOp
	timer   *time.Timer
}

func NewWatcher(handler FileHandler, debounce time.Duration, logger arbor.ILogger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{handler: handler, debounce: debounce, logger: logger, pending: map[string]fileOp{}}
}

// Run watches dir until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context, dir string) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.logger.Info().Str("dir", dir).Msg("Watching for document changes")

	flush := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !corpus.Supported(filepath.Base(event.Name)) {
				continue
			}
			switch {
			case event.Op&fsnotify.Create == fsnotify.Create, event.Op&fsnotify.Write == fsnotify.Write:
				w.schedule(event.Name, opUpsert, flush)
			case event.Op&fsnotify.Remove == fsnotify.Remove, event.Op&fsnotify.Rename == fsnotify.Rename:
				w.schedule(event.Name, opRemove, flush)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("File watcher error")
		case <-flush:
			w.apply(ctx)
		}
	}
}

func (w *Watcher) schedule(path string, op fileOp, flush chan<- struct{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[path] = op
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case flush <- struct{}{}:
		default:
		}
	})
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

func (w *Watcher) take() map[string]fileOp {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := w.pending
	w.pending = map[string]fileOp{}
	return out
}

func (w *Watcher) apply(ctx context.Context) {
	for path, op := range w.take() {
		name := filepath.Base(path)
		switch op {
		case opRemove:
			if err := w.handler.RemoveFile(ctx, path); err != nil {
				w.logger.Error().Err(err).Str("file", name).Msg("Failed to remove file from index")
			}
		default:
			rep, err := w.handler.IngestFile(ctx, path)
			if err != nil {
				w.logger.Error().Err(err).Str("file", name).Msg("Failed to re-index file")
				continue
			}
			if len(rep.Failures) > 0 {
				w.logger.Warn().Str("file", name).Int("failures", len(rep.Failures)).Msg("File re-indexed with lost batches")
			}
		}
	}
}
