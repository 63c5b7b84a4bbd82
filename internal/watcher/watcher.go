// Package watcher monitors a directory for finished recordings and
// feeds them into the pipeline. A file is picked up once its size has
// been stable for the configured window, so half-written recordings are
// left alone.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/keagan/fragcannon/internal/config"
	"github.com/keagan/fragcannon/internal/pipeline"
	"github.com/keagan/fragcannon/pkg/util"
)

// ProcessFunc handles one stable video file.
type ProcessFunc func(ctx context.Context, path string) error

// Watcher picks up new recordings from a directory.
type Watcher struct {
	logger      zerolog.Logger
	cfg         config.WatcherConfig
	metadataDir string
	process     ProcessFunc

	mu   sync.Mutex
	seen map[string]struct{}
}

// New creates a watcher. metadataDir is consulted to skip files already
// processed in earlier runs unless Reprocess is set.
func New(logger zerolog.Logger, cfg config.WatcherConfig, metadataDir string, process ProcessFunc) *Watcher {
	return &Watcher{
		logger:      logger.With().Str("component", "watcher").Logger(),
		cfg:         cfg,
		metadataDir: metadataDir,
		process:     process,
		seen:        make(map[string]struct{}),
	}
}

// Run watches until the context is cancelled. Files process one at a
// time in arrival order.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := fsw.Add(w.cfg.Directory); err != nil {
		return err
	}
	w.logger.Info().Str("directory", w.cfg.Directory).Msg("watching for recordings")

	queue := make(chan string, 64)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for path := range queue {
			w.handle(ctx, path)
		}
	}()
	defer func() {
		close(queue)
		wg.Wait()
	}()

	if w.cfg.ProcessExisting {
		if err := w.enqueueExisting(ctx, queue); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !util.IsVideoFile(event.Name) {
				continue
			}
			if w.markSeen(event.Name) {
				select {
				case queue <- event.Name:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("watch error")
		}
	}
}

// markSeen returns true the first time a path is offered.
func (w *Watcher) markSeen(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.seen[path]; ok {
		return false
	}
	w.seen[path] = struct{}{}
	return true
}

func (w *Watcher) enqueueExisting(ctx context.Context, queue chan<- string) error {
	entries, err := os.ReadDir(w.cfg.Directory)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(w.cfg.Directory, entry.Name())
		if !util.IsVideoFile(path) {
			continue
		}
		if w.markSeen(path) {
			select {
			case queue <- path:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

func (w *Watcher) handle(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}
	log := w.logger.With().Str("file", filepath.Base(path)).Logger()

	if !w.cfg.Reprocess {
		done, err := pipeline.FindBySource(w.metadataDir, path)
		if err != nil {
			log.Warn().Err(err).Msg("metadata lookup failed, processing anyway")
		} else if done {
			log.Info().Msg("already processed, skipping")
			return
		}
	}

	if !w.waitStable(ctx, path) {
		log.Debug().Msg("file never stabilized, skipping")
		return
	}

	log.Info().Msg("recording stable, processing")
	if err := w.process(ctx, path); err != nil {
		log.Error().Err(err).Msg("processing failed")
		return
	}
	log.Info().Msg("recording processed")
}

// waitStable returns once two consecutive size checks, a stability
// window apart, agree on a non-empty size. Gives up after the file
// disappears or the context ends.
func (w *Watcher) waitStable(ctx context.Context, path string) bool {
	var lastSize int64 = -1
	for {
		info, err := os.Stat(path)
		if err != nil {
			return false
		}
		size := info.Size()
		if size > 0 && size == lastSize {
			return true
		}
		lastSize = size

		select {
		case <-ctx.Done():
			return false
		case <-time.After(w.cfg.StabilityWindow):
		}
	}
}
