package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"videoDigest/config"
	"videoDigest/processors"
)

// Handler processes one discovered video file.
type Handler func(ctx context.Context, path string) error

// Watcher feeds newly created video files in a directory to a handler, a
// bounded number at a time.
type Watcher struct {
	dir         string
	handler     Handler
	settleDelay time.Duration
	sem         chan struct{}
	wg          sync.WaitGroup
}

func New(dir string, concurrency int, handler Handler) (*Watcher, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Watcher{
		dir:         dir,
		handler:     handler,
		settleDelay: 500 * time.Millisecond,
		sem:         make(chan struct{}, concurrency),
	}, nil
}

// Run watches until ctx is canceled, then waits for in-flight handlers.
// Files already present when the watch starts are handled first.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()
	if err := fsw.Add(w.dir); err != nil {
		return err
	}
	config.Log.WithField("dir", w.dir).Info("watching for new videos")

	entries, err := os.ReadDir(w.dir)
	if err == nil {
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			w.dispatch(ctx, filepath.Join(w.dir, e.Name()))
		}
	}

	for {
		select {
		case <-ctx.Done():
			w.wg.Wait()
			return ctx.Err()
		case event, ok := <-fsw.Events:
			if !ok {
				w.wg.Wait()
				return nil
			}
			if event.Op&fsnotify.Create == 0 {
				continue
			}
			w.dispatch(ctx, event.Name)
		case err, ok := <-fsw.Errors:
			if !ok {
				w.wg.Wait()
				return nil
			}
			config.Log.WithError(err).Warn("watch error")
		}
	}
}

func (w *Watcher) dispatch(ctx context.Context, path string) {
	if !processors.IsSupportedVideo(path) {
		return
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		// Let the producer finish writing before the file is read.
		select {
		case <-time.After(w.settleDelay):
		case <-ctx.Done():
			return
		}
		select {
		case w.sem <- struct{}{}:
			defer func() { <-w.sem }()
		case <-ctx.Done():
			return
		}

		log := config.Log.WithField("path", path)
		log.Info("processing discovered video")
		if err := w.handler(ctx, path); err != nil {
			log.WithError(err).Error("video processing failed")
			return
		}
		log.Info("video processed")
	}()
}
