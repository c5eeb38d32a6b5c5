package config

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/coophouse/iocore/pkg/log"
)

// Watcher notifies onChange whenever the watched database file is
// written, debounced so a burst of writes from one transaction (WAL
// checkpoint, multiple table updates) triggers a single reload.
type Watcher struct {
	path     string
	debounce time.Duration
	onChange func()

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher constructs a Watcher over path. Call Start to begin.
func NewWatcher(path string, debounce time.Duration, onChange func()) *Watcher {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{path: path, debounce: debounce, onChange: onChange}
}

// Start begins watching until ctx is canceled or Close is called.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(w.path); err != nil {
		fw.Close()
		return err
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer fw.Close()

		var timer *time.Timer
		for {
			select {
			case <-w.ctx.Done():
				return
			case ev, ok := <-fw.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if timer == nil {
					timer = time.AfterFunc(w.debounce, w.onChange)
				} else {
					timer.Reset(w.debounce)
				}
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				log.Logger.Errorw("config watcher error", "path", w.path, "error", err)
			}
		}
	}()
	return nil
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Close() error {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	return nil
}
