package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// debounceWindow coalesces the bursts of write events editors produce for a
// single save.
const debounceWindow = 500 * time.Millisecond

// Watcher reloads the config file on change and hands the parsed result to
// a callback. Parse failures keep the previous config in effect.
type Watcher struct {
	path string
	fw   *fsnotify.Watcher
	log  *zap.Logger

	mu      sync.Mutex
	stopped bool
	done    chan struct{}
}

// NewWatcher creates a watcher for path.
func NewWatcher(path string, log *zap.Logger) (*Watcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		path: path,
		fw:   fw,
		log:  log,
		done: make(chan struct{}),
	}, nil
}

// Watch starts monitoring. onReload runs on the watcher goroutine with each
// successfully parsed config. Watching the directory instead of the file
// survives the rename-on-save dance many editors do.
func (w *Watcher) Watch(onReload func(*Config)) error {
	dir := filepath.Dir(w.path)
	if err := w.fw.Add(dir); err != nil {
		return err
	}

	go func() {
		var timer *time.Timer
		for {
			select {
			case <-w.done:
				return
			case event, ok := <-w.fw.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(w.path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(debounceWindow, func() {
					cfg, err := Load(w.path)
					if err != nil {
						w.log.Warn("config reload failed, keeping previous config",
							zap.Error(err))
						return
					}
					w.log.Info("config reloaded", zap.String("path", w.path))
					onReload(cfg)
				})
			case err, ok := <-w.fw.Errors:
				if !ok {
					return
				}
				w.log.Warn("config watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.done)
	return w.fw.Close()
}
