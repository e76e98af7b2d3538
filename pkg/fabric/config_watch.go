package fabric

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// configDebounce absorbs the burst of write events many editors and
// deployment tools emit for a single logical save.
const configDebounce = 250 * time.Millisecond

// ConfigWatcher watches a configuration file on disk and delivers freshly
// reloaded, validated Config values over Updates as the file changes. A
// reload that fails validation is reported on Errors and the previously
// loaded configuration is left in place.
type ConfigWatcher struct {
	watcher *fsnotify.Watcher
	path    string

	updates chan *Config
	errs    chan error

	cancel context.CancelFunc

	mu          sync.Mutex
	debounce    *time.Timer
}

// NewConfigWatcher starts watching the directory containing path for
// changes to path itself.
func NewConfigWatcher(path string) (*ConfigWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	cw := &ConfigWatcher{
		watcher: w,
		path:    filepath.Clean(path),
		updates: make(chan *Config, 1),
		errs:    make(chan error, 1),
		cancel:  cancel,
	}

	go cw.eventLoop(ctx)
	return cw, nil
}

// Updates delivers each successfully reloaded configuration.
func (cw *ConfigWatcher) Updates() <-chan *Config { return cw.updates }

// Errors delivers reload failures; the file on disk is left unused until
// it next changes.
func (cw *ConfigWatcher) Errors() <-chan error { return cw.errs }

func (cw *ConfigWatcher) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != cw.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cw.scheduleReload(ctx)
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			pkgLogger.WithField("path", cw.path).Warn("config watcher error: " + err.Error())
		}
	}
}

func (cw *ConfigWatcher) scheduleReload(ctx context.Context) {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.debounce != nil {
		cw.debounce.Stop()
	}
	cw.debounce = time.AfterFunc(configDebounce, func() {
		cfg, err := LoadConfig(cw.path)
		if err != nil {
			select {
			case cw.errs <- err:
			case <-ctx.Done():
			default:
			}
			return
		}
		select {
		case cw.updates <- cfg:
		case <-ctx.Done():
		default:
		}
	})
}

// Close stops watching and releases the underlying fsnotify watcher.
func (cw *ConfigWatcher) Close() error {
	cw.cancel()
	cw.mu.Lock()
	if cw.debounce != nil {
		cw.debounce.Stop()
	}
	cw.mu.Unlock()
	return cw.watcher.Close()
}
