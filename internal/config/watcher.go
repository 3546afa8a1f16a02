package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"tasknerd/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the config file when it changes and hands the new
// config to subscribers. The parent directory is watched, not the file,
// so editors that save by rename are picked up.
type Watcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	path        string
	subscribers []func(*Config)
	pending     time.Time // zero when no reload is queued
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
	reloads     int
}

// NewWatcher creates a watcher for the config file at path.
func NewWatcher(path string) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		watcher.Close()
		return nil, err
	}
	return &Watcher{
		watcher:     watcher,
		path:        abs,
		debounceDur: 300 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Subscribe registers fn to run after every successful reload.
func (w *Watcher) Subscribe(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.subscribers = append(w.subscribers, fn)
}

// Start begins watching. Non-blocking.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return err
	}
	logging.Get(logging.CategoryConfig).Info("config watcher: watching %s", w.path)

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		logging.Get(logging.CategoryConfig).Error("config watcher: error closing watcher: %v", err)
	}
}

// Reloads returns how many reloads were delivered.
func (w *Watcher) Reloads() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloads
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryConfig).Error("config watcher error: %v", err)
		case <-ticker.C:
			w.processPending()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return
	}
	logging.Get(logging.CategoryConfig).Debug("config watcher: %s %s", event.Op, event.Name)

	w.mu.Lock()
	w.pending = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) processPending() {
	w.mu.Lock()
	if w.pending.IsZero() || time.Since(w.pending) < w.debounceDur {
		w.mu.Unlock()
		return
	}
	w.pending = time.Time{}
	subs := make([]func(*Config), len(w.subscribers))
	copy(subs, w.subscribers)
	w.mu.Unlock()

	cfg, err := Load(w.path)
	if err != nil {
		logging.Get(logging.CategoryConfig).Warn("config reload failed, keeping previous config: %v", err)
		return
	}

	for _, fn := range subs {
		fn(cfg)
	}

	w.mu.Lock()
	w.reloads++
	w.mu.Unlock()
	logging.Get(logging.CategoryConfig).Info("config reloaded from %s", w.path)
}
