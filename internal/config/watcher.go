// Copyright 2026 The KrishiMitra Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// Watcher monitors the configuration file for changes and notifies
// subscribers with the freshly parsed configuration. Only tunables read
// through the snapshot are hot-reloadable; components constructed at startup
// keep their original settings.
type Watcher struct {
	mu          sync.RWMutex
	configPath  string
	config      *Config
	watcher     *fsnotify.Watcher
	callbacks   []func(*Config)
	lastModTime time.Time
	done        chan struct{}
	closeOnce   sync.Once
}

// NewWatcher loads the initial configuration from configPath and starts
// watching the file for write events.
func NewWatcher(configPath string) (*Watcher, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load initial config: %w", err)
	}

	info, err := os.Stat(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{
		configPath:  configPath,
		config:      cfg,
		watcher:     fw,
		lastModTime: info.ModTime(),
		done:        make(chan struct{}),
	}

	if err := fw.Add(configPath); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("failed to watch config file: %w", err)
	}

	go w.watchLoop()

	return w, nil
}

// Config returns the current configuration snapshot.
func (w *Watcher) Config() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}

// OnReload registers a callback invoked with the new configuration after a
// successful reload. Callbacks run on the watcher goroutine.
func (w *Watcher) OnReload(cb func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) {
				w.handleWrite()
			}
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				// Editors often replace the file; re-add once it reappears.
				time.Sleep(100 * time.Millisecond)
				if _, err := os.Stat(w.configPath); err == nil {
					if err := w.watcher.Add(w.configPath); err != nil {
						log.WithError(err).Warn("Failed to re-watch config file")
						continue
					}
					w.handleWrite()
				}
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.WithError(err).Warn("Config watcher error")
		}
	}
}

func (w *Watcher) handleWrite() {
	info, err := os.Stat(w.configPath)
	if err != nil {
		log.WithError(err).Warn("Failed to stat config file after change event")
		return
	}

	w.mu.RLock()
	unchanged := !info.ModTime().After(w.lastModTime)
	w.mu.RUnlock()
	if unchanged {
		return
	}

	cfg, err := LoadConfig(w.configPath)
	if err != nil {
		log.WithError(err).Warn("Ignoring config reload: file is invalid")
		return
	}

	w.mu.Lock()
	w.config = cfg
	w.lastModTime = info.ModTime()
	callbacks := make([]func(*Config), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	log.WithField("path", w.configPath).Info("Configuration reloaded")
	for _, cb := range callbacks {
		cb(cfg)
	}
}
