package main

import (
	"context"
	"fmt"
	"path/filepath"

	"holefill/logger"

	"github.com/fsnotify/fsnotify"
)

// configWatcher calls onChange whenever the config file is written or
// replaced. It watches the parent directory since editors usually save by
// renaming a temp file over the original.
type configWatcher struct {
	watcher  *fsnotify.Watcher
	path     string
	onChange func()
	doneCh   chan struct{}
}

func newConfigWatcher(path string, onChange func()) (*configWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}
	return &configWatcher{
		watcher:  watcher,
		path:     filepath.Clean(path),
		onChange: onChange,
		doneCh:   make(chan struct{}),
	}, nil
}

// run blocks until ctx is done or the watcher is closed
func (w *configWatcher) run(ctx context.Context) {
	defer close(w.doneCh)
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				logger.Debug("config: %s changed (%s)", w.path, event.Op)
				w.onChange()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("config watcher: %v", err)
		}
	}
}

// done is closed once run returns
func (w *configWatcher) done() <-chan struct{} {
	return w.doneCh
}
