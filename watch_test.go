package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigWatcher_NotifiesOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`log_level = "info"`), 0o644))

	changed := make(chan struct{}, 8)
	w, err := newConfigWatcher(path, func() { changed <- struct{}{} })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go w.run(ctx)
	defer func() {
		cancel()
		<-w.done()
	}()

	// Unrelated files in the same directory are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.toml"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte(`log_level = "debug"`), 0o644))

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("no change notification")
	}
}

func TestConfigWatcher_MissingDirectory(t *testing.T) {
	_, err := newConfigWatcher(filepath.Join(t.TempDir(), "nope", "config.toml"), func() {})
	assert.Error(t, err)
}
