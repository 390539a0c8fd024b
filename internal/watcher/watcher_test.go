package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/hotwatch/internal/types"
)

func TestDebouncerCollapsesBurstIntoOneFlush(t *testing.T) {
	var flushes int
	var lastBatch []rawEvent
	d := newDebouncer(20*time.Millisecond, func(batch []rawEvent) {
		flushes++
		lastBatch = append([]rawEvent(nil), batch...)
	})

	d.add(rawEvent{kind: types.WatcherChanged, path: "/a"})
	d.add(rawEvent{kind: types.WatcherChanged, path: "/a"})
	d.add(rawEvent{kind: types.WatcherChanged, path: "/a"})

	time.Sleep(60 * time.Millisecond)

	assert.Equal(t, 1, flushes)
	require.Len(t, lastBatch, 1)
	assert.Equal(t, "/a", lastBatch[0].path)
}

func TestStartEmitsChangedEventForWrittenFile(t *testing.T) {
	dir := t.TempDir()
	w, err := New(10 * time.Millisecond)
	require.NoError(t, err)
	defer w.Stop()

	events := make(chan string, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, w.Start(ctx, dir, func(kind types.WatcherEventKind, path string) {
		events <- path
	}, func(error) {}))

	target := filepath.Join(dir, "file.elm")
	require.NoError(t, os.WriteFile(target, []byte("module A exposing (..)"), 0o644))

	select {
	case p := <-events:
		assert.Equal(t, target, p)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for watcher event")
	}
}

func TestNoGitFilterExcludesDotGit(t *testing.T) {
	assert.False(t, NoGitFilter(filepath.Join("repo", ".git", "HEAD")))
	assert.True(t, NoGitFilter(filepath.Join("repo", "src", "A.elm")))
}
