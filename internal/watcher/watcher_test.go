package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_DetectsNewVideoAfterDebounce(t *testing.T) {
	dir := t.TempDir()
	seen := make(chan string, 1)

	w, err := New(dir, func(ctx context.Context, path string) error {
		seen <- path
		return nil
	})
	require.NoError(t, err)
	w.debounce = 50 * time.Millisecond
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	videoPath := filepath.Join(dir, "intro.mp4")
	require.NoError(t, os.WriteFile(videoPath, []byte("fake video bytes"), 0o640))

	select {
	case got := <-seen:
		assert.Equal(t, videoPath, got)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher never reported the new video")
	}
}

func TestWatcher_IgnoresNonVideoFiles(t *testing.T) {
	dir := t.TempDir()
	seen := make(chan string, 1)

	w, err := New(dir, func(ctx context.Context, path string) error {
		seen <- path
		return nil
	})
	require.NoError(t, err)
	w.debounce = 50 * time.Millisecond
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o640))

	select {
	case <-seen:
		t.Fatal("watcher should not report non-video files")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestIsVideoFile(t *testing.T) {
	assert.True(t, isVideoFile("/a/b/clip.MP4"))
	assert.True(t, isVideoFile("clip.mkv"))
	assert.False(t, isVideoFile("readme.md"))
}
