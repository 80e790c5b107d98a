// Package watcher monitors a user's videos/ directory and enqueues a
// pending Job when a new video file appears, grounded on
// internal/daemon/config_watcher.go's fsnotify-watch-parent-directory +
// debounce-via-time.AfterFunc pattern.
package watcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/stubborncoder/vdocs/internal/verrors"
)

// videoExtensions is the set of file extensions treated as source videos.
var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".mkv": true, ".webm": true, ".avi": true,
}

// OnNewVideo is invoked once a newly-created video file has settled
// (survived the debounce window without further writes).
type OnNewVideo func(ctx context.Context, videoPath string) error

// Watcher watches one directory for new video files.
type Watcher struct {
	dir      string
	onNew    OnNewVideo
	debounce time.Duration

	fsw      *fsnotify.Watcher
	stopChan chan struct{}

	mu      sync.Mutex
	timers  map[string]*time.Timer
}

// New constructs a Watcher over dir. Call Start to begin watching.
func New(dir string, onNew OnNewVideo) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, verrors.DependencyErrorTerminal("fsnotify", err)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		fsw.Close()
		return nil, verrors.Internal("resolve watch directory", err)
	}
	return &Watcher{
		dir: absDir, onNew: onNew, debounce: 2 * time.Second,
		fsw: fsw, stopChan: make(chan struct{}), timers: make(map[string]*time.Timer),
	}, nil
}

// Start begins watching dir for new video files.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.fsw.Add(w.dir); err != nil {
		return verrors.IOError("watch videos directory", err)
	}
	slog.Info("watching videos directory", "dir", w.dir)
	go w.loop(ctx)
	return nil
}

// Stop stops watching and releases the underlying fsnotify handle.
func (w *Watcher) Stop() error {
	close(w.stopChan)
	if err := w.fsw.Close(); err != nil {
		return verrors.IOError("close video watcher", err)
	}
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !isVideoFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.debounceFile(ctx, event.Name)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Error("video watcher error", "error", err)
		}
	}
}

func isVideoFile(name string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(name))]
}

func (w *Watcher) debounceFile(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, exists := w.timers[path]; exists {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()

		if err := w.onNew(ctx, path); err != nil {
			slog.Error("failed to process new video", "path", path, "error", err)
		}
	})
}
