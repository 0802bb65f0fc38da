package editor

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultWatchDebounce = 200 * time.Millisecond

// Reloader 由 Coordinator 实现。
type Reloader interface {
	Reload(ctx context.Context) (bool, error)
}

// Watcher 监听配置文件所在目录，在文件被外部修改后触发 Reload。
// 监听目录而不是文件本身，原子替换产生的新 inode 才能被持续观察到。
type Watcher struct {
	target   string
	reloader Reloader
	debounce time.Duration
	logger   *slog.Logger

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher 创建 Watcher。
func NewWatcher(path string, reloader Reloader, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	if debounce <= 0 {
		debounce = defaultWatchDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		target:   filepath.Clean(abs),
		reloader: reloader,
		debounce: debounce,
		logger:   logger,
	}, nil
}

// Run 阻塞直到 ctx 结束。
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(w.target)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.logger.Info("watching configuration for external changes", slog.String("path", w.target))

	fire := make(chan struct{}, 1)
	defer w.stopTimer()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.schedule(fire)

		case <-fire:
			changed, err := w.reloader.Reload(ctx)
			if err != nil {
				w.logger.Warn("failed to reload configuration", slog.Any("error", err))
				continue
			}
			if changed {
				w.logger.Info("configuration reloaded after external change")
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("filesystem watcher error", slog.Any("error", err))
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.target {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}

func (w *Watcher) schedule(fire chan<- struct{}) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case fire <- struct{}{}:
		default:
		}
	})
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}
