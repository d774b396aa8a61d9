package safety

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher 在屏蔽词文件变化时重新加载 Filter
// 监听的是父目录，保存时替换文件的编辑器也能触发
type Watcher struct {
	mu       sync.Mutex
	filter   *Filter
	path     string
	watcher  *fsnotify.Watcher
	logger   *zap.Logger
	debounce time.Duration
	reloads  int
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
}

// NewWatcher 为 path 创建 watcher，调用 Start 开始监听
func NewWatcher(filter *Filter, path string, logger *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		fw.Close()
		return nil, err
	}

	return &Watcher{
		filter:   filter,
		path:     abs,
		watcher:  fw,
		logger:   logger,
		debounce: 250 * time.Millisecond,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start 启动监听直到 ctx 取消或调用 Stop，不阻塞
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return err
	}

	go w.run(ctx)
	return nil
}

// Stop 结束监听并释放 fsnotify 句柄
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		w.watcher.Close()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		w.logger.Warn("close blocklist watcher", zap.Error(err))
	}
}

// Reloads 返回成功重新加载的次数
func (w *Watcher) Reloads() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloads
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	var pending <-chan time.Time
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
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.After(w.debounce)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("blocklist watcher error", zap.Error(err))
		case <-pending:
			pending = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	if err := w.filter.Reload(w.path); err != nil {
		w.logger.Warn("blocklist reload failed, keeping previous rules", zap.String("path", w.path), zap.Error(err))
		return
	}
	w.mu.Lock()
	w.reloads++
	w.mu.Unlock()
	w.logger.Info("blocklist reloaded", zap.String("path", w.path), zap.Int("patterns", w.filter.Size()))
}
