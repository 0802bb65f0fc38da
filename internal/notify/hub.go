package notify

import (
	"context"
	"log/slog"
	"sync"
)

const defaultHubBuffer = 16

// Hub 是进程内的事件广播器，未启用 Redis 时替代其 Pub/Sub。
// 订阅者消费过慢时事件会被丢弃，而不会阻塞发布方。
type Hub struct {
	mu     sync.RWMutex
	subs   map[chan Event]struct{}
	buffer int
	logger *slog.Logger
}

// NewHub 创建 Hub。
func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = defaultHubBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:   make(map[chan Event]struct{}),
		buffer: buffer,
		logger: logger,
	}
}

// Publish 向所有订阅者广播事件。
func (h *Hub) Publish(_ context.Context, event Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs {
		select {
		case ch <- event:
		default:
			h.logger.Warn("dropping event for slow subscriber", slog.String("type", string(event.Type)))
		}
	}
	return nil
}

// Subscribe 注册订阅者，ctx 结束后自动注销并关闭 channel。
func (h *Hub) Subscribe(ctx context.Context) (<-chan Event, error) {
	ch := make(chan Event, h.buffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}

// Subscribers 返回当前订阅者数量。
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
