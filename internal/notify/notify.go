// Package notify 把编辑协调器的变更通知分发给关心持久化写入的组件，
// 例如 WebSocket 上的浏览器、写入日志与异地备份队列。
package notify

import (
	"context"
	"errors"
	"time"

	"dashEditor/internal/history"
)

// EventType 事件类型。
type EventType string

const (
	EventSaved      EventType = "saved"
	EventSaveFailed EventType = "save_failed"
	EventReloaded   EventType = "reloaded"
)

// Event 描述一次持久化结果。Content 只在进程内传递，不会出现在线上消息中。
type Event struct {
	Type          EventType      `json:"type"`
	Origin        history.Origin `json:"origin,omitempty"`
	Description   string         `json:"description,omitempty"`
	Error         string         `json:"error,omitempty"`
	Revision      uint64         `json:"revision"`
	Timestamp     time.Time      `json:"timestamp"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Content       string         `json:"-"`
}

// Sink 接收事件。
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

// Source 提供事件订阅，ctx 结束时返回的 channel 会被关闭。
type Source interface {
	Subscribe(ctx context.Context) (<-chan Event, error)
}

// SinkFunc 将普通函数适配为 Sink。
type SinkFunc func(ctx context.Context, event Event) error

// Publish 实现 Sink。
func (f SinkFunc) Publish(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Multi 依次投递到所有 sink，单个失败不会影响其它 sink。
type Multi []Sink

// Publish 实现 Sink，返回聚合后的错误。
func (m Multi) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard 丢弃所有事件。
var Discard Sink = SinkFunc(func(context.Context, Event) error { return nil })
