package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel 是配置变更消息使用的 Redis 频道。
const DefaultChannel = "config_changes"

// RedisBroker 通过 Redis Pub/Sub 在多个 API 进程之间转发事件。
type RedisBroker struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

// NewRedisBroker 构造 RedisBroker。
func NewRedisBroker(client *redis.Client, channel string, logger *slog.Logger) *RedisBroker {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisBroker{client: client, channel: channel, logger: logger}
}

// Channel 返回频道名。
func (b *RedisBroker) Channel() string { return b.channel }

// Publish 以 JSON 形式发布事件。
func (b *RedisBroker) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", b.channel, err)
	}
	return nil
}

// Subscribe 订阅频道，ctx 结束时关闭订阅与返回的 channel。
func (b *RedisBroker) Subscribe(ctx context.Context) (<-chan Event, error) {
	pubsub := b.client.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", b.channel, err)
	}

	out := make(chan Event, defaultHubBuffer)
	go func() {
		defer close(out)
		defer pubsub.Close()

		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					b.logger.Warn("discarding malformed change event",
						slog.String("channel", b.channel),
						slog.Any("error", err),
					)
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
