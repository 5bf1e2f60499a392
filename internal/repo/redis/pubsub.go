package redis

import (
	"context"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"
)

// EventBus is a thin fan-out channel between API instances.
type EventBus struct {
	client  *goredis.Client
	channel string
}

func NewEventBus(client *goredis.Client, channel string) *EventBus {
	if strings.TrimSpace(channel) == "" {
		channel = "chat:events"
	}
	return &EventBus{client: client, channel: channel}
}

func (b *EventBus) Publish(ctx context.Context, payload []byte) error {
	if b.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", b.channel, err)
	}
	return nil
}

// Subscribe delivers payloads to handle until ctx is cancelled.
func (b *EventBus) Subscribe(ctx context.Context, handle func([]byte)) error {
	if b.client == nil {
		return fmt.Errorf("redis client is nil")
	}

	sub := b.client.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handle([]byte(msg.Payload))
			}
		}
	}()

	return nil
}
