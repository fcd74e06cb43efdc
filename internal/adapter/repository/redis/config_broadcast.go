package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// ConfigBroadcast implements domain.ConfigBroadcast over a Redis pub/sub
// channel carrying JSON connection-config payloads.
type ConfigBroadcast struct {
	client  *redis.Client
	logger  *slog.Logger
	channel string
	sub     *redis.PubSub
}

// NewConfigBroadcast creates a subscriber for the named broadcast channel.
func NewConfigBroadcast(client *redis.Client, logger *slog.Logger, channel string) *ConfigBroadcast {
	return &ConfigBroadcast{
		client:  client,
		logger:  logger.With("component", "config_broadcast"),
		channel: channel,
	}
}

// Subscribe establishes the subscription and returns a channel of raw
// payloads. The channel is closed when the subscription ends.
func (b *ConfigBroadcast) Subscribe(ctx context.Context) (<-chan string, error) {
	sub := b.client.Subscribe(ctx, b.channel)

	// Confirm the subscription is live before handing back a channel.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("failed to subscribe to channel %s: %w", b.channel, err)
	}
	b.sub = sub

	out := make(chan string)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			select {
			case out <- msg.Payload:
			case <-ctx.Done():
				return
			}
		}
	}()

	b.logger.Info("subscribed to config broadcast channel", "channel", b.channel)
	return out, nil
}

// Close unsubscribes explicitly and releases the pub/sub connection, so no
// live subscription is leaked against the broker on shutdown.
func (b *ConfigBroadcast) Close() error {
	if b.sub == nil {
		return nil
	}
	if err := b.sub.Unsubscribe(context.Background(), b.channel); err != nil {
		b.logger.Warn("failed to unsubscribe from config broadcast channel", "error", err)
	}
	return b.sub.Close()
}
