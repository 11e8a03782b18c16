package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/whookdev/inspector/internal/config"
	"github.com/whookdev/inspector/internal/models"
)

// RedisBroker is a Broker backed by Redis Pub/Sub, for deployments where
// viewers may be connected to a different node than the one that ingested
// the request. One channel per endpoint id.
type RedisBroker struct {
	cfg    *config.Config
	client *redis.Client
	logger *slog.Logger
}

// NewRedisBroker creates a Redis-backed broker. Call Start before use.
func NewRedisBroker(cfg *config.Config, logger *slog.Logger) (*RedisBroker, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	return &RedisBroker{
		cfg:    cfg,
		logger: logger.With("component", "redis_broker"),
	}, nil
}

// Start connects to Redis and verifies the connection.
func (b *RedisBroker) Start(ctx context.Context) error {
	b.client = redis.NewClient(&redis.Options{
		Addr: b.cfg.RedisURL,
	})

	if err := b.client.Ping(ctx).Err(); err != nil {
		b.logger.Error("failed to connect to redis", "error", err)
		return err
	}

	b.logger.Info("redis connection established", "addr", b.cfg.RedisURL)
	return nil
}

// Stop closes the Redis connection.
func (b *RedisBroker) Stop() error {
	if b.client != nil {
		if err := b.client.Close(); err != nil {
			b.logger.Error("failed to close redis connection", "error", err)
			return err
		}
		b.logger.Info("redis connection closed successfully")
	}
	return nil
}

func channelFor(endpointID string) string {
	return "captures:" + endpointID
}

// Publish sends the capture to the endpoint's channel.
func (b *RedisBroker) Publish(ctx context.Context, endpointID string, capture *models.CapturedRequest) error {
	payload, err := json.Marshal(capture)
	if err != nil {
		return fmt.Errorf("failed to encode capture: %w", err)
	}
	if err := b.client.Publish(ctx, channelFor(endpointID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish capture: %w", err)
	}
	return nil
}

// Subscribe opens a Redis subscription for the endpoint and decodes incoming
// payloads onto the subscription channel in arrival order.
func (b *RedisBroker) Subscribe(ctx context.Context, endpointID string) (*Subscription, error) {
	ps := b.client.Subscribe(ctx, channelFor(endpointID))

	// Wait for the subscription confirmation so no notification published
	// after Subscribe returns can be missed.
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("failed to subscribe to endpoint channel: %w", err)
	}

	out := make(chan *models.CapturedRequest, subscriberBuffer)
	go func() {
		defer close(out)
		for msg := range ps.Channel() {
			var capture models.CapturedRequest
			if err := json.Unmarshal([]byte(msg.Payload), &capture); err != nil {
				b.logger.Error("failed to decode capture notification",
					"endpoint_id", endpointID,
					"error", err,
				)
				continue
			}
			select {
			case out <- &capture:
			default:
				b.logger.Warn("subscriber buffer full, dropping notification",
					"endpoint_id", endpointID,
				)
			}
		}
	}()

	return &Subscription{
		C:      out,
		cancel: func() { ps.Close() },
	}, nil
}
