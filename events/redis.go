package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// RedisSink republishes bus events to Redis pub/sub channels so websocket
// frontends can fan them out to connected clients. Delivery is
// fire-and-forget: publish failures are logged and dropped, never surfaced
// to the engine.
type RedisSink struct {
	client *redis.Client
}

// NewRedisSink connects to Redis and verifies the connection
func NewRedisSink(ctx context.Context, redisURL string) (*RedisSink, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return &RedisSink{client: client}, nil
}

// Attach subscribes the sink to every event type on the bus
func (s *RedisSink) Attach(bus *Bus) {
	bus.SubscribeAll(s.handle)
}

func (s *RedisSink) handle(ctx context.Context, event Event) {
	payload, err := json.Marshal(map[string]any{
		"event": event.Type(),
		"data":  event,
	})
	if err != nil {
		log.WithFields(log.Fields{
			"eventType": event.Type(),
			"error":     err,
		}).Error("Failed to marshal event for Redis publish")
		return
	}

	if err := s.client.Publish(ctx, event.Channel(), payload).Err(); err != nil {
		log.WithFields(log.Fields{
			"eventType": event.Type(),
			"channel":   event.Channel(),
			"error":     err,
		}).Warn("Failed to publish event to Redis, dropping")
	}
}

// Close releases the Redis connection
func (s *RedisSink) Close() error {
	return s.client.Close()
}
