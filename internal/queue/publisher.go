package queue

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
)

// Publisher defines the interface for publishing event envelopes to a stream.
type Publisher interface {
	// Publish adds an envelope to the specified stream.
	// Returns the message ID assigned by Redis.
	Publish(ctx context.Context, stream string, envelope EventEnvelope) (messageID string, err error)
}

// RedisPublisher implements Publisher using Redis Streams.
type RedisPublisher struct {
	client *redis.Client
}

// NewPublisher creates a new Publisher backed by Redis Streams.
func NewPublisher(client *redis.Client) Publisher {
	return &RedisPublisher{client: client}
}

// Publish adds an envelope to the stream using XADD.
// Uses "*" so Redis auto-generates the message ID (timestamp-sequence).
func (p *RedisPublisher) Publish(ctx context.Context, stream string, envelope EventEnvelope) (string, error) {
	values, err := envelope.ToMap()
	if err != nil {
		log.Printf("[Publisher] Publish FAILED: stream=%s envelope=%s err=%v", stream, envelope.ID, err)
		return "", fmt.Errorf("serialize envelope: %w", err)
	}

	messageID, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: values,
	}).Result()

	if err != nil {
		log.Printf("[Publisher] Publish FAILED: stream=%s envelope=%s err=%v", stream, envelope.ID, err)
		return "", fmt.Errorf("xadd to stream: %w", err)
	}

	log.Printf("[Publisher] Publish OK: stream=%s envelope=%s msgID=%s", stream, envelope.ID, messageID)
	return messageID, nil
}
