package websocket

import (
	"context"
	"fmt"
)

// RedisPublisher pushes a notification onto the recipient's Redis channel so
// whichever node holds their sockets can deliver it.
type RedisPublisher struct{}

func NewRedisPublisher() *RedisPublisher {
	return &RedisPublisher{}
}

func (p *RedisPublisher) PublishToUser(userID string, data []byte) error {
	if userID == "" {
		return fmt.Errorf("websocket publish: userID required")
	}
	if redisClient == nil {
		return fmt.Errorf("websocket publish: redis client not initialised")
	}

	if err := redisClient.Publish(context.Background(), userChannel(userID), string(data)).Err(); err != nil {
		return fmt.Errorf("websocket publish: redis publish: %w", err)
	}
	return nil
}
