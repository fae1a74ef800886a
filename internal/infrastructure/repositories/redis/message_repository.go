package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alicesotero/CoLab/internal/core/domain"
	"github.com/alicesotero/CoLab/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// RedisMessageRepository keeps one Redis list per room in chronological
// order, trimmed to the retention window. The trim is the store's eviction
// policy; the coordinator itself never deletes messages.
type RedisMessageRepository struct {
	client    *redis.Client
	prefix    string
	retention int
}

func NewRedisMessageRepository(client *redis.Client, retention int) ports.MessageRepository {
	return &RedisMessageRepository{
		client:    client,
		prefix:    "colab:room:",
		retention: retention,
	}
}

func (r *RedisMessageRepository) historyKey(room domain.RoomName) string {
	return fmt.Sprintf("%s%s:messages", r.prefix, room)
}

func (r *RedisMessageRepository) Append(ctx context.Context, msg *domain.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	key := r.historyKey(msg.Room)
	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	if r.retention > 0 {
		pipe.LTrim(ctx, key, int64(-r.retention), -1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append message in Redis: %w", err)
	}
	return nil
}

func (r *RedisMessageRepository) RecentByRoom(ctx context.Context, room domain.RoomName, limit int) ([]*domain.Message, error) {
	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}

	raw, err := r.client.LRange(ctx, r.historyKey(room), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history from Redis: %w", err)
	}

	messages := make([]*domain.Message, 0, len(raw))
	for _, item := range raw {
		var msg domain.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal message: %w", err)
		}
		messages = append(messages, &msg)
	}
	return messages, nil
}
