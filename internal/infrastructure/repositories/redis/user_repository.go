package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/alicesotero/CoLab/internal/core/domain"
	"github.com/alicesotero/CoLab/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

const usernameIndexKey = "colab:users"

type RedisUserRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisUserRepository(client *redis.Client) ports.UserRepository {
	return &RedisUserRepository{
		client: client,
		prefix: "colab:user:",
	}
}

func (r *RedisUserRepository) userKey(username string) string {
	return r.prefix + username
}

func (r *RedisUserRepository) Create(ctx context.Context, user *domain.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	// SetNX keeps registration atomic: the first writer wins.
	ok, err := r.client.SetNX(ctx, r.userKey(user.Username), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to set user in Redis: %w", err)
	}
	if !ok {
		return domain.ErrUserExists
	}

	if err := r.client.SAdd(ctx, usernameIndexKey, user.Username).Err(); err != nil {
		return fmt.Errorf("failed to add user to index: %w", err)
	}
	return nil
}

func (r *RedisUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	data, err := r.client.Get(ctx, r.userKey(username)).Result()
	if err == redis.Nil {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user from Redis: %w", err)
	}

	var user domain.User
	if err := json.Unmarshal([]byte(data), &user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}
	return &user, nil
}

func (r *RedisUserRepository) Update(ctx context.Context, user *domain.User) error {
	if _, err := r.GetByUsername(ctx, user.Username); err != nil {
		return err
	}

	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	if err := r.client.Set(ctx, r.userKey(user.Username), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to update user in Redis: %w", err)
	}
	return nil
}

func (r *RedisUserRepository) Delete(ctx context.Context, username string) error {
	deleted, err := r.client.Del(ctx, r.userKey(username)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete user from Redis: %w", err)
	}
	if deleted == 0 {
		return domain.ErrUserNotFound
	}

	if err := r.client.SRem(ctx, usernameIndexKey, username).Err(); err != nil {
		return fmt.Errorf("failed to remove user from index: %w", err)
	}
	return nil
}

// pendingRequestRetries bounds the optimistic-lock loop below.
const pendingRequestRetries = 5

// AddPendingRequest appends the room under WATCH so a concurrent grant or
// second request never loses the write.
func (r *RedisUserRepository) AddPendingRequest(ctx context.Context, username string, room domain.RoomName) error {
	key := r.userKey(username)

	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Result()
		if err == redis.Nil {
			return domain.ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get user from Redis: %w", err)
		}

		var user domain.User
		if err := json.Unmarshal([]byte(data), &user); err != nil {
			return fmt.Errorf("failed to unmarshal user: %w", err)
		}
		if domain.ContainsRoom(user.AllowedRooms, room) || domain.ContainsRoom(user.PendingRequests, room) {
			return nil
		}
		user.PendingRequests = append(user.PendingRequests, room)

		updated, err := json.Marshal(&user)
		if err != nil {
			return fmt.Errorf("failed to marshal user: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			return nil
		})
		return err
	}

	for i := 0; i < pendingRequestRetries; i++ {
		err := r.client.Watch(ctx, txn, key)
		if err != redis.TxFailedErr {
			return err
		}
	}
	return fmt.Errorf("failed to queue access request for %s: too many concurrent updates", username)
}

func (r *RedisUserRepository) List(ctx context.Context) ([]*domain.User, error) {
	usernames, err := r.client.SMembers(ctx, usernameIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list usernames: %w", err)
	}
	sort.Strings(usernames)

	users := make([]*domain.User, 0, len(usernames))
	for _, username := range usernames {
		user, err := r.GetByUsername(ctx, username)
		if err == domain.ErrUserNotFound {
			// Index entry raced a delete; skip it.
			continue
		}
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}
