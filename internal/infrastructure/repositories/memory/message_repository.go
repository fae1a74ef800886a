package memory

import (
	"context"
	"sync"

	"github.com/alicesotero/CoLab/internal/core/domain"
	"github.com/alicesotero/CoLab/internal/core/ports"
)

type MemoryMessageRepository struct {
	byRoom map[domain.RoomName][]*domain.Message
	mu     sync.RWMutex
}

func NewMemoryMessageRepository() ports.MessageRepository {
	return &MemoryMessageRepository{
		byRoom: make(map[domain.RoomName][]*domain.Message),
	}
}

func (r *MemoryMessageRepository) Append(ctx context.Context, msg *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *msg
	r.byRoom[msg.Room] = append(r.byRoom[msg.Room], &copied)
	return nil
}

// RecentByRoom returns the most recent limit messages, oldest first.
func (r *MemoryMessageRepository) RecentByRoom(ctx context.Context, room domain.RoomName, limit int) ([]*domain.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	history := r.byRoom[room]
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}

	out := make([]*domain.Message, 0, len(history))
	for _, msg := range history {
		copied := *msg
		out = append(out, &copied)
	}
	return out, nil
}
