package ports

import (
	"context"

	"github.com/alicesotero/CoLab/internal/core/domain"
)

// UserRepository is the externally-owned permission store. The coordinator
// treats every call as potentially slow I/O.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	Delete(ctx context.Context, username string) error
	List(ctx context.Context) ([]*domain.User, error)

	// AddPendingRequest atomically appends room to the user's
	// pending-request set. Rooms already allowed or already pending are a
	// no-op, so concurrent requests never duplicate an entry.
	AddPendingRequest(ctx context.Context, username string, room domain.RoomName) error
}

// MessageRepository is the externally-owned message history store.
// RecentByRoom returns at most limit messages for the room, oldest first.
type MessageRepository interface {
	Append(ctx context.Context, msg *domain.Message) error
	RecentByRoom(ctx context.Context, room domain.RoomName, limit int) ([]*domain.Message, error)
}
