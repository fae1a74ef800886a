package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/alicesotero/CoLab/internal/core/domain"
	"github.com/alicesotero/CoLab/internal/core/ports"
)

type MemoryUserRepository struct {
	users map[string]*domain.User
	mu    sync.RWMutex
}

func NewMemoryUserRepository() ports.UserRepository {
	return &MemoryUserRepository{
		users: make(map[string]*domain.User),
	}
}

func (r *MemoryUserRepository) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[user.Username]; exists {
		return domain.ErrUserExists
	}

	r.users[user.Username] = cloneUser(user)
	return nil
}

func (r *MemoryUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, exists := r.users[username]
	if !exists {
		return nil, domain.ErrUserNotFound
	}

	return cloneUser(user), nil
}

func (r *MemoryUserRepository) Update(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[user.Username]; !exists {
		return domain.ErrUserNotFound
	}

	r.users[user.Username] = cloneUser(user)
	return nil
}

func (r *MemoryUserRepository) Delete(ctx context.Context, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[username]; !exists {
		return domain.ErrUserNotFound
	}

	delete(r.users, username)
	return nil
}

func (r *MemoryUserRepository) AddPendingRequest(ctx context.Context, username string, room domain.RoomName) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, exists := r.users[username]
	if !exists {
		return domain.ErrUserNotFound
	}
	if domain.ContainsRoom(user.AllowedRooms, room) || domain.ContainsRoom(user.PendingRequests, room) {
		return nil
	}

	user.PendingRequests = append(user.PendingRequests, room)
	return nil
}

func (r *MemoryUserRepository) List(ctx context.Context) ([]*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]*domain.User, 0, len(r.users))
	for _, user := range r.users {
		users = append(users, cloneUser(user))
	}

	sort.Slice(users, func(i, j int) bool {
		return users[i].Username < users[j].Username
	})

	return users, nil
}

// cloneUser copies a record so callers cannot mutate the stored one.
func cloneUser(u *domain.User) *domain.User {
	c := *u
	c.AllowedRooms = append([]domain.RoomName(nil), u.AllowedRooms...)
	c.PendingRequests = append([]domain.RoomName(nil), u.PendingRequests...)
	return &c
}
