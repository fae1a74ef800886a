package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicesotero/CoLab/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUser(username string, rooms ...domain.RoomName) *domain.User {
	return &domain.User{
		Username:     username,
		FirstName:    username,
		LastName:     "Test",
		PasswordHash: "$argon2id$fake",
		AllowedRooms: rooms,
		CreatedAt:    time.Now(),
	}
}

func TestUserRepository_CreateAndGet(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newUser("alice", "Geral")))

	got, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, []domain.RoomName{"Geral"}, got.AllowedRooms)

	assert.ErrorIs(t, repo.Create(ctx, newUser("alice")), domain.ErrUserExists)

	_, err = repo.GetByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

// The stored record must not alias slices held by the caller.
func TestUserRepository_Isolation(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	u := newUser("alice", "Geral")
	require.NoError(t, repo.Create(ctx, u))
	u.AllowedRooms[0] = "Hacked"

	got, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []domain.RoomName{"Geral"}, got.AllowedRooms)

	got.AllowedRooms = append(got.AllowedRooms, "Projetos")
	again, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, again.AllowedRooms, 1)
}

func TestUserRepository_Update(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newUser("alice", "Geral")))

	updated := newUser("alice", "Geral", "Projetos")
	updated.PhoneNumber = "+55 11 4002-8922"
	require.NoError(t, repo.Update(ctx, updated))

	got, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "+55 11 4002-8922", got.PhoneNumber)
	assert.Len(t, got.AllowedRooms, 2)

	assert.ErrorIs(t, repo.Update(ctx, newUser("ghost")), domain.ErrUserNotFound)
}

func TestUserRepository_AddPendingRequest(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newUser("alice", "Geral")))

	// Concurrent requests for the same room must collapse into one entry.
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, repo.AddPendingRequest(ctx, "alice", "Projetos"))
		}()
	}
	wg.Wait()

	got, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []domain.RoomName{"Projetos"}, got.PendingRequests)

	// An already allowed room never becomes pending.
	require.NoError(t, repo.AddPendingRequest(ctx, "alice", "Geral"))
	got, err = repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, got.PendingRequests, 1)

	assert.ErrorIs(t, repo.AddPendingRequest(ctx, "ghost", "Geral"), domain.ErrUserNotFound)
}

func TestUserRepository_DeleteAndList(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newUser("carol")))
	require.NoError(t, repo.Create(ctx, newUser("alice")))
	require.NoError(t, repo.Create(ctx, newUser("bob")))

	users, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "alice", users[0].Username)
	assert.Equal(t, "carol", users[2].Username)

	require.NoError(t, repo.Delete(ctx, "bob"))
	assert.ErrorIs(t, repo.Delete(ctx, "bob"), domain.ErrUserNotFound)

	users, err = repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}
