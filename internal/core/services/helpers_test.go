package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicesotero/CoLab/internal/core/domain"
	"github.com/alicesotero/CoLab/internal/core/ports"
	"github.com/alicesotero/CoLab/internal/infrastructure/repositories/memory"
	"github.com/alicesotero/CoLab/pkg/auth"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeConn records every frame pushed to a session.
type fakeConn struct {
	mu     sync.Mutex
	frames []recordedFrame
	closed bool
}

type recordedFrame struct {
	Event   string
	Payload interface{}
}

func (c *fakeConn) Send(event string, payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("connection closed")
	}
	c.frames = append(c.frames, recordedFrame{Event: event, Payload: payload})
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) events() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.frames))
	for i, f := range c.frames {
		out[i] = f.Event
	}
	return out
}

func (c *fakeConn) countEvent(event string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, f := range c.frames {
		if f.Event == event {
			n++
		}
	}
	return n
}

func (c *fakeConn) lastPayload(event string) interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.frames) - 1; i >= 0; i-- {
		if c.frames[i].Event == event {
			return c.frames[i].Payload
		}
	}
	return nil
}

var testRooms = []domain.RoomName{"Geral", "Dúvidas", "Projetos"}

// brokerStack bundles the fully wired coordinator services over in-memory
// adapters.
type brokerStack struct {
	users     ports.UserRepository
	history   ports.MessageRepository
	directory *RoomDirectory
	relay     *SignalingRelay
	registry  *SessionRegistry
	router    *MessageRouter
	admin     *AdminService
}

func newBrokerStack(t *testing.T) *brokerStack {
	t.Helper()
	log := zap.NewNop().Sugar()

	users := memory.NewMemoryUserRepository()
	history := memory.NewMemoryMessageRepository()

	directory := NewRoomDirectory(testRooms, users, history, 50, time.Second, log)
	relay := NewSignalingRelay(directory, log)
	directory.SetDepartureListener(relay)

	tokens := auth.NewTokenManager("test-secret", time.Hour)
	registry := NewSessionRegistry(users, directory, tokens, []domain.RoomName{"Geral"}, time.Second, log)
	router := NewMessageRouter(directory, history, time.Second, log)
	admin := NewAdminService(users, registry, time.Second, log)

	return &brokerStack{
		users:     users,
		history:   history,
		directory: directory,
		relay:     relay,
		registry:  registry,
		router:    router,
		admin:     admin,
	}
}

// addUser seeds an account with the given rooms directly in the store.
func (s *brokerStack) addUser(t *testing.T, username string, admin bool, allowed ...domain.RoomName) {
	t.Helper()
	hash, err := auth.HashPassword("password123")
	require.NoError(t, err)

	require.NoError(t, s.users.Create(context.Background(), &domain.User{
		Username:     username,
		FirstName:    username,
		LastName:     "Test",
		PasswordHash: hash,
		Admin:        admin,
		AllowedRooms: allowed,
		CreatedAt:    time.Now(),
	}))
}

// connect opens a session and authenticates it as username.
func (s *brokerStack) connect(t *testing.T, username string) (*domain.Session, *fakeConn) {
	t.Helper()
	conn := &fakeConn{}
	sess := s.registry.Register(conn)
	_, _, err := s.registry.Authenticate(context.Background(), sess, username, "password123")
	require.NoError(t, err)
	return sess, conn
}
