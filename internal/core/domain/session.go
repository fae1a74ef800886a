package domain

import (
	"sync"
	"time"
)

// ConnID identifies one live connection.
type ConnID string

// Sender is the delivery port a session pushes events through. Implemented
// by the websocket transport; Send must not block on a slow consumer.
type Sender interface {
	Send(event string, payload interface{}) error
	Close() error
}

// Session is the ephemeral server-side state for one live connection. The
// identity fields are guarded by the session's own lock so that admin
// commands and the connection's handler goroutine can touch them without
// racing; room membership itself is owned by the room directory.
type Session struct {
	ID          ConnID
	Conn        Sender
	ConnectedAt time.Time

	mu       sync.RWMutex
	username string
	admin    bool
	room     RoomName
	allowed  []RoomName
}

func NewSession(id ConnID, conn Sender) *Session {
	return &Session{
		ID:          id,
		Conn:        conn,
		ConnectedAt: time.Now(),
	}
}

// SetIdentity installs the authenticated identity and the allowed-rooms
// snapshot taken from the user store.
func (s *Session) SetIdentity(username string, admin bool, allowed []RoomName) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.username = username
	s.admin = admin
	s.allowed = append([]RoomName(nil), allowed...)
}

// ClearIdentity resets the session to the unauthenticated state.
func (s *Session) ClearIdentity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.username = ""
	s.admin = false
	s.room = ""
	s.allowed = nil
}

func (s *Session) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username
}

func (s *Session) Authenticated() bool {
	return s.Username() != ""
}

func (s *Session) IsAdmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.admin
}

// CurrentRoom returns the room this session is a member of, or "" when it
// has not joined one.
func (s *Session) CurrentRoom() RoomName {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.room
}

func (s *Session) SetRoom(room RoomName) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.room = room
}

// Allowed reports whether the cached permission snapshot includes room.
func (s *Session) Allowed(room RoomName) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ContainsRoom(s.allowed, room)
}

// AllowedRooms returns a copy of the cached allowed-room set.
func (s *Session) AllowedRooms() []RoomName {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]RoomName(nil), s.allowed...)
}

// SetAllowedRooms replaces the cached permission snapshot.
func (s *Session) SetAllowedRooms(allowed []RoomName) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allowed = append([]RoomName(nil), allowed...)
}
