package services

import (
	"context"
	"sync"
	"time"

	"github.com/alicesotero/CoLab/internal/core/domain"
	"github.com/alicesotero/CoLab/internal/core/ports"
	"github.com/alicesotero/CoLab/pkg/tracing"

	"go.uber.org/zap"
)

// DepartureListener is notified whenever a session leaves a room, whether
// explicitly, by switching rooms, or through disconnect/permission
// revocation. The signaling relay uses it to synthesize call teardown.
type DepartureListener interface {
	SessionLeaving(sess *domain.Session, room domain.RoomName, remaining []*domain.Session)
}

// RoomDirectory maps room names to their active member sets. It is the
// fan-out unit for messages and the partner-discovery unit for signaling.
// Each room has its own lock; adapter I/O always happens outside of them so
// a slow history read never serializes unrelated rooms.
type RoomDirectory struct {
	users   ports.UserRepository
	history ports.MessageRepository
	window  int
	timeout time.Duration
	logger  *zap.SugaredLogger

	rooms    map[domain.RoomName]*roomState
	listener DepartureListener
}

type roomState struct {
	name    domain.RoomName
	mu      sync.Mutex
	members map[domain.ConnID]*domain.Session
}

func NewRoomDirectory(
	names []domain.RoomName,
	users ports.UserRepository,
	history ports.MessageRepository,
	window int,
	adapterTimeout time.Duration,
	logger *zap.SugaredLogger,
) *RoomDirectory {
	rooms := make(map[domain.RoomName]*roomState, len(names))
	for _, name := range names {
		rooms[name] = &roomState{
			name:    name,
			members: make(map[domain.ConnID]*domain.Session),
		}
	}
	return &RoomDirectory{
		users:   users,
		history: history,
		window:  window,
		timeout: adapterTimeout,
		logger:  logger,
		rooms:   rooms,
	}
}

// SetDepartureListener wires the signaling relay in after construction.
func (d *RoomDirectory) SetDepartureListener(l DepartureListener) {
	d.listener = l
}

// Rooms returns the fixed room set.
func (d *RoomDirectory) Rooms() []domain.RoomName {
	names := make([]domain.RoomName, 0, len(d.rooms))
	for name := range d.rooms {
		names = append(names, name)
	}
	return names
}

// Join moves the session into the named room and returns the history window
// for replay to the joining connection only. Joining the current room again
// is a no-op beyond re-sending history.
//
// The history snapshot is taken before membership is installed, so a post
// racing the join is delivered as a live broadcast only and never shows up
// twice.
func (d *RoomDirectory) Join(ctx context.Context, sess *domain.Session, room domain.RoomName) ([]*domain.Message, error) {
	st, ok := d.rooms[room]
	if !ok {
		return nil, domain.ErrUnknownRoom
	}
	if !sess.Allowed(room) {
		return nil, domain.ErrAccessDenied
	}

	hctx, cancel := adapterCtx(ctx, d.timeout)
	defer cancel()
	hctx, span := tracing.TraceAdapterCall(hctx, "history", "recent")
	history, err := d.history.RecentByRoom(hctx, room, d.window)
	if err != nil {
		tracing.RecordError(hctx, err)
		span.End()
		d.logger.Warnw("history query failed", "room", room, "error", err)
		return nil, mapAdapterErr(err)
	}
	span.End()

	prev := sess.CurrentRoom()
	if prev == room {
		return history, nil
	}
	if prev != "" {
		d.remove(sess, prev)
	}

	st.mu.Lock()
	st.members[sess.ID] = sess
	st.mu.Unlock()
	sess.SetRoom(room)

	// A revocation landing during the history read sees no current room
	// and cannot force the leave itself. Re-checking after membership is
	// visible closes the window: either this check observes the revoked
	// set, or the revocation observes the installed room and forces the
	// leave on its side.
	if !sess.Allowed(room) {
		sess.SetRoom("")
		d.remove(sess, room)
		return nil, domain.ErrAccessDenied
	}

	d.logger.Infow("session joined room",
		"username", sess.Username(),
		"room", room,
		"history", len(history),
	)
	return history, nil
}

// Leave removes the session from its current room. No-op when the session
// is not in a room.
func (d *RoomDirectory) Leave(sess *domain.Session) {
	room := sess.CurrentRoom()
	if room == "" {
		return
	}
	sess.SetRoom("")
	d.remove(sess, room)
}

func (d *RoomDirectory) remove(sess *domain.Session, room domain.RoomName) {
	st, ok := d.rooms[room]
	if !ok {
		return
	}

	st.mu.Lock()
	delete(st.members, sess.ID)
	remaining := make([]*domain.Session, 0, len(st.members))
	for _, member := range st.members {
		remaining = append(remaining, member)
	}
	st.mu.Unlock()

	if d.listener != nil {
		d.listener.SessionLeaving(sess, room, remaining)
	}
}

// Members returns a snapshot of the room's member set.
func (d *RoomDirectory) Members(room domain.RoomName) []*domain.Session {
	st, ok := d.rooms[room]
	if !ok {
		return nil
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	members := make([]*domain.Session, 0, len(st.members))
	for _, member := range st.members {
		members = append(members, member)
	}
	return members
}

// Broadcast delivers an event to every member of the room except the given
// connection. The room lock is held across the enqueues so every member
// observes one room's events in the order the broker processed them.
func (d *RoomDirectory) Broadcast(room domain.RoomName, except domain.ConnID, event string, payload interface{}) {
	st, ok := d.rooms[room]
	if !ok {
		return
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	for id, member := range st.members {
		if id == except {
			continue
		}
		if err := member.Conn.Send(event, payload); err != nil {
			d.logger.Warnw("failed to deliver event",
				"event", event,
				"room", room,
				"username", member.Username(),
				"error", err,
			)
		}
	}
}

// MemberCounts reports the current occupancy per room, for metrics.
func (d *RoomDirectory) MemberCounts() map[domain.RoomName]int {
	counts := make(map[domain.RoomName]int, len(d.rooms))
	for name, st := range d.rooms {
		st.mu.Lock()
		counts[name] = len(st.members)
		st.mu.Unlock()
	}
	return counts
}

// RequestAccess queues an admin-visible request for a room the user cannot
// enter. Idempotent; it never grants anything by itself.
func (d *RoomDirectory) RequestAccess(ctx context.Context, username string, room domain.RoomName) error {
	if _, ok := d.rooms[room]; !ok {
		return domain.ErrUnknownRoom
	}

	uctx, cancel := adapterCtx(ctx, d.timeout)
	defer cancel()

	if err := d.users.AddPendingRequest(uctx, username, room); err != nil {
		return mapAdapterErr(err)
	}

	d.logger.Infow("access requested", "username", username, "room", room)
	return nil
}
