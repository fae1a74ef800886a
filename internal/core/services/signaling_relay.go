package services

import (
	"encoding/json"
	"sync"

	"github.com/alicesotero/CoLab/internal/core/domain"

	"go.uber.org/zap"
)

// SignalingRelay forwards call-setup envelopes to the other occupants of
// the sender's room without inspecting payload contents. It performs no
// sequencing or validation of the offer/answer/candidate order.
//
// The relay keeps a per-room view of the logical call so that a
// participant's departure can synthesize the end-call its client never got
// a chance to send.
type SignalingRelay struct {
	rooms  *RoomDirectory
	logger *zap.SugaredLogger

	mu    sync.Mutex
	calls map[domain.RoomName]*callState
}

type callState struct {
	state        domain.CallState
	participants map[domain.ConnID]struct{}
}

func NewSignalingRelay(rooms *RoomDirectory, logger *zap.SugaredLogger) *SignalingRelay {
	return &SignalingRelay{
		rooms:  rooms,
		logger: logger,
		calls:  make(map[domain.RoomName]*callState),
	}
}

// Relay forwards the envelope verbatim to every member of the sender's room
// except the sender. There is no enforced two-party limit; with more than
// one remaining occupant the envelope fans out to all of them.
func (r *SignalingRelay) Relay(sess *domain.Session, kind domain.SignalKind, payload json.RawMessage) error {
	room := sess.CurrentRoom()
	if room == "" {
		return domain.ErrNotInRoom
	}

	r.track(room, sess.ID, kind)
	r.rooms.Broadcast(room, sess.ID, string(kind), payload)

	r.logger.Debugw("relayed signal",
		"kind", kind,
		"room", room,
		"from", sess.Username(),
	)
	return nil
}

// track advances the room's call state machine:
// Idle -> OfferSent (offer) -> Active (answer) -> Idle (end-call).
func (r *SignalingRelay) track(room domain.RoomName, from domain.ConnID, kind domain.SignalKind) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch kind {
	case domain.SignalOffer:
		call := r.call(room)
		call.state = domain.CallOfferSent
		call.participants[from] = struct{}{}
	case domain.SignalAnswer:
		call := r.call(room)
		call.state = domain.CallActive
		call.participants[from] = struct{}{}
	case domain.SignalEndCall:
		delete(r.calls, room)
	}
}

func (r *SignalingRelay) call(room domain.RoomName) *callState {
	call, ok := r.calls[room]
	if !ok {
		call = &callState{participants: make(map[domain.ConnID]struct{})}
		r.calls[room] = call
	}
	return call
}

// CallState exposes the coordinator's view of a room's call.
func (r *SignalingRelay) CallState(room domain.RoomName) domain.CallState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if call, ok := r.calls[room]; ok {
		return call.state
	}
	return domain.CallIdle
}

// SessionLeaving implements DepartureListener. When a party to the room's
// call departs while it is being set up or active, the broker synthesizes
// the end-call on its behalf: the departing client cannot be trusted to
// have sent one.
func (r *SignalingRelay) SessionLeaving(sess *domain.Session, room domain.RoomName, remaining []*domain.Session) {
	r.mu.Lock()
	call, ok := r.calls[room]
	if !ok || call.state == domain.CallIdle {
		r.mu.Unlock()
		return
	}
	// While the offer is still ringing every occupant is a prospective
	// callee, so any departure tears the call down. Once the call is
	// active only the two sessions that exchanged offer/answer matter.
	if call.state == domain.CallActive {
		if _, participant := call.participants[sess.ID]; !participant {
			r.mu.Unlock()
			return
		}
	}
	delete(r.calls, room)
	r.mu.Unlock()

	for _, member := range remaining {
		if err := member.Conn.Send(string(domain.SignalEndCall), nil); err != nil {
			r.logger.Warnw("failed to deliver synthesized end-call",
				"room", room,
				"username", member.Username(),
				"error", err,
			)
		}
	}

	r.logger.Infow("synthesized end-call after departure",
		"room", room,
		"departed", sess.Username(),
		"notified", len(remaining),
	)
}
