package domain

import "encoding/json"

// SignalKind enumerates the call-setup envelope kinds relayed between room
// occupants. Payloads are opaque to the broker.
type SignalKind string

const (
	SignalOffer     SignalKind = "offer"
	SignalAnswer    SignalKind = "answer"
	SignalCandidate SignalKind = "candidate"
	SignalEndCall   SignalKind = "end-call"
)

// ValidSignalKind reports whether k is one of the relayed kinds.
func ValidSignalKind(k SignalKind) bool {
	switch k {
	case SignalOffer, SignalAnswer, SignalCandidate, SignalEndCall:
		return true
	}
	return false
}

// Envelope is a transient signaling message scoped to a room. It is created,
// relayed verbatim and discarded; never persisted.
type Envelope struct {
	Room    RoomName        `json:"room"`
	Kind    SignalKind      `json:"kind"`
	From    string          `json:"from"`
	Payload json.RawMessage `json:"payload"`
}

// CallState is the coordinator's view of a room's call, not the media
// layer's. Transitions: Idle -> OfferSent (offer) -> Active (answer) ->
// Idle (end-call or a participant's departure).
type CallState int

const (
	CallIdle CallState = iota
	CallOfferSent
	CallActive
)

func (s CallState) String() string {
	switch s {
	case CallOfferSent:
		return "offer_sent"
	case CallActive:
		return "active"
	default:
		return "idle"
	}
}
