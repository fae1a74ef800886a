package services

import (
	"context"
	"time"

	"github.com/alicesotero/CoLab/internal/core/domain"
	"github.com/alicesotero/CoLab/internal/core/ports"
	"github.com/alicesotero/CoLab/pkg/tracing"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MessageRouter validates, persists and fans out room messages.
type MessageRouter struct {
	rooms   *RoomDirectory
	history ports.MessageRepository
	timeout time.Duration
	logger  *zap.SugaredLogger
}

func NewMessageRouter(rooms *RoomDirectory, history ports.MessageRepository, adapterTimeout time.Duration, logger *zap.SugaredLogger) *MessageRouter {
	return &MessageRouter{
		rooms:   rooms,
		history: history,
		timeout: adapterTimeout,
		logger:  logger,
	}
}

// Post persists a message and broadcasts it to every room member except the
// sender. The transport echoes the accepted message back to the author so
// everyone renders the same server-assigned ID and timestamp.
//
// A failed append still broadcasts and returns the message together with
// ErrPersistence: delivery is best effort while connected, durability is
// not guaranteed. The permission check runs against the cached allowed set,
// which every revocation path refreshes via RefreshPermissions before the
// admin command completes.
func (r *MessageRouter) Post(ctx context.Context, sess *domain.Session, text string, attachment *domain.Attachment) (*domain.Message, error) {
	room := sess.CurrentRoom()
	if room == "" {
		return nil, domain.ErrNotInRoom
	}
	if !sess.Allowed(room) {
		return nil, domain.ErrAccessDenied
	}

	msg := &domain.Message{
		ID:         domain.MessageID(uuid.NewString()),
		Room:       room,
		Author:     sess.Username(),
		Text:       text,
		Attachment: attachment,
		CreatedAt:  time.Now(),
	}
	if msg.Empty() {
		return nil, domain.ErrEmptyMessage
	}

	var persistErr error
	actx, cancel := adapterCtx(ctx, r.timeout)
	actx, span := tracing.TraceAdapterCall(actx, "history", "append")
	if err := r.history.Append(actx, msg); err != nil {
		tracing.RecordError(actx, err)
		r.logger.Warnw("failed to persist message, broadcasting anyway",
			"room", room,
			"author", msg.Author,
			"error", err,
		)
		persistErr = domain.ErrPersistence
	}
	span.End()
	cancel()

	r.rooms.Broadcast(room, sess.ID, "message", msg)
	return msg, persistErr
}
