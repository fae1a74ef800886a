package services

import (
	"context"
	"time"

	"github.com/alicesotero/CoLab/internal/core/domain"
	"github.com/alicesotero/CoLab/internal/core/ports"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Permission actions accepted by SetPermission.
const (
	ActionGrant  = "grant"
	ActionRevoke = "revoke"
)

// AdminService executes the administrator commands: roster listing,
// permission grants/revocations and account deletion. Every command
// requires the invoking session's admin flag.
type AdminService struct {
	users    ports.UserRepository
	registry *SessionRegistry
	timeout  time.Duration
	logger   *zap.SugaredLogger
}

func NewAdminService(users ports.UserRepository, registry *SessionRegistry, adapterTimeout time.Duration, logger *zap.SugaredLogger) *AdminService {
	return &AdminService{
		users:    users,
		registry: registry,
		timeout:  adapterTimeout,
		logger:   logger,
	}
}

// ListUsers returns the roster, excluding the reserved root admin account.
func (s *AdminService) ListUsers(ctx context.Context, caller *domain.Session) ([]domain.UserSummary, error) {
	if !caller.IsAdmin() {
		return nil, domain.ErrForbidden
	}

	uctx, cancel := adapterCtx(ctx, s.timeout)
	defer cancel()

	users, err := s.users.List(uctx)
	if err != nil {
		return nil, mapAdapterErr(err)
	}

	visible := lo.Filter(users, func(u *domain.User, _ int) bool {
		return u.Username != domain.ReservedAdminUsername
	})
	return lo.Map(visible, func(u *domain.User, _ int) domain.UserSummary {
		return u.Summary()
	}), nil
}

// SetPermission grants or revokes a room on the target user. A grant also
// clears the matching pending request. The target's live sessions get their
// cached snapshot refreshed before the updated roster returns to the
// caller.
func (s *AdminService) SetPermission(ctx context.Context, caller *domain.Session, target string, room domain.RoomName, action string) ([]domain.UserSummary, error) {
	if !caller.IsAdmin() {
		return nil, domain.ErrForbidden
	}

	uctx, cancel := adapterCtx(ctx, s.timeout)
	defer cancel()

	user, err := s.users.GetByUsername(uctx, target)
	if err != nil {
		return nil, mapAdapterErr(err)
	}

	switch action {
	case ActionGrant:
		if !domain.ContainsRoom(user.AllowedRooms, room) {
			user.AllowedRooms = append(user.AllowedRooms, room)
		}
		user.PendingRequests = lo.Reject(user.PendingRequests, func(r domain.RoomName, _ int) bool {
			return r == room
		})
	case ActionRevoke:
		user.AllowedRooms = lo.Reject(user.AllowedRooms, func(r domain.RoomName, _ int) bool {
			return r == room
		})
	default:
		return nil, domain.ErrMissingFields
	}

	if err := s.users.Update(uctx, user); err != nil {
		return nil, mapAdapterErr(err)
	}

	for _, sess := range s.registry.FindByUsername(target) {
		s.registry.RefreshPermissions(sess, user.AllowedRooms)
	}

	s.logger.Infow("permission changed",
		"admin", caller.Username(),
		"target", target,
		"room", room,
		"action", action,
	)
	return s.ListUsers(ctx, caller)
}

// DeleteUser removes the account and force-logs-out its live sessions. The
// reserved root admin cannot be deleted.
func (s *AdminService) DeleteUser(ctx context.Context, caller *domain.Session, target string) error {
	if !caller.IsAdmin() {
		return domain.ErrForbidden
	}
	if target == domain.ReservedAdminUsername {
		return domain.ErrForbidden
	}

	uctx, cancel := adapterCtx(ctx, s.timeout)
	defer cancel()

	if err := s.users.Delete(uctx, target); err != nil {
		return mapAdapterErr(err)
	}

	for _, sess := range s.registry.FindByUsername(target) {
		if err := sess.Conn.Send("forced-logout", map[string]interface{}{
			"username": target,
			"reason":   "account deleted by administrator",
		}); err != nil {
			s.logger.Warnw("failed to notify forced logout", "username", target, "error", err)
		}
		s.registry.Deauthenticate(sess)
	}

	s.logger.Infow("user deleted", "admin", caller.Username(), "target", target)
	return nil
}
