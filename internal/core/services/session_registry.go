package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/alicesotero/CoLab/internal/core/domain"
	"github.com/alicesotero/CoLab/internal/core/ports"
	"github.com/alicesotero/CoLab/pkg/auth"
	"github.com/alicesotero/CoLab/pkg/tracing"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Registration is the payload accepted when creating an account.
type Registration struct {
	Username    string
	Password    string
	FirstName   string
	LastName    string
	PhoneNumber string
}

// SessionRegistry maps live connections to their authenticated identity. A
// session exists from connection to disconnect; its identity fields are set
// on login and cleared on logout.
type SessionRegistry struct {
	users          ports.UserRepository
	rooms          *RoomDirectory
	tokens         *auth.TokenManager
	defaultAllowed []domain.RoomName
	timeout        time.Duration
	logger         *zap.SugaredLogger

	mu       sync.RWMutex
	sessions map[domain.ConnID]*domain.Session
}

func NewSessionRegistry(
	users ports.UserRepository,
	rooms *RoomDirectory,
	tokens *auth.TokenManager,
	defaultAllowed []domain.RoomName,
	adapterTimeout time.Duration,
	logger *zap.SugaredLogger,
) *SessionRegistry {
	return &SessionRegistry{
		users:          users,
		rooms:          rooms,
		tokens:         tokens,
		defaultAllowed: defaultAllowed,
		timeout:        adapterTimeout,
		logger:         logger,
		sessions:       make(map[domain.ConnID]*domain.Session),
	}
}

// Register creates an unauthenticated session for a new connection.
func (r *SessionRegistry) Register(conn domain.Sender) *domain.Session {
	sess := domain.NewSession(domain.ConnID(uuid.NewString()), conn)

	r.mu.Lock()
	r.sessions[sess.ID] = sess
	r.mu.Unlock()

	return sess
}

// Unregister tears the session down on disconnect: the room directory
// notifies the signaling relay of the departure, so a mid-call disconnect
// synthesizes end-call for the remaining party.
func (r *SessionRegistry) Unregister(sess *domain.Session) {
	r.rooms.Leave(sess)

	r.mu.Lock()
	delete(r.sessions, sess.ID)
	r.mu.Unlock()
}

// CreateAccount registers a new user with the default allowed-room set.
func (r *SessionRegistry) CreateAccount(ctx context.Context, reg Registration) (*domain.User, error) {
	reg.Username = strings.TrimSpace(reg.Username)
	if reg.Username == "" || reg.Password == "" || reg.FirstName == "" || reg.LastName == "" {
		return nil, domain.ErrMissingFields
	}
	if reg.Username == domain.ReservedAdminUsername {
		return nil, domain.ErrUserExists
	}

	hash, err := auth.HashPassword(reg.Password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:     reg.Username,
		FirstName:    reg.FirstName,
		LastName:     reg.LastName,
		PhoneNumber:  reg.PhoneNumber,
		PasswordHash: hash,
		AllowedRooms: append([]domain.RoomName(nil), r.defaultAllowed...),
		CreatedAt:    time.Now(),
	}

	uctx, cancel := adapterCtx(ctx, r.timeout)
	defer cancel()
	uctx, span := tracing.TraceAdapterCall(uctx, "users", "create")
	defer span.End()

	if err := r.users.Create(uctx, user); err != nil {
		tracing.RecordError(uctx, err)
		return nil, mapAdapterErr(err)
	}

	r.logger.Infow("account created", "username", user.Username)
	return user, nil
}

// VerifyCredentials checks a username/password pair against the user store.
// Unknown user and wrong password produce the same error so account
// existence cannot be probed from the login form.
func (r *SessionRegistry) VerifyCredentials(ctx context.Context, username, password string) (*domain.User, error) {
	uctx, cancel := adapterCtx(ctx, r.timeout)
	defer cancel()
	uctx, span := tracing.TraceAdapterCall(uctx, "users", "get")
	user, err := r.users.GetByUsername(uctx, username)
	span.End()
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrBadCredentials
		}
		return nil, mapAdapterErr(err)
	}

	ok, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !ok {
		return nil, domain.ErrBadCredentials
	}

	return user, nil
}

// Authenticate verifies credentials and binds the identity to the session.
func (r *SessionRegistry) Authenticate(ctx context.Context, sess *domain.Session, username, password string) (*domain.User, string, error) {
	user, err := r.VerifyCredentials(ctx, username, password)
	if err != nil {
		return nil, "", err
	}
	return r.bind(sess, user)
}

// AuthenticateToken resumes authentication from a previously issued session
// token, re-reading the user record so permissions are current.
func (r *SessionRegistry) AuthenticateToken(ctx context.Context, sess *domain.Session, token string) (*domain.User, string, error) {
	claims, err := r.tokens.Verify(token)
	if err != nil {
		return nil, "", domain.ErrBadCredentials
	}

	uctx, cancel := adapterCtx(ctx, r.timeout)
	defer cancel()
	user, err := r.users.GetByUsername(uctx, claims.Username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, "", domain.ErrBadCredentials
		}
		return nil, "", mapAdapterErr(err)
	}

	return r.bind(sess, user)
}

func (r *SessionRegistry) bind(sess *domain.Session, user *domain.User) (*domain.User, string, error) {
	token, err := r.tokens.Issue(user.Username, user.Admin)
	if err != nil {
		return nil, "", err
	}

	sess.SetIdentity(user.Username, user.Admin, user.AllowedRooms)
	r.logger.Infow("session authenticated", "username", user.Username, "admin", user.Admin)
	return user, token, nil
}

// Deauthenticate clears the session's identity and removes it from its
// room. The connection itself stays open and may log in again.
func (r *SessionRegistry) Deauthenticate(sess *domain.Session) {
	r.rooms.Leave(sess)
	sess.ClearIdentity()
}

// RefreshPermissions replaces the session's cached allowed-room snapshot
// and pushes the update to the connection. If the current room was revoked
// the session is forced out of it.
func (r *SessionRegistry) RefreshPermissions(sess *domain.Session, allowed []domain.RoomName) {
	sess.SetAllowedRooms(allowed)

	current := sess.CurrentRoom()
	if current != "" && !domain.ContainsRoom(allowed, current) {
		r.rooms.Leave(sess)
		if err := sess.Conn.Send("access.error", map[string]interface{}{
			"reason": "access to room " + string(current) + " was revoked",
		}); err != nil {
			r.logger.Warnw("failed to notify forced leave", "username", sess.Username(), "error", err)
		}
	}

	if err := sess.Conn.Send("permissions.updated", map[string]interface{}{
		"username":     sess.Username(),
		"allowedRooms": allowed,
	}); err != nil {
		r.logger.Warnw("failed to push permission update", "username", sess.Username(), "error", err)
	}
}

// UpdateProfile changes the contact phone number on the caller's account.
func (r *SessionRegistry) UpdateProfile(ctx context.Context, sess *domain.Session, phone string) (*domain.User, error) {
	if !sess.Authenticated() {
		return nil, domain.ErrNotAuthenticated
	}

	uctx, cancel := adapterCtx(ctx, r.timeout)
	defer cancel()

	user, err := r.users.GetByUsername(uctx, sess.Username())
	if err != nil {
		return nil, mapAdapterErr(err)
	}

	user.PhoneNumber = phone
	if err := r.users.Update(uctx, user); err != nil {
		return nil, mapAdapterErr(err)
	}

	r.logger.Infow("profile updated", "username", user.Username)
	return user, nil
}

// DeleteOwnAccount removes the caller's account and logs the session out.
// The root admin account cannot delete itself.
func (r *SessionRegistry) DeleteOwnAccount(ctx context.Context, sess *domain.Session) error {
	if !sess.Authenticated() {
		return domain.ErrNotAuthenticated
	}
	username := sess.Username()
	if username == domain.ReservedAdminUsername {
		return domain.ErrForbidden
	}

	uctx, cancel := adapterCtx(ctx, r.timeout)
	defer cancel()

	if err := r.users.Delete(uctx, username); err != nil {
		return mapAdapterErr(err)
	}

	r.Deauthenticate(sess)
	r.logger.Infow("account deleted", "username", username)
	return nil
}

// EnsureRootAdmin provisions the reserved administrator account on first
// start. The account is granted every room and never appears in rosters.
func (r *SessionRegistry) EnsureRootAdmin(ctx context.Context, password string) error {
	uctx, cancel := adapterCtx(ctx, r.timeout)
	defer cancel()

	if _, err := r.users.GetByUsername(uctx, domain.ReservedAdminUsername); err == nil {
		return nil
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return mapAdapterErr(err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	admin := &domain.User{
		Username:     domain.ReservedAdminUsername,
		FirstName:    "Root",
		LastName:     "Admin",
		PasswordHash: hash,
		Admin:        true,
		AllowedRooms: r.rooms.Rooms(),
		CreatedAt:    time.Now(),
	}
	if err := r.users.Create(uctx, admin); err != nil {
		return mapAdapterErr(err)
	}

	r.logger.Infow("root admin provisioned", "username", admin.Username)
	return nil
}

// FindByUsername returns the live sessions authenticated as username.
func (r *SessionRegistry) FindByUsername(username string) []*domain.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Session
	for _, sess := range r.sessions {
		if sess.Username() == username {
			out = append(out, sess)
		}
	}
	return out
}

// Count reports the number of live sessions.
func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
