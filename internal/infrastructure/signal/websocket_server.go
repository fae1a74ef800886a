package signal

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/alicesotero/CoLab/internal/core/domain"
	"github.com/alicesotero/CoLab/internal/core/services"
	"github.com/alicesotero/CoLab/internal/infrastructure/monitoring"
	"github.com/alicesotero/CoLab/pkg/config"
	apperrors "github.com/alicesotero/CoLab/pkg/errors"
	"github.com/alicesotero/CoLab/pkg/validation"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Should be configured properly for production
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// inbound is the client-to-broker wire frame. Data stays raw until the
// event's handler decodes it.
type inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type handlerFunc func(ctx context.Context, sess *domain.Session, data json.RawMessage) error

// WebSocketServer terminates client connections and dispatches wire events
// onto the coordinator services.
type WebSocketServer struct {
	registry *services.SessionRegistry
	rooms    *services.RoomDirectory
	router   *services.MessageRouter
	relay    *services.SignalingRelay
	admin    *services.AdminService
	metrics  *monitoring.PrometheusCollector
	cfg      *config.Config
	logger   *zap.SugaredLogger

	handlers map[string]handlerFunc
}

func NewWebSocketServer(
	registry *services.SessionRegistry,
	rooms *services.RoomDirectory,
	router *services.MessageRouter,
	relay *services.SignalingRelay,
	admin *services.AdminService,
	metrics *monitoring.PrometheusCollector,
	cfg *config.Config,
	logger *zap.SugaredLogger,
) *WebSocketServer {
	s := &WebSocketServer{
		registry: registry,
		rooms:    rooms,
		router:   router,
		relay:    relay,
		admin:    admin,
		metrics:  metrics,
		cfg:      cfg,
		logger:   logger,
	}

	s.handlers = map[string]handlerFunc{
		"auth.register":       s.handleRegister,
		"auth.login":          s.handleLogin,
		"auth.token":          s.handleTokenLogin,
		"auth.logout":         s.handleLogout,
		"join":                s.handleJoin,
		"post":                s.handlePost,
		"offer":               s.handleSignal(domain.SignalOffer),
		"answer":              s.handleSignal(domain.SignalAnswer),
		"candidate":           s.handleSignal(domain.SignalCandidate),
		"end-call":            s.handleSignal(domain.SignalEndCall),
		"access.request":      s.handleAccessRequest,
		"profile.update":      s.handleProfileUpdate,
		"account.delete":      s.handleAccountDelete,
		"admin.listUsers":     s.handleAdminListUsers,
		"admin.setPermission": s.handleAdminSetPermission,
		"admin.deleteUser":    s.handleAdminDeleteUser,
	}

	return s
}

// HandleWebSocket upgrades the request and runs the connection's read loop
// until disconnect.
func (s *WebSocketServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(conn, s.cfg.Signal.SendBuffer, s.cfg.Signal.PingInterval, s.cfg.Signal.WriteTimeout, s.logger)
	go client.writePump()

	sess := s.registry.Register(client)
	s.metrics.SessionConnected()
	s.logger.Infow("connection opened", "conn_id", sess.ID, "remote", r.RemoteAddr)

	s.readLoop(conn, client, sess)

	s.registry.Unregister(sess)
	client.Close()
	s.metrics.SessionDisconnected()
	s.metrics.UpdateRoomMembers(s.rooms.MemberCounts())
	s.logger.Infow("connection closed", "conn_id", sess.ID, "username", sess.Username())
}

func (s *WebSocketServer) readLoop(conn *websocket.Conn, client *Client, sess *domain.Session) {
	conn.SetReadLimit(s.cfg.Signal.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(s.cfg.Signal.PongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.cfg.Signal.PongTimeout))
		return nil
	})

	var limiter *rate.Limiter
	if s.cfg.RateLimiting.Enabled {
		limiter = rate.NewLimiter(
			rate.Limit(s.cfg.RateLimiting.WebSocket.MessagesPerSecond),
			s.cfg.RateLimiting.WebSocket.Burst,
		)
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Infow("read failed", "conn_id", sess.ID, "error", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(s.cfg.Signal.PongTimeout))

		var frame inbound
		if err := json.Unmarshal(raw, &frame); err != nil {
			s.sendError(client, "access.error", apperrors.NewInvalidInputError("malformed frame"))
			continue
		}
		if frame.Event == "" {
			s.sendError(client, "access.error", apperrors.NewInvalidInputError("event is required"))
			continue
		}

		if limiter != nil && !limiter.Allow() {
			s.sendError(client, "access.error",
				apperrors.NewAppError(apperrors.ErrCodeRateLimit, "message rate limit exceeded", http.StatusTooManyRequests))
			continue
		}

		s.dispatch(client, sess, frame)
	}
}

func (s *WebSocketServer) dispatch(client *Client, sess *domain.Session, frame inbound) {
	handler, ok := s.handlers[frame.Event]
	if !ok {
		s.sendError(client, "access.error", apperrors.NewInvalidInputError("unknown event: "+frame.Event))
		return
	}

	authEvent := strings.HasPrefix(frame.Event, "auth.")
	if !authEvent && !sess.Authenticated() {
		s.sendError(client, "access.error", apperrors.FromDomain(domain.ErrNotAuthenticated))
		return
	}

	if err := handler(context.Background(), sess, frame.Data); err != nil {
		appErr := apperrors.GetAppError(err)
		if appErr == nil {
			appErr = apperrors.FromDomain(err)
		}

		event := "access.error"
		if authEvent {
			event = "auth.error"
		}
		s.logger.Infow("event rejected",
			"event", frame.Event,
			"conn_id", sess.ID,
			"username", sess.Username(),
			"code", appErr.Code,
		)
		s.sendError(client, event, appErr)
	}
}

func (s *WebSocketServer) sendError(client *Client, event string, appErr *apperrors.AppError) {
	client.Send(event, map[string]interface{}{
		"error":   string(appErr.Code),
		"message": appErr.Message,
	})
}

// authSuccess is the payload sent after any successful authentication.
func authSuccess(user *domain.User, token string, rooms []domain.RoomName) map[string]interface{} {
	return map[string]interface{}{
		"token":   token,
		"profile": profilePayload(user),
		"rooms":   rooms,
	}
}

func profilePayload(user *domain.User) map[string]interface{} {
	return map[string]interface{}{
		"username":        user.Username,
		"firstName":       user.FirstName,
		"lastName":        user.LastName,
		"phoneNumber":     user.PhoneNumber,
		"isAdmin":         user.Admin,
		"allowedRooms":    user.AllowedRooms,
		"pendingRequests": user.PendingRequests,
	}
}

func (s *WebSocketServer) handleRegister(ctx context.Context, sess *domain.Session, data json.RawMessage) error {
	var payload struct {
		Username    string `json:"username"`
		Password    string `json:"password"`
		FirstName   string `json:"firstName"`
		LastName    string `json:"lastName"`
		PhoneNumber string `json:"phoneNumber"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return apperrors.NewInvalidInputError("invalid register payload")
	}

	if err := validation.ValidateUsername(payload.Username); err != nil {
		return apperrors.NewInvalidInputError(err.Error())
	}
	if err := validation.ValidatePassword(payload.Password); err != nil {
		return apperrors.NewInvalidInputError(err.Error())
	}
	if err := validation.ValidatePhoneNumber(payload.PhoneNumber); err != nil {
		return apperrors.NewInvalidInputError(err.Error())
	}

	user, err := s.registry.CreateAccount(ctx, services.Registration{
		Username:    payload.Username,
		Password:    payload.Password,
		FirstName:   payload.FirstName,
		LastName:    payload.LastName,
		PhoneNumber: payload.PhoneNumber,
	})
	if err != nil {
		return err
	}

	// A fresh account is signed in on the same connection right away.
	user, token, err := s.registry.Authenticate(ctx, sess, user.Username, payload.Password)
	if err != nil {
		return err
	}

	return sess.Conn.Send("auth.success", authSuccess(user, token, s.rooms.Rooms()))
}

func (s *WebSocketServer) handleLogin(ctx context.Context, sess *domain.Session, data json.RawMessage) error {
	var payload struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return apperrors.NewInvalidInputError("invalid login payload")
	}

	user, token, err := s.registry.Authenticate(ctx, sess, payload.Username, payload.Password)
	if err != nil {
		return err
	}

	return sess.Conn.Send("auth.success", authSuccess(user, token, s.rooms.Rooms()))
}

func (s *WebSocketServer) handleTokenLogin(ctx context.Context, sess *domain.Session, data json.RawMessage) error {
	var payload struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return apperrors.NewInvalidInputError("invalid token payload")
	}

	user, token, err := s.registry.AuthenticateToken(ctx, sess, payload.Token)
	if err != nil {
		return err
	}

	return sess.Conn.Send("auth.success", authSuccess(user, token, s.rooms.Rooms()))
}

func (s *WebSocketServer) handleLogout(ctx context.Context, sess *domain.Session, data json.RawMessage) error {
	s.registry.Deauthenticate(sess)
	s.metrics.UpdateRoomMembers(s.rooms.MemberCounts())
	return nil
}

func (s *WebSocketServer) handleJoin(ctx context.Context, sess *domain.Session, data json.RawMessage) error {
	var payload struct {
		Room domain.RoomName `json:"room"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return apperrors.NewInvalidInputError("invalid join payload")
	}

	start := time.Now()
	history, err := s.rooms.Join(ctx, sess, payload.Room)
	if err != nil {
		return err
	}
	s.metrics.ObserveHistoryReplay(time.Since(start).Seconds())
	s.metrics.UpdateRoomMembers(s.rooms.MemberCounts())

	return sess.Conn.Send("history", map[string]interface{}{
		"room":     payload.Room,
		"messages": history,
	})
}

func (s *WebSocketServer) handlePost(ctx context.Context, sess *domain.Session, data json.RawMessage) error {
	var payload struct {
		Text       string             `json:"text"`
		Attachment *domain.Attachment `json:"attachment"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return apperrors.NewInvalidInputError("invalid post payload")
	}

	if att := payload.Attachment; att != nil {
		if err := validation.ValidateAttachment(att.Name, att.MediaType, att.Content, s.cfg.Signal.MaxMessageSize); err != nil {
			return apperrors.NewInvalidInputError(err.Error())
		}
	}

	msg, err := s.router.Post(ctx, sess, payload.Text, payload.Attachment)
	if err != nil && msg == nil {
		s.metrics.MessageRejected()
		return err
	}
	s.metrics.MessageRouted()

	// The author sees their own message the same way everyone else does.
	if sendErr := sess.Conn.Send("message", msg); sendErr != nil {
		s.logger.Warnw("echo to author failed", "conn_id", sess.ID, "error", sendErr)
	}

	if err != nil {
		// Fanned out but not persisted; the author is told the message
		// will be missing from history.
		s.metrics.PersistFailed()
		return err
	}
	return nil
}

func (s *WebSocketServer) handleSignal(kind domain.SignalKind) handlerFunc {
	return func(ctx context.Context, sess *domain.Session, data json.RawMessage) error {
		if err := s.relay.Relay(sess, kind, data); err != nil {
			return err
		}
		s.metrics.SignalRelayed(kind)
		return nil
	}
}

func (s *WebSocketServer) handleAccessRequest(ctx context.Context, sess *domain.Session, data json.RawMessage) error {
	var payload struct {
		Room domain.RoomName `json:"room"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return apperrors.NewInvalidInputError("invalid access request payload")
	}

	return s.rooms.RequestAccess(ctx, sess.Username(), payload.Room)
}

func (s *WebSocketServer) handleProfileUpdate(ctx context.Context, sess *domain.Session, data json.RawMessage) error {
	var payload struct {
		PhoneNumber string `json:"phoneNumber"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return apperrors.NewInvalidInputError("invalid profile payload")
	}

	user, err := s.registry.UpdateProfile(ctx, sess, payload.PhoneNumber)
	if err != nil {
		return err
	}

	return sess.Conn.Send("profile.updated", profilePayload(user))
}

func (s *WebSocketServer) handleAccountDelete(ctx context.Context, sess *domain.Session, data json.RawMessage) error {
	username := sess.Username()
	if err := s.registry.DeleteOwnAccount(ctx, sess); err != nil {
		return err
	}

	sess.Conn.Send("account.deleted", map[string]interface{}{
		"username": username,
	})
	return sess.Conn.Close()
}

func (s *WebSocketServer) handleAdminListUsers(ctx context.Context, sess *domain.Session, data json.RawMessage) error {
	users, err := s.admin.ListUsers(ctx, sess)
	if err != nil {
		return err
	}

	return sess.Conn.Send("users.roster", map[string]interface{}{
		"users": users,
	})
}

func (s *WebSocketServer) handleAdminSetPermission(ctx context.Context, sess *domain.Session, data json.RawMessage) error {
	var payload struct {
		Username string          `json:"username"`
		Room     domain.RoomName `json:"room"`
		Action   string          `json:"action"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return apperrors.NewInvalidInputError("invalid permission payload")
	}

	users, err := s.admin.SetPermission(ctx, sess, payload.Username, payload.Room, payload.Action)
	if err != nil {
		return err
	}

	return sess.Conn.Send("users.roster", map[string]interface{}{
		"users": users,
	})
}

func (s *WebSocketServer) handleAdminDeleteUser(ctx context.Context, sess *domain.Session, data json.RawMessage) error {
	var payload struct {
		Username string `json:"username"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return apperrors.NewInvalidInputError("invalid delete payload")
	}

	if err := s.admin.DeleteUser(ctx, sess, payload.Username); err != nil {
		return err
	}

	return sess.Conn.Send("admin.ok", map[string]interface{}{
		"action":   "deleteUser",
		"username": payload.Username,
	})
}
