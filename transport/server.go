package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"dm-gateway/contract"
	"dm-gateway/domain"
	"dm-gateway/domain/event"
	apperrors "dm-gateway/errors"
	"dm-gateway/runtime"
	"dm-gateway/services"
	"dm-gateway/sink"

	"github.com/nats-io/nats.go"
	"github.com/samber/lo"
)

// Server owns every NATS subscription of the gateway. One logical client
// connection maps to one handshake, one set of session.{id}.* subjects,
// and one deliver.{id} publish stream fed by the session's ChannelSink.
type Server struct {
	log       *slog.Logger
	nc        *nats.Conn
	gateway   *runtime.ConnectionGateway
	registry  contract.ISessionRegistry
	chat      services.IChatService
	auth      services.IAuthService
	directory *services.DirectoryService

	bufferSize int

	ctx   context.Context
	stop  context.CancelFunc
	mu    sync.Mutex
	conns map[domain.SessionID]*liveConn
	subs  []*nats.Subscription
}

type liveConn struct {
	cancel context.CancelFunc
	subs   []*nats.Subscription
}

func NewServer(log *slog.Logger, nc *nats.Conn, gateway *runtime.ConnectionGateway,
	registry contract.ISessionRegistry, chat services.IChatService,
	auth services.IAuthService, directory *services.DirectoryService,
	bufferSize int) *Server {
	return &Server{
		log:        log,
		nc:         nc,
		gateway:    gateway,
		registry:   registry,
		chat:       chat,
		auth:       auth,
		directory:  directory,
		bufferSize: bufferSize,
		conns:      make(map[domain.SessionID]*liveConn),
	}
}

// Start wires the handshake and request/response subjects. Per-session
// subjects are wired per connection, strictly after the gateway has
// registered the session.
func (s *Server) Start(ctx context.Context) error {
	s.ctx, s.stop = context.WithCancel(ctx)

	for subject, handler := range map[string]nats.MsgHandler{
		SubjectConnect:  s.handleConnect,
		SubjectRegister: s.handleRegister,
		SubjectLogin:    s.handleLogin,
		SubjectSend:     s.handleDirectSend,
		SubjectHistory:  s.handleHistory,
		SubjectUsers:    s.handleListUsers,
		SubjectMe:       s.handleMe,
	} {
		sub, err := s.nc.Subscribe(subject, s.guarded(handler))
		if err != nil {
			return err
		}
		s.subs = append(s.subs, sub)
	}
	return nil
}

// Close drains every subscription and tears down all live sessions.
func (s *Server) Close() {
	s.mu.Lock()
	ids := lo.Keys(s.conns)
	s.mu.Unlock()
	for _, id := range ids {
		s.Disconnect(id)
	}

	for _, sub := range s.subs {
		_ = sub.Drain()
	}
	if s.stop != nil {
		s.stop()
	}
}

// guarded confines a handler failure to its own message: a panic is logged
// and, when the request carries a reply inbox, answered with a server
// error. The registry and the other connections are never affected.
func (s *Server) guarded(handler nats.MsgHandler) nats.MsgHandler {
	return func(msg *nats.Msg) {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("Handler panic isolated", "subject", msg.Subject, "panic", r)
				if msg.Reply != "" {
					s.respondErr(msg, apperrors.ErrServer)
				}
			}
		}()
		handler(msg)
	}
}

func bearer(msg *nats.Msg) string {
	return strings.TrimPrefix(msg.Header.Get(HeaderAuthorization), "Bearer ")
}

func (s *Server) respond(msg *nats.Msg, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.log.Error("Reply marshal failed", "subject", msg.Subject, "error", err)
		return
	}
	if err := msg.Respond(data); err != nil {
		s.log.Debug("Reply not delivered", "subject", msg.Subject, "error", err)
	}
}

func (s *Server) respondErr(msg *nats.Msg, err error) {
	s.respond(msg, Ack{
		Success:      false,
		ErrorCode:    apperrors.WireCode(err),
		ErrorMessage: apperrors.Describe(err),
	})
}

// handleConnect performs the authenticated handshake. On success the
// session's subjects are subscribed and its delivery pump started; only
// then does the client learn its session id.
func (s *Server) handleConnect(msg *nats.Msg) {
	connSink := sink.NewChannelSink(s.bufferSize)
	session, err := s.gateway.Connect(s.ctx, bearer(msg), connSink)
	if err != nil {
		s.respondErr(msg, err)
		return
	}

	pumpCtx, cancel := context.WithCancel(s.ctx)
	conn := &liveConn{cancel: cancel}

	for op, handler := range map[string]nats.MsgHandler{
		"send":   s.sessionSend(session.ID),
		"typing": s.sessionTyping(session.ID),
		"seen":   s.sessionSeen(session.ID),
		"ping":   func(*nats.Msg) { s.registry.Touch(session.ID) },
		"close":  func(*nats.Msg) { s.Disconnect(session.ID) },
	} {
		sub, err := s.nc.Subscribe(SessionSubject(session.ID, op), s.guarded(handler))
		if err != nil {
			cancel()
			for _, wired := range conn.subs {
				_ = wired.Unsubscribe()
			}
			s.gateway.Disconnect(session.ID)
			s.respondErr(msg, apperrors.ErrServer)
			return
		}
		conn.subs = append(conn.subs, sub)
	}

	s.mu.Lock()
	s.conns[session.ID] = conn
	s.mu.Unlock()

	go s.pump(pumpCtx, session.ID, connSink)

	s.respond(msg, ConnectReply{
		SessionID:      string(session.ID),
		DeliverSubject: DeliverSubject(session.ID),
	})
}

// pump forwards the session sink onto the client's delivery subject until
// the session is torn down.
func (s *Server) pump(ctx context.Context, id domain.SessionID, connSink *sink.ChannelSink) {
	subject := DeliverSubject(id)
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-connSink.Events:
			data, ok := encodeEvent(evt)
			if !ok {
				continue
			}
			if err := s.nc.Publish(subject, data); err != nil {
				s.log.Debug("Delivery publish failed", "session_id", id, "error", err)
			}
		}
	}
}

// Disconnect tears down the transport half of a session (subscriptions and
// pump), then runs the gateway's idempotent teardown. Callable any number
// of times; the reaper and an explicit close may race here safely.
func (s *Server) Disconnect(id domain.SessionID) {
	s.mu.Lock()
	conn, ok := s.conns[id]
	delete(s.conns, id)
	s.mu.Unlock()

	if ok {
		conn.cancel()
		for _, sub := range conn.subs {
			_ = sub.Unsubscribe()
		}
	}
	s.gateway.Disconnect(id)
}

func (s *Server) sessionSend(id domain.SessionID) nats.MsgHandler {
	return func(msg *nats.Msg) {
		userID, ok := s.registry.Owner(id)
		if !ok {
			s.respondErr(msg, apperrors.ErrUnauthenticated)
			return
		}

		var req SendRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			s.respondErr(msg, apperrors.ErrInvalidPayload)
			return
		}

		message, err := s.chat.SendPrivateMessage(s.ctx, userID, req.To, req.Text)
		if err != nil {
			s.respondErr(msg, err)
			return
		}
		s.respond(msg, Ack{Success: true, Message: lo.ToPtr(toPayload(message))})
	}
}

func (s *Server) sessionTyping(id domain.SessionID) nats.MsgHandler {
	return func(msg *nats.Msg) {
		userID, ok := s.registry.Owner(id)
		if !ok {
			return
		}
		var req TypingRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return
		}
		s.chat.RelayTyping(userID, req.To, req.Typing)
	}
}

func (s *Server) sessionSeen(id domain.SessionID) nats.MsgHandler {
	return func(msg *nats.Msg) {
		if _, ok := s.registry.Owner(id); !ok {
			return
		}
		var req SeenRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return
		}
		s.chat.MarkSeen(s.ctx, req.MessageID)
	}
}

// handleDirectSend is the request/response send for clients not holding a
// live connection. Same validation and commit point as the session path.
func (s *Server) handleDirectSend(msg *nats.Msg) {
	user, err := s.gateway.Authenticate(bearer(msg))
	if err != nil {
		s.respondErr(msg, err)
		return
	}

	var req SendRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.respondErr(msg, apperrors.ErrInvalidPayload)
		return
	}

	message, err := s.chat.SendPrivateMessage(s.ctx, user.ID, req.To, req.Text)
	if err != nil {
		s.respondErr(msg, err)
		return
	}
	s.respond(msg, Ack{Success: true, Message: lo.ToPtr(toPayload(message))})
}

func (s *Server) handleHistory(msg *nats.Msg) {
	user, err := s.gateway.Authenticate(bearer(msg))
	if err != nil {
		s.respondErr(msg, err)
		return
	}

	var req HistoryRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.respondErr(msg, apperrors.ErrInvalidPayload)
		return
	}
	if req.OtherUserID == "" {
		s.respondErr(msg, apperrors.ErrInvalidPayload)
		return
	}

	messages, err := s.chat.GetConversation(s.ctx, user.ID, req.OtherUserID, req.Limit, parseBefore(req.Before))
	if err != nil {
		s.respondErr(msg, err)
		return
	}
	s.respond(msg, HistoryReply{Messages: toPayloads(messages)})
}

// parseBefore treats an unparseable cursor as absent, not as an error.
func parseBefore(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil
	}
	return &t
}

func (s *Server) handleRegister(msg *nats.Msg) {
	var req RegisterRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.respondErr(msg, apperrors.ErrInvalidPayload)
		return
	}

	token, userID, err := s.auth.Register(req.Name, req.Email, req.Password)
	if err != nil {
		s.respondErr(msg, err)
		return
	}
	s.respond(msg, AuthReply{Token: string(token), UserID: userID})
}

func (s *Server) handleLogin(msg *nats.Msg) {
	var req LoginRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.respondErr(msg, apperrors.ErrInvalidPayload)
		return
	}

	token, userID, err := s.auth.Login(req.Email, req.Password)
	if err != nil {
		s.respondErr(msg, err)
		return
	}
	s.respond(msg, AuthReply{Token: string(token), UserID: userID})
}

func (s *Server) handleListUsers(msg *nats.Msg) {
	user, err := s.gateway.Authenticate(bearer(msg))
	if err != nil {
		s.respondErr(msg, err)
		return
	}

	var req ListUsersRequest
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			s.respondErr(msg, apperrors.ErrInvalidPayload)
			return
		}
	}

	users, meta, err := s.directory.ListUsers(user.ID, req.Q, req.Limit, req.Page)
	if err != nil {
		s.respondErr(msg, apperrors.ErrServer)
		return
	}
	s.respond(msg, ListUsersReply{Users: users, Meta: meta})
}

func (s *Server) handleMe(msg *nats.Msg) {
	user, err := s.gateway.Authenticate(bearer(msg))
	if err != nil {
		s.respondErr(msg, err)
		return
	}
	s.respond(msg, user.Profile())
}

func encodeEvent(e event.DomainEvent) ([]byte, bool) {
	var envelope Event
	switch evt := e.(type) {
	case event.MessageReceived:
		envelope = Event{Type: EventPrivateMessage, Message: lo.ToPtr(toPayload(evt.Message))}
	case event.TypingSignal:
		envelope = Event{Type: EventTyping, From: evt.From, Typing: lo.ToPtr(evt.Typing)}
	case event.PresenceChanged:
		envelope = Event{Type: EventUserOnline, UserID: evt.UserID, Online: lo.ToPtr(evt.Online)}
	default:
		return nil, false
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return nil, false
	}
	return data, true
}
