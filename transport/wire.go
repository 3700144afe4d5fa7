// Package transport binds the gateway to NATS. Clients handshake on
// gateway.connect with a bearer credential in the message header, talk on
// their per-session subjects, and receive events on deliver.{sessionId}.
package transport

import (
	"time"

	"dm-gateway/domain"
	"dm-gateway/services"

	"github.com/samber/lo"
)

// Subjects exposed by the gateway. Per-session subjects are derived with
// SessionSubject after the handshake.
const (
	SubjectConnect  = "gateway.connect"
	SubjectRegister = "auth.register"
	SubjectLogin    = "auth.login"
	SubjectSend     = "dm.send"
	SubjectHistory  = "dm.history"
	SubjectUsers    = "users.list"
	SubjectMe       = "users.me"

	// HeaderAuthorization carries "Bearer <jwt>" on handshakes and on the
	// request/response operations; credentials never travel in a body.
	HeaderAuthorization = "Authorization"
)

func SessionSubject(id domain.SessionID, op string) string {
	return "session." + string(id) + "." + op
}

func DeliverSubject(id domain.SessionID) string {
	return "deliver." + string(id)
}

// MessagePayload is the wire form of a persisted message.
type MessagePayload struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Text      string    `json:"text"`
	Delivered bool      `json:"delivered"`
	Seen      bool      `json:"seen"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toPayload(m domain.Message) MessagePayload {
	return MessagePayload{
		ID:        m.ID.String(),
		From:      m.From,
		To:        m.To,
		Text:      m.Text,
		Delivered: m.Delivered,
		Seen:      m.Seen,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func toPayloads(messages []domain.Message) []MessagePayload {
	return lo.Map(messages, func(m domain.Message, _ int) MessagePayload {
		return toPayload(m)
	})
}

// ConnectReply answers a successful handshake.
type ConnectReply struct {
	SessionID      string `json:"sessionId"`
	DeliverSubject string `json:"deliverSubject"`
}

// SendRequest is the private_message payload. Text distinguishes absent
// (null, invalid) from empty (allowed).
type SendRequest struct {
	To   string  `json:"to"`
	Text *string `json:"text"`
}

// Ack is the acknowledgement for sends and the generic failure reply for
// every request/reply operation. It always resolves: success with the
// persisted message, or an error descriptor.
type Ack struct {
	Success      bool            `json:"success"`
	Message      *MessagePayload `json:"message,omitempty"`
	ErrorCode    string          `json:"errorCode,omitempty"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
}

type TypingRequest struct {
	To     string `json:"to"`
	Typing bool   `json:"typing"`
}

type SeenRequest struct {
	MessageID string `json:"messageId"`
}

// HistoryRequest fetches one conversation page. Before is an RFC 3339
// timestamp; an unparseable value is treated as absent, not as an error.
type HistoryRequest struct {
	OtherUserID string `json:"otherUserId"`
	Limit       int    `json:"limit,omitempty"`
	Before      string `json:"before,omitempty"`
}

// HistoryReply carries the page strictly oldest to newest.
type HistoryReply struct {
	Messages []MessagePayload `json:"messages"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthReply struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
}

type ListUsersRequest struct {
	Q     string `json:"q,omitempty"`
	Limit int    `json:"limit,omitempty"`
	Page  int    `json:"page,omitempty"`
}

type ListUsersReply struct {
	Users []domain.Profile  `json:"users"`
	Meta  services.PageMeta `json:"meta"`
}

// Event is the envelope published on deliver.{sessionId}. Type selects
// which optional fields are set: private_message, typing, or user_online.
type Event struct {
	Type    string          `json:"type"`
	Message *MessagePayload `json:"message,omitempty"`
	From    string          `json:"from,omitempty"`
	Typing  *bool           `json:"typing,omitempty"`
	UserID  string          `json:"userId,omitempty"`
	Online  *bool           `json:"online,omitempty"`
}

const (
	EventPrivateMessage = "private_message"
	EventTyping         = "typing"
	EventUserOnline     = "user_online"
)
