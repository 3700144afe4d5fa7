package domain

import "time"

// SessionID identifies one live authenticated connection.
type SessionID string

// Session is ephemeral: created on a successful handshake, destroyed on
// disconnect. A user may own zero, one, or many concurrent sessions.
type Session struct {
	ID        SessionID
	UserID    string
	CreatedAt time.Time
}
