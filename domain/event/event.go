// Package event defines the events pushed to connected sessions.
package event

import "dm-gateway/domain"

// DomainEvent is a marker for anything deliverable to a session sink.
type DomainEvent interface {
	isDomainEvent()
}

// MessageReceived carries a persisted private message to the live sessions
// of both participants.
type MessageReceived struct {
	Message domain.Message
}

// TypingSignal is ephemeral: never persisted, never acknowledged.
type TypingSignal struct {
	From   string
	Typing bool
}

// PresenceChanged is broadcast to every connected session on an
// offline<->online transition, best effort.
type PresenceChanged struct {
	UserID string
	Online bool
}

func (MessageReceived) isDomainEvent() {}
func (TypingSignal) isDomainEvent() {}
func (PresenceChanged) isDomainEvent() {}
