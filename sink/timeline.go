package sink

import (
	"context"
	"sync"

	"dm-gateway/domain"
	"dm-gateway/domain/event"
)

// Timeline records every event it consumes, in order. Test helper.
type Timeline struct {
	Owner string

	mu     sync.Mutex
	events []event.DomainEvent
}

func NewTimeline(owner string) *Timeline {
	return &Timeline{Owner: owner}
}

func (t *Timeline) Consume(_ context.Context, e event.DomainEvent) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, e)
	return nil
}

func (t *Timeline) Events() []event.DomainEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]event.DomainEvent{}, t.events...)
}

// Messages filters the timeline down to received private messages.
func (t *Timeline) Messages() []domain.Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	var messages []domain.Message
	for _, e := range t.events {
		if m, ok := e.(event.MessageReceived); ok {
			messages = append(messages, m.Message)
		}
	}
	return messages
}

// Presence filters the timeline down to presence transitions.
func (t *Timeline) Presence() []event.PresenceChanged {
	t.mu.Lock()
	defer t.mu.Unlock()

	var changes []event.PresenceChanged
	for _, e := range t.events {
		if p, ok := e.(event.PresenceChanged); ok {
			changes = append(changes, p)
		}
	}
	return changes
}

// Typing filters the timeline down to typing signals.
func (t *Timeline) Typing() []event.TypingSignal {
	t.mu.Lock()
	defer t.mu.Unlock()

	var signals []event.TypingSignal
	for _, e := range t.events {
		if s, ok := e.(event.TypingSignal); ok {
			signals = append(signals, s)
		}
	}
	return signals
}
