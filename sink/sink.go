// Package sink provides EventSink implementations: a buffered channel sink
// feeding one live connection, and an in-memory timeline used by tests.
package sink

import (
	"context"

	"dm-gateway/domain/event"
)

// ChannelSink bridges the fanout path to one connection's delivery loop.
// Consume hands the event to whoever drains Events; it gives up when the
// caller's delivery timeout expires rather than blocking the fanout.
type ChannelSink struct {
	Events chan event.DomainEvent
}

func NewChannelSink(bufferSize int) *ChannelSink {
	return &ChannelSink{Events: make(chan event.DomainEvent, bufferSize)}
}

func (s *ChannelSink) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case s.Events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
