package sink

import (
	"context"
	"testing"
	"time"

	"dm-gateway/domain/event"

	"github.com/stretchr/testify/require"
)

func TestChannelSink_Consume_Hands_Over_In_Order(t *testing.T) {
	req := require.New(t)
	s := NewChannelSink(4)

	first := event.TypingSignal{From: "alice", Typing: true}
	second := event.TypingSignal{From: "alice", Typing: false}

	req.NoError(s.Consume(context.Background(), first))
	req.NoError(s.Consume(context.Background(), second))

	req.Equal(first, <-s.Events)
	req.Equal(second, <-s.Events)
}

func TestChannelSink_Consume_Gives_Up_On_Stalled_Consumer(t *testing.T) {
	req := require.New(t)

	// Given a full buffer nobody drains
	s := NewChannelSink(1)
	req.NoError(s.Consume(context.Background(), event.TypingSignal{From: "alice"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// When another event arrives within the delivery timeout window
	err := s.Consume(ctx, event.TypingSignal{From: "bob"})

	// Then the fanout is released instead of blocked forever
	req.ErrorIs(err, context.DeadlineExceeded)
}
