package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"dm-gateway/contract"
	"dm-gateway/domain"
	"dm-gateway/domain/event"
	apperrors "dm-gateway/errors"
	"dm-gateway/moderation"

	"github.com/google/uuid"
)

// validUserID accepts canonical uuids only. User ids are uuids everywhere
// in the system; anything else could smuggle the ':' and '|' key delimiters
// into the message log and surface in a foreign conversation's prefix scan.
func validUserID(id string) bool {
	return uuid.Validate(id) == nil
}

// FanoutEngine persists a private message and delivers it to every live
// session of the recipient and of the sender. Persistence is the sole
// commit point: nothing is delivered for a message that is not durably
// stored, and a store failure produces no delivery at all.
type FanoutEngine struct {
	log             *slog.Logger
	registry        contract.ISessionRegistry
	store           contract.IMessageStore
	censor          *moderation.Censor
	deliveryTimeout time.Duration
}

func NewFanoutEngine(log *slog.Logger, registry contract.ISessionRegistry,
	store contract.IMessageStore, censor *moderation.Censor, deliveryTimeout time.Duration) *FanoutEngine {
	return &FanoutEngine{
		log:             log,
		registry:        registry,
		store:           store,
		censor:          censor,
		deliveryTimeout: deliveryTimeout,
	}
}

// SendPrivateMessage validates, persists, then fans out. The returned
// Message (with its assigned id and timestamps) is the acknowledgement for
// the originating caller only. Text may be empty but never absent; an
// invalid payload never reaches the store.
func (f *FanoutEngine) SendPrivateMessage(ctx context.Context, senderID, to string, text *string) (domain.Message, error) {
	if !validUserID(to) || text == nil {
		return domain.Message{}, apperrors.ErrInvalidPayload
	}

	body := *text
	if f.censor != nil {
		body = f.censor.Apply(body)
	}

	msg, err := f.store.Append(ctx, senderID, to, body)
	if err != nil {
		f.log.Error("Message persistence failed", "from", senderID, "to", to, "error", err)
		return domain.Message{}, fmt.Errorf("%w: %v", apperrors.ErrServer, err)
	}

	f.deliver(msg)
	return msg, nil
}

// deliver pushes one copy of the message to each live session of recipient
// and sender, in parallel, each guarded by the delivery timeout. Delivery
// deliberately detaches from the request context: a sender disconnecting
// after the commit point must not cancel delivery to the recipient.
func (f *FanoutEngine) deliver(msg domain.Message) {
	evt := event.MessageReceived{Message: msg}

	var wg sync.WaitGroup
	var reachedRecipient atomic.Bool
	for _, s := range f.registry.SinksFor(msg.To) {
		wg.Add(1)
		go func(s contract.EventSink) {
			defer wg.Done()
			if f.push(s, evt) == nil {
				reachedRecipient.Store(true)
			}
		}(s)
	}

	if msg.From != msg.To {
		// The sender's other devices observe their own outgoing message.
		for _, s := range f.registry.SinksFor(msg.From) {
			go func(s contract.EventSink) {
				_ = f.push(s, evt)
			}(s)
		}
	}

	go func() {
		wg.Wait()
		if !reachedRecipient.Load() {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), f.deliveryTimeout)
		defer cancel()
		if err := f.store.MarkDelivered(ctx, msg.ID); err != nil {
			f.log.Debug("Delivered flag not recorded", "message_id", msg.ID, "error", err)
		}
	}()
}

func (f *FanoutEngine) push(s contract.EventSink, evt event.DomainEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), f.deliveryTimeout)
	defer cancel()
	err := s.Consume(ctx, evt)
	if err != nil {
		f.log.Debug("Event not consumed by session sink", "error", err)
	}
	return err
}

// RelayTyping forwards an ephemeral typing signal to the recipient's live
// sessions only: never echoed to the sender, never persisted, silently
// discarded when the recipient is offline or the recipient id is missing
// or malformed. Pushes are sequential so a start/stop pair reaches each
// session in the order it was sent; the sink buffer and per-push timeout
// keep a stalled session from holding the relay for long.
func (f *FanoutEngine) RelayTyping(senderID, to string, typing bool) {
	if !validUserID(to) {
		return
	}
	evt := event.TypingSignal{From: senderID, Typing: typing}
	for _, s := range f.registry.SinksFor(to) {
		_ = f.push(s, evt)
	}
}
