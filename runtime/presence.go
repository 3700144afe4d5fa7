package runtime

import (
	"context"
	"log/slog"
	"time"

	"dm-gateway/contract"
	"dm-gateway/domain"
	"dm-gateway/domain/event"
)

// PresenceManager turns registry membership changes into user_online
// broadcasts and keeps the directory's presence fields consistent with the
// registry. Transitions are decided by the registry (atomically, see
// Register/Unregister); this component only publishes and writes back.
type PresenceManager struct {
	log             *slog.Logger
	registry        contract.ISessionRegistry
	directory       contract.IUserDirectory
	deliveryTimeout time.Duration
}

func NewPresenceManager(log *slog.Logger, registry contract.ISessionRegistry,
	directory contract.IUserDirectory, deliveryTimeout time.Duration) *PresenceManager {
	return &PresenceManager{
		log:             log,
		registry:        registry,
		directory:       directory,
		deliveryTimeout: deliveryTimeout,
	}
}

// HandleConnect anchors presence on the newest session and, on the first
// session only, broadcasts the online transition.
func (p *PresenceManager) HandleConnect(ctx context.Context, userID string, sessionID domain.SessionID, cameOnline bool) {
	if err := p.directory.SetPresence(userID, sessionID); err != nil {
		p.log.Error("Presence write-back failed on connect", "user_id", userID, "error", err)
	}
	if cameOnline {
		p.broadcast(event.PresenceChanged{UserID: userID, Online: true})
	}
}

// HandleDisconnect releases the anchor (conditionally: only if the closing
// session still holds it) and broadcasts the offline transition when the
// last session is gone. A second call for the same session carries
// Removed == false and does nothing, which keeps teardown idempotent.
func (p *PresenceManager) HandleDisconnect(un contract.Unregistration, closing domain.SessionID) {
	if !un.Removed {
		return
	}
	if err := p.directory.ReleasePresence(un.UserID, closing, un.Survivor); err != nil {
		p.log.Error("Presence write-back failed on disconnect", "user_id", un.UserID, "error", err)
	}
	if un.WentOffline {
		p.broadcast(event.PresenceChanged{UserID: un.UserID, Online: false})
	}
}

// broadcast pushes a presence event to every connected session, best
// effort. A missed event is corrected by the next transition.
func (p *PresenceManager) broadcast(evt event.PresenceChanged) {
	for _, s := range p.registry.AllSinks() {
		go func(s contract.EventSink) {
			ctx, cancel := context.WithTimeout(context.Background(), p.deliveryTimeout)
			defer cancel()
			if err := s.Consume(ctx, evt); err != nil {
				p.log.Debug("Presence event dropped", "user_id", evt.UserID, "error", err)
			}
		}(s)
	}
}
