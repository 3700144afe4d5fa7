package workers

import (
	"context"
	"log/slog"
	"time"

	"dm-gateway/domain"
)

// disconnector is the slice of the gateway the reaper needs.
type disconnector interface {
	Disconnect(id domain.SessionID)
}

// expiredLister is the slice of the registry the reaper needs.
type expiredLister interface {
	Expired(olderThan time.Time) []domain.SessionID
}

// SessionReaper expires sessions whose client stopped pinging. Expired
// sessions go through the gateway's normal Disconnect path, so a reap
// racing an explicit close is harmless.
type SessionReaper struct {
	log      *slog.Logger
	registry expiredLister
	gateway  disconnector
	interval time.Duration
	timeout  time.Duration
}

func NewSessionReaper(log *slog.Logger, registry expiredLister, gateway disconnector,
	interval, timeout time.Duration) *SessionReaper {
	return &SessionReaper{
		log:      log,
		registry: registry,
		gateway:  gateway,
		interval: interval,
		timeout:  timeout,
	}
}

func (w *SessionReaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			deadline := time.Now().UTC().Add(-w.timeout)
			for _, id := range w.registry.Expired(deadline) {
				w.log.Info("Reaping silent session", "session_id", id)
				w.gateway.Disconnect(id)
			}
		}
	}
}
