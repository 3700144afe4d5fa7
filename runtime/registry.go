// Package runtime hosts the live-connection machinery: the session
// registry, presence transitions, message fanout, and the connection
// gateway. It contains no storage or transport specifics.
package runtime

import (
	"sync"
	"time"

	"dm-gateway/contract"
	"dm-gateway/domain"

	"github.com/google/uuid"
)

type liveSession struct {
	id        domain.SessionID
	userID    string
	sink      contract.EventSink
	createdAt time.Time
	lastSeen  time.Time
}

// Registry owns every live session. It is the single structure mutated from
// many connection goroutines; one mutex makes each operation atomic, so the
// online-transition check and the membership change it depends on can never
// interleave with another connection's view.
type Registry struct {
	mu       sync.Mutex
	sessions map[domain.SessionID]*liveSession
	byUser   map[string]map[domain.SessionID]*liveSession
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[domain.SessionID]*liveSession),
		byUser:   make(map[string]map[domain.SessionID]*liveSession),
	}
}

// Register adds a session for userID and reports whether this was the
// user's first live session (the OFFLINE -> ONLINE transition). The check
// and the insertion are a single step under the lock.
func (r *Registry) Register(userID string, sink contract.EventSink) (domain.SessionID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	s := &liveSession{
		id:        domain.SessionID(uuid.NewString()),
		userID:    userID,
		sink:      sink,
		createdAt: now,
		lastSeen:  now,
	}

	cameOnline := len(r.byUser[userID]) == 0

	r.sessions[s.id] = s
	if r.byUser[userID] == nil {
		r.byUser[userID] = make(map[domain.SessionID]*liveSession)
	}
	r.byUser[userID][s.id] = s

	return s.id, cameOnline
}

// Unregister removes the session if it is still present (compare-and-remove:
// an already-removed session is a no-op, never an error). The remaining
// session count is read after removal, under the same lock, so the
// ONLINE -> OFFLINE decision can never undercount.
func (r *Registry) Unregister(id domain.SessionID) contract.Unregistration {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return contract.Unregistration{}
	}

	delete(r.sessions, id)
	remaining := r.byUser[s.userID]
	delete(remaining, id)
	if len(remaining) == 0 {
		delete(r.byUser, s.userID)
	}

	un := contract.Unregistration{
		UserID:      s.userID,
		Removed:     true,
		WentOffline: len(remaining) == 0,
	}
	for survivorID := range remaining {
		un.Survivor = survivorID
		break
	}
	return un
}

// SinksFor returns the delivery targets for a user, possibly empty.
func (r *Registry) SinksFor(userID string) []contract.EventSink {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions := r.byUser[userID]
	if len(sessions) == 0 {
		return nil
	}
	sinks := make([]contract.EventSink, 0, len(sessions))
	for _, s := range sessions {
		sinks = append(sinks, s.sink)
	}
	return sinks
}

// AllSinks returns every connected session's sink, for presence broadcasts.
func (r *Registry) AllSinks() []contract.EventSink {
	r.mu.Lock()
	defer r.mu.Unlock()

	sinks := make([]contract.EventSink, 0, len(r.sessions))
	for _, s := range r.sessions {
		sinks = append(sinks, s.sink)
	}
	return sinks
}

func (r *Registry) IsOnline(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byUser[userID]) > 0
}

// Owner resolves a session id to its user, used by the transport layer to
// authorize per-session subjects.
func (r *Registry) Owner(id domain.SessionID) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return "", false
	}
	return s.userID, true
}

// Touch refreshes the liveness deadline of a session on a client ping.
func (r *Registry) Touch(id domain.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[id]; ok {
		s.lastSeen = time.Now().UTC()
	}
}

// Expired lists sessions whose last ping is older than the given deadline.
// The reaper runs these through the normal idempotent teardown.
func (r *Registry) Expired(olderThan time.Time) []domain.SessionID {
	r.mu.Lock()
	defer r.mu.Unlock()

	var expired []domain.SessionID
	for id, s := range r.sessions {
		if s.lastSeen.Before(olderThan) {
			expired = append(expired, id)
		}
	}
	return expired
}

// Stats reports live session and user counts for the heartbeat worker.
func (r *Registry) Stats() (sessions, users int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions), len(r.byUser)
}
