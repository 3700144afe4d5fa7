package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dm-gateway/auth"
	"dm-gateway/contract"
	"dm-gateway/domain"
	apperrors "dm-gateway/errors"
)

// ConnectionGateway authenticates incoming connections and owns their
// lifecycle: a session exists in the registry before any message handling
// is enabled for it, and teardown is idempotent however many times the
// disconnect path fires.
type ConnectionGateway struct {
	log       *slog.Logger
	issuer    *auth.TokenIssuer
	directory contract.IUserDirectory
	registry  contract.ISessionRegistry
	presence  *PresenceManager
}

func NewConnectionGateway(log *slog.Logger, issuer *auth.TokenIssuer,
	directory contract.IUserDirectory, registry contract.ISessionRegistry,
	presence *PresenceManager) *ConnectionGateway {
	return &ConnectionGateway{
		log:       log,
		issuer:    issuer,
		directory: directory,
		registry:  registry,
		presence:  presence,
	}
}

// Authenticate resolves a bearer credential to a user. A missing token, a
// bad signature, and a vanished user all surface as ErrUnauthenticated;
// the caller learns nothing more specific.
func (g *ConnectionGateway) Authenticate(token string) (domain.User, error) {
	if token == "" {
		return domain.User{}, fmt.Errorf("%w: no token in handshake", apperrors.ErrUnauthenticated)
	}

	claims, err := g.issuer.Validate(token)
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: %v", apperrors.ErrUnauthenticated, err)
	}

	user, err := g.directory.GetUserByID(claims.UserID)
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: user no longer exists", apperrors.ErrUnauthenticated)
	}
	return user, nil
}

// Connect performs the handshake: verify the credential, register the
// session, fire the presence hook. Registration completes before Connect
// returns, and the transport only wires per-session subjects afterwards,
// so no message handling can precede it.
func (g *ConnectionGateway) Connect(ctx context.Context, token string, s contract.EventSink) (domain.Session, error) {
	user, err := g.Authenticate(token)
	if err != nil {
		return domain.Session{}, err
	}

	sessionID, cameOnline := g.registry.Register(user.ID, s)
	g.presence.HandleConnect(ctx, user.ID, sessionID, cameOnline)

	g.log.Info("Session opened", "user_id", user.ID, "session_id", sessionID)
	return domain.Session{ID: sessionID, UserID: user.ID, CreatedAt: time.Now().UTC()}, nil
}

// Disconnect tears a session down. Safe to call any number of times and
// from concurrent paths (client close, transport error, reaper): the
// registry's compare-and-remove reports the duplicate calls as no-ops and
// at most one offline transition fires.
func (g *ConnectionGateway) Disconnect(sessionID domain.SessionID) {
	un := g.registry.Unregister(sessionID)
	if un.Removed {
		g.log.Info("Session closed", "user_id", un.UserID, "session_id", sessionID)
	}
	g.presence.HandleDisconnect(un, sessionID)
}
