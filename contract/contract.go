//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
	"time"

	"dm-gateway/domain"
	"dm-gateway/domain/event"

	"github.com/google/uuid"
)

// EventSink receives events addressed to one live session. Implementations
// must not block past the context deadline.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// Unregistration reports what an Unregister call actually did. Removed is
// false when the session was already gone (compare-and-remove semantics).
// WentOffline is true only when the owning user has zero sessions left.
// Survivor names another live session of the same user, if any, so the
// presence anchor can be re-pointed.
type Unregistration struct {
	UserID      string
	Removed     bool
	WentOffline bool
	Survivor    domain.SessionID
}

// ISessionRegistry is the single shared mutable structure of the gateway.
// Every operation is atomic; no caller ever sees a read-then-act gap.
type ISessionRegistry interface {
	Register(userID string, sink EventSink) (domain.SessionID, bool)
	Unregister(id domain.SessionID) Unregistration
	SinksFor(userID string) []EventSink
	AllSinks() []EventSink
	IsOnline(userID string) bool
	Owner(id domain.SessionID) (string, bool)
	Touch(id domain.SessionID)
	Expired(olderThan time.Time) []domain.SessionID
}

// IUserDirectory is the identity collaborator: lookups plus the conditional
// presence write-back required by the User invariant.
type IUserDirectory interface {
	CreateUser(name, email, hashedPassword string) (string, error)
	GetUserByEmail(email string) (domain.User, error)
	GetUserByID(id string) (domain.User, error)
	ListUsers(excludeID, q string, limit, page int) ([]domain.User, int, error)
	SetPresence(userID string, anchor domain.SessionID) error
	ReleasePresence(userID string, closing, survivor domain.SessionID) error
}

// IMessageStore is the durable append-only log of messages, queryable by
// participant pair and time cursor. Conversation returns newest-first.
type IMessageStore interface {
	Append(ctx context.Context, from, to, text string) (domain.Message, error)
	Conversation(ctx context.Context, a, b string, before *time.Time, limit int) ([]domain.Message, error)
	MarkDelivered(ctx context.Context, id uuid.UUID) error
	MarkSeen(ctx context.Context, id uuid.UUID) error
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
