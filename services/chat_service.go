//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"context"
	"log/slog"
	"time"

	"dm-gateway/contract"
	"dm-gateway/domain"
	apperrors "dm-gateway/errors"
	"dm-gateway/runtime"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type IChatService interface {
	SendPrivateMessage(ctx context.Context, senderID, to string, text *string) (domain.Message, error)
	RelayTyping(senderID, to string, typing bool)
	GetConversation(ctx context.Context, requesterID, otherUserID string, limit int, before *time.Time) ([]domain.Message, error)
	MarkSeen(ctx context.Context, messageID string)
}

// ChatService fronts the fanout engine for the hot path and the message
// store for history reads. History is independent of live state: it works
// even when neither participant is online.
type ChatService struct {
	log    *slog.Logger
	fanout *runtime.FanoutEngine
	store  contract.IMessageStore
}

func NewChatService(log *slog.Logger, fanout *runtime.FanoutEngine, store contract.IMessageStore) *ChatService {
	return &ChatService{log: log, fanout: fanout, store: store}
}

func (s *ChatService) SendPrivateMessage(ctx context.Context, senderID, to string, text *string) (domain.Message, error) {
	return s.fanout.SendPrivateMessage(ctx, senderID, to, text)
}

func (s *ChatService) RelayTyping(senderID, to string, typing bool) {
	s.fanout.RelayTyping(senderID, to, typing)
}

// GetConversation returns one page of the conversation between requester
// and other, strictly oldest to newest, so callers can prepend older pages
// to an in-memory timeline without re-sorting. The store is queried newest
// first up to the clamped limit, then the page is reversed.
func (s *ChatService) GetConversation(ctx context.Context, requesterID, otherUserID string, limit int, before *time.Time) ([]domain.Message, error) {
	// Same uuid-shape rule as the send path: a peer id carrying key
	// delimiters must never reach the store's prefix scan.
	if uuid.Validate(otherUserID) != nil {
		return nil, apperrors.ErrInvalidPayload
	}
	messages, err := s.store.Conversation(ctx, requesterID, otherUserID, before, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	return lo.Reverse(messages), nil
}

// MarkSeen records a read receipt, best effort: failures are logged and
// never surfaced to the client.
func (s *ChatService) MarkSeen(ctx context.Context, messageID string) {
	id, err := uuid.Parse(messageID)
	if err != nil {
		return
	}
	if err := s.store.MarkSeen(ctx, id); err != nil {
		s.log.Debug("Seen flag not recorded", "message_id", messageID, "error", err)
	}
}

// clampLimit silently forces the page size into [1, maxPageSize]; an
// absent or non-positive limit falls back to the default.
func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultPageSize
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}
