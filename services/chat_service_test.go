package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"dm-gateway/domain"
	apperrors "dm-gateway/errors"
	"dm-gateway/mocks"
	"dm-gateway/runtime"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newChatServiceUnderTest(t *testing.T) (*ChatService, *mocks.MockIMessageStore) {
	t.Helper()
	ctrl := gomock.NewController(t)
	store := mocks.NewMockIMessageStore(ctrl)
	fanout := runtime.NewFanoutEngine(slog.Default(), runtime.NewRegistry(), store, nil, 500*time.Millisecond)
	return NewChatService(slog.Default(), fanout, store), store
}

func TestChatService_GetConversation_Clamps_The_Page_Size(t *testing.T) {
	svc, store := newChatServiceUnderTest(t)
	alice, bob := uuid.NewString(), uuid.NewString()

	tests := []struct {
		name      string
		requested int
		effective int
	}{
		{name: "absent limit falls back to default", requested: 0, effective: defaultPageSize},
		{name: "negative limit falls back to default", requested: -5, effective: defaultPageSize},
		{name: "reasonable limit passes through", requested: 7, effective: 7},
		{name: "oversized limit is capped", requested: 500, effective: maxPageSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			store.EXPECT().
				Conversation(gomock.Any(), alice, bob, gomock.Nil(), tt.effective).
				Return(nil, nil).Times(1)

			_, err := svc.GetConversation(context.Background(), alice, bob, tt.requested, nil)
			req.NoError(err)
		})
	}
}

func TestChatService_GetConversation_Reads_Oldest_To_Newest(t *testing.T) {
	req := require.New(t)
	svc, store := newChatServiceUnderTest(t)
	alice, bob := uuid.NewString(), uuid.NewString()

	at := time.Now().UTC()
	newestFirst := []domain.Message{
		{ID: uuid.New(), From: alice, To: bob, Text: "third", CreatedAt: at.Add(2 * time.Minute)},
		{ID: uuid.New(), From: bob, To: alice, Text: "second", CreatedAt: at.Add(1 * time.Minute)},
		{ID: uuid.New(), From: alice, To: bob, Text: "first", CreatedAt: at},
	}
	store.EXPECT().
		Conversation(gomock.Any(), alice, bob, gomock.Nil(), defaultPageSize).
		Return(newestFirst, nil).Times(1)

	// The store answers newest first; callers get a renderable page
	page, err := svc.GetConversation(context.Background(), alice, bob, 0, nil)
	req.NoError(err)
	req.Len(page, 3)
	req.Equal("first", page[0].Text)
	req.Equal("second", page[1].Text)
	req.Equal("third", page[2].Text)
}

func TestChatService_GetConversation_Forwards_The_Cursor(t *testing.T) {
	req := require.New(t)
	svc, store := newChatServiceUnderTest(t)
	alice, bob := uuid.NewString(), uuid.NewString()

	before := time.Now().UTC().Add(-time.Hour)
	store.EXPECT().
		Conversation(gomock.Any(), alice, bob, &before, 10).
		Return(nil, nil).Times(1)

	_, err := svc.GetConversation(context.Background(), alice, bob, 10, &before)
	req.NoError(err)
}

func TestChatService_GetConversation_Rejects_Malformed_Peer_Id(t *testing.T) {
	req := require.New(t)
	svc, store := newChatServiceUnderTest(t)

	// A peer id carrying storage delimiters never reaches the prefix scan
	store.EXPECT().Conversation(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	for _, crafted := range []string{"bob|carol:0", "bob|carol:x", "not-a-uuid", ""} {
		_, err := svc.GetConversation(context.Background(), uuid.NewString(), crafted, 10, nil)
		req.ErrorIs(err, apperrors.ErrInvalidPayload)
	}
}

func TestChatService_MarkSeen_Is_Best_Effort(t *testing.T) {
	svc, store := newChatServiceUnderTest(t)

	// A malformed id never reaches the store
	store.EXPECT().MarkSeen(gomock.Any(), gomock.Any()).Times(0)
	svc.MarkSeen(context.Background(), "not-a-uuid")
	svc.MarkSeen(context.Background(), "")
}

func TestChatService_MarkSeen_Valid_Id(t *testing.T) {
	svc, store := newChatServiceUnderTest(t)

	id := uuid.New()
	store.EXPECT().MarkSeen(gomock.Any(), id).Return(nil).Times(1)
	svc.MarkSeen(context.Background(), id.String())
}
