package runtime

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"dm-gateway/mocks"
	"dm-gateway/sink"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const deliveryTimeout = 500 * time.Millisecond

func TestPresence_First_Session_Broadcasts_Online_Once(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	registry := NewRegistry()
	directory := mocks.NewMockIUserDirectory(ctrl)
	presence := NewPresenceManager(slog.Default(), registry, directory, deliveryTimeout)

	alice := uuid.NewString()
	bob := uuid.NewString()

	// Given bob is already connected and watching
	observer := sink.NewTimeline(bob)
	registry.Register(bob, observer)

	directory.EXPECT().SetPresence(alice, gomock.Any()).Return(nil).Times(2)

	// When alice connects from two devices
	first, cameOnline := registry.Register(alice, sink.NewTimeline(alice))
	presence.HandleConnect(context.Background(), alice, first, cameOnline)

	second, cameOnline := registry.Register(alice, sink.NewTimeline(alice))
	presence.HandleConnect(context.Background(), alice, second, cameOnline)

	// Then exactly one online transition reaches bob
	req.Eventually(func() bool {
		return len(observer.Presence()) == 1
	}, time.Second, 10*time.Millisecond)

	change := observer.Presence()[0]
	req.Equal(alice, change.UserID)
	req.True(change.Online)
}

func TestPresence_Offline_Fires_Only_When_Last_Session_Closes(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	registry := NewRegistry()
	directory := mocks.NewMockIUserDirectory(ctrl)
	presence := NewPresenceManager(slog.Default(), registry, directory, deliveryTimeout)

	alice := uuid.NewString()
	bob := uuid.NewString()

	observer := sink.NewTimeline(bob)
	registry.Register(bob, observer)

	directory.EXPECT().SetPresence(alice, gomock.Any()).Return(nil).Times(2)

	// Given alice holds two live sessions
	first, cameOnline := registry.Register(alice, sink.NewTimeline(alice))
	presence.HandleConnect(context.Background(), alice, first, cameOnline)
	second, cameOnline := registry.Register(alice, sink.NewTimeline(alice))
	presence.HandleConnect(context.Background(), alice, second, cameOnline)

	// When the first session closes, the anchor moves to the survivor
	directory.EXPECT().ReleasePresence(alice, first, second).Return(nil).Times(1)
	presence.HandleDisconnect(registry.Unregister(first), first)

	// Then alice is still online and bob hears nothing about it
	req.True(registry.IsOnline(alice))

	// When the last session closes
	directory.EXPECT().ReleasePresence(alice, second, gomock.Any()).Return(nil).Times(1)
	presence.HandleDisconnect(registry.Unregister(second), second)

	// Then exactly one offline transition reaches bob
	req.Eventually(func() bool {
		presences := observer.Presence()
		return len(presences) == 2 && !presences[1].Online
	}, time.Second, 10*time.Millisecond)
	req.False(registry.IsOnline(alice))
}

func TestPresence_Duplicate_Disconnect_Is_Silent(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	registry := NewRegistry()
	directory := mocks.NewMockIUserDirectory(ctrl)
	presence := NewPresenceManager(slog.Default(), registry, directory, deliveryTimeout)

	alice := uuid.NewString()
	directory.EXPECT().SetPresence(alice, gomock.Any()).Return(nil).Times(1)
	directory.EXPECT().ReleasePresence(alice, gomock.Any(), gomock.Any()).Return(nil).Times(1)

	sessionID, cameOnline := registry.Register(alice, sink.NewTimeline(alice))
	presence.HandleConnect(context.Background(), alice, sessionID, cameOnline)

	// Given the session already tore down once
	presence.HandleDisconnect(registry.Unregister(sessionID), sessionID)

	// When a concurrent teardown path fires again
	// Then no second directory write happens (Times(1) above)
	presence.HandleDisconnect(registry.Unregister(sessionID), sessionID)
	req.False(registry.IsOnline(alice))
}
