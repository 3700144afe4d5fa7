package repositories

import (
	"fmt"
	"testing"

	"dm-gateway/domain"
	apperrors "dm-gateway/errors"

	"github.com/stretchr/testify/require"
)

func TestUserRepository_Create_And_Lookup(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	// When a user registers
	id, err := repository.CreateUser("Alice", "Alice@Example.com", "hashed-secret")
	req.NoError(err)
	req.NotEmpty(id)

	// Then lookups by id and by email (any casing) agree
	byID, err := repository.GetUserByID(id)
	req.NoError(err)
	req.Equal("Alice", byID.Name)
	req.Equal("alice@example.com", byID.Email)
	req.Equal([]string{"user"}, byID.Roles)
	req.False(byID.Online)

	byEmail, err := repository.GetUserByEmail("alice@EXAMPLE.com")
	req.NoError(err)
	req.Equal(id, byEmail.ID)
}

func TestUserRepository_Duplicate_Email(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	_, err := repository.CreateUser("Alice", "alice@example.com", "hash-one")
	req.NoError(err)

	// When a second registration reuses the email
	_, err = repository.CreateUser("Imposter", "alice@example.com", "hash-two")

	// Then it is rejected and the original record is untouched
	req.ErrorIs(err, apperrors.ErrUserAlreadyExists)

	user, err := repository.GetUserByEmail("alice@example.com")
	req.NoError(err)
	req.Equal("Alice", user.Name)
}

func TestUserRepository_Unknown_User(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	_, err := repository.GetUserByID("missing")
	req.ErrorIs(err, apperrors.ErrNotFound)

	_, err = repository.GetUserByEmail("nobody@example.com")
	req.ErrorIs(err, apperrors.ErrNotFound)
}

func TestUserRepository_Presence_Anchor_Lifecycle(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	id, err := repository.CreateUser("Alice", "alice@example.com", "hash")
	req.NoError(err)

	phone := domain.SessionID("session-phone")
	laptop := domain.SessionID("session-laptop")

	// Given two connects, the anchor points at the newest session
	req.NoError(repository.SetPresence(id, phone))
	req.NoError(repository.SetPresence(id, laptop))

	user, err := repository.GetUserByID(id)
	req.NoError(err)
	req.True(user.Online)
	req.Equal(string(laptop), user.AnchorSessionID)

	// When a stale disconnect arrives for the session that lost the anchor
	req.NoError(repository.ReleasePresence(id, phone, ""))

	// Then the record is untouched
	user, err = repository.GetUserByID(id)
	req.NoError(err)
	req.True(user.Online)
	req.Equal(string(laptop), user.AnchorSessionID)

	// When the anchored session closes but another survives
	req.NoError(repository.ReleasePresence(id, laptop, phone))

	// Then the anchor moves and the user stays online
	user, err = repository.GetUserByID(id)
	req.NoError(err)
	req.True(user.Online)
	req.Equal(string(phone), user.AnchorSessionID)

	// When the last session closes
	req.NoError(repository.ReleasePresence(id, phone, ""))

	// Then the user is offline with no anchor
	user, err = repository.GetUserByID(id)
	req.NoError(err)
	req.False(user.Online)
	req.Empty(user.AnchorSessionID)
}

func TestUserRepository_ListUsers_Search_And_Paging(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	requester, err := repository.CreateUser("Requester", "requester@example.com", "hash")
	req.NoError(err)

	names := []string{"Alice", "Alina", "Bob", "Clara", "Malina"}
	for i, name := range names {
		_, err = repository.CreateUser(name, fmt.Sprintf("user%d@example.com", i), "hash")
		req.NoError(err)
	}

	// Everyone except the requester, sorted by name
	all, total, err := repository.ListUsers(requester, "", 10, 1)
	req.NoError(err)
	req.Equal(5, total)
	req.Len(all, 5)
	req.Equal("Alice", all[0].Name)
	req.Equal("Malina", all[4].Name)

	// Case-insensitive substring search
	matches, total, err := repository.ListUsers(requester, "lin", 10, 1)
	req.NoError(err)
	req.Equal(2, total)
	req.Equal("Alina", matches[0].Name)
	req.Equal("Malina", matches[1].Name)

	// Second page of two
	page, total, err := repository.ListUsers(requester, "", 2, 2)
	req.NoError(err)
	req.Equal(5, total)
	req.Len(page, 2)
	req.Equal("Bob", page[0].Name)
	req.Equal("Clara", page[1].Name)

	// Page past the end is empty but keeps reporting the total
	empty, total, err := repository.ListUsers(requester, "", 2, 9)
	req.NoError(err)
	req.Equal(5, total)
	req.Empty(empty)
}
