package services

import (
	"testing"
	"time"

	"dm-gateway/auth"
	"dm-gateway/domain"
	"dm-gateway/errors"
	"dm-gateway/mocks"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newAuthServiceUnderTest(t *testing.T) (*AuthService, *mocks.MockIUserDirectory, *auth.TokenIssuer) {
	t.Helper()
	ctrl := gomock.NewController(t)
	directory := mocks.NewMockIUserDirectory(ctrl)
	issuer := auth.NewTokenIssuer("auth-service-test-secret", 24*time.Hour)
	return NewAuthService(directory, issuer), directory, issuer
}

func TestAuthService_Register(t *testing.T) {
	svc, directory, issuer := newAuthServiceUnderTest(t)

	t.Run("should register successfully when input is valid", func(t *testing.T) {
		req := require.New(t)
		email := "test@example.com"
		password := "ComplexPass123!"
		expectedUserID := "user-uuid"

		// The directory must receive a hash, never the plain password
		directory.EXPECT().
			CreateUser("Alice", email, gomock.Any()).
			DoAndReturn(func(name, email, hashedPassword string) (string, error) {
				req.NotEqual(password, hashedPassword)
				match, err := auth.ComparePassword(password, hashedPassword)
				req.NoError(err)
				req.True(match)
				return expectedUserID, nil
			}).Times(1)

		token, userID, err := svc.Register("Alice", email, password)

		req.NoError(err)
		req.Equal(expectedUserID, userID)
		req.NotEmpty(token)

		claims, err := issuer.Validate(string(token))
		req.NoError(err)
		req.Equal(expectedUserID, claims.UserID)
	})

	t.Run("should fail when password complexity is not met", func(t *testing.T) {
		req := require.New(t)

		// Directory should NEVER be called
		directory.EXPECT().CreateUser(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		// Long enough, but no digit and no symbol
		token, _, err := svc.Register("Alice", "test@example.com", "OnlyLettersHere")

		req.ErrorIs(err, errors.ErrInvalidPayload)
		req.Empty(token)
	})

	t.Run("should fail when payload is incomplete", func(t *testing.T) {
		req := require.New(t)

		directory.EXPECT().CreateUser(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		_, _, err := svc.Register("", "not-an-email", "short")
		req.ErrorIs(err, errors.ErrInvalidPayload)
	})

	t.Run("should fail when user already exists in directory", func(t *testing.T) {
		req := require.New(t)
		email := "duplicate@example.com"

		directory.EXPECT().
			CreateUser("Alice", email, gomock.Any()).
			Return("", errors.ErrUserAlreadyExists).
			Times(1)

		_, _, err := svc.Register("Alice", email, "ComplexPass123!")

		req.ErrorIs(err, errors.ErrUserAlreadyExists)
	})
}

func TestAuthService_Login(t *testing.T) {
	svc, directory, issuer := newAuthServiceUnderTest(t)

	t.Run("should login successfully with correct credentials", func(t *testing.T) {
		req := require.New(t)
		email := "user@example.com"
		password := "Secret123456!"

		hashedPassword, _ := auth.HashPassword(password)
		storedUser := domain.User{
			ID:           "uuid-123",
			Email:        email,
			PasswordHash: hashedPassword,
			Roles:        []string{"user"},
		}

		directory.EXPECT().
			GetUserByEmail(email).
			Return(storedUser, nil).
			Times(1)

		token, userID, err := svc.Login(email, password)

		req.NoError(err)
		req.Equal(storedUser.ID, userID)
		req.NotEmpty(token)

		claims, err := issuer.Validate(string(token))
		req.NoError(err)
		req.Equal(storedUser.ID, claims.UserID)
		req.Equal(storedUser.Roles, claims.Roles)
	})

	t.Run("should return invalid credentials when password matches nothing", func(t *testing.T) {
		req := require.New(t)
		email := "user@example.com"

		hashedPassword, _ := auth.HashPassword("CorrectPassword123!")
		storedUser := domain.User{
			Email:        email,
			PasswordHash: hashedPassword,
		}

		directory.EXPECT().
			GetUserByEmail(email).
			Return(storedUser, nil).
			Times(1)

		_, _, err := svc.Login(email, "WrongPassword123!")

		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})

	t.Run("should return invalid credentials when user is not found", func(t *testing.T) {
		req := require.New(t)

		directory.EXPECT().
			GetUserByEmail("unknown@example.com").
			Return(domain.User{}, errors.ErrNotFound).
			Times(1)

		_, _, err := svc.Login("unknown@example.com", "anyPassword")

		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})
}
