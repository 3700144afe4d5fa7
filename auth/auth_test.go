package auth

import (
	"testing"
	"time"

	"dm-gateway/errors"

	"github.com/stretchr/testify/require"
)

func TestTokenIssuer_RoundTrip(t *testing.T) {
	req := require.New(t)
	issuer := NewTokenIssuer("round-trip-secret", time.Hour)

	token, err := issuer.Generate("user-123", []string{"user", "admin"})
	req.NoError(err)
	req.NotEmpty(token)

	claims, err := issuer.Validate(token)
	req.NoError(err)
	req.Equal("user-123", claims.UserID)
	req.Equal([]string{"user", "admin"}, claims.Roles)
	req.Equal("dm-gateway", claims.Issuer)
}

func TestTokenIssuer_Rejects_Foreign_Signature(t *testing.T) {
	req := require.New(t)
	issuer := NewTokenIssuer("the-real-secret", time.Hour)
	foreign := NewTokenIssuer("somebody-elses-secret", time.Hour)

	token, err := foreign.Generate("user-123", []string{"user"})
	req.NoError(err)

	_, err = issuer.Validate(token)
	req.Error(err)
}

func TestTokenIssuer_Rejects_Expired_Token(t *testing.T) {
	req := require.New(t)
	issuer := NewTokenIssuer("expiry-secret", -time.Minute)

	token, err := issuer.Generate("user-123", []string{"user"})
	req.NoError(err)

	_, err = issuer.Validate(token)
	req.Error(err)
}

func TestPassword_Hash_And_Compare(t *testing.T) {
	req := require.New(t)
	password := "Str0ng&Secret!!"

	hash, err := HashPassword(password)
	req.NoError(err)
	req.NotEqual(password, hash)

	match, err := ComparePassword(password, hash)
	req.NoError(err)
	req.True(match)

	match, err = ComparePassword("WrongPassword1!", hash)
	req.NoError(err)
	req.False(match)

	// Two hashes of the same password never collide (random salt)
	second, err := HashPassword(password)
	req.NoError(err)
	req.NotEqual(hash, second)
}

func TestValidateRegister(t *testing.T) {
	tests := []struct {
		name    string
		request RegisterRequest
		wantErr bool
	}{
		{
			name:    "valid request",
			request: RegisterRequest{Name: "Alice", Email: "alice@example.com", Password: "ComplexPass123!"},
		},
		{
			name:    "missing name",
			request: RegisterRequest{Email: "alice@example.com", Password: "ComplexPass123!"},
			wantErr: true,
		},
		{
			name:    "malformed email",
			request: RegisterRequest{Name: "Alice", Email: "not-an-email", Password: "ComplexPass123!"},
			wantErr: true,
		},
		{
			name:    "password too short",
			request: RegisterRequest{Name: "Alice", Email: "alice@example.com", Password: "Sh0rt!"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			err := ValidateRegister(tt.request)
			if tt.wantErr {
				req.Error(err)
				return
			}
			req.NoError(err)
		})
	}

	// Length alone is not enough: complexity failures get a dedicated sentinel
	err := ValidateRegister(RegisterRequest{Name: "Alice", Email: "alice@example.com", Password: "onlylowercaseletters"})
	require.ErrorIs(t, err, errors.ErrInvalidPassword)
}
