//go:generate go run go.uber.org/mock/mockgen -source=auth_service.go -destination=../mocks/mock_auth_service.go -package=mocks
package services

import (
	"fmt"

	"dm-gateway/auth"
	"dm-gateway/contract"
	"dm-gateway/errors"
)

type Token string

type IAuthService interface {
	Login(email, password string) (Token, string, error)
	Register(name, email, password string) (Token, string, error)
}

type AuthService struct {
	directory contract.IUserDirectory
	issuer    *auth.TokenIssuer
}

func NewAuthService(directory contract.IUserDirectory, issuer *auth.TokenIssuer) *AuthService {
	return &AuthService{directory: directory, issuer: issuer}
}

// Register validates, hashes, persists, and issues the initial token.
// Validation runs before any expensive cryptographic operation.
func (s *AuthService) Register(name, email, password string) (Token, string, error) {
	valReq := auth.RegisterRequest{
		Name:     name,
		Email:    email,
		Password: password,
	}
	if err := auth.ValidateRegister(valReq); err != nil {
		return "", "", fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}

	// Hashing happens here so the directory never sees a plain password.
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return "", "", fmt.Errorf("hashing failed: %w", err)
	}

	userID, err := s.directory.CreateUser(name, email, hashedPassword)
	if err != nil {
		return "", "", err // Propagates ErrUserAlreadyExists if the email is taken
	}

	token, err := s.issuer.Generate(userID, []string{"user"})
	if err != nil {
		return "", "", errors.ErrTokenGeneration
	}

	return Token(token), userID, nil
}

func (s *AuthService) Login(email, password string) (Token, string, error) {
	user, err := s.directory.GetUserByEmail(email)
	if err != nil {
		// Generic error to prevent user enumeration attacks.
		return "", "", errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return "", "", errors.ErrInvalidCredentials
	}

	token, err := s.issuer.Generate(user.ID, user.Roles)
	if err != nil {
		return "", "", errors.ErrTokenGeneration
	}

	return Token(token), user.ID, nil
}
