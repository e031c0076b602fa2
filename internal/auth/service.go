package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/smartpot-io/smartpot-core/internal/infrastructure/config"
)

// Service handles registration and authentication over a UserRepository.
type Service struct {
	repo UserRepository
	jwt  config.JWTConfig
}

// NewService creates an auth service.
func NewService(repo UserRepository, jwtCfg config.JWTConfig) *Service {
	return &Service{repo: repo, jwt: jwtCfg}
}

// Register validates and creates a new user account.
func (s *Service) Register(ctx context.Context, email, username, password string) (*User, error) {
	if !IsValidEmail(email) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	if !IsValidUsername(username) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUsername, username)
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: minimum %d characters", ErrWeakPassword, minPasswordLength)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &User{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate verifies credentials and returns a signed access token.
//
// Unknown email and wrong password produce the same ErrInvalidCredentials;
// login errors must not reveal which part was wrong.
func (s *Service) Authenticate(ctx context.Context, email, password string) (string, *User, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("looking up user: %w", err)
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return "", nil, fmt.Errorf("verifying password: %w", err)
	}
	if !ok {
		return "", nil, ErrInvalidCredentials
	}

	token, err := GenerateAccessToken(user, s.jwt.Secret, s.jwt.AccessTokenTTL)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// Validate parses and checks an access token.
func (s *Service) Validate(tokenString string) (*Claims, error) {
	return ParseToken(tokenString, s.jwt.Secret)
}
