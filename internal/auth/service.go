package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ouatt10/Troc-Scolaire-Backend/internal/store"
)

// ErrUnknownUser is returned when a token is requested for a user the store does not know.
var ErrUnknownUser = errors.New("unknown user")

// Service verifies bearer tokens and, for tooling and tests, issues them for known users.
type Service struct {
	store     store.UserStore
	jwtConfig *JWTConfig
}

// NewService creates a new authentication service.
func NewService(userStore store.UserStore, jwtConfig *JWTConfig) *Service {
	return &Service{
		store:     userStore,
		jwtConfig: jwtConfig,
	}
}

// IssueToken returns a signed token for an existing user.
func (s *Service) IssueToken(ctx context.Context, userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", ErrUnknownUser
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrUnknownUser
		}
		return "", fmt.Errorf("get user: %w", err)
	}

	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	token, err := GenerateToken(s.jwtConfig, user.ID, name)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return token, nil
}

// ValidateToken validates a JWT token and returns its claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return ValidateToken(s.jwtConfig, tokenString)
}

// Authenticate returns the user id carried by a valid token.
func (s *Service) Authenticate(tokenString string) (string, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return "", err
	}
	return claims.User(), nil
}
