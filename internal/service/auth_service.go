package service

import (
	"context"
	"log/slog"

	"github.com/Cecypo-Tech/cecypo-pos-mpesa/internal/auth"
	"github.com/Cecypo-Tech/cecypo-pos-mpesa/internal/models"
)

// AuthService handles cashier registration and login, issuing JWTs.
type AuthService struct {
	authenticator auth.Authenticator
	jwtManager    *auth.JWTManager
}

// NewAuthService creates a new authentication service.
func NewAuthService(authenticator auth.Authenticator, jwtManager *auth.JWTManager) *AuthService {
	return &AuthService{
		authenticator: authenticator,
		jwtManager:    jwtManager,
	}
}

// Register creates a new cashier account and returns a session token.
func (s *AuthService) Register(ctx context.Context, email, displayName, password string) (string, *models.User, error) {
	if email == "" || displayName == "" {
		return "", nil, auth.ErrInvalidCredentials
	}

	user, err := s.authenticator.Register(ctx, email, displayName, password)
	if err != nil {
		slog.Warn("Registration failed", "email", email, "error", err)
		return "", nil, err
	}

	token, err := s.jwtManager.Generate(user)
	if err != nil {
		slog.Error("Failed to generate token", "user_id", user.ID, "error", err)
		return "", nil, err
	}

	slog.Info("User registered", "user_id", user.ID, "email", email)
	return token, user, nil
}

// Login verifies credentials and returns a session token.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	user, err := s.authenticator.Authenticate(ctx, email, password)
	if err != nil {
		slog.Warn("Login failed", "email", email)
		return "", nil, err
	}

	token, err := s.jwtManager.Generate(user)
	if err != nil {
		slog.Error("Failed to generate token", "user_id", user.ID, "error", err)
		return "", nil, err
	}

	slog.Info("User logged in", "user_id", user.ID)
	return token, user, nil
}
