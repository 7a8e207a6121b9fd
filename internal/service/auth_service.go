package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/FeruzLatifov/univer-back-sub003/internal/config"
	"github.com/FeruzLatifov/univer-back-sub003/internal/jwt"
	pw "github.com/FeruzLatifov/univer-back-sub003/internal/password"
	"github.com/FeruzLatifov/univer-back-sub003/internal/repository"
)

// SessionResponse is the first-party login payload.
type SessionResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// AuthError standardizes protocol-shaped authentication errors.
type AuthError struct {
	Code        string
	Description string
	Status      int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func newAuthError(code, desc string, status int) *AuthError {
	return &AuthError{Code: code, Description: desc, Status: status}
}

// AuthService signs staff and students in to first-party sessions. The
// session token is what authenticates the authorize confirmation and menu
// endpoints; OAuth tokens themselves stay opaque.
type AuthService struct {
	users  repository.UserRepository
	jwt    *jwt.Generator
	cfg    config.Config
	logger *zap.Logger
}

// NewAuthService wires dependencies.
func NewAuthService(users repository.UserRepository, generator *jwt.Generator, cfg config.Config, logger *zap.Logger) *AuthService {
	return &AuthService{users: users, jwt: generator, cfg: cfg, logger: logger}
}

// Login authenticates the user with email/password and issues a session JWT.
func (s *AuthService) Login(ctx context.Context, email, password, issuer string) (*SessionResponse, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.GetByEmail(ctx, normalized)
	if err != nil {
		return nil, newAuthError("invalid_grant", "Wrong email or password.", http.StatusBadRequest)
	}
	if user.Status != "" && user.Status != "ACTIVE" {
		return nil, newAuthError("invalid_grant", "Account is not active.", http.StatusBadRequest)
	}

	valid, err := pw.Verify(password, user.PasswordHash)
	if err != nil || !valid {
		return nil, newAuthError("invalid_grant", "Wrong email or password.", http.StatusBadRequest)
	}

	token, err := s.jwt.GenerateSessionToken(ctx, user, issuer)
	if err != nil {
		return nil, fmt.Errorf("generate session token: %w", err)
	}

	s.log().Info("audit",
		zap.String("event", "session.login.success"),
		zap.Time("timestamp", time.Now().UTC()),
		zap.Int64("user_id", user.ID),
	)

	return &SessionResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.cfg.SessionTokenTTL.Seconds()),
	}, nil
}

func (s *AuthService) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}
