package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/FeruzLatifov/univer-back-sub003/internal/config"
	"github.com/FeruzLatifov/univer-back-sub003/internal/domain"
	domainoauth "github.com/FeruzLatifov/univer-back-sub003/internal/domain/oauth"
	"github.com/FeruzLatifov/univer-back-sub003/internal/repository"
)

// TokenPair is the OAuth token endpoint response payload.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

// TokenService manages the authorization-code grant flow and bearer-token
// rotation. Every mutating operation runs as one transaction: a crash
// mid-exchange can never leave a usable code plus usable tokens at once.
type TokenService struct {
	storage repository.Storage
	ids     *snowflake.Node
	cfg     config.Config
	logger  *zap.Logger
	tracer  trace.Tracer
}

// NewTokenService wires dependencies.
func NewTokenService(storage repository.Storage, ids *snowflake.Node, cfg config.Config, logger *zap.Logger) *TokenService {
	return &TokenService{
		storage: storage,
		ids:     ids,
		cfg:     cfg,
		logger:  logger,
		tracer:  otel.Tracer("github.com/FeruzLatifov/univer-back-sub003/internal/service"),
	}
}

// AuthorizeClient validates the client reference and redirect URI for the
// authorization confirmation step. It issues nothing.
func (s *TokenService) AuthorizeClient(ctx context.Context, clientID, redirectURI string) (domain.Client, error) {
	client, err := s.storage.Clients().GetByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Client{}, domainoauth.ErrClientNotFound
		}
		return domain.Client{}, fmt.Errorf("authorize client lookup: %w", err)
	}
	if client.Revoked {
		return domain.Client{}, domainoauth.ErrClientNotFound
	}
	if redirectURI != client.RedirectURI {
		return domain.Client{}, domainoauth.ErrRedirectMismatch
	}
	return client, nil
}

// IssueAuthorizationCode persists a single-use code bound to the user.
func (s *TokenService) IssueAuthorizationCode(ctx context.Context, clientID string, userID int64, scopes []string) (domain.AuthorizationCode, error) {
	ctx, span := s.startSpan(ctx, "TokenService.IssueAuthorizationCode")
	defer span.End()

	code := domain.AuthorizationCode{
		ID:        s.ids.Generate().Int64(),
		Code:      s.randomToken(),
		ClientID:  clientID,
		UserID:    userID,
		Scopes:    scopes,
		ExpiresAt: time.Now().Add(s.cfg.AuthCodeTTL),
	}
	if err := s.storage.Codes().Create(ctx, code); err != nil {
		span.RecordError(err)
		return domain.AuthorizationCode{}, fmt.Errorf("persist authorization code: %w", err)
	}

	s.audit("authorization_code.issued", "client_id", clientID, "user_id", userID)
	return code, nil
}

// ExchangeAuthorizationCode redeems a code for a fresh token pair. The code
// row is locked for the duration of the transaction, so a code is exchanged
// exactly once; the loser of a race observes the revoked flag.
func (s *TokenService) ExchangeAuthorizationCode(ctx context.Context, code, clientID, clientSecret string) (*TokenPair, error) {
	ctx, span := s.startSpan(ctx, "TokenService.ExchangeAuthorizationCode")
	defer span.End()

	var pair *TokenPair
	err := s.storage.InTx(ctx, func(tx repository.Storage) error {
		stored, err := tx.Codes().GetByCodeForUpdate(ctx, code)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domainoauth.ErrInvalidCode
			}
			return fmt.Errorf("load code: %w", err)
		}
		if stored.ClientID != clientID {
			return domainoauth.ErrClientMismatch
		}
		if err := s.checkClientSecret(ctx, tx, clientID, clientSecret); err != nil {
			return err
		}
		// Expiry wins over the revoked flag: an expired code is dead
		// unconditionally.
		if time.Now().After(stored.ExpiresAt) {
			return domainoauth.ErrCodeExpired
		}
		if stored.Revoked {
			s.audit("security.replay", "kind", "authorization_code", "client_id", clientID, "user_id", stored.UserID)
			return domainoauth.ErrCodeAlreadyUsed
		}

		pair, err = s.issuePair(ctx, tx, stored.ClientID, stored.UserID, stored.Scopes)
		if err != nil {
			return err
		}
		return tx.Codes().Revoke(ctx, stored.ID)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.audit("authorization_code.exchanged", "client_id", clientID)
	return pair, nil
}

// RefreshAccessToken rotates a token pair. The old access and refresh
// tokens are revoked in the same transaction that creates the new pair, so
// of two concurrent refreshes exactly one wins and the other observes
// ErrTokenRevoked.
func (s *TokenService) RefreshAccessToken(ctx context.Context, refreshToken, clientID string) (*TokenPair, error) {
	ctx, span := s.startSpan(ctx, "TokenService.RefreshAccessToken")
	defer span.End()

	var pair *TokenPair
	err := s.storage.InTx(ctx, func(tx repository.Storage) error {
		stored, err := tx.RefreshTokens().GetByTokenForUpdate(ctx, refreshToken)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domainoauth.ErrInvalidToken
			}
			return fmt.Errorf("load refresh token: %w", err)
		}
		if time.Now().After(stored.ExpiresAt) {
			return domainoauth.ErrTokenExpired
		}
		if stored.Revoked {
			s.audit("security.replay", "kind", "refresh_token", "client_id", clientID)
			return domainoauth.ErrTokenRevoked
		}

		access, err := tx.AccessTokens().GetByID(ctx, stored.AccessTokenID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domainoauth.ErrInvalidToken
			}
			return fmt.Errorf("load access token lineage: %w", err)
		}
		if access.ClientID != clientID {
			return domainoauth.ErrClientMismatch
		}

		pair, err = s.issuePair(ctx, tx, access.ClientID, access.UserID, access.Scopes)
		if err != nil {
			return err
		}
		if _, err := tx.AccessTokens().Revoke(ctx, access.ID); err != nil {
			return err
		}
		return tx.RefreshTokens().Revoke(ctx, stored.ID)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.audit("refresh_token.rotated", "client_id", clientID)
	return pair, nil
}

// ValidateAccessToken resolves a bearer token. A token that is unknown,
// revoked, or expired yields (nil, nil): validation failure is a normal
// outcome, not an error.
func (s *TokenService) ValidateAccessToken(ctx context.Context, token string) (*domain.AccessToken, error) {
	stored, err := s.storage.AccessTokens().GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load access token: %w", err)
	}
	if stored.Revoked || time.Now().After(stored.ExpiresAt) {
		return nil, nil
	}
	return &stored, nil
}

// RevokeAccessToken revokes the token and its refresh lineage. Idempotent;
// reports false only when the token never existed.
func (s *TokenService) RevokeAccessToken(ctx context.Context, token string) (bool, error) {
	found := false
	err := s.storage.InTx(ctx, func(tx repository.Storage) error {
		stored, err := tx.AccessTokens().GetByToken(ctx, token)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("load access token: %w", err)
		}
		found = true
		if _, err := tx.AccessTokens().Revoke(ctx, stored.ID); err != nil {
			return err
		}
		return tx.RefreshTokens().RevokeByAccessTokenID(ctx, stored.ID)
	})
	if err != nil {
		return false, err
	}
	if found {
		s.audit("access_token.revoked")
	}
	return found, nil
}

// RevokeToken handles the revocation endpoint. The hint orders the lookup;
// when it misses, the other token kind is tried.
func (s *TokenService) RevokeToken(ctx context.Context, token, tokenTypeHint string) (bool, error) {
	if tokenTypeHint == "refresh_token" {
		if ok, err := s.revokeRefreshToken(ctx, token); err != nil || ok {
			return ok, err
		}
		return s.RevokeAccessToken(ctx, token)
	}
	if ok, err := s.RevokeAccessToken(ctx, token); err != nil || ok {
		return ok, err
	}
	return s.revokeRefreshToken(ctx, token)
}

func (s *TokenService) revokeRefreshToken(ctx context.Context, token string) (bool, error) {
	found := false
	err := s.storage.InTx(ctx, func(tx repository.Storage) error {
		stored, err := tx.RefreshTokens().GetByTokenForUpdate(ctx, token)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("load refresh token: %w", err)
		}
		found = true
		if err := tx.RefreshTokens().Revoke(ctx, stored.ID); err != nil {
			return err
		}
		_, err = tx.AccessTokens().Revoke(ctx, stored.AccessTokenID)
		return err
	})
	if err != nil {
		return false, err
	}
	if found {
		s.audit("refresh_token.revoked")
	}
	return found, nil
}

// CleanupExpiredTokens purges rows past expiry across all three token
// kinds. Safe to run alongside normal traffic: it only deletes rows that
// are already logically dead. Refresh tokens go first so that an access
// row whose last refresh sibling just expired is reclaimed in the same
// pass; an expired access row still anchoring a live refresh token is
// kept, since rotation reads client, user, and scopes off that row.
func (s *TokenService) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	now := time.Now()
	var total int64

	n, err := s.storage.Codes().DeleteExpired(ctx, now)
	if err != nil {
		return total, err
	}
	total += n

	n, err = s.storage.RefreshTokens().DeleteExpired(ctx, now)
	if err != nil {
		return total, err
	}
	total += n

	n, err = s.storage.AccessTokens().DeleteExpired(ctx, now)
	if err != nil {
		return total, err
	}
	total += n

	if total > 0 {
		s.audit("tokens.cleanup", "purged", total)
	}
	return total, nil
}

func (s *TokenService) issuePair(ctx context.Context, tx repository.Storage, clientID string, userID int64, scopes []string) (*TokenPair, error) {
	access := domain.AccessToken{
		ID:        s.ids.Generate().Int64(),
		Token:     s.randomToken(),
		ClientID:  clientID,
		UserID:    userID,
		Scopes:    scopes,
		ExpiresAt: time.Now().Add(s.cfg.AccessTokenTTL),
	}
	if err := tx.AccessTokens().Create(ctx, access); err != nil {
		return nil, fmt.Errorf("persist access token: %w", err)
	}

	refresh := domain.RefreshToken{
		ID:            s.ids.Generate().Int64(),
		Token:         s.randomToken(),
		AccessTokenID: access.ID,
		ExpiresAt:     time.Now().Add(s.cfg.RefreshTokenTTL),
	}
	if err := tx.RefreshTokens().Create(ctx, refresh); err != nil {
		return nil, fmt.Errorf("persist refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  access.Token,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.cfg.AccessTokenTTL.Seconds()),
		RefreshToken: refresh.Token,
	}, nil
}

func (s *TokenService) checkClientSecret(ctx context.Context, tx repository.Storage, clientID, clientSecret string) error {
	client, err := tx.Clients().GetByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domainoauth.ErrClientNotFound
		}
		return fmt.Errorf("load client: %w", err)
	}
	if !client.HasSecret() {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(client.Secret), []byte(clientSecret)) != 1 {
		return domainoauth.ErrInvalidSecret
	}
	return nil
}

func (s *TokenService) randomToken() string {
	b := make([]byte, s.tokenBytes())
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}

func (s *TokenService) tokenBytes() int {
	if s.cfg.TokenBytes < 20 {
		return 20
	}
	return s.cfg.TokenBytes
}

func (s *TokenService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if s == nil || s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, name)
}

func (s *TokenService) audit(event string, attrs ...any) {
	logger := s.log()
	if logger == nil {
		return
	}
	fields := make([]zap.Field, 0, len(attrs)/2+2)
	fields = append(fields, zap.String("event", event), zap.Time("timestamp", time.Now().UTC()))
	for i := 0; i+1 < len(attrs); i += 2 {
		key, ok := attrs[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, attrs[i+1]))
	}
	logger.Info("audit", fields...)
}

func (s *TokenService) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}
