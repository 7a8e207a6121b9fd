package repository

import (
	"context"
	"time"

	"github.com/FeruzLatifov/univer-back-sub003/internal/domain"
)

// ClientRepository exposes registered OAuth client metadata.
type ClientRepository interface {
	GetByID(ctx context.Context, clientID string) (domain.Client, error)
	Create(ctx context.Context, client domain.Client) error
}

// CodeRepository manages authorization codes.
type CodeRepository interface {
	Create(ctx context.Context, code domain.AuthorizationCode) error
	// GetByCodeForUpdate locks the row until the surrounding transaction
	// ends so concurrent exchanges serialize on it.
	GetByCodeForUpdate(ctx context.Context, code string) (domain.AuthorizationCode, error)
	Revoke(ctx context.Context, id int64) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// AccessTokenRepository persists opaque access tokens.
type AccessTokenRepository interface {
	Create(ctx context.Context, token domain.AccessToken) error
	GetByToken(ctx context.Context, token string) (domain.AccessToken, error)
	GetByID(ctx context.Context, id int64) (domain.AccessToken, error)
	// Revoke reports whether a live row was revoked; revoking an already
	// revoked token returns false.
	Revoke(ctx context.Context, id int64) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// RefreshTokenRepository persists refresh tokens.
type RefreshTokenRepository interface {
	Create(ctx context.Context, token domain.RefreshToken) error
	GetByTokenForUpdate(ctx context.Context, token string) (domain.RefreshToken, error)
	Revoke(ctx context.Context, id int64) error
	RevokeByAccessTokenID(ctx context.Context, accessTokenID int64) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// UserRepository exposes first-party accounts.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByID(ctx context.Context, userID int64) (domain.User, error)
	Create(ctx context.Context, user domain.User) (domain.User, error)
}

// PermissionRepository resolves the permission strings granted to a role.
type PermissionRepository interface {
	ListByRole(ctx context.Context, roleID int64) ([]string, error)
}

// KeyRepository stores the session-JWT signing key.
type KeyRepository interface {
	GetActiveKey(ctx context.Context) (domain.SigningKey, error)
	CreateKey(ctx context.Context, key domain.SigningKey) (domain.SigningKey, error)
}

// TranslationRepository looks up a menu label for a locale. A miss is
// reported as pgx.ErrNoRows, never invented text.
type TranslationRepository interface {
	Lookup(ctx context.Context, label, locale string) (string, error)
}

// MenuCacheStore is the distributed cache for filtered menus.
type MenuCacheStore interface {
	Get(ctx context.Context, key string) (*domain.CachedMenu, error)
	Put(ctx context.Context, key string, menu domain.CachedMenu, ttl time.Duration) error
	Forget(ctx context.Context, keys ...string) error
}

// Storage groups the relational repositories behind one transactional
// boundary. InTx runs fn against repositories bound to a single transaction,
// committing on nil and rolling back on error.
type Storage interface {
	Clients() ClientRepository
	Codes() CodeRepository
	AccessTokens() AccessTokenRepository
	RefreshTokens() RefreshTokenRepository
	Users() UserRepository
	Permissions() PermissionRepository
	Keys() KeyRepository
	Translations() TranslationRepository

	InTx(ctx context.Context, fn func(Storage) error) error
}
