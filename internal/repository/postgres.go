package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/FeruzLatifov/univer-back-sub003/internal/domain"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx, so the same repositories
// run inside and outside transactions.
type DBTX interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStorage implements Storage over pgx.
type PostgresStorage struct {
	db DBTX
}

var _ Storage = (*PostgresStorage)(nil)

// NewPostgresStorage builds the repository set over the given connection.
func NewPostgresStorage(db DBTX) *PostgresStorage {
	return &PostgresStorage{db: db}
}

func (s *PostgresStorage) Clients() ClientRepository             { return &clientRepo{db: s.db} }
func (s *PostgresStorage) Codes() CodeRepository                 { return &codeRepo{db: s.db} }
func (s *PostgresStorage) AccessTokens() AccessTokenRepository   { return &accessTokenRepo{db: s.db} }
func (s *PostgresStorage) RefreshTokens() RefreshTokenRepository { return &refreshTokenRepo{db: s.db} }
func (s *PostgresStorage) Users() UserRepository                 { return &userRepo{db: s.db} }
func (s *PostgresStorage) Permissions() PermissionRepository     { return &permissionRepo{db: s.db} }
func (s *PostgresStorage) Keys() KeyRepository                   { return &keyRepo{db: s.db} }
func (s *PostgresStorage) Translations() TranslationRepository   { return &translationRepo{db: s.db} }

// InTx runs fn with repositories bound to one transaction.
func (s *PostgresStorage) InTx(ctx context.Context, fn func(Storage) error) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		switch err {
		case nil:
			err = tx.Commit(ctx)
		default:
			_ = tx.Rollback(ctx)
		}
	}()

	err = fn(NewPostgresStorage(tx))
	return err
}

type clientRepo struct {
	db DBTX
}

const getClientSQL = `
SELECT id, secret, name, redirect_uri, revoked, created_at
FROM oauth_clients
WHERE id = $1`

func (r *clientRepo) GetByID(ctx context.Context, clientID string) (domain.Client, error) {
	var c domain.Client
	err := r.db.QueryRow(ctx, getClientSQL, clientID).Scan(
		&c.ID, &c.Secret, &c.Name, &c.RedirectURI, &c.Revoked, &c.CreatedAt,
	)
	if err != nil {
		return domain.Client{}, fmt.Errorf("get client: %w", err)
	}
	return c, nil
}

const insertClientSQL = `
INSERT INTO oauth_clients (id, secret, name, redirect_uri, revoked)
VALUES ($1, $2, $3, $4, false)
ON CONFLICT (id) DO NOTHING`

func (r *clientRepo) Create(ctx context.Context, client domain.Client) error {
	if _, err := r.db.Exec(ctx, insertClientSQL, client.ID, client.Secret, client.Name, client.RedirectURI); err != nil {
		return fmt.Errorf("insert client: %w", err)
	}
	return nil
}

type codeRepo struct {
	db DBTX
}

const insertCodeSQL = `
INSERT INTO oauth_codes (id, code, client_id, user_id, scopes, expires_at, revoked)
VALUES ($1, $2, $3, $4, $5, $6, false)`

func (r *codeRepo) Create(ctx context.Context, code domain.AuthorizationCode) error {
	if _, err := r.db.Exec(ctx, insertCodeSQL,
		code.ID, code.Code, code.ClientID, code.UserID, code.Scopes, code.ExpiresAt,
	); err != nil {
		return fmt.Errorf("insert code: %w", err)
	}
	return nil
}

const getCodeForUpdateSQL = `
SELECT id, code, client_id, user_id, scopes, expires_at, revoked, created_at
FROM oauth_codes
WHERE code = $1
FOR UPDATE`

func (r *codeRepo) GetByCodeForUpdate(ctx context.Context, code string) (domain.AuthorizationCode, error) {
	var c domain.AuthorizationCode
	err := r.db.QueryRow(ctx, getCodeForUpdateSQL, code).Scan(
		&c.ID, &c.Code, &c.ClientID, &c.UserID, &c.Scopes, &c.ExpiresAt, &c.Revoked, &c.CreatedAt,
	)
	if err != nil {
		return domain.AuthorizationCode{}, fmt.Errorf("get code: %w", err)
	}
	return c, nil
}

func (r *codeRepo) Revoke(ctx context.Context, id int64) error {
	if _, err := r.db.Exec(ctx, `UPDATE oauth_codes SET revoked = true WHERE id = $1`, id); err != nil {
		return fmt.Errorf("revoke code: %w", err)
	}
	return nil
}

func (r *codeRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM oauth_codes WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired codes: %w", err)
	}
	return tag.RowsAffected(), nil
}

type accessTokenRepo struct {
	db DBTX
}

const insertAccessTokenSQL = `
INSERT INTO oauth_access_tokens (id, token, client_id, user_id, scopes, expires_at, revoked)
VALUES ($1, $2, $3, $4, $5, $6, false)`

func (r *accessTokenRepo) Create(ctx context.Context, token domain.AccessToken) error {
	if _, err := r.db.Exec(ctx, insertAccessTokenSQL,
		token.ID, token.Token, token.ClientID, token.UserID, token.Scopes, token.ExpiresAt,
	); err != nil {
		return fmt.Errorf("insert access token: %w", err)
	}
	return nil
}

const getAccessTokenSQL = `
SELECT id, token, client_id, user_id, scopes, expires_at, revoked, created_at
FROM oauth_access_tokens
WHERE token = $1`

func (r *accessTokenRepo) GetByToken(ctx context.Context, token string) (domain.AccessToken, error) {
	return r.scanOne(r.db.QueryRow(ctx, getAccessTokenSQL, token))
}

const getAccessTokenByIDSQL = `
SELECT id, token, client_id, user_id, scopes, expires_at, revoked, created_at
FROM oauth_access_tokens
WHERE id = $1`

func (r *accessTokenRepo) GetByID(ctx context.Context, id int64) (domain.AccessToken, error) {
	return r.scanOne(r.db.QueryRow(ctx, getAccessTokenByIDSQL, id))
}

func (r *accessTokenRepo) scanOne(row pgx.Row) (domain.AccessToken, error) {
	var t domain.AccessToken
	err := row.Scan(&t.ID, &t.Token, &t.ClientID, &t.UserID, &t.Scopes, &t.ExpiresAt, &t.Revoked, &t.CreatedAt)
	if err != nil {
		return domain.AccessToken{}, fmt.Errorf("get access token: %w", err)
	}
	return t, nil
}

// Revoke flips the revoked flag; the guard keeps it idempotent so the
// caller can tell a live revocation from a no-op.
func (r *accessTokenRepo) Revoke(ctx context.Context, id int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `UPDATE oauth_access_tokens SET revoked = true WHERE id = $1 AND NOT revoked`, id)
	if err != nil {
		return false, fmt.Errorf("revoke access token: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteExpired keeps expired access rows that still anchor a live refresh
// token: the refresh table cascades on access-token deletion, and a rotation
// needs the lineage row to recover client, user, and scopes.
const deleteExpiredAccessTokensSQL = `
DELETE FROM oauth_access_tokens
WHERE expires_at < $1
  AND NOT EXISTS (
    SELECT 1 FROM oauth_refresh_tokens r
    WHERE r.access_token_id = oauth_access_tokens.id
      AND NOT r.revoked
      AND r.expires_at > $1
  )`

func (r *accessTokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, deleteExpiredAccessTokensSQL, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired access tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

type refreshTokenRepo struct {
	db DBTX
}

const insertRefreshTokenSQL = `
INSERT INTO oauth_refresh_tokens (id, token, access_token_id, expires_at, revoked)
VALUES ($1, $2, $3, $4, false)`

func (r *refreshTokenRepo) Create(ctx context.Context, token domain.RefreshToken) error {
	if _, err := r.db.Exec(ctx, insertRefreshTokenSQL,
		token.ID, token.Token, token.AccessTokenID, token.ExpiresAt,
	); err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

const getRefreshTokenForUpdateSQL = `
SELECT id, token, access_token_id, expires_at, revoked, created_at
FROM oauth_refresh_tokens
WHERE token = $1
FOR UPDATE`

func (r *refreshTokenRepo) GetByTokenForUpdate(ctx context.Context, token string) (domain.RefreshToken, error) {
	var t domain.RefreshToken
	err := r.db.QueryRow(ctx, getRefreshTokenForUpdateSQL, token).Scan(
		&t.ID, &t.Token, &t.AccessTokenID, &t.ExpiresAt, &t.Revoked, &t.CreatedAt,
	)
	if err != nil {
		return domain.RefreshToken{}, fmt.Errorf("get refresh token: %w", err)
	}
	return t, nil
}

func (r *refreshTokenRepo) Revoke(ctx context.Context, id int64) error {
	if _, err := r.db.Exec(ctx, `UPDATE oauth_refresh_tokens SET revoked = true WHERE id = $1`, id); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

func (r *refreshTokenRepo) RevokeByAccessTokenID(ctx context.Context, accessTokenID int64) error {
	if _, err := r.db.Exec(ctx, `UPDATE oauth_refresh_tokens SET revoked = true WHERE access_token_id = $1`, accessTokenID); err != nil {
		return fmt.Errorf("revoke refresh tokens by access token: %w", err)
	}
	return nil
}

func (r *refreshTokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM oauth_refresh_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

type userRepo struct {
	db DBTX
}

const getUserByEmailSQL = `
SELECT id, email, password_hash, name, role_id, locale, status, created_at, updated_at
FROM users
WHERE email = $1`

func (r *userRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.scanOne(r.db.QueryRow(ctx, getUserByEmailSQL, email))
}

const getUserByIDSQL = `
SELECT id, email, password_hash, name, role_id, locale, status, created_at, updated_at
FROM users
WHERE id = $1`

func (r *userRepo) GetByID(ctx context.Context, userID int64) (domain.User, error) {
	return r.scanOne(r.db.QueryRow(ctx, getUserByIDSQL, userID))
}

const insertUserSQL = `
INSERT INTO users (id, email, password_hash, name, role_id, locale, status)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, email, password_hash, name, role_id, locale, status, created_at, updated_at`

func (r *userRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	return r.scanOne(r.db.QueryRow(ctx, insertUserSQL,
		user.ID, user.Email, user.PasswordHash, user.Name, user.RoleID, user.Locale, user.Status,
	))
}

func (r *userRepo) scanOne(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.RoleID, &u.Locale, &u.Status, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

type permissionRepo struct {
	db DBTX
}

const listPermissionsSQL = `
SELECT permission
FROM role_permissions
WHERE role_id = $1
ORDER BY permission`

func (r *permissionRepo) ListByRole(ctx context.Context, roleID int64) ([]string, error) {
	rows, _ := r.db.Query(ctx, listPermissionsSQL, roleID)
	perms, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	return perms, nil
}

type keyRepo struct {
	db DBTX
}

const getActiveKeySQL = `
SELECT id, kid, secret, algorithm, is_active, created_at
FROM signing_keys
WHERE is_active
ORDER BY created_at DESC
LIMIT 1`

func (r *keyRepo) GetActiveKey(ctx context.Context) (domain.SigningKey, error) {
	var k domain.SigningKey
	err := r.db.QueryRow(ctx, getActiveKeySQL).Scan(
		&k.ID, &k.KID, &k.Secret, &k.Algorithm, &k.IsActive, &k.CreatedAt,
	)
	if err != nil {
		return domain.SigningKey{}, fmt.Errorf("get signing key: %w", err)
	}
	return k, nil
}

const insertKeySQL = `
INSERT INTO signing_keys (id, kid, secret, algorithm, is_active)
VALUES ($1, $2, $3, $4, true)
RETURNING id, kid, secret, algorithm, is_active, created_at`

func (r *keyRepo) CreateKey(ctx context.Context, key domain.SigningKey) (domain.SigningKey, error) {
	var k domain.SigningKey
	err := r.db.QueryRow(ctx, insertKeySQL, key.ID, key.KID, key.Secret, key.Algorithm).Scan(
		&k.ID, &k.KID, &k.Secret, &k.Algorithm, &k.IsActive, &k.CreatedAt,
	)
	if err != nil {
		return domain.SigningKey{}, fmt.Errorf("insert signing key: %w", err)
	}
	return k, nil
}

type translationRepo struct {
	db DBTX
}

const lookupTranslationSQL = `
SELECT value
FROM menu_translations
WHERE label = $1 AND locale = $2`

func (r *translationRepo) Lookup(ctx context.Context, label, locale string) (string, error) {
	var value string
	if err := r.db.QueryRow(ctx, lookupTranslationSQL, label, locale).Scan(&value); err != nil {
		return "", fmt.Errorf("lookup translation: %w", err)
	}
	return value, nil
}
