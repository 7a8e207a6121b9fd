package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/FeruzLatifov/univer-back-sub003/internal/config"
	"github.com/FeruzLatifov/univer-back-sub003/internal/domain"
	"github.com/FeruzLatifov/univer-back-sub003/internal/jwt"
	"github.com/FeruzLatifov/univer-back-sub003/internal/password"
	"github.com/FeruzLatifov/univer-back-sub003/internal/repository"
)

const adminRoleID = int64(1)

const insertRolePermissionSQL = `INSERT INTO role_permissions (role_id, permission)
VALUES ($1, $2)
ON CONFLICT DO NOTHING`

// EnsureDefaults seeds the signing key, the default OAuth client, and the
// admin account on startup. Client and admin seeding are skipped when the
// corresponding config is unset.
func EnsureDefaults(lc fx.Lifecycle, cfg config.Config, storage repository.Storage, pool *pgxpool.Pool, node *snowflake.Node, keys *jwt.KeyManager, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if _, err := keys.EnsureSigningKey(ctx); err != nil {
				return fmt.Errorf("bootstrap signing key: %w", err)
			}
			if err := ensureClient(ctx, cfg, storage, logger); err != nil {
				return err
			}
			return ensureAdmin(ctx, cfg, storage, pool, node, logger)
		},
	})
}

func ensureClient(ctx context.Context, cfg config.Config, storage repository.Storage, logger *zap.Logger) error {
	if cfg.DefaultClientID == "" || cfg.DefaultRedirectURI == "" {
		return nil
	}

	if _, err := storage.Clients().GetByID(ctx, cfg.DefaultClientID); err == nil {
		return nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("bootstrap lookup client: %w", err)
	}

	client := domain.Client{
		ID:          cfg.DefaultClientID,
		Secret:      cfg.DefaultClientSecret,
		Name:        cfg.ServiceName,
		RedirectURI: cfg.DefaultRedirectURI,
	}
	if err := storage.Clients().Create(ctx, client); err != nil {
		return fmt.Errorf("bootstrap create client: %w", err)
	}

	if logger != nil {
		logger.Info("bootstrap client created", zap.String("client_id", client.ID))
	}
	return nil
}

func ensureAdmin(ctx context.Context, cfg config.Config, storage repository.Storage, pool *pgxpool.Pool, node *snowflake.Node, logger *zap.Logger) error {
	email := strings.ToLower(strings.TrimSpace(cfg.AdminEmail))
	if email == "" || strings.TrimSpace(cfg.AdminPassword) == "" {
		return nil
	}

	if _, err := storage.Users().GetByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("bootstrap lookup user: %w", err)
	}

	hashed, err := password.Hash(cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("bootstrap hash password: %w", err)
	}

	locale := "uz"
	if len(cfg.MenuLocales) > 0 {
		locale = cfg.MenuLocales[0]
	}

	created, err := storage.Users().Create(ctx, domain.User{
		ID:           node.Generate().Int64(),
		Email:        email,
		PasswordHash: hashed,
		Name:         "Admin",
		RoleID:       adminRoleID,
		Locale:       locale,
		Status:       "ACTIVE",
	})
	if err != nil {
		return fmt.Errorf("bootstrap create user: %w", err)
	}

	if _, err := pool.Exec(ctx, insertRolePermissionSQL, adminRoleID, "*"); err != nil {
		return fmt.Errorf("bootstrap grant admin permission: %w", err)
	}

	if logger != nil {
		logger.Info("bootstrap admin user created",
			zap.String("email", created.Email),
			zap.Int64("user_id", created.ID),
		)
	}
	return nil
}
