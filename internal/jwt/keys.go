package jwt

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/go-jose/go-jose/v4"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/FeruzLatifov/univer-back-sub003/internal/domain"
	"github.com/FeruzLatifov/univer-back-sub003/internal/repository"
)

// KeyManager ensures the service always has an active signing key.
type KeyManager struct {
	repo repository.KeyRepository
	ids  IDSource
}

// IDSource produces row identifiers for freshly created keys.
type IDSource interface {
	Generate() int64
}

// NewKeyManager creates a KeyManager.
func NewKeyManager(repo repository.KeyRepository, ids IDSource) *KeyManager {
	return &KeyManager{repo: repo, ids: ids}
}

// EnsureSigningKey returns the active key, creating one if missing.
func (m *KeyManager) EnsureSigningKey(ctx context.Context) (domain.SigningKey, error) {
	key, err := m.repo.GetActiveKey(ctx)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.SigningKey{}, fmt.Errorf("ensure signing key: %w", err)
	}

	secret := make([]byte, 64)
	if _, randErr := rand.Read(secret); randErr != nil {
		return domain.SigningKey{}, fmt.Errorf("generate secret: %w", randErr)
	}

	key = domain.SigningKey{
		ID:        m.ids.Generate(),
		KID:       uuid.NewString(),
		Secret:    secret,
		Algorithm: string(jose.HS256),
		IsActive:  true,
	}

	created, err := m.repo.CreateKey(ctx, key)
	if err != nil {
		return domain.SigningKey{}, fmt.Errorf("persist signing key: %w", err)
	}

	return created, nil
}
