package jwt_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/FeruzLatifov/univer-back-sub003/internal/domain"
	"github.com/FeruzLatifov/univer-back-sub003/internal/jwt"
)

type memoryKeyRepo struct {
	key domain.SigningKey
}

func (m *memoryKeyRepo) GetActiveKey(ctx context.Context) (domain.SigningKey, error) {
	if m.key.ID == 0 {
		return domain.SigningKey{}, pgx.ErrNoRows
	}
	return m.key, nil
}

func (m *memoryKeyRepo) CreateKey(ctx context.Context, key domain.SigningKey) (domain.SigningKey, error) {
	if key.ID == 0 {
		key.ID = 1
	}
	m.key = key
	return key, nil
}

type seqIDs struct{ next int64 }

func (s *seqIDs) Generate() int64 {
	s.next++
	return s.next
}

func TestSessionTokenRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := &memoryKeyRepo{}
	manager := jwt.NewKeyManager(repo, &seqIDs{})
	generator := jwt.NewGenerator(manager, time.Hour)

	user := domain.User{ID: 42, Email: "rector@univer.uz", Name: "Rector", RoleID: 3, Locale: "uz"}
	token, err := generator.GenerateSessionToken(ctx, user, "https://auth.univer.uz")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	principal, claims, err := generator.ValidateSessionToken(ctx, token, "https://auth.univer.uz")
	require.NoError(t, err)
	require.Equal(t, int64(42), principal.UserID)
	require.Equal(t, int64(3), principal.RoleID)
	require.Equal(t, "uz", principal.Locale)
	require.Equal(t, user.Email, claims.Email)
	require.Equal(t, user.Name, claims.Name)
}

func TestSessionTokenRejectsWrongIssuer(t *testing.T) {
	ctx := context.Background()
	manager := jwt.NewKeyManager(&memoryKeyRepo{}, &seqIDs{})
	generator := jwt.NewGenerator(manager, time.Hour)

	token, err := generator.GenerateSessionToken(ctx, domain.User{ID: 1}, "https://auth.univer.uz")
	require.NoError(t, err)

	_, _, err = generator.ValidateSessionToken(ctx, token, "https://other.example")
	require.Error(t, err)
}

func TestSessionTokenRejectsTampering(t *testing.T) {
	ctx := context.Background()
	manager := jwt.NewKeyManager(&memoryKeyRepo{}, &seqIDs{})
	generator := jwt.NewGenerator(manager, time.Hour)

	token, err := generator.GenerateSessionToken(ctx, domain.User{ID: 1}, "https://auth.univer.uz")
	require.NoError(t, err)

	// A token signed under a different key must not verify.
	other := jwt.NewGenerator(jwt.NewKeyManager(&memoryKeyRepo{}, &seqIDs{}), time.Hour)
	foreign, err := other.GenerateSessionToken(ctx, domain.User{ID: 1}, "https://auth.univer.uz")
	require.NoError(t, err)

	_, _, err = generator.ValidateSessionToken(ctx, foreign, "https://auth.univer.uz")
	require.Error(t, err)

	_, _, err = generator.ValidateSessionToken(ctx, token+"x", "https://auth.univer.uz")
	require.Error(t, err)
}

func TestSessionTokenExpires(t *testing.T) {
	ctx := context.Background()
	manager := jwt.NewKeyManager(&memoryKeyRepo{}, &seqIDs{})
	generator := jwt.NewGenerator(manager, -time.Minute)

	token, err := generator.GenerateSessionToken(ctx, domain.User{ID: 1}, "https://auth.univer.uz")
	require.NoError(t, err)

	_, _, err = generator.ValidateSessionToken(ctx, token, "https://auth.univer.uz")
	require.Error(t, err)
}

func TestEnsureSigningKeyIsStable(t *testing.T) {
	ctx := context.Background()
	repo := &memoryKeyRepo{}
	manager := jwt.NewKeyManager(repo, &seqIDs{})

	first, err := manager.EnsureSigningKey(ctx)
	require.NoError(t, err)
	require.Len(t, first.Secret, 64)
	require.Equal(t, "HS256", first.Algorithm)
	require.True(t, first.IsActive)

	second, err := manager.EnsureSigningKey(ctx)
	require.NoError(t, err)
	require.Equal(t, first.KID, second.KID)
	require.Equal(t, first.Secret, second.Secret)
}
