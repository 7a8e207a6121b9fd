package jwt

import (
	"context"
	"fmt"
	"strconv"
	"time"

	gojose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"

	"github.com/FeruzLatifov/univer-back-sub003/internal/domain"
)

// Generator signs and validates first-party session tokens.
type Generator struct {
	keys       *KeyManager
	sessionTTL time.Duration
}

// NewGenerator constructs a session token generator.
func NewGenerator(manager *KeyManager, sessionTTL time.Duration) *Generator {
	return &Generator{keys: manager, sessionTTL: sessionTTL}
}

// SessionClaims is the custom JWT payload for session tokens.
type SessionClaims struct {
	RoleID int64  `json:"role_id"`
	Locale string `json:"locale"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

// GenerateSessionToken produces a signed JWT for the user.
func (g *Generator) GenerateSessionToken(ctx context.Context, user domain.User, issuer string) (string, error) {
	key, err := g.keys.EnsureSigningKey(ctx)
	if err != nil {
		return "", fmt.Errorf("ensure signing key: %w", err)
	}

	signer, err := gojose.NewSigner(
		gojose.SigningKey{Algorithm: gojose.SignatureAlgorithm(key.Algorithm), Key: key.Secret},
		(&gojose.SignerOptions{}).WithType("JWT").WithHeader("kid", key.KID),
	)
	if err != nil {
		return "", fmt.Errorf("new signer: %w", err)
	}

	now := time.Now().UTC()
	std := gojwt.Claims{
		Subject:   strconv.FormatInt(user.ID, 10),
		Issuer:    issuer,
		IssuedAt:  gojwt.NewNumericDate(now),
		Expiry:    gojwt.NewNumericDate(now.Add(g.sessionTTL)),
		NotBefore: gojwt.NewNumericDate(now),
	}
	custom := SessionClaims{
		RoleID: user.RoleID,
		Locale: user.Locale,
		Email:  user.Email,
		Name:   user.Name,
	}

	token, err := gojwt.Signed(signer).Claims(std).Claims(custom).Serialize()
	if err != nil {
		return "", fmt.Errorf("serialize jwt: %w", err)
	}
	return token, nil
}

// ValidateSessionToken verifies the token and returns the principal it names.
func (g *Generator) ValidateSessionToken(ctx context.Context, token, issuer string) (domain.Principal, *SessionClaims, error) {
	key, err := g.keys.EnsureSigningKey(ctx)
	if err != nil {
		return domain.Principal{}, nil, fmt.Errorf("load key: %w", err)
	}

	parsed, err := gojwt.ParseSigned(token, []gojose.SignatureAlgorithm{gojose.SignatureAlgorithm(key.Algorithm)})
	if err != nil {
		return domain.Principal{}, nil, fmt.Errorf("parse token: %w", err)
	}

	var std gojwt.Claims
	var custom SessionClaims
	if err := parsed.Claims(key.Secret, &std, &custom); err != nil {
		return domain.Principal{}, nil, fmt.Errorf("verify token: %w", err)
	}
	if err := std.Validate(gojwt.Expected{Issuer: issuer, Time: time.Now().UTC()}); err != nil {
		return domain.Principal{}, nil, fmt.Errorf("validate claims: %w", err)
	}

	userID, err := strconv.ParseInt(std.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return domain.Principal{}, nil, fmt.Errorf("invalid subject claim")
	}

	return domain.Principal{UserID: userID, RoleID: custom.RoleID, Locale: custom.Locale}, &custom, nil
}
