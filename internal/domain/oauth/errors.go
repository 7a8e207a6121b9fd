package oauth

import "errors"

var (
	// ErrClientNotFound signals an unknown or revoked client reference.
	ErrClientNotFound = errors.New("oauth: client not found")
	// ErrRedirectMismatch signals the redirect URI does not exactly match
	// the one registered for the client.
	ErrRedirectMismatch = errors.New("oauth: redirect uri mismatch")
	// ErrInvalidCode signals the authorization code does not exist.
	ErrInvalidCode = errors.New("oauth: invalid authorization code")
	// ErrCodeExpired signals the authorization code is past expiry.
	ErrCodeExpired = errors.New("oauth: authorization code expired")
	// ErrCodeAlreadyUsed signals replay of an already exchanged code.
	ErrCodeAlreadyUsed = errors.New("oauth: authorization code already used")
	// ErrClientMismatch signals the credential belongs to a different client.
	ErrClientMismatch = errors.New("oauth: client mismatch")
	// ErrInvalidSecret signals a confidential client supplied a wrong secret.
	ErrInvalidSecret = errors.New("oauth: invalid client secret")
	// ErrInvalidToken signals the token does not exist.
	ErrInvalidToken = errors.New("oauth: invalid token")
	// ErrTokenExpired signals the token is past expiry.
	ErrTokenExpired = errors.New("oauth: token expired")
	// ErrTokenRevoked signals use of a revoked token.
	ErrTokenRevoked = errors.New("oauth: token revoked")
)
