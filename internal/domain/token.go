package domain

import "time"

// Client is a registered OAuth client application.
type Client struct {
	ID          string
	Secret      string
	Name        string
	RedirectURI string
	Revoked     bool
	CreatedAt   time.Time
}

// HasSecret reports whether the client is confidential.
func (c Client) HasSecret() bool {
	return c.Secret != ""
}

// AuthorizationCode is a short-lived, single-use credential exchanged for a
// token pair. Valid exactly once between creation and exchange or expiry.
type AuthorizationCode struct {
	ID        int64
	Code      string
	ClientID  string
	UserID    int64
	Scopes    []string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// AccessToken is an opaque bearer credential for API calls.
type AccessToken struct {
	ID        int64
	Token     string
	ClientID  string
	UserID    int64
	Scopes    []string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// RefreshToken backs a single access-token lineage. Rotation revokes the old
// access/refresh pair atomically with creation of the new pair, so at most
// one valid refresh token exists per lineage.
type RefreshToken struct {
	ID            int64
	Token         string
	AccessTokenID int64
	ExpiresAt     time.Time
	Revoked       bool
	CreatedAt     time.Time
}

// SigningKey stores the service session-JWT signing secret.
type SigningKey struct {
	ID        int64
	KID       string
	Secret    []byte
	Algorithm string
	IsActive  bool
	CreatedAt time.Time
}
