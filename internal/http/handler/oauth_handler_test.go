package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FeruzLatifov/univer-back-sub003/internal/config"
	"github.com/FeruzLatifov/univer-back-sub003/internal/domain"
	httptransport "github.com/FeruzLatifov/univer-back-sub003/internal/http"
	"github.com/FeruzLatifov/univer-back-sub003/internal/http/handler"
	httpmiddleware "github.com/FeruzLatifov/univer-back-sub003/internal/http/middleware"
	"github.com/FeruzLatifov/univer-back-sub003/internal/jwt"
	"github.com/FeruzLatifov/univer-back-sub003/internal/password"
	"github.com/FeruzLatifov/univer-back-sub003/internal/repository"
	"github.com/FeruzLatifov/univer-back-sub003/internal/service"
)

type testEnv struct {
	router  *gin.Engine
	storage *stubStorage
	cache   *stubMenuCache
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	storage := newStubStorage()
	cache := &stubMenuCache{entries: make(map[string]domain.CachedMenu)}
	cfg := config.Config{
		AuthCodeTTL:     10 * time.Minute,
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 30 * 24 * time.Hour,
		TokenBytes:      32,
		SessionTokenTTL: time.Hour,
		MenuCacheTTL:    53 * time.Minute,
		MenuLocales:     []string{"uz", "ru"},
	}

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	logger := zap.NewNop()

	manager := jwt.NewKeyManager(storage.Keys(), &seqIDs{})
	generator := jwt.NewGenerator(manager, cfg.SessionTokenTTL)

	tree := []domain.MenuItem{
		{ID: "dashboard", Label: "Dashboard", URL: "/dashboard", Active: true},
		{ID: "reports", Label: "Reports", URL: "/reports", Permission: "report.view", Active: true},
	}

	tokens := service.NewTokenService(storage, node, cfg, logger)
	menuSvc := service.NewMenuService(tree, cache, storage.Permissions(), storage.Translations(), cfg, logger)
	authSvc := service.NewAuthService(storage.Users(), generator, cfg, logger)

	router := httptransport.NewRouter(
		cfg,
		handler.NewAuthHandler(authSvc),
		handler.NewOAuthHandler(tokens),
		handler.NewMenuHandler(menuSvc),
		&httpmiddleware.Session{JWT: generator},
		nil,
	)

	return &testEnv{router: router, storage: storage, cache: cache}
}

func (e *testEnv) seedClient(t *testing.T, secret string) domain.Client {
	t.Helper()
	client := domain.Client{ID: "hemis-web", Secret: secret, Name: "HEMIS Web", RedirectURI: "https://app.example/callback"}
	e.storage.clients[client.ID] = client
	return client
}

func (e *testEnv) seedUser(t *testing.T) domain.User {
	t.Helper()
	hash, err := password.Hash("correct horse")
	require.NoError(t, err)
	user := domain.User{ID: 42, Email: "dean@univer.uz", PasswordHash: hash, Name: "Dean", RoleID: 5, Locale: "uz", Status: "ACTIVE"}
	e.storage.users[user.Email] = user
	e.storage.permissions[user.RoleID] = []string{"report.*"}
	return user
}

func (e *testEnv) do(t *testing.T, method, target, bearer string, form url.Values, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	switch {
	case form != nil:
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	case body != nil:
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		req = httptest.NewRequest(method, target, strings.NewReader(string(raw)))
		req.Header.Set("Content-Type", "application/json")
	default:
		req = httptest.NewRequest(method, target, nil)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	parsed := map[string]any{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &parsed))
	}
	return w, parsed
}

func (e *testEnv) login(t *testing.T) string {
	t.Helper()
	w, body := e.do(t, http.MethodPost, "http://auth.univer.uz/auth/login", "", nil, map[string]any{
		"email":    "dean@univer.uz",
		"password": "correct horse",
	})
	require.Equal(t, http.StatusOK, w.Code)
	token, _ := body["access_token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestAuthorizationCodeFlowOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	client := env.seedClient(t, "s3cret")
	env.seedUser(t)
	session := env.login(t)

	// Consent descriptor for the login UI.
	w, body := env.do(t, http.MethodGet, "http://auth.univer.uz/oauth/authorize?client_id=hemis-web&redirect_uri="+url.QueryEscape(client.RedirectURI)+"&state=xyz", "", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "HEMIS Web", body["client_name"])
	require.Equal(t, "xyz", body["state"])

	// Confirmation mints the code.
	w, body = env.do(t, http.MethodPost, "http://auth.univer.uz/oauth/authorize", session, nil, map[string]any{
		"client_id":    client.ID,
		"redirect_uri": client.RedirectURI,
		"scope":        "profile menu",
		"state":        "xyz",
	})
	require.Equal(t, http.StatusOK, w.Code)
	code, _ := body["code"].(string)
	require.GreaterOrEqual(t, len(code), 40)
	redirect, _ := body["redirect_url"].(string)
	require.Contains(t, redirect, "code="+code)
	require.Contains(t, redirect, "state=xyz")

	// Exchange for the pair.
	w, body = env.do(t, http.MethodPost, "http://auth.univer.uz/oauth/token", "", url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"client_id":     {client.ID},
		"client_secret": {"s3cret"},
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	access, _ := body["access_token"].(string)
	refresh, _ := body["refresh_token"].(string)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)
	require.Equal(t, "Bearer", body["token_type"])

	// Replay of the code is rejected.
	w, body = env.do(t, http.MethodPost, "http://auth.univer.uz/oauth/token", "", url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"client_id":     {client.ID},
		"client_secret": {"s3cret"},
	}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "invalid_grant", body["error"])

	// The token resolves to its subject.
	w, body = env.do(t, http.MethodGet, "http://auth.univer.uz/oauth/userinfo?access_token="+access, "", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "42", body["sub"])
	require.Equal(t, client.ID, body["client_id"])

	// Rotation invalidates the old pair.
	w, body = env.do(t, http.MethodPost, "http://auth.univer.uz/oauth/token", "", url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refresh},
		"client_id":     {client.ID},
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	rotated, _ := body["access_token"].(string)
	require.NotEqual(t, access, rotated)

	w, _ = env.do(t, http.MethodGet, "http://auth.univer.uz/oauth/userinfo?access_token="+access, "", nil, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// Revocation kills the live token.
	w, body = env.do(t, http.MethodPost, "http://auth.univer.uz/oauth/revoke", "", url.Values{
		"token": {rotated},
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, true, body["success"])

	w, _ = env.do(t, http.MethodGet, "http://auth.univer.uz/oauth/userinfo", rotated, nil, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTokenEndpointErrorMapping(t *testing.T) {
	env := newTestEnv(t)
	client := env.seedClient(t, "s3cret")
	env.seedUser(t)
	session := env.login(t)

	w, body := env.do(t, http.MethodPost, "http://auth.univer.uz/oauth/token", "", url.Values{
		"grant_type": {"password"},
	}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "unsupported_grant_type", body["error"])

	w, body = env.do(t, http.MethodPost, "http://auth.univer.uz/oauth/token", "", url.Values{
		"grant_type": {"authorization_code"},
		"code":       {"no-such-code"},
		"client_id":  {client.ID},
	}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "invalid_grant", body["error"])

	_, issued := env.do(t, http.MethodPost, "http://auth.univer.uz/oauth/authorize", session, nil, map[string]any{
		"client_id":    client.ID,
		"redirect_uri": client.RedirectURI,
	})
	code, _ := issued["code"].(string)
	require.NotEmpty(t, code)

	w, body = env.do(t, http.MethodPost, "http://auth.univer.uz/oauth/token", "", url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"client_id":    {client.ID},
		"redirect_uri": {"https://evil.example/callback"},
	}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "invalid_request", body["error"])

	w, body = env.do(t, http.MethodPost, "http://auth.univer.uz/oauth/token", "", url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"client_id":     {client.ID},
		"client_secret": {"wrong"},
	}, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "invalid_client", body["error"])
}

func TestAuthorizeRejectsUnknownClient(t *testing.T) {
	env := newTestEnv(t)
	env.seedClient(t, "")

	w, body := env.do(t, http.MethodGet, "http://auth.univer.uz/oauth/authorize?client_id=ghost&redirect_uri=https%3A%2F%2Fapp.example%2Fcallback", "", nil, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "invalid_client", body["error"])

	w, body = env.do(t, http.MethodGet, "http://auth.univer.uz/oauth/authorize?client_id=hemis-web&redirect_uri=https%3A%2F%2Fevil.example", "", nil, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "invalid_request", body["error"])
}

func TestMenuEndpointRequiresSession(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t)

	w, _ := env.do(t, http.MethodGet, "http://auth.univer.uz/api/menu", "", nil, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	session := env.login(t)
	w, body := env.do(t, http.MethodGet, "http://auth.univer.uz/api/menu", session, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, false, body["cached"])
	menuItems, _ := body["menu"].([]any)
	require.Len(t, menuItems, 2)

	w, body = env.do(t, http.MethodGet, "http://auth.univer.uz/api/menu", session, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, true, body["cached"])

	w, body = env.do(t, http.MethodPost, "http://auth.univer.uz/api/menu/invalidate", session, nil, map[string]any{})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, true, body["success"])

	w, body = env.do(t, http.MethodGet, "http://auth.univer.uz/api/menu", session, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, false, body["cached"])
}

// stubStorage is an in-memory Storage for handler tests.
type stubStorage struct {
	mu            sync.Mutex
	clients       map[string]domain.Client
	codes         map[string]domain.AuthorizationCode
	accessTokens  map[string]domain.AccessToken
	refreshTokens map[string]domain.RefreshToken
	users         map[string]domain.User
	permissions   map[int64][]string
	keys          []domain.SigningKey
}

func newStubStorage() *stubStorage {
	return &stubStorage{
		clients:       make(map[string]domain.Client),
		codes:         make(map[string]domain.AuthorizationCode),
		accessTokens:  make(map[string]domain.AccessToken),
		refreshTokens: make(map[string]domain.RefreshToken),
		users:         make(map[string]domain.User),
		permissions:   make(map[int64][]string),
	}
}

func (s *stubStorage) Clients() repository.ClientRepository             { return (*stubClients)(s) }
func (s *stubStorage) Codes() repository.CodeRepository                 { return (*stubCodes)(s) }
func (s *stubStorage) AccessTokens() repository.AccessTokenRepository   { return (*stubAccess)(s) }
func (s *stubStorage) RefreshTokens() repository.RefreshTokenRepository { return (*stubRefresh)(s) }
func (s *stubStorage) Users() repository.UserRepository                 { return (*stubUsers)(s) }
func (s *stubStorage) Permissions() repository.PermissionRepository     { return (*stubPerms)(s) }
func (s *stubStorage) Keys() repository.KeyRepository                   { return (*stubKeys)(s) }
func (s *stubStorage) Translations() repository.TranslationRepository   { return (*stubTranslations)(s) }

func (s *stubStorage) InTx(ctx context.Context, fn func(repository.Storage) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s)
}

type stubClients stubStorage

func (s *stubClients) GetByID(ctx context.Context, clientID string) (domain.Client, error) {
	client, ok := s.clients[clientID]
	if !ok {
		return domain.Client{}, pgx.ErrNoRows
	}
	return client, nil
}

func (s *stubClients) Create(ctx context.Context, client domain.Client) error {
	s.clients[client.ID] = client
	return nil
}

type stubCodes stubStorage

func (s *stubCodes) Create(ctx context.Context, code domain.AuthorizationCode) error {
	s.codes[code.Code] = code
	return nil
}

func (s *stubCodes) GetByCodeForUpdate(ctx context.Context, code string) (domain.AuthorizationCode, error) {
	stored, ok := s.codes[code]
	if !ok {
		return domain.AuthorizationCode{}, pgx.ErrNoRows
	}
	return stored, nil
}

func (s *stubCodes) Revoke(ctx context.Context, id int64) error {
	for key, code := range s.codes {
		if code.ID == id {
			code.Revoked = true
			s.codes[key] = code
		}
	}
	return nil
}

func (s *stubCodes) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

type stubAccess stubStorage

func (s *stubAccess) Create(ctx context.Context, token domain.AccessToken) error {
	s.accessTokens[token.Token] = token
	return nil
}

func (s *stubAccess) GetByToken(ctx context.Context, token string) (domain.AccessToken, error) {
	stored, ok := s.accessTokens[token]
	if !ok {
		return domain.AccessToken{}, pgx.ErrNoRows
	}
	return stored, nil
}

func (s *stubAccess) GetByID(ctx context.Context, id int64) (domain.AccessToken, error) {
	for _, token := range s.accessTokens {
		if token.ID == id {
			return token, nil
		}
	}
	return domain.AccessToken{}, pgx.ErrNoRows
}

func (s *stubAccess) Revoke(ctx context.Context, id int64) (bool, error) {
	for key, token := range s.accessTokens {
		if token.ID == id && !token.Revoked {
			token.Revoked = true
			s.accessTokens[key] = token
			return true, nil
		}
	}
	return false, nil
}

func (s *stubAccess) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

type stubRefresh stubStorage

func (s *stubRefresh) Create(ctx context.Context, token domain.RefreshToken) error {
	s.refreshTokens[token.Token] = token
	return nil
}

func (s *stubRefresh) GetByTokenForUpdate(ctx context.Context, token string) (domain.RefreshToken, error) {
	stored, ok := s.refreshTokens[token]
	if !ok {
		return domain.RefreshToken{}, pgx.ErrNoRows
	}
	return stored, nil
}

func (s *stubRefresh) Revoke(ctx context.Context, id int64) error {
	for key, token := range s.refreshTokens {
		if token.ID == id {
			token.Revoked = true
			s.refreshTokens[key] = token
		}
	}
	return nil
}

func (s *stubRefresh) RevokeByAccessTokenID(ctx context.Context, accessTokenID int64) error {
	for key, token := range s.refreshTokens {
		if token.AccessTokenID == accessTokenID {
			token.Revoked = true
			s.refreshTokens[key] = token
		}
	}
	return nil
}

func (s *stubRefresh) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

type stubUsers stubStorage

func (s *stubUsers) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	user, ok := s.users[email]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (s *stubUsers) GetByID(ctx context.Context, userID int64) (domain.User, error) {
	for _, user := range s.users {
		if user.ID == userID {
			return user, nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

func (s *stubUsers) Create(ctx context.Context, user domain.User) (domain.User, error) {
	s.users[user.Email] = user
	return user, nil
}

type stubPerms stubStorage

func (s *stubPerms) ListByRole(ctx context.Context, roleID int64) ([]string, error) {
	return s.permissions[roleID], nil
}

type stubKeys stubStorage

func (s *stubKeys) GetActiveKey(ctx context.Context) (domain.SigningKey, error) {
	for _, key := range s.keys {
		if key.IsActive {
			return key, nil
		}
	}
	return domain.SigningKey{}, pgx.ErrNoRows
}

func (s *stubKeys) CreateKey(ctx context.Context, key domain.SigningKey) (domain.SigningKey, error) {
	s.keys = append(s.keys, key)
	return key, nil
}

type stubTranslations stubStorage

func (s *stubTranslations) Lookup(ctx context.Context, label, locale string) (string, error) {
	return "", pgx.ErrNoRows
}

type stubMenuCache struct {
	entries map[string]domain.CachedMenu
}

func (s *stubMenuCache) Get(ctx context.Context, key string) (*domain.CachedMenu, error) {
	cached, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	return &cached, nil
}

func (s *stubMenuCache) Put(ctx context.Context, key string, menu domain.CachedMenu, ttl time.Duration) error {
	s.entries[key] = menu
	return nil
}

func (s *stubMenuCache) Forget(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.entries, key)
	}
	return nil
}

type seqIDs struct{ next int64 }

func (s *seqIDs) Generate() int64 {
	s.next++
	return s.next
}
