package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/FeruzLatifov/univer-back-sub003/internal/config"
	"github.com/FeruzLatifov/univer-back-sub003/internal/domain"
	"github.com/FeruzLatifov/univer-back-sub003/internal/menu"
	"github.com/FeruzLatifov/univer-back-sub003/internal/repository"
)

const menuKeyPrefix = "menu:"

// MenuResult is the menu API payload.
type MenuResult struct {
	Menu           []domain.MenuItem `json:"menu"`
	Permissions    []string          `json:"permissions"`
	Locale         string            `json:"locale"`
	Cached         bool              `json:"cached"`
	CacheExpiresAt time.Time         `json:"cache_expires_at"`
}

// MenuService produces the menu subtree a principal may see, memoized per
// (user, role, locale). The filter itself lives in the menu package as a
// pure function; this wrapper only adds permissions, translation, and the
// cache-aside layer.
type MenuService struct {
	tree         []domain.MenuItem
	cache        repository.MenuCacheStore
	permissions  repository.PermissionRepository
	translations repository.TranslationRepository
	cfg          config.Config
	logger       *zap.Logger
}

// NewMenuService wires dependencies.
func NewMenuService(
	tree []domain.MenuItem,
	cacheStore repository.MenuCacheStore,
	permissions repository.PermissionRepository,
	translations repository.TranslationRepository,
	cfg config.Config,
	logger *zap.Logger,
) *MenuService {
	return &MenuService{
		tree:         tree,
		cache:        cacheStore,
		permissions:  permissions,
		translations: translations,
		cfg:          cfg,
		logger:       logger,
	}
}

// GetMenuForUser returns the filtered, localized menu for the principal.
// A cache hit short-circuits permission lookup and filtering entirely.
// Cache failures degrade to recompute-without-caching, never a request
// failure.
func (s *MenuService) GetMenuForUser(ctx context.Context, principal domain.Principal, locale string) (*MenuResult, error) {
	locale = s.normalizeLocale(locale, principal.Locale)
	key := menuKey(principal.UserID, principal.RoleID, locale)

	if cached, err := s.cache.Get(ctx, key); err != nil {
		s.log().Warn("menu cache read failed", zap.String("key", key), zap.Error(err))
	} else if cached != nil {
		return &MenuResult{
			Menu:           cached.Menu,
			Permissions:    cached.Permissions,
			Locale:         locale,
			Cached:         true,
			CacheExpiresAt: cached.ExpiresAt,
		}, nil
	}

	perms, err := s.permissions.ListByRole(ctx, principal.RoleID)
	if err != nil {
		return nil, fmt.Errorf("resolve permissions: %w", err)
	}

	filtered := s.localize(ctx, menu.Filter(s.tree, perms), locale)
	expiresAt := time.Now().Add(s.cfg.MenuCacheTTL).UTC()

	if err := s.cache.Put(ctx, key, domain.CachedMenu{
		Menu:        filtered,
		Permissions: perms,
		Locale:      locale,
		ExpiresAt:   expiresAt,
	}, s.cfg.MenuCacheTTL); err != nil {
		s.log().Warn("menu cache write failed", zap.String("key", key), zap.Error(err))
	}

	return &MenuResult{
		Menu:           filtered,
		Permissions:    perms,
		Locale:         locale,
		Cached:         false,
		CacheExpiresAt: expiresAt,
	}, nil
}

// InvalidateUser drops the user's cached menus for the given roles across
// every configured locale. Explicit keys, no pattern delete.
func (s *MenuService) InvalidateUser(ctx context.Context, userID int64, roleIDs ...int64) error {
	keys := make([]string, 0, len(roleIDs)*len(s.cfg.MenuLocales))
	for _, roleID := range roleIDs {
		for _, locale := range s.cfg.MenuLocales {
			keys = append(keys, menuKey(userID, roleID, locale))
		}
	}
	if err := s.cache.Forget(ctx, keys...); err != nil {
		return fmt.Errorf("invalidate menu cache: %w", err)
	}
	return nil
}

// localize resolves each label for the locale. A missing translation falls
// back to the raw label text, never an error.
func (s *MenuService) localize(ctx context.Context, items []domain.MenuItem, locale string) []domain.MenuItem {
	out := make([]domain.MenuItem, len(items))
	for i, item := range items {
		if value, err := s.translations.Lookup(ctx, item.Label, locale); err == nil && value != "" {
			item.Label = value
		}
		item.Children = s.localize(ctx, item.Children, locale)
		if len(item.Children) == 0 {
			item.Children = nil
		}
		out[i] = item
	}
	return out
}

func (s *MenuService) normalizeLocale(requested, fallback string) string {
	for _, candidate := range []string{requested, fallback} {
		for _, known := range s.cfg.MenuLocales {
			if candidate == known {
				return candidate
			}
		}
	}
	return s.cfg.MenuLocales[0]
}

func (s *MenuService) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}

// The role id is part of the key on purpose: without it a role switch can
// serve a stale, incorrectly scoped menu.
func menuKey(userID, roleID int64, locale string) string {
	return fmt.Sprintf("%s%d:%d:%s", menuKeyPrefix, userID, roleID, locale)
}
