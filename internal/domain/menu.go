package domain

import "time"

// MenuItem is one node of the configuration-derived menu tree. Filtering is
// a pure function of (tree, permission set); items are never persisted.
type MenuItem struct {
	ID         string     `json:"id"`
	Label      string     `json:"label"`
	URL        string     `json:"url,omitempty"`
	Icon       string     `json:"icon,omitempty"`
	Permission string     `json:"permission,omitempty"`
	Order      *int       `json:"order,omitempty"`
	Active     bool       `json:"active"`
	Children   []MenuItem `json:"children,omitempty"`
}

// CachedMenu is the per-(user, role, locale) cache value: the filtered tree
// plus the permission set that produced it.
type CachedMenu struct {
	Menu        []MenuItem `json:"menu"`
	Permissions []string   `json:"permissions"`
	Locale      string     `json:"locale"`
	ExpiresAt   time.Time  `json:"expires_at"`
}
