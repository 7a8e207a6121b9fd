package menu

import (
	"strings"

	"github.com/FeruzLatifov/univer-back-sub003/internal/domain"
)

// MatchPermission reports whether a granted permission string satisfies the
// required one. Grammar: exact match, the universal wildcard "*", or a
// prefix wildcard "prefix.*" covering every permission under "prefix.".
func MatchPermission(required, granted string) bool {
	if required == "" {
		return true
	}
	if granted == "*" {
		return true
	}
	if granted == required {
		return true
	}
	if prefix, ok := strings.CutSuffix(granted, ".*"); ok {
		return strings.HasPrefix(required, prefix+".")
	}
	return false
}

// MatchLegacyPath reports whether a legacy slash-delimited permission covers
// the node. The grant must be a path prefix of the node URL or id.
func MatchLegacyPath(item domain.MenuItem, granted string) bool {
	if !strings.Contains(granted, "/") {
		return false
	}
	granted = strings.TrimSuffix(granted, "/")
	if granted == "" {
		return false
	}
	return pathHasPrefix(item.URL, granted) || pathHasPrefix(item.ID, granted)
}

func pathHasPrefix(path, prefix string) bool {
	if path == "" || !strings.HasPrefix(path, prefix) {
		return false
	}
	rest := path[len(prefix):]
	return rest == "" || strings.HasPrefix(rest, "/")
}

// allowed composes both permission grammars with OR across the whole set.
func allowed(item domain.MenuItem, granted []string) bool {
	if item.Permission == "" {
		return true
	}
	for _, g := range granted {
		if MatchPermission(item.Permission, g) || MatchLegacyPath(item, g) {
			return true
		}
	}
	return false
}
