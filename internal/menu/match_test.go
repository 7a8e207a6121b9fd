package menu_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/FeruzLatifov/univer-back-sub003/internal/domain"
	"github.com/FeruzLatifov/univer-back-sub003/internal/menu"
)

func TestMatchPermission(t *testing.T) {
	cases := []struct {
		name     string
		required string
		granted  string
		want     bool
	}{
		{"empty required always passes", "", "anything", true},
		{"universal wildcard", "student.view", "*", true},
		{"exact match", "student.view", "student.view", true},
		{"exact mismatch", "student.view", "student.edit", false},
		{"prefix wildcard covers child", "student.view", "student.*", true},
		{"prefix wildcard covers deep child", "student.transfer.approve", "student.*", true},
		{"prefix wildcard needs the dot boundary", "studentx.view", "student.*", false},
		{"prefix wildcard does not cover the bare prefix", "student", "student.*", false},
		{"granted narrower than required", "student.*", "student.view", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, menu.MatchPermission(tc.required, tc.granted))
		})
	}
}

func TestMatchLegacyPath(t *testing.T) {
	item := domain.MenuItem{ID: "student-list", URL: "/students/list"}

	require.True(t, menu.MatchLegacyPath(item, "/students"))
	require.True(t, menu.MatchLegacyPath(item, "/students/"))
	require.True(t, menu.MatchLegacyPath(item, "/students/list"))
	require.False(t, menu.MatchLegacyPath(item, "/student"))
	require.False(t, menu.MatchLegacyPath(item, "/reports"))

	// A grant without a slash is not a legacy path at all.
	require.False(t, menu.MatchLegacyPath(item, "students"))
	require.False(t, menu.MatchLegacyPath(item, "/"))
}

func TestMatchLegacyPathFallsBackToID(t *testing.T) {
	item := domain.MenuItem{ID: "/admin/users"}
	require.True(t, menu.MatchLegacyPath(item, "/admin"))
	require.True(t, menu.MatchLegacyPath(item, "/admin/users"))
	require.False(t, menu.MatchLegacyPath(item, "/admin/roles"))
}
