package menu

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/FeruzLatifov/univer-back-sub003/internal/domain"
)

// Load reads the menu tree from a JSON config file. An empty path falls
// back to the built-in default tree.
func Load(path string) ([]domain.MenuItem, error) {
	if path == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read menu config: %w", err)
	}
	var tree []domain.MenuItem
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("decode menu config: %w", err)
	}
	return tree, nil
}

// Default returns the standard university navigation tree.
func Default() []domain.MenuItem {
	order := func(n int) *int { return &n }
	return []domain.MenuItem{
		{ID: "dashboard", Label: "Dashboard", URL: "/dashboard", Icon: "home", Active: true, Order: order(1)},
		{ID: "students", Label: "Students", URL: "/students", Icon: "users", Permission: "student.view", Active: true, Order: order(2), Children: []domain.MenuItem{
			{ID: "student-list", Label: "Student list", URL: "/students/list", Permission: "student.view", Active: true},
			{ID: "student-transfer", Label: "Transfers", URL: "/students/transfer", Permission: "student.transfer", Active: true},
			{ID: "student-graduate", Label: "Graduates", URL: "/students/graduate", Permission: "student.graduate", Active: true},
		}},
		{ID: "employees", Label: "Employees", URL: "/employees", Icon: "briefcase", Permission: "employee.view", Active: true, Order: order(3)},
		{ID: "curriculum", Label: "Curriculum", Icon: "book", Active: true, Children: []domain.MenuItem{
			{ID: "subjects", Label: "Subjects", URL: "/curriculum/subjects", Permission: "curriculum.subject", Active: true},
			{ID: "groups", Label: "Groups", URL: "/curriculum/groups", Permission: "curriculum.group", Active: true},
		}},
		{ID: "performance", Label: "Performance", Icon: "bar-chart", Active: true, Children: []domain.MenuItem{
			{ID: "grades", Label: "Grades", URL: "/performance/grades", Permission: "performance.grade", Active: true},
			{ID: "attendance", Label: "Attendance", URL: "/performance/attendance", Permission: "performance.attendance", Active: true},
		}},
		{ID: "reports", Label: "Reports", URL: "/reports", Icon: "file-text", Permission: "report.view", Active: true, Children: []domain.MenuItem{
			{ID: "report-export", Label: "Export", URL: "/reports/export", Permission: "report.export", Active: true},
		}},
		{ID: "administration", Label: "Administration", Icon: "settings", Active: true, Children: []domain.MenuItem{
			{ID: "admin-users", Label: "System users", URL: "/admin/users", Permission: "admin.user", Active: true},
			{ID: "admin-roles", Label: "Roles", URL: "/admin/roles", Permission: "admin.role", Active: true},
			{ID: "admin-translations", Label: "Translations", URL: "/admin/translations", Permission: "admin.translation", Active: true},
		}},
	}
}
