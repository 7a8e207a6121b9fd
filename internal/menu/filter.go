package menu

import (
	"sort"

	"github.com/FeruzLatifov/univer-back-sub003/internal/domain"
)

// Filter prunes the configured tree to the nodes the permission set allows.
// Pure function: the input tree is never mutated and equal inputs always
// produce equal output.
//
// Children are filtered before their parent. A node survives when its own
// permission check passes, or when at least one child survived (container
// semantics). A pure container without a URL of its own and with no surviving
// children is dropped even if it requires no permission. Inactive nodes are
// dropped with their whole subtree.
func Filter(tree []domain.MenuItem, permissions []string) []domain.MenuItem {
	out := make([]domain.MenuItem, 0, len(tree))
	for _, item := range tree {
		if filtered, ok := filterNode(item, permissions); ok {
			out = append(out, filtered)
		}
	}
	return sortSiblings(out)
}

func filterNode(item domain.MenuItem, permissions []string) (domain.MenuItem, bool) {
	if !item.Active {
		return domain.MenuItem{}, false
	}

	children := make([]domain.MenuItem, 0, len(item.Children))
	for _, child := range item.Children {
		if filtered, ok := filterNode(child, permissions); ok {
			children = append(children, filtered)
		}
	}

	self := allowed(item, permissions)
	keep := len(children) > 0 || (self && (item.URL != "" || len(item.Children) == 0))
	if !keep {
		return domain.MenuItem{}, false
	}

	item.Children = sortSiblings(children)
	if len(item.Children) == 0 {
		item.Children = nil
	}
	return item, true
}

// sortSiblings places nodes carrying an explicit order first, ascending,
// and keeps the configuration-declared sequence for the rest. Applied
// independently at every level of the tree.
func sortSiblings(items []domain.MenuItem) []domain.MenuItem {
	sort.SliceStable(items, func(i, j int) bool {
		oi, oj := items[i].Order, items[j].Order
		switch {
		case oi != nil && oj != nil:
			return *oi < *oj
		case oi != nil:
			return true
		default:
			return false
		}
	})
	return items
}
