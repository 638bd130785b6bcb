package library

import (
	"strings"

	"github.com/coolbeans/normtree/pkg/text"
)

// TransferIDs copies node ids from old onto the nodes of updated whose
// chain of titles, root first, is the same. Chains that occur more than
// once in either tree are ambiguous and left alone. It returns the number
// of ids transferred. updated is modified in place.
func TransferIDs(old, updated *text.StructuredText) int {
	if old == nil || updated == nil {
		return 0
	}
	oldIDs := uniqueByTitles(old)
	newIDs := uniqueByTitles(updated)

	transferred := 0
	text.Walk(updated, func(path text.Path, node *text.StructuredText) bool {
		key := titleKey(updated, path)
		if _, unique := newIDs[key]; !unique {
			return true
		}
		if id, ok := oldIDs[key]; ok && id != "" && node.ID != id {
			node.ID = id
			transferred++
		}
		return true
	})
	return transferred
}

// uniqueByTitles maps each title chain occurring exactly once to its node id.
func uniqueByTitles(t *text.StructuredText) map[string]string {
	ids := map[string]string{}
	seen := map[string]int{}
	text.Walk(t, func(path text.Path, node *text.StructuredText) bool {
		key := titleKey(t, path)
		seen[key]++
		ids[key] = node.ID
		return true
	})
	for key, n := range seen {
		if n > 1 {
			delete(ids, key)
		}
	}
	return ids
}

func titleKey(t *text.StructuredText, path text.Path) string {
	titles := text.Titles(t, path)
	for i, title := range titles {
		titles[i] = text.CollapseSpace(strings.TrimSpace(title))
	}
	return strings.Join(titles, "\x1f")
}
