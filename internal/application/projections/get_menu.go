package projections

import (
	"context"
	"strings"

	domainItem "rancho/internal/domain/item"
)

// GetMenuQuery carries query parameters.
type GetMenuQuery struct {
	OnlyAvailable bool
}

// MenuSection groups items sharing a category label.
type MenuSection struct {
	Category string // "" for uncategorised items
	Items    []domainItem.Item
}

// GetMenuResult carries the query result.
type GetMenuResult struct {
	Items     []domainItem.Item // insertion order
	Sections  []MenuSection     // ordered by first appearance of each category
	Available int
}

// GetMenuDeps holds dependencies for GetMenu.
type GetMenuDeps struct {
	ItemStore ItemStore
}

// QueryGetMenu lists menu items for the public page and the admin panel.
// PRE: none
// POST: Items keep store order; Sections partition Items without reordering within a section
// INVARIANT: categories differing only in case or surrounding space share a section
func QueryGetMenu(ctx context.Context, query GetMenuQuery, deps GetMenuDeps) (GetMenuResult, error) {
	all, err := deps.ItemStore.List(ctx)
	if err != nil {
		return GetMenuResult{}, err
	}

	result := GetMenuResult{Items: make([]domainItem.Item, 0, len(all))}
	index := make(map[string]int)
	for _, it := range all {
		if it.Available {
			result.Available++
		} else if query.OnlyAvailable {
			continue
		}
		result.Items = append(result.Items, it)

		key := strings.ToLower(strings.TrimSpace(it.Category))
		i, ok := index[key]
		if !ok {
			i = len(result.Sections)
			index[key] = i
			result.Sections = append(result.Sections, MenuSection{Category: strings.TrimSpace(it.Category)})
		}
		result.Sections[i].Items = append(result.Sections[i].Items, it)
	}
	return result, nil
}
