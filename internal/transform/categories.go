package transform

import (
	"sort"
	"strings"

	"github.com/angelmartinezt1/cs-products-sub000/internal/domain"
)

// categoryPath extracts the inner category path from the upstream value.
// Upstream sends an array of arrays of {id, name, level} objects, but flat
// arrays show up too: when the first element is itself an array it is the
// path, otherwise the whole field is.
func categoryPath(v any) []any {
	arr, ok := v.([]any)
	if !ok || len(arr) == 0 {
		return nil
	}
	if inner, ok := arr[0].([]any); ok {
		return inner
	}
	return arr
}

// hierarchy builds the prefix-closed (lvl0, lvl1, lvl2) triple. Upstream
// levels are inverted relative to the facet convention: level 2 is the root
// (lvl0) and level 0 the leaf (lvl2). Names are lowercased; lvl1 equals
// lvl0 when the middle level is absent, and lvl2 equals lvl1 when the leaf
// is absent, so every level is a prefix of the next.
func hierarchy(v any) domain.CategoryLevels {
	path := categoryPath(v)
	if len(path) == 0 {
		return domain.CategoryLevels{}
	}

	entries := make([]map[string]any, 0, len(path))
	for _, item := range path {
		if obj := asObject(item); obj != nil {
			entries = append(entries, obj)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return asFloat(entries[i]["level"]) > asFloat(entries[j]["level"])
	})

	nameAt := func(level int) string {
		for _, e := range entries {
			if asInt(e["level"]) == level {
				return strings.ToLower(strings.TrimSpace(asString(e["name"])))
			}
		}
		return ""
	}

	root := nameAt(2)
	mid := nameAt(1)
	leaf := nameAt(0)

	var levels domain.CategoryLevels
	if root == "" {
		return levels
	}

	h0 := root
	h1 := h0
	if mid != "" && mid != root {
		h1 = h0 + " > " + mid
	}
	h2 := h1
	if leaf != "" && leaf != mid {
		h2 = h1 + " > " + leaf
	}

	levels.Lvl0 = &h0
	levels.Lvl1 = &h1
	levels.Lvl2 = &h2
	return levels
}

// cleanCategoryTree keeps only the non-empty inner arrays of the upstream
// categories value. Anything that is not an array of arrays yields [].
func cleanCategoryTree(v any) []any {
	arr, ok := v.([]any)
	if !ok {
		return []any{}
	}
	out := make([]any, 0, len(arr))
	for _, item := range arr {
		inner, ok := item.([]any)
		if !ok || len(inner) == 0 {
			continue
		}
		out = append(out, inner)
	}
	return out
}
