package catalog

import (
	"strings"

	"molten/pkg/domain"
)

// Pure filter stages over immutable item snapshots. Every stage returns a
// fresh slice, preserves relative order, and treats an empty constraint set
// as a passthrough, so stages compose in any state without special cases.

// Constraints describes one catalog query. Zero-value fields are no-ops.
type Constraints struct {
	COEs          []int
	Manufacturers []string
	Tags          []string
	Query         string
}

// Apply runs the full chain in its fixed order:
// COE allowlist -> manufacturer allowlist -> tag filter -> free-text search.
func Apply(items []domain.GlassItem, c Constraints) []domain.GlassItem {
	items = FilterByCOE(items, c.COEs)
	items = FilterByManufacturers(items, c.Manufacturers)
	items = FilterByTags(items, c.Tags)
	return SearchText(items, c.Query)
}

// FilterByCOE keeps items whose COE appears in the allowlist.
func FilterByCOE(items []domain.GlassItem, allowed []int) []domain.GlassItem {
	if len(allowed) == 0 {
		return copyItems(items)
	}
	set := make(map[int]bool, len(allowed))
	for _, coe := range allowed {
		set[coe] = true
	}
	out := make([]domain.GlassItem, 0, len(items))
	for _, item := range items {
		if set[item.COE] {
			out = append(out, item)
		}
	}
	return out
}

// FilterByManufacturers keeps items from the listed manufacturers
// (case-insensitive).
func FilterByManufacturers(items []domain.GlassItem, allowed []string) []domain.GlassItem {
	if len(allowed) == 0 {
		return copyItems(items)
	}
	set := make(map[string]bool, len(allowed))
	for _, name := range allowed {
		set[strings.ToLower(strings.TrimSpace(name))] = true
	}
	out := make([]domain.GlassItem, 0, len(items))
	for _, item := range items {
		if set[strings.ToLower(item.Manufacturer)] {
			out = append(out, item)
		}
	}
	return out
}

// FilterByTags keeps items carrying every requested tag, so filtering by
// [a, b] equals filtering by [a] then [b].
func FilterByTags(items []domain.GlassItem, required []string) []domain.GlassItem {
	if len(required) == 0 {
		return copyItems(items)
	}
	wanted := make([]string, 0, len(required))
	for _, tag := range required {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag != "" {
			wanted = append(wanted, tag)
		}
	}
	if len(wanted) == 0 {
		return copyItems(items)
	}
	out := make([]domain.GlassItem, 0, len(items))
	for _, item := range items {
		if hasAllTags(item.Tags, wanted) {
			out = append(out, item)
		}
	}
	return out
}

func hasAllTags(tags []string, wanted []string) bool {
	set := make(map[string]bool, len(tags))
	for _, tag := range tags {
		set[strings.ToLower(tag)] = true
	}
	for _, tag := range wanted {
		if !set[tag] {
			return false
		}
	}
	return true
}

// SearchText keeps items matching the query as a case-insensitive substring
// of name, manufacturer, SKU, natural key, tags or synonyms. Whitespace is
// trimmed; an empty query is a passthrough.
func SearchText(items []domain.GlassItem, query string) []domain.GlassItem {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return copyItems(items)
	}
	out := make([]domain.GlassItem, 0, len(items))
	for _, item := range items {
		if matchesText(item, needle) {
			out = append(out, item)
		}
	}
	return out
}

func matchesText(item domain.GlassItem, needle string) bool {
	if strings.Contains(strings.ToLower(item.Name), needle) ||
		strings.Contains(strings.ToLower(item.Manufacturer), needle) ||
		strings.Contains(strings.ToLower(item.SKU), needle) ||
		strings.Contains(strings.ToLower(item.NaturalKey), needle) {
		return true
	}
	for _, tag := range item.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	for _, syn := range item.Synonyms {
		if strings.Contains(strings.ToLower(syn), needle) {
			return true
		}
	}
	return false
}

func copyItems(items []domain.GlassItem) []domain.GlassItem {
	out := make([]domain.GlassItem, len(items))
	copy(out, items)
	return out
}
