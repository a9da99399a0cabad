package service

import (
	"strings"

	"go-directory-wiki/internal/data"
)

// AllCategories is the category selection that matches every record.
const AllCategories = "All"

func matchesText(query string, fields ...string) bool {
	if query == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), query) {
			return true
		}
	}
	return false
}

func normalizeQuery(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// FilterContacts keeps the contacts whose name, description or category
// contains query (case-insensitive) and whose category equals category
// exactly, unless category is AllCategories. Input order is preserved.
func FilterContacts(contacts []*data.Contact, query, category string) []*data.Contact {
	q := normalizeQuery(query)
	out := make([]*data.Contact, 0, len(contacts))
	for _, c := range contacts {
		if category != AllCategories && c.Category != category {
			continue
		}
		if !matchesText(q, c.Name, c.Description, c.Category) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// PageFilter selects published pages by text and category.
type PageFilter struct {
	Query    string
	Category string
}

// FilterPages applies the contact matching rules to pages, searching title,
// excerpt and category. An empty category behaves like AllCategories.
func FilterPages(pages []*data.PageVersion, f PageFilter) []*data.PageVersion {
	q := normalizeQuery(f.Query)
	out := make([]*data.PageVersion, 0, len(pages))
	for _, p := range pages {
		if f.Category != "" && f.Category != AllCategories && p.Category != f.Category {
			continue
		}
		if !matchesText(q, p.Title, p.Excerpt, p.Category) {
			continue
		}
		out = append(out, p)
	}
	return out
}
