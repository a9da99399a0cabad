package service

import "go-directory-wiki/internal/data"

// ReconcileCategories deduplicates category values by exact match, keeping
// first-occurrence order. Empty values count as the default category, which
// is appended when absent.
func ReconcileCategories(values []string) []string {
	seen := make(map[string]bool, len(values)+1)
	out := make([]string, 0, len(values)+1)
	for _, v := range values {
		if v == "" {
			v = data.DefaultCategory
		}
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	if !seen[data.DefaultCategory] {
		out = append(out, data.DefaultCategory)
	}
	return out
}
