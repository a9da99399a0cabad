package service

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var plainTextPolicy = bluemonday.StrictPolicy()

// cleanText strips all markup from a plain-text field.
func cleanText(s string) string {
	// StrictPolicy escapes entities, which would double-escape on render.
	return strings.TrimSpace(html.UnescapeString(plainTextPolicy.Sanitize(s)))
}
