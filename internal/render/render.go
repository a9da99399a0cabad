// Package render turns stored page content into sanitized HTML. Content is
// either a block-editor JSON document or plain markdown.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Renderer converts page content to safe HTML.
type Renderer struct {
	md        goldmark.Markdown
	sanitizer *bluemonday.Policy
}

// New creates a Renderer.
func New() *Renderer {
	policy := bluemonday.UGCPolicy()
	// Task list items render as disabled checkboxes.
	policy.AllowElements("input")
	policy.AllowAttrs("type").Matching(regexp.MustCompile(`^checkbox$`)).OnElements("input")
	policy.AllowAttrs("checked", "disabled").OnElements("input")

	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			// Block text carries inline HTML; the sanitizer runs afterwards.
			goldmark.WithRendererOptions(html.WithUnsafe()),
		),
		sanitizer: policy,
	}
}

// Render converts content to sanitized HTML.
func (r *Renderer) Render(content string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(ToMarkdown(content)), &buf); err != nil {
		return "", fmt.Errorf("failed to render content: %w", err)
	}
	return template.HTML(r.sanitizer.SanitizeBytes(buf.Bytes())), nil
}

type document struct {
	Blocks []block `json:"blocks"`
}

type block struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ToMarkdown converts a block-editor document to markdown. Anything that is
// not such a document is returned unchanged.
func ToMarkdown(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "{") {
		return content
	}
	var doc document
	if err := json.Unmarshal([]byte(trimmed), &doc); err != nil || doc.Blocks == nil {
		return content
	}

	parts := make([]string, 0, len(doc.Blocks))
	for _, b := range doc.Blocks {
		if md := blockMarkdown(b); md != "" {
			parts = append(parts, md)
		}
	}
	return strings.Join(parts, "\n\n") + "\n"
}

func blockMarkdown(b block) string {
	switch b.Type {
	case "paragraph":
		var d struct {
			Text string `json:"text"`
		}
		if json.Unmarshal(b.Data, &d) != nil {
			return ""
		}
		return d.Text
	case "header":
		var d struct {
			Text  string `json:"text"`
			Level int    `json:"level"`
		}
		if json.Unmarshal(b.Data, &d) != nil {
			return ""
		}
		level := min(max(d.Level, 1), 6)
		return strings.Repeat("#", level) + " " + d.Text
	case "list":
		return listMarkdown(b.Data)
	case "checklist":
		var d struct {
			Items []struct {
				Text    string `json:"text"`
				Checked bool   `json:"checked"`
			} `json:"items"`
		}
		if json.Unmarshal(b.Data, &d) != nil {
			return ""
		}
		lines := make([]string, 0, len(d.Items))
		for _, it := range d.Items {
			mark := " "
			if it.Checked {
				mark = "x"
			}
			lines = append(lines, fmt.Sprintf("- [%s] %s", mark, it.Text))
		}
		return strings.Join(lines, "\n")
	case "quote":
		var d struct {
			Text    string `json:"text"`
			Caption string `json:"caption"`
		}
		if json.Unmarshal(b.Data, &d) != nil {
			return ""
		}
		out := "> " + d.Text
		if d.Caption != "" {
			out += "\n>\n> " + d.Caption
		}
		return out
	case "warning":
		var d struct {
			Title   string `json:"title"`
			Message string `json:"message"`
		}
		if json.Unmarshal(b.Data, &d) != nil {
			return ""
		}
		return "> **" + d.Title + "**\n>\n> " + d.Message
	case "code":
		var d struct {
			Code string `json:"code"`
		}
		if json.Unmarshal(b.Data, &d) != nil {
			return ""
		}
		fence := "```"
		if strings.Contains(d.Code, fence) {
			fence = "~~~~"
		}
		return fence + "\n" + d.Code + "\n" + fence
	case "delimiter":
		return "---"
	case "image":
		var d struct {
			URL  string `json:"url"`
			File struct {
				URL string `json:"url"`
			} `json:"file"`
			Caption string `json:"caption"`
		}
		if json.Unmarshal(b.Data, &d) != nil {
			return ""
		}
		src := d.File.URL
		if src == "" {
			src = d.URL
		}
		if src == "" {
			return ""
		}
		return fmt.Sprintf("![%s](%s)", strings.ReplaceAll(d.Caption, "]", `\]`), src)
	case "table":
		return tableMarkdown(b.Data)
	default:
		return ""
	}
}

type listItem struct {
	Content string     `json:"content"`
	Items   []listItem `json:"items"`
}

func listMarkdown(raw json.RawMessage) string {
	var d struct {
		Style string          `json:"style"`
		Items json.RawMessage `json:"items"`
	}
	if json.Unmarshal(raw, &d) != nil {
		return ""
	}

	// Older documents store items as plain strings, newer ones as nested objects.
	var items []listItem
	var flat []string
	if err := json.Unmarshal(d.Items, &flat); err == nil {
		for _, s := range flat {
			items = append(items, listItem{Content: s})
		}
	} else if err := json.Unmarshal(d.Items, &items); err != nil {
		return ""
	}

	var sb strings.Builder
	writeList(&sb, items, d.Style == "ordered", 0)
	return strings.TrimRight(sb.String(), "\n")
}

func writeList(sb *strings.Builder, items []listItem, ordered bool, depth int) {
	indent := strings.Repeat("   ", depth)
	for i, it := range items {
		marker := "-"
		if ordered {
			marker = fmt.Sprintf("%d.", i+1)
		}
		fmt.Fprintf(sb, "%s%s %s\n", indent, marker, it.Content)
		if len(it.Items) > 0 {
			writeList(sb, it.Items, ordered, depth+1)
		}
	}
}

func tableMarkdown(raw json.RawMessage) string {
	var d struct {
		WithHeadings bool       `json:"withHeadings"`
		Content      [][]string `json:"content"`
	}
	if json.Unmarshal(raw, &d) != nil || len(d.Content) == 0 {
		return ""
	}

	cols := 0
	for _, row := range d.Content {
		cols = max(cols, len(row))
	}
	rows := d.Content
	header := make([]string, cols)
	if d.WithHeadings {
		copy(header, rows[0])
		rows = rows[1:]
	}

	lines := []string{tableRow(header, cols), tableRow(slicesRepeat("---", cols), cols)}
	for _, row := range rows {
		lines = append(lines, tableRow(row, cols))
	}
	return strings.Join(lines, "\n")
}

func tableRow(cells []string, cols int) string {
	out := make([]string, cols)
	for i := range out {
		if i < len(cells) {
			out[i] = strings.ReplaceAll(cells[i], "|", `\|`)
		}
	}
	return "| " + strings.Join(out, " | ") + " |"
}

func slicesRepeat(s string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = s
	}
	return out
}
