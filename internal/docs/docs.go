// Package docs serves the built-in help topics as rendered markdown.
package docs

import (
	"embed"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"
)

//go:embed content/*.md
var contentFS embed.FS

// Topic is one embedded help page. Title comes from the page's first
// heading so the topic listing reads like a table of contents.
type Topic struct {
	Name  string
	Title string
}

// Topics lists the embedded help pages in name order.
func Topics() []Topic {
	entries, err := contentFS.ReadDir("content")
	if err != nil {
		return nil
	}
	topics := make([]Topic, 0, len(entries))
	for _, e := range entries {
		name := strings.TrimSuffix(e.Name(), ".md")
		if name == "" || name == e.Name() {
			continue
		}
		body, _ := contentFS.ReadFile("content/" + e.Name())
		topics = append(topics, Topic{Name: name, Title: firstHeading(string(body))})
	}
	sort.Slice(topics, func(i, j int) bool { return topics[i].Name < topics[j].Name })
	return topics
}

// Get returns the raw markdown for a topic. Topic names compare
// case-insensitively with surrounding space ignored.
func Get(topic string) (string, bool) {
	name := normalizeTopic(topic)
	if name == "" {
		return "", false
	}
	b, err := contentFS.ReadFile("content/" + name + ".md")
	if err != nil {
		return "", false
	}
	return string(b), true
}

func normalizeTopic(topic string) string {
	name := strings.ToLower(strings.TrimSpace(topic))
	if strings.ContainsAny(name, "/\\.") {
		return ""
	}
	return name
}

// firstHeading pulls the text of the leading "# " line, or "" when the
// page starts some other way.
func firstHeading(md string) string {
	for _, line := range strings.Split(md, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if after, ok := strings.CutPrefix(line, "# "); ok {
			return strings.TrimSpace(after)
		}
		return ""
	}
	return ""
}

// Render formats a topic for terminal display. Avoids glamour's auto style,
// which can block on terminal capability queries; the caller passes the
// already-detected background preference instead. Falls back to the raw
// markdown when rendering fails.
func Render(md string, width int, dark bool) string {
	if width < 20 {
		width = 20
	}
	if width > 100 {
		width = 100
	}
	style := "light"
	if dark {
		style = "dark"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n") + "\n"
}
