package tui

import (
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/charmbracelet/glamour"

	"github.com/thomaskoefod/quakereadr/pkg/models"
)

// detailMarkdown lays out a quake and its feed history as a markdown
// document.
func detailMarkdown(q models.Quake, history []models.Event) string {
	var s strings.Builder

	fmt.Fprintf(&s, "# %s\n\n", q.Title)
	fmt.Fprintf(&s, "- **Magnitude:** %s\n", FormatMagnitude(q.Magnitude))
	fmt.Fprintf(&s, "- **Distance:** %s\n", FormatDistance(q.DistanceToHome))
	fmt.Fprintf(&s, "- **Published:** %s\n", FormatPublished(q.Published))
	if q.Coordinates != nil {
		fmt.Fprintf(&s, "- **Coordinates:** %s\n", q.Coordinates)
	}
	if q.Category != "" {
		fmt.Fprintf(&s, "- **Category:** %s\n", q.Category)
	}
	fmt.Fprintf(&s, "- **First seen:** %s\n", q.FirstSeen.UTC().Format("Jan 2, 2006 15:04 MST"))

	if q.Description != "" {
		s.WriteString("\n---\n\n")
		converter := md.NewConverter("", true, nil)
		body, err := converter.ConvertString(q.Description)
		if err != nil {
			body = PlainText(q.Description)
		}
		s.WriteString(body)
		s.WriteString("\n")
	}

	if q.Link != "" {
		fmt.Fprintf(&s, "\n<%s>\n", q.Link)
	}
	if q.Attribution != "" {
		fmt.Fprintf(&s, "\n_Source: %s_\n", q.Attribution)
	}

	if len(history) > 0 {
		s.WriteString("\n## History\n\n")
		for _, e := range history {
			fmt.Fprintf(&s, "- %s: %s\n", e.At.UTC().Format("Jan 2, 2006 15:04 MST"), e.Kind)
		}
	}
	return s.String()
}

// renderDetail renders a quake for the terminal, wrapped at width. It falls
// back to the raw markdown if glamour fails.
func renderDetail(q models.Quake, history []models.Event, width int) string {
	doc := detailMarkdown(q, history)
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return doc
	}
	out, err := r.Render(doc)
	if err != nil {
		return doc
	}
	return out
}
