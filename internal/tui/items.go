package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/bubbles/list"

	"github.com/thomaskoefod/quakereadr/pkg/models"
)

type quakeItem struct {
	quake models.Quake
}

func (i quakeItem) Title() string {
	title := fmt.Sprintf("%-5s %s", FormatMagnitude(i.quake.Magnitude), i.quake.Title)
	if !i.quake.Viewed {
		return "● " + title
	}
	return "  " + title
}

func (i quakeItem) Description() string {
	parts := []string{FormatDistance(i.quake.DistanceToHome), FormatPublished(i.quake.Published)}
	if i.quake.Category != "" {
		parts = append(parts, i.quake.Category)
	}
	return strings.Join(parts, " | ")
}

func (i quakeItem) FilterValue() string {
	return i.quake.Title + " " + i.quake.Category + " " + PlainText(i.quake.Description)
}

var _ list.Item = quakeItem{}

func FormatMagnitude(m *float64) string {
	if m == nil {
		return "M?"
	}
	return "M" + strconv.FormatFloat(*m, 'f', 1, 64)
}

func FormatDistance(d *float64) string {
	if d == nil {
		return "distance unknown"
	}
	return fmt.Sprintf("%.0f km", *d)
}

func FormatPublished(t *time.Time) string {
	if t == nil {
		return "time unknown"
	}
	return t.UTC().Format("Jan 2, 2006 15:04 MST")
}

// FormatEvent renders one lifecycle event as a single line.
func FormatEvent(e models.Event) string {
	return fmt.Sprintf("%s  %-9s %s", e.At.UTC().Format("Jan 2 15:04 MST"), e.Kind, e.ExternalID)
}

// PlainText strips markup from an HTML fragment and collapses whitespace.
// Text that does not parse is returned unchanged.
func PlainText(fragment string) string {
	if fragment == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}
	doc.Find("br").ReplaceWithHtml(" ")
	return strings.Join(strings.Fields(doc.Text()), " ")
}
