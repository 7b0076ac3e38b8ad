// Package georss adapts GeoRSS documents into raw entries and provides the
// transport and parser the feed pipeline depends on.
package georss

import (
	"fmt"
	"regexp"
	"time"

	"github.com/thomaskoefod/quakereadr/pkg/models"
)

// CustomAttribute is the capture group name field patterns must use.
const CustomAttribute = "custom_attribute"

// RawEntry is one parsed feed item before distance, enrichment and filtering.
type RawEntry struct {
	ExternalID  string
	Coordinates *models.Coordinates
	Title       string
	Category    string
	Link        string
	Published   *time.Time
	Description string
}

// Extract searches the description for pattern. See Extract.
func (e RawEntry) Extract(pattern *regexp.Regexp) (string, bool) {
	return Extract(e.Description, pattern)
}

// Extract returns the text captured by the CustomAttribute group of the
// first match of pattern in text. A pattern with a single unnamed group is
// accepted as well. A miss is reported as ok == false.
func Extract(text string, pattern *regexp.Regexp) (string, bool) {
	if pattern == nil || text == "" {
		return "", false
	}

	idx := pattern.SubexpIndex(CustomAttribute)
	if idx < 0 {
		if pattern.NumSubexp() != 1 {
			return "", false
		}
		idx = 1
	}

	m := pattern.FindStringSubmatchIndex(text)
	if m == nil || m[2*idx] < 0 {
		return "", false
	}
	return text[m[2*idx]:m[2*idx+1]], true
}

// MustCompileField compiles a field pattern and panics unless it carries the
// CustomAttribute group.
func MustCompileField(expr string) *regexp.Regexp {
	re := regexp.MustCompile(expr)
	if re.SubexpIndex(CustomAttribute) < 0 {
		panic(fmt.Sprintf("georss: pattern %q has no (?P<%s>...) group", expr, CustomAttribute))
	}
	return re
}
