package georss

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"

	"github.com/thomaskoefod/quakereadr/pkg/models"
)

// Parser turns a fetched document into raw entries.
type Parser interface {
	Parse(raw []byte) ([]RawEntry, error)
}

// GofeedParser parses RSS/Atom documents with GeoRSS or W3C geo positions.
type GofeedParser struct{}

func NewParser() *GofeedParser {
	return &GofeedParser{}
}

func (p *GofeedParser) Parse(raw []byte) ([]RawEntry, error) {
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing feed: %w", err)
	}
	if parsed == nil {
		return nil, fmt.Errorf("parsing feed: empty document")
	}

	entries := make([]RawEntry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		entries = append(entries, convertItem(item))
	}
	return entries, nil
}

// convertItem converts a gofeed.Item to a RawEntry
func convertItem(item *gofeed.Item) RawEntry {
	entry := RawEntry{
		ExternalID:  strings.TrimSpace(item.GUID),
		Coordinates: itemCoordinates(item.Extensions),
		Title:       strings.TrimSpace(item.Title),
		Link:        item.Link,
		Description: item.Description,
	}
	if entry.ExternalID == "" {
		entry.ExternalID = strings.TrimSpace(item.Link)
	}
	if entry.Description == "" {
		entry.Description = item.Content
	}
	if len(item.Categories) > 0 {
		entry.Category = strings.TrimSpace(item.Categories[0])
	}
	if item.PublishedParsed != nil {
		published := item.PublishedParsed.UTC()
		entry.Published = &published
	} else if item.UpdatedParsed != nil {
		updated := item.UpdatedParsed.UTC()
		entry.Published = &updated
	}
	return entry
}

// itemCoordinates reads <georss:point>lat lon</georss:point>, falling back
// to <geo:lat>/<geo:long>.
func itemCoordinates(extensions ext.Extensions) *models.Coordinates {
	if extensions == nil {
		return nil
	}

	if point := extensionValue(extensions, "georss", "point"); point != "" {
		fields := strings.Fields(point)
		if len(fields) == 2 {
			lat, errLat := strconv.ParseFloat(fields[0], 64)
			lon, errLon := strconv.ParseFloat(fields[1], 64)
			if errLat == nil && errLon == nil {
				return &models.Coordinates{Latitude: lat, Longitude: lon}
			}
		}
	}

	lat, errLat := strconv.ParseFloat(extensionValue(extensions, "geo", "lat"), 64)
	lon, errLon := strconv.ParseFloat(extensionValue(extensions, "geo", "long"), 64)
	if errLat == nil && errLon == nil {
		return &models.Coordinates{Latitude: lat, Longitude: lon}
	}
	return nil
}

func extensionValue(extensions ext.Extensions, prefix, name string) string {
	values := extensions[prefix][name]
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0].Value)
}
