package feed

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"

	"github.com/charmbracelet/log"

	"github.com/thomaskoefod/quakereadr/internal/geo"
	"github.com/thomaskoefod/quakereadr/internal/georss"
	"github.com/thomaskoefod/quakereadr/pkg/models"
)

var (
	ErrInvalidConfig = errors.New("invalid feed configuration")
)

// Status is the outcome of a single Feed.Update.
type Status int

const (
	// StatusOK means the feed was fetched and parsed; entries may be empty
	// after filtering.
	StatusOK Status = iota
	// StatusOKNoData means the fetched document held no items at all.
	StatusOKNoData
	// StatusError means fetching or parsing failed.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusOKNoData:
		return "ok_no_data"
	case StatusError:
		return "error"
	}
	return "unknown"
}

// Enricher fills variant-specific fields of an entry from its raw form.
type Enricher func(raw georss.RawEntry, entry *models.Entry)

// Filter reports whether an entry should be kept.
type Filter func(entry models.Entry) bool

// Config describes one feed: where it lives, whose home it is relative to,
// and how its entries are enriched and filtered.
type Config struct {
	URL         string
	Home        models.Coordinates
	Radius      *float64 // kilometers; nil disables the radius filter
	Attribution string
	Enrichers   []Enricher
	Filters     []Filter
	Transport   georss.Transport
	Parser      georss.Parser
	Logger      *log.Logger
}

// Feed fetches, parses and filters one GeoRSS feed. It keeps no state
// between calls to Update.
type Feed struct {
	url         string
	home        models.Coordinates
	radius      *float64
	attribution string
	enrichers   []Enricher
	filters     []Filter
	transport   georss.Transport
	parser      georss.Parser
	logger      *log.Logger
}

// New validates cfg and creates a Feed.
func New(cfg Config) (*Feed, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: feed url is required", ErrInvalidConfig)
	}
	u, err := url.Parse(cfg.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: feed url %q is not an absolute http(s) url", ErrInvalidConfig, cfg.URL)
	}
	if err := validateCoordinates(cfg.Home); err != nil {
		return nil, fmt.Errorf("%w: home %v: %v", ErrInvalidConfig, cfg.Home, err)
	}
	if cfg.Radius != nil && (math.IsNaN(*cfg.Radius) || math.IsInf(*cfg.Radius, 0) || *cfg.Radius < 0) {
		return nil, fmt.Errorf("%w: radius must be a non-negative number of kilometers", ErrInvalidConfig)
	}

	f := &Feed{
		url:         cfg.URL,
		home:        cfg.Home,
		attribution: cfg.Attribution,
		enrichers:   append([]Enricher(nil), cfg.Enrichers...),
		filters:     append([]Filter(nil), cfg.Filters...),
		transport:   cfg.Transport,
		parser:      cfg.Parser,
		logger:      cfg.Logger,
	}
	if cfg.Radius != nil {
		radius := *cfg.Radius
		f.radius = &radius
	}
	if f.transport == nil {
		f.transport = georss.NewHTTPTransport(georss.DefaultTimeout, georss.DefaultUserAgent, 0)
	}
	if f.parser == nil {
		f.parser = georss.NewParser()
	}
	if f.logger == nil {
		f.logger = log.Default()
	}
	return f, nil
}

func validateCoordinates(c models.Coordinates) error {
	switch {
	case math.IsNaN(c.Latitude) || math.IsNaN(c.Longitude):
		return errors.New("coordinates must be numbers")
	case c.Latitude < -90 || c.Latitude > 90:
		return errors.New("latitude out of range")
	case c.Longitude < -180 || c.Longitude > 180:
		return errors.New("longitude out of range")
	}
	return nil
}

// URL returns the feed document url.
func (f *Feed) URL() string {
	return f.url
}

// Home returns the point distances are measured from.
func (f *Feed) Home() models.Coordinates {
	return f.home
}

func (f *Feed) String() string {
	radius := "none"
	if f.radius != nil {
		radius = strconv.FormatFloat(*f.radius, 'f', -1, 64)
	}
	return fmt.Sprintf("Feed(home=%s, url=%s, radius=%s)", f.home, f.url, radius)
}

// Update fetches and parses the feed and returns the entries that pass the
// filter chain, in feed order. Failures are reported as StatusError.
func (f *Feed) Update(ctx context.Context) (Status, []models.Entry) {
	raw, err := f.transport.Fetch(ctx, f.url)
	if err != nil {
		f.logger.Warn("feed fetch failed", "url", f.url, "err", err)
		return StatusError, nil
	}

	rawEntries, err := f.parser.Parse(raw)
	if err != nil {
		f.logger.Warn("feed parse failed", "url", f.url, "err", err)
		return StatusError, nil
	}
	if len(rawEntries) == 0 {
		f.logger.Debug("feed has no entries", "url", f.url)
		return StatusOKNoData, []models.Entry{}
	}

	entries := make([]models.Entry, 0, len(rawEntries))
	for _, r := range rawEntries {
		entries = append(entries, f.convertToEntry(r))
	}

	kept := f.filterEntries(entries)
	f.logger.Debug("feed updated", "url", f.url, "parsed", len(rawEntries), "kept", len(kept))
	return StatusOK, kept
}

// convertToEntry converts a raw entry into an Entry with distance,
// attribution and enriched fields filled in.
func (f *Feed) convertToEntry(r georss.RawEntry) models.Entry {
	entry := models.Entry{
		ExternalID:  r.ExternalID,
		Title:       r.Title,
		Category:    r.Category,
		Link:        r.Link,
		Attribution: f.attribution,
		Description: r.Description,
	}
	if r.Published != nil {
		published := *r.Published
		entry.Published = &published
	}
	if r.Coordinates != nil {
		coords := *r.Coordinates
		distance := geo.Distance(f.home, coords)
		entry.Coordinates = &coords
		entry.DistanceToHome = &distance
	}
	for _, enrich := range f.enrichers {
		enrich(r, &entry)
	}
	return entry
}

func (f *Feed) filterEntries(entries []models.Entry) []models.Entry {
	kept := make([]models.Entry, 0, len(entries))
	for _, entry := range entries {
		if !f.withinRadius(entry) {
			continue
		}
		if !f.passesFilters(entry) {
			continue
		}
		kept = append(kept, entry)
	}
	return kept
}

// withinRadius keeps entries without a distance.
func (f *Feed) withinRadius(entry models.Entry) bool {
	if f.radius == nil || entry.DistanceToHome == nil {
		return true
	}
	return *entry.DistanceToHome <= *f.radius
}

func (f *Feed) passesFilters(entry models.Entry) bool {
	for _, keep := range f.filters {
		if !keep(entry) {
			return false
		}
	}
	return true
}
