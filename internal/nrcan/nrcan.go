// Package nrcan configures the generic GeoRSS feed for the Natural
// Resources Canada earthquakes feed.
package nrcan

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/thomaskoefod/quakereadr/internal/feed"
	"github.com/thomaskoefod/quakereadr/internal/georss"
	"github.com/thomaskoefod/quakereadr/pkg/models"
)

var ErrUnknownLanguage = fmt.Errorf("%w: unknown feed language", feed.ErrInvalidConfig)

const urlPattern = "http://www.earthquakescanada.nrcan.gc.ca/index-%s.php?tpl_region=canada&tpl_output=rss"

// URLs maps a feed language to its document url.
var URLs = map[string]string{
	"en": fmt.Sprintf(urlPattern, "en"),
	"fr": fmt.Sprintf(urlPattern, "fr"),
}

var Attributions = map[string]string{
	"en": "Natural Resources Canada",
	"fr": "Ressources naturelles Canada",
}

var magnitudePattern = georss.MustCompileField(`<b>magnitude: </b>(?P<custom_attribute>[^<]+)<br/>`)

// Options configures an earthquakes feed.
type Options struct {
	Home             models.Coordinates
	Language         string
	Radius           *float64 // kilometers
	MinimumMagnitude *float64
	Transport        georss.Transport
	Parser           georss.Parser
	Logger           *log.Logger
}

// Languages returns the supported feed languages, sorted.
func Languages() []string {
	langs := make([]string, 0, len(URLs))
	for lang := range URLs {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// Feed is the earthquakes feed. It embeds the generic feed and remembers
// the options it was built with.
type Feed struct {
	*feed.Feed
	language         string
	minimumMagnitude *float64
}

// NewFeed builds the feed for opts.Language. Unknown languages fail with
// ErrUnknownLanguage.
func NewFeed(opts Options) (*Feed, error) {
	url, ok := URLs[opts.Language]
	if !ok {
		if opts.Logger != nil {
			opts.Logger.Error("unknown feed language", "language", opts.Language)
		}
		return nil, fmt.Errorf("%w %q, must be one of %s",
			ErrUnknownLanguage, opts.Language, strings.Join(Languages(), ", "))
	}

	cfg := feed.Config{
		URL:         url,
		Home:        opts.Home,
		Radius:      opts.Radius,
		Attribution: Attributions[opts.Language],
		Enrichers:   []feed.Enricher{enrichMagnitude},
		Transport:   opts.Transport,
		Parser:      opts.Parser,
		Logger:      opts.Logger,
	}
	if opts.MinimumMagnitude != nil {
		cfg.Filters = append(cfg.Filters, MinimumMagnitude(*opts.MinimumMagnitude))
	}

	f, err := feed.New(cfg)
	if err != nil {
		return nil, err
	}

	q := &Feed{Feed: f, language: opts.Language}
	if opts.MinimumMagnitude != nil {
		threshold := *opts.MinimumMagnitude
		q.minimumMagnitude = &threshold
	}
	return q, nil
}

// Language returns the feed language, en or fr.
func (f *Feed) Language() string {
	return f.language
}

func (f *Feed) String() string {
	magnitude := "none"
	if f.minimumMagnitude != nil {
		magnitude = strconv.FormatFloat(*f.minimumMagnitude, 'f', -1, 64)
	}
	base := strings.TrimSuffix(f.Feed.String(), ")")
	return fmt.Sprintf("Earthquakes%s, magnitude=%s)", base, magnitude)
}

// NewFeedManager builds the feed for opts and wraps it in a feed.Manager.
func NewFeedManager(opts Options, generate, update, remove feed.Callback) (*feed.Manager, error) {
	f, err := NewFeed(opts)
	if err != nil {
		return nil, err
	}
	return feed.NewManager(f, generate, update, remove), nil
}

// ParseMagnitude extracts the magnitude from an entry description. The
// French feed uses ',' as decimal separator. A missing or malformed value
// yields nil.
func ParseMagnitude(description string) *float64 {
	value, ok := georss.Extract(description, magnitudePattern)
	if !ok {
		return nil
	}
	value = strings.ReplaceAll(strings.TrimSpace(value), ",", ".")
	magnitude, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil
	}
	return &magnitude
}

func enrichMagnitude(raw georss.RawEntry, entry *models.Entry) {
	entry.Magnitude = ParseMagnitude(raw.Description)
}

// MinimumMagnitude keeps entries with a magnitude at or above threshold.
// Entries without a magnitude are dropped.
func MinimumMagnitude(threshold float64) feed.Filter {
	return func(entry models.Entry) bool {
		return entry.Magnitude != nil && *entry.Magnitude >= threshold
	}
}
