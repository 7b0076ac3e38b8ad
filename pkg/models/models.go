package models

import (
	"fmt"
	"strconv"
	"time"
)

// Coordinates is a latitude/longitude pair in degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

func (c Coordinates) String() string {
	return fmt.Sprintf("(%s, %s)",
		strconv.FormatFloat(c.Latitude, 'f', -1, 64),
		strconv.FormatFloat(c.Longitude, 'f', -1, 64))
}

// Entry is a feed entry that survived filtering.
type Entry struct {
	ExternalID     string       `json:"external_id"`
	Title          string       `json:"title"`
	Category       string       `json:"category"`
	Link           string       `json:"link"`
	Published      *time.Time   `json:"published,omitempty"`
	Coordinates    *Coordinates `json:"coordinates,omitempty"`
	DistanceToHome *float64     `json:"distance_to_home,omitempty"` // kilometers
	Attribution    string       `json:"attribution"`
	Magnitude      *float64     `json:"magnitude,omitempty"`
	Description    string       `json:"description"`
}

func (e Entry) String() string {
	return fmt.Sprintf("Entry(id=%s)", e.ExternalID)
}

// Quake is the stored form of an entry that is currently in the feed.
type Quake struct {
	Entry
	FeedURL   string    `json:"feed_url"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	Viewed    bool      `json:"viewed"`
}

type EventKind string

const (
	EventGenerated EventKind = "generated"
	EventUpdated   EventKind = "updated"
	EventRemoved   EventKind = "removed"
)

// Event records one lifecycle notification for an entry.
type Event struct {
	ID         int64     `json:"id"`
	ExternalID string    `json:"external_id"`
	Kind       EventKind `json:"kind"`
	At         time.Time `json:"at"`
}
