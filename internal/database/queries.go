package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/thomaskoefod/quakereadr/pkg/models"
)

const quakeColumns = `q.external_id, q.feed_url, q.title, q.category, q.link, q.description, q.attribution,
	q.published_at, q.latitude, q.longitude, q.distance_km, q.magnitude, q.first_seen, q.last_seen,
	v.external_id IS NOT NULL`

// UpsertQuake stores the current state of an entry. first_seen is kept from
// the first insert, everything else is overwritten.
func (db *DB) UpsertQuake(feedURL string, entry models.Entry, seen time.Time) error {
	var lat, lon sql.NullFloat64
	if entry.Coordinates != nil {
		lat = sql.NullFloat64{Float64: entry.Coordinates.Latitude, Valid: true}
		lon = sql.NullFloat64{Float64: entry.Coordinates.Longitude, Valid: true}
	}

	_, err := db.Exec(`
		INSERT INTO quakes (external_id, feed_url, title, category, link, description, attribution,
			published_at, latitude, longitude, distance_km, magnitude, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(external_id) DO UPDATE SET
			feed_url = excluded.feed_url,
			title = excluded.title,
			category = excluded.category,
			link = excluded.link,
			description = excluded.description,
			attribution = excluded.attribution,
			published_at = excluded.published_at,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			distance_km = excluded.distance_km,
			magnitude = excluded.magnitude,
			last_seen = excluded.last_seen`,
		entry.ExternalID, feedURL, entry.Title, entry.Category, entry.Link, entry.Description, entry.Attribution,
		nullTime(entry.Published), lat, lon, nullFloat(entry.DistanceToHome), nullFloat(entry.Magnitude),
		seen.UTC(), seen.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upserting quake %s: %w", entry.ExternalID, err)
	}
	return nil
}

// DeleteQuake removes a quake. Missing ids return ErrQuakeNotFound.
func (db *DB) DeleteQuake(externalID string) error {
	result, err := db.Exec("DELETE FROM quakes WHERE external_id = ?", externalID)
	if err != nil {
		return fmt.Errorf("deleting quake: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return ErrQuakeNotFound
	}
	return nil
}

// DeleteQuakesExcept removes every quake whose id is not in keep and returns
// the number of rows removed.
func (db *DB) DeleteQuakesExcept(keep []string) (int64, error) {
	query := "DELETE FROM quakes"
	args := make([]any, 0, len(keep))
	if len(keep) > 0 {
		query += " WHERE external_id NOT IN (?" + strings.Repeat(", ?", len(keep)-1) + ")"
		for _, id := range keep {
			args = append(args, id)
		}
	}

	result, err := db.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("deleting stale quakes: %w", err)
	}
	return result.RowsAffected()
}

// GetQuakes retrieves all current quakes, newest first. Quakes without a
// published time sort last.
func (db *DB) GetQuakes() ([]models.Quake, error) {
	query := `
		SELECT ` + quakeColumns + `
		FROM quakes q
		LEFT JOIN viewed_quakes v ON q.external_id = v.external_id
		ORDER BY q.published_at IS NULL, q.published_at DESC, q.external_id
	`

	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("querying quakes: %w", err)
	}
	defer rows.Close()

	var quakes []models.Quake
	for rows.Next() {
		quake, err := scanQuake(rows)
		if err != nil {
			return nil, err
		}
		quakes = append(quakes, *quake)
	}

	return quakes, rows.Err()
}

// GetQuake retrieves a single quake, or nil if it is not stored
func (db *DB) GetQuake(externalID string) (*models.Quake, error) {
	row := db.QueryRow(`
		SELECT `+quakeColumns+`
		FROM quakes q
		LEFT JOIN viewed_quakes v ON q.external_id = v.external_id
		WHERE q.external_id = ?`,
		externalID,
	)

	quake, err := scanQuake(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return quake, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanQuake(s scanner) (*models.Quake, error) {
	var (
		q                   models.Quake
		published           sql.NullTime
		lat, lon, dist, mag sql.NullFloat64
	)
	err := s.Scan(&q.ExternalID, &q.FeedURL, &q.Title, &q.Category, &q.Link, &q.Description, &q.Attribution,
		&published, &lat, &lon, &dist, &mag, &q.FirstSeen, &q.LastSeen, &q.Viewed)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning quake: %w", err)
	}

	if published.Valid {
		t := published.Time.UTC()
		q.Published = &t
	}
	if lat.Valid && lon.Valid {
		q.Coordinates = &models.Coordinates{Latitude: lat.Float64, Longitude: lon.Float64}
	}
	q.DistanceToHome = floatPtr(dist)
	q.Magnitude = floatPtr(mag)
	return &q, nil
}

// MarkQuakeViewed marks a quake as viewed. Viewing it again is a no-op.
func (db *DB) MarkQuakeViewed(externalID string) error {
	_, err := db.Exec(
		"INSERT OR IGNORE INTO viewed_quakes (external_id, viewed_at) VALUES (?, ?)",
		externalID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("marking quake as viewed: %w", err)
	}
	return nil
}

// RecordEvent inserts a lifecycle event and sets its ID
func (db *DB) RecordEvent(event *models.Event) error {
	result, err := db.Exec(
		"INSERT INTO quake_events (external_id, kind, at) VALUES (?, ?, ?)",
		event.ExternalID, string(event.Kind), event.At.UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}

	event.ID = id
	return nil
}

// RecentEvents retrieves up to limit events, most recent first
func (db *DB) RecentEvents(limit int) ([]models.Event, error) {
	rows, err := db.Query(
		"SELECT id, external_id, kind, at FROM quake_events ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// EventsFor retrieves the history of one quake, oldest first
func (db *DB) EventsFor(externalID string) ([]models.Event, error) {
	rows, err := db.Query(
		"SELECT id, external_id, kind, at FROM quake_events WHERE external_id = ? ORDER BY id",
		externalID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying events for %s: %w", externalID, err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]models.Event, error) {
	var events []models.Event
	for rows.Next() {
		var (
			event models.Event
			kind  string
		)
		if err := rows.Scan(&event.ID, &event.ExternalID, &kind, &event.At); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		event.Kind = models.EventKind(kind)
		events = append(events, event)
	}
	return events, rows.Err()
}

// DeleteOldEvents removes events older than maxAge
func (db *DB) DeleteOldEvents(maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	result, err := db.Exec("DELETE FROM quake_events WHERE at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting old events: %w", err)
	}
	return result.RowsAffected()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}
