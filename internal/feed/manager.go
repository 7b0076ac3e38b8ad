package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/thomaskoefod/quakereadr/pkg/models"
)

// Updater is the part of Feed the Manager depends on.
type Updater interface {
	Update(ctx context.Context) (Status, []models.Entry)
}

// Callback receives the external id of an entry whose lifecycle changed.
type Callback func(externalID string)

// Manager keeps the entries seen by the last successful poll and turns each
// new poll into generate, update and remove callbacks.
//
// Manager is not safe for concurrent use; callers must run one Update at a
// time per Manager.
type Manager struct {
	feed     Updater
	generate Callback
	update   Callback
	remove   Callback

	entries       map[string]models.Entry
	order         []string
	lastTimestamp *time.Time
}

// NewManager creates a Manager. Nil callbacks are skipped.
func NewManager(f Updater, generate, update, remove Callback) *Manager {
	return &Manager{
		feed:     f,
		generate: generate,
		update:   update,
		remove:   remove,
		entries:  make(map[string]models.Entry),
	}
}

func (m *Manager) String() string {
	return fmt.Sprintf("Manager(feed=%v)", m.feed)
}

// Update polls the feed once. On StatusError the current state is kept and
// no callbacks fire. Otherwise the new entries replace the state and
// callbacks fire in this order: generate for new ids, update for every id
// still present, remove for ids that disappeared.
func (m *Manager) Update(ctx context.Context) Status {
	status, entries := m.feed.Update(ctx)
	if status == StatusError {
		return status
	}

	next, order := index(entries)
	prev, prevOrder := m.entries, m.order

	m.entries, m.order = next, order
	if ts := latestPublished(entries); ts != nil {
		m.lastTimestamp = ts
	}

	for _, id := range order {
		if _, known := prev[id]; !known {
			fire(m.generate, id)
		}
	}
	for _, id := range order {
		if _, known := prev[id]; known {
			fire(m.update, id)
		}
	}
	for _, id := range prevOrder {
		if _, still := next[id]; !still {
			fire(m.remove, id)
		}
	}
	return status
}

// index maps entries by external id, keeping feed order. Entries without an
// id are not tracked. A repeated id keeps its first position and the last
// entry.
func index(entries []models.Entry) (map[string]models.Entry, []string) {
	byID := make(map[string]models.Entry, len(entries))
	order := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.ExternalID == "" {
			continue
		}
		if _, seen := byID[e.ExternalID]; !seen {
			order = append(order, e.ExternalID)
		}
		byID[e.ExternalID] = e
	}
	return byID, order
}

func latestPublished(entries []models.Entry) *time.Time {
	var latest *time.Time
	for _, e := range entries {
		if e.Published == nil {
			continue
		}
		if latest == nil || e.Published.After(*latest) {
			ts := *e.Published
			latest = &ts
		}
	}
	return latest
}

func fire(cb Callback, id string) {
	if cb != nil {
		cb(id)
	}
}

// Entries returns a copy of the current entries keyed by external id.
func (m *Manager) Entries() map[string]models.Entry {
	out := make(map[string]models.Entry, len(m.entries))
	for id, e := range m.entries {
		out[id] = e
	}
	return out
}

// Entry returns the current entry for id.
func (m *Manager) Entry(id string) (models.Entry, bool) {
	e, ok := m.entries[id]
	return e, ok
}

// ExternalIDs returns the current ids in feed order.
func (m *Manager) ExternalIDs() []string {
	return append([]string(nil), m.order...)
}

// LastTimestamp returns the latest published time seen by a successful
// poll. ok is false until some entry carried a published time.
func (m *Manager) LastTimestamp() (ts time.Time, ok bool) {
	if m.lastTimestamp == nil {
		return time.Time{}, false
	}
	return *m.lastTimestamp, true
}
