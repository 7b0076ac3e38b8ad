package main

import (
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"github.com/thomaskoefod/quakereadr/internal/database"
	"github.com/thomaskoefod/quakereadr/internal/metrics"
	"github.com/thomaskoefod/quakereadr/pkg/models"
)

// recorder turns manager callbacks into store writes, event history and
// metrics. Store errors are logged; they never abort a poll.
type recorder struct {
	db      *database.DB
	metrics *metrics.Metrics
	logger  *log.Logger
	feedURL string
	lookup  func(externalID string) (models.Entry, bool)
	now     func() time.Time
}

func (r *recorder) generated(id string) {
	r.upsert(id)
	r.record(id, models.EventGenerated)
}

func (r *recorder) updated(id string) {
	r.upsert(id)
	r.record(id, models.EventUpdated)
}

func (r *recorder) removed(id string) {
	if err := r.db.DeleteQuake(id); err != nil && !errors.Is(err, database.ErrQuakeNotFound) {
		r.logger.Error("deleting quake", "id", id, "err", err)
	}
	r.record(id, models.EventRemoved)
}

func (r *recorder) upsert(id string) {
	entry, ok := r.lookup(id)
	if !ok {
		r.logger.Warn("callback for unknown entry", "id", id)
		return
	}
	if err := r.db.UpsertQuake(r.feedURL, entry, r.now()); err != nil {
		r.logger.Error("storing quake", "id", id, "err", err)
	}
}

func (r *recorder) record(id string, kind models.EventKind) {
	if r.metrics != nil {
		r.metrics.ObserveEvent(string(kind))
	}
	event := models.Event{ExternalID: id, Kind: kind, At: r.now()}
	if err := r.db.RecordEvent(&event); err != nil {
		r.logger.Error("recording event", "id", id, "kind", kind, "err", err)
		return
	}
	if kind != models.EventUpdated {
		r.logger.Info("quake "+string(kind), "id", id)
	}
}

// reconcile drops stored quakes the feed no longer carries, which covers
// removals that happened while the process was not running, and prunes old
// events.
func (r *recorder) reconcile(ids []string, retention time.Duration) {
	if n, err := r.db.DeleteQuakesExcept(ids); err != nil {
		r.logger.Error("reconciling store", "err", err)
	} else if n > 0 {
		r.logger.Info("dropped stale quakes", "count", n)
	}
	if n, err := r.db.DeleteOldEvents(retention); err != nil {
		r.logger.Error("pruning events", "err", err)
	} else if n > 0 {
		r.logger.Debug("pruned events", "count", n)
	}
}
