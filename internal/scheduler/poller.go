package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/thomaskoefod/quakereadr/internal/feed"
	"github.com/thomaskoefod/quakereadr/internal/metrics"
)

// Manager is the part of feed.Manager the poller drives.
type Manager interface {
	Update(ctx context.Context) feed.Status
	ExternalIDs() []string
}

// Poller runs one manager update at a time. It is safe for concurrent use.
type Poller struct {
	mu      sync.Mutex
	manager Manager
	metrics *metrics.Metrics
	logger  *log.Logger

	// OnSuccess, when set, receives the ids held after every poll that did
	// not fail. It runs before the poll lock is released.
	OnSuccess func(ids []string)
}

// NewPoller creates a Poller. m may be nil; a nil logger means log.Default().
func NewPoller(manager Manager, m *metrics.Metrics, logger *log.Logger) *Poller {
	if logger == nil {
		logger = log.Default()
	}
	return &Poller{
		manager: manager,
		metrics: m,
		logger:  logger.WithPrefix("poller"),
	}
}

// Poll updates the manager once and returns the feed status.
func (p *Poller) Poll(ctx context.Context) feed.Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	status := p.manager.Update(ctx)
	took := time.Since(start)

	failed := status == feed.StatusError
	var ids []string
	if !failed {
		ids = p.manager.ExternalIDs()
	}

	if p.metrics != nil {
		p.metrics.ObservePoll(status.String(), failed, len(ids), took)
	}

	if failed {
		p.logger.Warn("poll failed", "took", took)
		return status
	}

	p.logger.Info("poll finished", "status", status, "entries", len(ids), "took", took)
	if p.OnSuccess != nil {
		p.OnSuccess(ids)
	}
	return status
}
