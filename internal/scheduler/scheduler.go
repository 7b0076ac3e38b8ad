// Package scheduler polls a feed manager on a cron schedule, one poll at a
// time.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"
)

// Scheduler wraps robfig/cron and triggers the poller.
type Scheduler struct {
	cron   *cron.Cron
	poller *Poller
	spec   string // cron spec, e.g. "@every 5m"
	logger *log.Logger
	// recover wraps the immediate poll that runs outside the cron loop
	recover cron.Chain
	wg      sync.WaitGroup
}

// New creates a Scheduler for spec. A tick that fires while the previous
// poll is still running is skipped.
func New(poller *Poller, spec string, logger *log.Logger) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("parsing schedule %q: %w", spec, err)
	}
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.WithPrefix("scheduler")

	cronLogger := cron.PrintfLogger(logger)
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		poller:  poller,
		spec:    spec,
		logger:  logger,
		recover: cron.NewChain(cron.Recover(cronLogger)),
	}, nil
}

// Start registers the job and starts the scheduler. Also runs one poll
// immediately so the store is populated without waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	job := cron.FuncJob(func() {
		s.poller.Poll(ctx)
	})
	if _, err := s.cron.AddJob(s.spec, job); err != nil {
		return fmt.Errorf("cron.AddJob: %w", err)
	}

	s.cron.Start()
	s.logger.Info("cron started", "spec", s.spec)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.recover.Then(job).Run()
	}()

	return nil
}

// Stop halts the schedule and waits for a running poll to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.logger.Info("cron stopped")
}
