// Package scheduler runs the periodic scan that puts paid purchases whose
// fulfillment job was lost (for example by a restart) back on the queue.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultSchedule is used when Start is given an empty spec.
const DefaultSchedule = "@every 10m"

// Resumer re-enqueues stuck purchases and reports how many it touched.
type Resumer interface {
	Resume(ctx context.Context) (int, error)
}

// Scheduler triggers Resumer on a cron schedule.
type Scheduler struct {
	resumer Resumer
	cron    *cron.Cron
	log     zerolog.Logger
	timeout time.Duration

	mu      sync.Mutex
	started bool
}

// New returns a scheduler. A run that is still going when the next tick
// fires is not overlapped.
func New(r Resumer, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		resumer: r,
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		log:     log,
		timeout: 5 * time.Minute,
	}
}

// Start registers the scan under schedule and starts the cron runner.
func (s *Scheduler) Start(schedule string) error {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("scheduler: already started")
	}
	if _, err := s.cron.AddFunc(schedule, func() { _, _ = s.run() }); err != nil {
		return err
	}
	s.cron.Start()
	s.started = true
	s.log.Info().Str("schedule", schedule).Msg("resume scheduler started")
	return nil
}

// Stop stops the runner and waits for a scan in flight.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	started := s.started
	s.started = false
	s.mu.Unlock()
	if !started {
		return
	}
	<-s.cron.Stop().Done()
	s.log.Info().Msg("resume scheduler stopped")
}

// RunNow performs one scan synchronously.
func (s *Scheduler) RunNow() (int, error) {
	s.log.Info().Msg("triggering immediate resume scan")
	return s.run()
}

func (s *Scheduler) run() (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	n, err := s.resumer.Resume(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("resume scan failed")
		return n, err
	}
	lg := s.log.Debug()
	if n > 0 {
		lg = s.log.Info()
	}
	lg.Int("resumed", n).Dur("duration", time.Since(start)).Msg("resume scan completed")
	return n, nil
}
