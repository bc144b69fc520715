package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/Dan9191/goal-service/internal/service"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Sweeper runs the at-risk goal check
type Sweeper interface {
	SweepAtRiskGoals(ctx context.Context) (service.SweepReport, error)
}

// Scheduler runs periodic jobs on a cron schedule
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	log     *logrus.Logger
	timeout time.Duration
}

// NewScheduler registers the at-risk sweep under the given cron spec
func NewScheduler(spec string, sweeper Sweeper, log *logrus.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		sweeper: sweeper,
		log:     log,
		timeout: 10 * time.Minute,
	}
	if _, err := s.cron.AddFunc(spec, s.RunSweep); err != nil {
		return nil, fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	return s, nil
}

// RunSweep executes one sweep with a bounded runtime
func (s *Scheduler) RunSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	s.log.Info("Starting at-risk goal sweep")
	if _, err := s.sweeper.SweepAtRiskGoals(ctx); err != nil {
		s.log.Errorf("At-risk goal sweep failed: %v", err)
	}
}

// Start begins running jobs in the background
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running job until ctx is done
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn("Scheduler stopped before the running sweep finished")
	}
}

// Entries returns the number of scheduled jobs
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}
