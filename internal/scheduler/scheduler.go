// Package scheduler wires up the cron job that periodically triggers a
// refresh cycle.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/robfig/cron/v3"

	"jobsync/internal/aggregator"
)

// Runner is the part of the orchestrator the scheduler needs.
type Runner interface {
	RunCycle(ctx context.Context) (*aggregator.CycleReport, error)
}

// Scheduler wraps robfig/cron and manages the refresh loop.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	spec   string // standard 5-field cron spec or a descriptor such as "@every 1h"

	wg sync.WaitGroup
}

// New creates a Scheduler that runs a cycle on every tick of spec.
func New(runner Runner, spec string) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cron.DefaultLogger)),
		runner: runner,
		spec:   spec,
	}
}

// Start registers the job and starts the scheduler. Also runs one cycle
// immediately so the store is populated without waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.Trigger(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc(%q): %w", s.spec, err)
	}

	s.cron.Start()
	log.Printf("[scheduler] Cron started, spec: %s", s.spec)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Trigger(ctx)
	}()
	return nil
}

// Trigger runs one cycle synchronously. Overlapping triggers are dropped by
// the orchestrator and only logged here.
func (s *Scheduler) Trigger(ctx context.Context) {
	report, err := s.runner.RunCycle(ctx)
	switch {
	case errors.Is(err, aggregator.ErrCycleRunning):
		log.Println("[scheduler] Cycle already running, trigger dropped")
	case err != nil:
		log.Printf("[scheduler] Cycle failed: %v", err)
	default:
		log.Printf("[scheduler] Cycle complete: found=%d new=%d", report.TotalFound, report.TotalNew)
	}
}

// Stop halts the cron and waits for any running job, including the startup
// run, to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
	log.Println("[scheduler] Cron stopped")
}
