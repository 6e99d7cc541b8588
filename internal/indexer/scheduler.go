package indexer

import (
	"context"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"
)

// Runner performs one index rebuild.
type Runner interface {
	Run(ctx context.Context) (*Result, error)
}

// Scheduler rebuilds the index on a standard five-field cron schedule.
// A run still in progress causes the next tick to be skipped.
type Scheduler struct {
	cron     *cron.Cron
	runner   Runner
	schedule string
}

func NewScheduler(schedule string, runner Runner) (*Scheduler, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	s := &Scheduler{cron: c, runner: runner, schedule: schedule}
	if _, err := c.AddFunc(schedule, s.runOnce); err != nil {
		return nil, fmt.Errorf("invalid index schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Scheduler) runOnce() {
	log.Printf("Scheduled rebuild started (%s)", s.schedule)
	res, err := s.runner.Run(context.Background())
	if err != nil {
		log.Printf("Scheduled rebuild failed: %v", err)
		return
	}
	log.Printf("✓ Scheduled rebuild finished: %d documents, %d chunks in %v", res.Documents, res.Chunks, res.Elapsed)
}

// Start runs the scheduler until ctx is cancelled, then waits for any
// in-flight rebuild to finish.
func (s *Scheduler) Start(ctx context.Context) {
	s.cron.Start()
	log.Printf("Index scheduler started (%s)", s.schedule)
	<-ctx.Done()
	<-s.cron.Stop().Done()
	log.Printf("Index scheduler stopped")
}

// Entries reports how many jobs are registered.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}
