package scheduler

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is run at every tick of a schedule
type Job func(ctx context.Context) error

// Scheduler runs one job on a standard 5-field cron schedule
// (minute hour day-of-month month day-of-week). Runs never overlap.
type Scheduler struct {
	name     string
	spec     string
	schedule cron.Schedule
	job      Job
	now      func() time.Time
	after    func(d time.Duration) <-chan time.Time
}

// Parse validates a 5-field cron expression
func Parse(spec string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(strings.TrimSpace(spec))
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return sched, nil
}

// New creates a scheduler for job. Examples of spec: "0 9 * * *" (daily 9am),
// "30 8 * * 1-5" (weekdays 8:30).
func New(name, spec string, job Job) (*Scheduler, error) {
	sched, err := Parse(spec)
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		name:     name,
		spec:     strings.TrimSpace(spec),
		schedule: sched,
		job:      job,
		now:      time.Now,
		after:    time.After,
	}, nil
}

// Next returns the next activation after t
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

// Run blocks, running the job at each activation until ctx is done.
// Job errors are logged and do not stop the loop.
func (s *Scheduler) Run(ctx context.Context) {
	log.Printf("[SCHEDULE] %s scheduled (cron: %s)", s.name, s.spec)

	for ctx.Err() == nil {
		now := s.now()
		next := s.schedule.Next(now)
		wait := next.Sub(now)
		log.Printf("[SCHEDULE] Next %s at %s (in %s)", s.name, next.Format("Mon Jan 2 15:04"), wait.Round(time.Second))

		select {
		case <-ctx.Done():
			continue
		case <-s.after(wait):
		}

		start := s.now()
		if err := s.job(ctx); err != nil {
			log.Printf("[SCHEDULE] %s failed: %v", s.name, err)
			continue
		}
		log.Printf("[SCHEDULE] %s complete in %s", s.name, s.now().Sub(start).Round(time.Millisecond))
	}
	log.Printf("[SCHEDULE] %s stopped", s.name)
}
