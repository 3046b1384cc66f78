package reconciler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
)

// Scheduler runs the periodic maintenance jobs of the service: sweeps,
// settings reloads and token purges.  Every job runs in singleton mode, so
// a slow run delays the next tick instead of overlapping it.
type Scheduler struct {
	s      gocron.Scheduler
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler builds a stopped Scheduler.  A nil clock means wall time.
func NewScheduler(clock clockwork.Clock, loc *time.Location) (*Scheduler, error) {
	opts := []gocron.SchedulerOption{}
	if clock != nil {
		opts = append(opts, gocron.WithClock(clock))
	}
	if loc != nil {
		opts = append(opts, gocron.WithLocation(loc))
	}
	s, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, fmt.Errorf("reconciler: new scheduler: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{s: s, ctx: ctx, cancel: cancel}, nil
}

// Every registers fn to run every interval, the first time right after
// Start.  Errors returned by fn are logged under name.
func (s *Scheduler) Every(name string, interval time.Duration, fn func(ctx context.Context) error) error {
	if interval <= 0 {
		return fmt.Errorf("reconciler: job %s: interval must be positive", name)
	}
	_, err := s.s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if err := fn(s.ctx); err != nil {
				log.Printf("scheduler: %s: %v", name, err)
			}
		}),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("reconciler: job %s: %w", name, err)
	}
	return nil
}

// ScheduleSweeps registers r under the name "reconcile".
func (s *Scheduler) ScheduleSweeps(r *Reconciler, interval time.Duration) error {
	return s.Every("reconcile", interval, func(ctx context.Context) error {
		_, err := r.Sweep(ctx)
		return err
	})
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	s.s.Start()
	log.Printf("scheduler: started with %d jobs", len(s.s.Jobs()))
}

// Shutdown cancels running jobs and waits for them to return.
func (s *Scheduler) Shutdown() error {
	s.cancel()
	return s.s.Shutdown()
}
