// Package timers runs background jobs on fixed intervals or cron
// expressions, independent of the event bus.
package timers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/tinyland-inc/gamelink/pkg/logger"
)

type Job struct {
	Name     string
	Interval time.Duration
	Cron     string
	Run      func(ctx context.Context)
}

type Scheduler struct {
	mu      sync.Mutex
	jobs    []Job
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Every schedules fn every interval. Jobs added after Start run from the
// next Start.
func (s *Scheduler) Every(name string, interval time.Duration, fn func(ctx context.Context)) error {
	if interval <= 0 {
		return fmt.Errorf("timer %s: interval must be positive", name)
	}
	s.add(Job{Name: name, Interval: interval, Run: fn})
	return nil
}

// Cron schedules fn on a cron expression.
func (s *Scheduler) Cron(name, expr string, fn func(ctx context.Context)) error {
	if !gronx.New().IsValid(expr) {
		return fmt.Errorf("timer %s: invalid cron expression %q", name, expr)
	}
	s.add(Job{Name: name, Cron: expr, Run: fn})
	return nil
}

func (s *Scheduler) add(j Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, j)
}

func (s *Scheduler) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Job(nil), s.jobs...)
}

func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	for _, j := range s.jobs {
		s.wg.Add(1)
		go s.loop(ctx, j)
	}
	logger.DebugCF("timers", "Timers started", map[string]any{"jobs": len(s.jobs)})
}

// Stop cancels every job and waits for running invocations to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.running = false
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, j Job) {
	defer s.wg.Done()
	for {
		wait, err := nextDelay(j, time.Now())
		if err != nil {
			logger.ErrorCF("timers", "Cannot schedule job", map[string]any{
				"job":   j.Name,
				"error": err.Error(),
			})
			return
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
		s.run(ctx, j)
	}
}

func (s *Scheduler) run(ctx context.Context, j Job) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorCF("timers", "Job panicked", map[string]any{
				"job":   j.Name,
				"panic": fmt.Sprint(r),
			})
		}
	}()
	j.Run(ctx)
}

func nextDelay(j Job, now time.Time) (time.Duration, error) {
	if j.Cron == "" {
		return j.Interval, nil
	}
	next, err := gronx.NextTickAfter(j.Cron, now, false)
	if err != nil {
		return 0, err
	}
	return next.Sub(now), nil
}
