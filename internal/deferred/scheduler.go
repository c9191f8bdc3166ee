package deferred

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs ReplayAll on cron specs evaluated in the quiet-hours zone.
type Scheduler struct {
	queue   *Queue
	loc     *time.Location
	specs   []string
	timeout time.Duration

	mu sync.Mutex
	c  *cron.Cron
}

func NewScheduler(q *Queue, loc *time.Location, specs []string) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{queue: q, loc: loc, specs: specs, timeout: 10 * time.Minute}
}

// Start registers every spec and starts the cron runner. A bad spec fails the
// whole start so misconfiguration surfaces at boot.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	// replays never overlap; a slow run makes the next tick wait
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLocation(s.loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	for _, spec := range s.specs {
		if _, err := c.AddFunc(spec, func() { s.run(ctx, spec) }); err != nil {
			return fmt.Errorf("replay schedule %q: %w", spec, err)
		}
	}
	c.Start()
	s.c = c
	slog.Info("sms replay scheduler started", "specs", s.specs, "tz", s.loc.String())
	return nil
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil {
		return
	}
	<-s.c.Stop().Done()
	s.c = nil
	slog.Info("sms replay scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context, spec string) {
	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.queue.ReplayAll(runCtx)
	if err != nil {
		slog.Error("scheduled sms replay failed", "spec", spec, "err", err)
		return
	}
	if res.Taken > 0 {
		slog.Info("scheduled sms replay", "spec", spec, "sent", res.Sent, "dropped", res.Dropped)
	}
}
