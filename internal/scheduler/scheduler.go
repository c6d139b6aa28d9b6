package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Purger drops expired cache entries.
type Purger interface {
	Purge() int
}

// Warmer preloads history for symbols.
type Warmer interface {
	Warm(ctx context.Context, symbols []string) (int, error)
}

// Scheduler runs cache maintenance jobs.
type Scheduler struct {
	Cron      *cron.Cron
	Purger    Purger
	Warmer    Warmer
	Watchlist []string
	Ctx       context.Context
}

func NewScheduler(ctx context.Context, p Purger, w Warmer, watchlist []string) *Scheduler {
	return &Scheduler{
		Cron:      cron.New(),
		Purger:    p,
		Warmer:    w,
		Watchlist: watchlist,
		Ctx:       ctx,
	}
}

// RegisterAll registers the purge job and, when a watchlist is set, the warm job.
func (s *Scheduler) RegisterAll(purgeSpec, warmSpec string) error {
	if _, err := s.Cron.AddFunc(purgeSpec, s.purgeTask); err != nil {
		return fmt.Errorf("register purge task: %w", err)
	}
	if len(s.Watchlist) == 0 {
		return nil
	}
	if _, err := s.Cron.AddFunc(warmSpec, s.warmTask); err != nil {
		return fmt.Errorf("register warm task: %w", err)
	}
	return nil
}

func (s *Scheduler) Start() { s.Cron.Start() }

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
}

func (s *Scheduler) purgeTask() {
	if n := s.Purger.Purge(); n > 0 {
		log.Printf("[INFO] purged %d expired cache entries", n)
	}
}

func (s *Scheduler) warmTask() {
	ctx, cancel := context.WithTimeout(s.Ctx, time.Minute)
	defer cancel()

	n, err := s.Warmer.Warm(ctx, s.Watchlist)
	if err != nil {
		log.Printf("[WARN] watchlist warm failed: %v", err)
		return
	}
	log.Printf("[INFO] watchlist warmed: %d/%d symbols", n, len(s.Watchlist))
}

// RunWarmNow runs the warm job once, outside the schedule.
func (s *Scheduler) RunWarmNow() {
	if len(s.Watchlist) > 0 {
		s.warmTask()
	}
}
