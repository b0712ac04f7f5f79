package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
)

// SweepFunc deletes stale records and reports how many went away.
type SweepFunc func(ctx context.Context) (int64, error)

// Sweeper periodically runs cleanup tasks until its context is cancelled.
type Sweeper struct {
	interval time.Duration
	tasks    map[string]SweepFunc
	logger   logging.Logger
}

func NewSweeper(interval time.Duration, logger logging.Logger) *Sweeper {
	return &Sweeper{
		interval: interval,
		tasks:    make(map[string]SweepFunc),
		logger:   logger.With("module", "sweeper"),
	}
}

// Add registers a task under name. Not safe to call after Run.
func (s *Sweeper) Add(name string, fn SweepFunc) {
	s.tasks[name] = fn
}

func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info(ctx, "sweeper disabled")
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs every task once. A failing task does not stop the others.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	for name, fn := range s.tasks {
		n, err := fn(ctx)
		if err != nil {
			s.logger.Error(ctx, "sweep failed", "task", name, "error", err)
			continue
		}
		if n > 0 {
			s.logger.Info(ctx, "swept expired records", "task", name, "deleted", n)
		}
	}
}
