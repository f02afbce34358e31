package game

import (
	"context"
	"time"

	"rps_arena/internal/logger"

	"github.com/go-co-op/gocron/v2"
)

// Janitor runs engine housekeeping on a fixed interval: settled matches past
// retention are evicted and failed settlements are retried.
type Janitor struct {
	engine *Engine
	sched  gocron.Scheduler
}

func StartJanitor(e *Engine, every time.Duration) (*Janitor, error) {
	sched, err := gocron.NewScheduler(gocron.WithLogger(logger.With("component", "janitor")))
	if err != nil {
		return nil, err
	}
	j := &Janitor{engine: e, sched: sched}

	if _, err := sched.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(j.sweep),
		gocron.WithName("match-janitor"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		_ = sched.Shutdown()
		return nil, err
	}

	sched.Start()
	logger.Info("janitor started", "interval", every.String())
	return j, nil
}

func (j *Janitor) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if n := j.engine.RetrySettlements(ctx); n > 0 {
		logger.Info("settlements retried", "count", n)
	}
	j.engine.EvictArchived(j.engine.clock.Now())
}

func (j *Janitor) Stop() error {
	return j.sched.Shutdown()
}
