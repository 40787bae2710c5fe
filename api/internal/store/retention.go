package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Purger: то, что умеет удалять старые записи (InferenceRepo).
type Purger interface {
	PurgeOlderThan(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Retention периодически чистит журнал аудита по cron-расписанию.
type Retention struct {
	purger   Purger
	keep     time.Duration
	schedule string
	log      *zap.SugaredLogger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

func NewRetention(p Purger, keep time.Duration, schedule string, log *zap.SugaredLogger) *Retention {
	return &Retention{
		purger:   p,
		keep:     keep,
		schedule: schedule,
		log:      log.With("component", "store.retention"),
		cron:     cron.New(),
	}
}

// Start validates the schedule and runs the purge job until ctx is done.
// An empty schedule disables retention.
func (r *Retention) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.schedule == "" {
		r.log.Info("prune schedule not configured, skipping retention")
		return nil
	}
	if _, err := cron.ParseStandard(r.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", r.schedule, err)
	}
	if _, err := r.cron.AddFunc(r.schedule, func() { r.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule pruning: %w", err)
	}

	r.cron.Start()
	r.running = true
	r.log.Infow("retention started", "schedule", r.schedule, "keep", r.keep.String())

	go func() {
		<-ctx.Done()
		r.Stop()
	}()
	return nil
}

// RunOnce выполняет одну чистку; ошибки только логируются.
func (r *Retention) RunOnce(ctx context.Context) int64 {
	deleted, err := r.purger.PurgeOlderThan(ctx, r.keep)
	if err != nil {
		r.log.Errorw("audit pruning failed", "err", err)
		return 0
	}
	if deleted > 0 {
		r.log.Infow("audit pruning completed", "deleted", deleted)
	}
	return deleted
}

// Stop останавливает cron и ждёт текущую задачу.
func (r *Retention) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		<-r.cron.Stop().Done()
		r.running = false
		r.log.Info("retention stopped")
	}
}

func (r *Retention) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}
