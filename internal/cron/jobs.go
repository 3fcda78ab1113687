package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flemzord/edgecycle/internal/datasource"
	"github.com/flemzord/edgecycle/internal/node"
)

// Default schedules.
const (
	DefaultStateFlushSchedule   = "*/5 * * * *"
	DefaultHistoryPruneSchedule = "0 3 * * *"
)

// StateFlushJob writes the local wallet state to disk when it changed
// since the last save.
type StateFlushJob struct {
	Path         string
	State        *node.LocalState
	Logger       *slog.Logger
	ScheduleExpr string // empty = DefaultStateFlushSchedule
}

var _ Job = (*StateFlushJob)(nil)

// Name implements Job.
func (j *StateFlushJob) Name() string { return "state_flush" }

// Schedule implements Job.
func (j *StateFlushJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return DefaultStateFlushSchedule
}

// Run saves the state if dirty.
func (j *StateFlushJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("cron: state flush cancelled: %w", err)
	}
	saved, err := datasource.SaveLocalState(j.Path, j.State)
	if err != nil {
		return err
	}
	if saved {
		j.Logger.Debug("cron: local state flushed", "path", j.Path, "wallets", j.State.Len())
	}
	return nil
}

// Pruner deletes history older than a cutoff. Implemented by *store.Store.
type Pruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// HistoryPruneJob removes run history older than Retention.
type HistoryPruneJob struct {
	Store        Pruner
	Retention    time.Duration
	Logger       *slog.Logger
	ScheduleExpr string           // empty = DefaultHistoryPruneSchedule
	Now          func() time.Time // nil = time.Now
}

var _ Job = (*HistoryPruneJob)(nil)

// Name implements Job.
func (j *HistoryPruneJob) Name() string { return "history_prune" }

// Schedule implements Job.
func (j *HistoryPruneJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return DefaultHistoryPruneSchedule
}

// Run prunes cycles that started before now minus Retention.
func (j *HistoryPruneJob) Run(ctx context.Context) error {
	now := time.Now
	if j.Now != nil {
		now = j.Now
	}
	cutoff := now().Add(-j.Retention)

	n, err := j.Store.Prune(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("cron: prune history: %w", err)
	}
	if n > 0 {
		j.Logger.Info("cron: pruned run history", "cycles", n, "before", cutoff.Format(time.RFC3339))
	}
	return nil
}
