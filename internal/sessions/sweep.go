package sessions

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// TaskSweep is the queue task type for expired-session cleanup.
const TaskSweep = "sessions:sweep"

// NewSweepTask builds the periodic cleanup task. It carries no payload.
func NewSweepTask() *asynq.Task {
	return asynq.NewTask(TaskSweep, nil)
}

// Sweeper removes sessions whose validity window has ended. Revocation and
// the cache TTL already make expired sessions unusable; the sweep only
// keeps the table from growing without bound.
type Sweeper struct {
	store  Store
	logger *slog.Logger
}

// NewSweeper wires the worker-side sweep handler.
func NewSweeper(store Store, logger *slog.Logger) *Sweeper {
	return &Sweeper{store: store, logger: logger}
}

// HandleSweep processes one sweep task.
func (s *Sweeper) HandleSweep(ctx context.Context, _ *asynq.Task) error {
	removed, err := s.store.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		s.logger.Error("sweep sessions", slog.Any("error", err))
		return err
	}
	if removed > 0 {
		s.logger.Info("swept expired sessions", slog.Int64("removed", removed))
	}
	return nil
}
