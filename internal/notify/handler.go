package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

// Deliverer performs the actual delivery of one notification.
type Deliverer interface {
	Deliver(ctx context.Context, p Payload) error
}

// LogDeliverer writes notifications to the log. It stands in for a mail
// or push integration at the delivery boundary.
type LogDeliverer struct {
	Logger *slog.Logger
}

// Deliver logs the notification.
func (d LogDeliverer) Deliver(_ context.Context, p Payload) error {
	d.Logger.Info("notification delivered",
		slog.Int64("user_id", p.UserID),
		slog.String("kind", p.Kind),
		slog.String("subject", p.Subject))
	return nil
}

// Handler consumes delivery tasks from the queue.
type Handler struct {
	deliverer Deliverer
	logger    *slog.Logger
}

// NewHandler wires the worker-side handler.
func NewHandler(deliverer Deliverer, logger *slog.Logger) *Handler {
	return &Handler{deliverer: deliverer, logger: logger}
}

// HandleDeliver processes one queued notification.
func (h *Handler) HandleDeliver(ctx context.Context, t *asynq.Task) error {
	var payload Payload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if err := h.deliverer.Deliver(ctx, payload); err != nil {
		h.logger.Error("deliver notification",
			slog.Int64("user_id", payload.UserID), slog.Any("error", err))
		return err
	}
	return nil
}
