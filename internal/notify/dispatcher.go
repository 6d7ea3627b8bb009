// Package notify queues user notifications for asynchronous delivery.
// Dispatch is fire-and-forget: callers log enqueue failures and move on,
// so a broken broker never rolls back the mutation that triggered the
// notification.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// TaskDeliver is the asynq task type for notification delivery.
const TaskDeliver = "notify:deliver"

// Payload carries one notification through the queue.
type Payload struct {
	UserID  int64  `json:"user_id"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Kind    string `json:"kind"`
}

// Dispatcher enqueues notifications.
type Dispatcher interface {
	Dispatch(ctx context.Context, userID int64, subject, body, kind string) error
}

// AsynqDispatcher implements Dispatcher over an asynq client.
type AsynqDispatcher struct {
	client *asynq.Client
}

// NewDispatcher constructs a dispatcher connected to the redis broker.
func NewDispatcher(redisAddr string) *AsynqDispatcher {
	return &AsynqDispatcher{
		client: asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr}),
	}
}

// Dispatch enqueues one delivery task.
func (d *AsynqDispatcher) Dispatch(ctx context.Context, userID int64, subject, body, kind string) error {
	data, err := json.Marshal(Payload{UserID: userID, Subject: subject, Body: body, Kind: kind})
	if err != nil {
		return fmt.Errorf("notify: marshal payload: %w", err)
	}
	task := asynq.NewTask(TaskDeliver, data)
	if _, err := d.client.EnqueueContext(ctx, task, asynq.MaxRetry(3)); err != nil {
		return fmt.Errorf("notify: enqueue: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (d *AsynqDispatcher) Close() error {
	return d.client.Close()
}

// NopDispatcher discards notifications; used in tests and when the broker
// is disabled.
type NopDispatcher struct{}

// Dispatch discards the notification.
func (NopDispatcher) Dispatch(context.Context, int64, string, string, string) error {
	return nil
}

var (
	_ Dispatcher = (*AsynqDispatcher)(nil)
	_ Dispatcher = NopDispatcher{}
)
