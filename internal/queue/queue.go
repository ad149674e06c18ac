// Package queue carries alert ids from ingress to the execution workers
// with at-least-once delivery.
package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultName = "tradingbot:trades"
	deadSuffix  = ":dead"
)

// Task is one delivery of an alert to the pipeline.
type Task struct {
	AlertID    uuid.UUID `json:"alert_id"`
	Attempt    int       `json:"attempt"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	LastError  string    `json:"last_error,omitempty"`
}

func NewTask(alertID uuid.UUID) Task {
	return Task{AlertID: alertID, Attempt: 1, EnqueuedAt: time.Now().UTC()}
}

type Queue interface {
	Enqueue(ctx context.Context, task Task) error
	// Dequeue waits up to wait for a task; it returns nil, nil on timeout.
	Dequeue(ctx context.Context, wait time.Duration) (*Task, error)
	DeadLetter(ctx context.Context, task Task, reason string) error
	DeadLetterLen(ctx context.Context) (int64, error)
}

func encode(task Task) ([]byte, error) {
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = time.Now().UTC()
	}
	if task.Attempt <= 0 {
		task.Attempt = 1
	}
	return json.Marshal(task)
}

func decode(raw []byte) (*Task, error) {
	var task Task
	if err := json.Unmarshal(raw, &task); err != nil {
		return nil, err
	}
	return &task, nil
}
