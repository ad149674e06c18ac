package queue

import (
	"context"
	"sync"
	"time"
)

// MemoryQueue is a process-local queue for development and tests.
type MemoryQueue struct {
	ch chan Task

	mu   sync.Mutex
	dead []Task
}

func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 1024
	}
	return &MemoryQueue{ch: make(chan Task, size)}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, task Task) error {
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = time.Now().UTC()
	}
	if task.Attempt <= 0 {
		task.Attempt = 1
	}
	select {
	case q.ch <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context, wait time.Duration) (*Task, error) {
	if wait <= 0 {
		wait = time.Second
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case task := <-q.ch:
		return &task, nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *MemoryQueue) DeadLetter(_ context.Context, task Task, reason string) error {
	task.LastError = reason
	q.mu.Lock()
	q.dead = append(q.dead, task)
	q.mu.Unlock()
	return nil
}

func (q *MemoryQueue) DeadLetterLen(context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.dead)), nil
}

// DeadLetters returns a copy of the parked tasks.
func (q *MemoryQueue) DeadLetters() []Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Task, len(q.dead))
	copy(out, q.dead)
	return out
}

func (q *MemoryQueue) Len() int {
	return len(q.ch)
}
