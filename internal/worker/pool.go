// Package worker drains the trade queue with a fixed set of goroutines.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tradingbot/internal/exception"
	"tradingbot/internal/queue"
)

// Handler processes one alert. Errors for which exception.Retryable is true
// are redelivered; any other error parks the task.
type Handler func(ctx context.Context, alertID uuid.UUID) error

type Pool struct {
	Queue       queue.Queue
	Handle      Handler
	Workers     int
	MaxAttempts int
	PollWait    time.Duration
	Backoff     exception.Backoff
	Logger      *zap.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// Run blocks until ctx is cancelled or a worker hits a queue error it cannot
// recover from.
func (p *Pool) Run(ctx context.Context) error {
	if p == nil || p.Queue == nil || p.Handle == nil {
		return exception.ErrNilInstance
	}
	workers := p.Workers
	if workers <= 0 {
		workers = 4
	}
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		id := i
		g.Go(func() error { return p.loop(gctx, id) })
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (p *Pool) loop(ctx context.Context, id int) error {
	logger := p.logger().With(zap.Int("worker", id))
	failures := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		task, err := p.Queue.Dequeue(ctx, p.PollWait)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failures++
			logger.Warn("dequeue failed", zap.Int("failures", failures), zap.Error(err))
			if serr := p.doSleep(ctx, p.Backoff.Next(failures)); serr != nil {
				return serr
			}
			continue
		}
		failures = 0
		if task == nil {
			continue
		}
		p.Process(ctx, *task)
	}
}

// Process runs one task and routes its outcome: done, redelivered with
// Attempt+1 after a backoff, or dead-lettered.
func (p *Pool) Process(ctx context.Context, task queue.Task) {
	logger := p.logger().With(
		zap.String("alert_id", task.AlertID.String()),
		zap.Int("attempt", task.Attempt),
	)
	err := p.Handle(ctx, task.AlertID)
	if err == nil {
		return
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if exception.Retryable(err) && task.Attempt < maxAttempts {
		logger.Warn("task failed, retrying", zap.Error(err))
		if serr := p.doSleep(ctx, p.Backoff.Next(task.Attempt)); serr != nil {
			// Shutting down: hand the task back untouched so it is not lost.
			p.requeue(context.WithoutCancel(ctx), task, logger)
			return
		}
		task.Attempt++
		task.LastError = err.Error()
		p.requeue(ctx, task, logger)
		return
	}
	logger.Error("task dead-lettered", zap.Error(err))
	if derr := p.Queue.DeadLetter(context.WithoutCancel(ctx), task, err.Error()); derr != nil {
		logger.Error("dead-letter failed", zap.Error(derr))
	}
}

func (p *Pool) requeue(ctx context.Context, task queue.Task, logger *zap.Logger) {
	if err := p.Queue.Enqueue(ctx, task); err != nil {
		logger.Error("requeue failed", zap.Error(err))
	}
}

func (p *Pool) doSleep(ctx context.Context, d time.Duration) error {
	if p.sleep != nil {
		return p.sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p *Pool) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}
