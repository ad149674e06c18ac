package queue

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestMemoryQueue_FIFOAndTimeout(t *testing.T) {
	q := NewMemoryQueue(4)
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()
	require.NoError(t, q.Enqueue(ctx, Task{AlertID: a}))
	require.NoError(t, q.Enqueue(ctx, NewTask(b)))

	got, err := q.Dequeue(ctx, 10*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, a, got.AlertID)
	require.Equal(t, 1, got.Attempt)
	require.False(t, got.EnqueuedAt.IsZero())

	got, err = q.Dequeue(ctx, 10*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, b, got.AlertID)

	got, err = q.Dequeue(ctx, 10*time.Millisecond)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestMemoryQueue_DequeueHonoursContext(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := q.Dequeue(ctx, time.Hour)
	require.ErrorIs(t, err, context.Canceled)
}

func TestMemoryQueue_DeadLetter(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx := context.Background()
	task := NewTask(uuid.New())
	require.NoError(t, q.DeadLetter(ctx, task, "boom"))

	n, err := q.DeadLetterLen(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	dead := q.DeadLetters()
	require.Equal(t, "boom", dead[0].LastError)
	require.Equal(t, task.AlertID, dead[0].AlertID)
}

func TestTaskCodecRoundTrip(t *testing.T) {
	task := Task{AlertID: uuid.New(), Attempt: 3, EnqueuedAt: time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)}
	raw, err := encode(task)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"alert_id":"`+task.AlertID.String()+`"`)
	got, err := decode(raw)
	require.NoError(t, err)
	require.Equal(t, task.AlertID, got.AlertID)
	require.Equal(t, 3, got.Attempt)
	require.True(t, task.EnqueuedAt.Equal(got.EnqueuedAt))

	_, err = decode([]byte("not json"))
	require.Error(t, err)
}
