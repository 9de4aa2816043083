package async

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stroyassist/defectbot/internal/common"
)

func TestRunQueue_ExecutesTasks(t *testing.T) {
	q := NewRunQueue(nil, WithWorkers(2), WithQueueSize(4))
	defer q.Shutdown(context.Background())

	var done sync.WaitGroup
	var count atomic.Int32
	for i := 0; i < 4; i++ {
		done.Add(1)
		ok := q.TryEnqueue(Task{
			RunID: "run",
			Execute: func(context.Context) {
				count.Add(1)
				done.Done()
			},
		})
		require.True(t, ok)
	}

	done.Wait()
	assert.EqualValues(t, 4, count.Load())
}

func TestRunQueue_RejectsWhenFull(t *testing.T) {
	gate := make(chan struct{})
	q := NewRunQueue(nil, WithWorkers(1), WithQueueSize(1))
	defer func() {
		close(gate)
		q.Shutdown(context.Background())
	}()

	started := make(chan struct{})
	blocker := Task{RunID: "blocker", Execute: func(context.Context) {
		close(started)
		<-gate
	}}
	require.True(t, q.TryEnqueue(blocker))
	<-started

	// Worker is busy; the single buffer slot takes one more.
	require.True(t, q.TryEnqueue(Task{RunID: "queued", Execute: func(context.Context) {}}))

	// Buffer full: reject, do not block.
	assert.False(t, q.TryEnqueue(Task{RunID: "overflow", Execute: func(context.Context) {}}))
}

func TestRunQueue_ShutdownDrainsQueuedTasks(t *testing.T) {
	q := NewRunQueue(nil, WithWorkers(1), WithQueueSize(8))

	var count atomic.Int32
	for i := 0; i < 5; i++ {
		require.True(t, q.TryEnqueue(Task{
			RunID: "run",
			Execute: func(context.Context) {
				time.Sleep(5 * time.Millisecond)
				count.Add(1)
			},
		}))
	}

	q.Shutdown(context.Background())
	assert.EqualValues(t, 5, count.Load())
}

func TestRunQueue_TaskContextCarriesIdentity(t *testing.T) {
	q := NewRunQueue(nil, WithWorkers(1))

	var gotRunID string
	var gotChatID int64
	var gotOK bool
	require.True(t, q.TryEnqueue(Task{
		RunID:  "run-42",
		ChatID: 77,
		Execute: func(ctx context.Context) {
			gotRunID = common.RunIDFromContext(ctx)
			gotChatID, gotOK = common.ChatIDFromContext(ctx)
		},
	}))
	q.Shutdown(context.Background())

	assert.Equal(t, "run-42", gotRunID)
	assert.True(t, gotOK)
	assert.EqualValues(t, 77, gotChatID)
}

func TestRunQueue_EnqueueAfterShutdownRejected(t *testing.T) {
	q := NewRunQueue(nil, WithWorkers(1))
	q.Shutdown(context.Background())

	assert.False(t, q.TryEnqueue(Task{RunID: "late", Execute: func(context.Context) {}}))
}

func TestRunQueue_ShutdownTwiceIsSafe(t *testing.T) {
	q := NewRunQueue(nil)
	q.Shutdown(context.Background())
	q.Shutdown(context.Background())
}
