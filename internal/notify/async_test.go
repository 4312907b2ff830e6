package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// blocking holds every delivery until release is closed.
type blocking struct {
	release chan struct{}
	Recorder
}

func (b *blocking) Notify(ctx context.Context, event Event) error {
	<-b.release
	return b.Recorder.Notify(ctx, event)
}

func TestAsyncDoesNotBlockCaller(t *testing.T) {
	slow := &blocking{release: make(chan struct{})}
	a := NewAsync(slow, zaptest.NewLogger(t), 4)

	start := time.Now()
	require.NoError(t, a.Notify(context.Background(), Event{Kind: KindVoteRecorded}))
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	close(slow.release)
	a.Close()
	assert.Equal(t, []Kind{KindVoteRecorded}, slow.Kinds())
}

func TestAsyncDropsWhenFull(t *testing.T) {
	slow := &blocking{release: make(chan struct{})}
	a := NewAsync(slow, zaptest.NewLogger(t), 1)

	var dropped int
	for i := 0; i < 5; i++ {
		if err := a.Notify(context.Background(), Event{Kind: KindVoteRecorded}); err != nil {
			assert.ErrorIs(t, err, ErrQueueFull)
			dropped++
		}
	}
	// at most one in the queue and one held by the worker
	assert.GreaterOrEqual(t, dropped, 3)

	close(slow.release)
	a.Close()
	assert.Len(t, slow.Events(), 5-dropped)
}

func TestAsyncClose(t *testing.T) {
	var rec Recorder
	a := NewAsync(&rec, zaptest.NewLogger(t), 8)
	for i := 0; i < 3; i++ {
		require.NoError(t, a.Notify(context.Background(), Event{Kind: KindDataReset}))
	}
	a.Close()
	a.Close()

	assert.Len(t, rec.Events(), 3)
	assert.ErrorIs(t, a.Notify(context.Background(), Event{Kind: KindDataReset}), ErrClosed)
}
