package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"langvote/internal/notify"
)

func TestTrendPublisherPublishNow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	option, err := f.ledger.AddLanguage(ctx, "Go")
	require.NoError(t, err)
	_, err = f.ledger.CastVote(ctx, option.ID)
	require.NoError(t, err)

	out := &notify.Recorder{}
	agg := NewTrendAggregator(f.store, zaptest.NewLogger(t), f.metrics)
	p := NewTrendPublisher(agg, out, zaptest.NewLogger(t), time.Minute, time.Hour)

	p.PublishNow(ctx)

	events := out.Events()
	require.Len(t, events, 2)
	for i, want := range []int64{60, 3600} {
		assert.Equal(t, notify.KindTrendUpdated, events[i].Kind)
		update, ok := events[i].Payload.(TrendUpdate)
		require.True(t, ok)
		assert.Equal(t, want, update.WindowSeconds)
		require.NotEmpty(t, update.Snapshots)
		assert.EqualValues(t, 1, update.Snapshots[len(update.Snapshots)-1].Counts["Go"])
	}
}

func TestTrendPublisherCoalescesWrites(t *testing.T) {
	f := newFixture(t)
	out := &notify.Recorder{}
	agg := NewTrendAggregator(f.store, zaptest.NewLogger(t), f.metrics)
	p := NewTrendPublisher(agg, out, zaptest.NewLogger(t)).WithDebounce(20 * time.Millisecond)
	require.NoError(t, p.Start(""))
	defer p.Stop()

	for i := 0; i < 50; i++ {
		require.NoError(t, p.Notify(context.Background(), notify.Event{Kind: notify.KindVoteRecorded}))
	}
	// ignored
	require.NoError(t, p.Notify(context.Background(), notify.Event{Kind: notify.KindTrendUpdated}))

	assert.Eventually(t, func() bool { return len(out.Events()) >= 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Len(t, out.Events(), 1)
}

func TestTrendPublisherRejectsBadSpec(t *testing.T) {
	f := newFixture(t)
	agg := NewTrendAggregator(f.store, zaptest.NewLogger(t), f.metrics)
	p := NewTrendPublisher(agg, notify.Nop{}, zaptest.NewLogger(t))
	assert.Error(t, p.Start("not a schedule"))
}
