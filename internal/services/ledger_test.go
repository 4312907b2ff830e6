package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"langvote/internal/errs"
	"langvote/internal/metrics"
	"langvote/internal/models"
	"langvote/internal/notify"
	"langvote/internal/store/memstore"
)

// TestConcurrentCastVote verifies that N simultaneous votes on one option produce
// exactly N events whose votes_after values are V+1..V+N with no gaps or duplicates.
func TestConcurrentCastVote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	option, err := f.ledger.AddLanguage(ctx, "Go")
	require.NoError(t, err)

	const start = 5
	for i := 0; i < start; i++ {
		_, err := f.ledger.CastVote(ctx, option.ID)
		require.NoError(t, err)
	}

	const n = 200
	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.ledger.CastVote(ctx, option.ID); err != nil {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()
	require.Zero(t, failures.Load())

	options, err := f.ledger.Options(ctx)
	require.NoError(t, err)
	require.Len(t, options, 1)
	assert.EqualValues(t, start+n, options[0].Votes)

	events := f.allEvents(t)
	require.Len(t, events, start+n)

	var after []int64
	for _, e := range events[start:] {
		after = append(after, e.VotesAfter)
	}
	sort.Slice(after, func(i, j int) bool { return after[i] < after[j] })
	for i, v := range after {
		assert.EqualValues(t, start+1+i, v)
	}
}

func TestCastVoteRecordsEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	option, err := f.ledger.AddLanguage(ctx, "elixir")
	require.NoError(t, err)
	assert.Equal(t, "Elixir", option.Name)

	result, err := f.ledger.CastVote(ctx, option.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, result.Count)
	assert.Equal(t, "Elixir", result.Language)

	events := f.allEvents(t)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventTypeVote, events[0].EventType)
	assert.EqualValues(t, 1, events[0].VotesAfter)
	assert.Equal(t, option.ID, events[0].OptionID)
	assert.Equal(t, result.Timestamp, events[0].CreatedAt)

	got := f.recorder.Events()
	require.Len(t, got, 2)
	assert.Equal(t, notify.KindLanguageAdded, got[0].Kind)
	assert.Equal(t, "Elixir", got[0].Name)
	assert.Equal(t, notify.KindVoteRecorded, got[1].Kind)
	assert.Equal(t, option.ID, got[1].OptionID)
	assert.EqualValues(t, 1, got[1].Count)
	assert.Equal(t, "Elixir", got[1].Language)
}

func TestCastVoteUnknownOption(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.CastVote(context.Background(), 42)
	require.ErrorIs(t, err, errs.ErrOptionNotFound)
	assert.Empty(t, f.allEvents(t))
	assert.Empty(t, f.recorder.Events())
}

func TestCastVoteRollsBackOnAppendFailure(t *testing.T) {
	mem := memstore.New()
	rec := &notify.Recorder{}
	boom := errors.New("disk full")

	seed := NewLedger(mem, notify.Nop{}, zaptest.NewLogger(t), metrics.New())
	option, err := seed.AddLanguage(context.Background(), "Rust")
	require.NoError(t, err)

	ledger := NewLedger(&faultyStore{Store: mem, appendErr: boom}, rec, zaptest.NewLogger(t), metrics.New())
	_, err = ledger.CastVote(context.Background(), option.ID)
	require.ErrorIs(t, err, errs.ErrTransactionAborted)
	require.ErrorIs(t, err, boom)

	options, err := mem.ListOptions(context.Background())
	require.NoError(t, err)
	assert.Zero(t, options[0].Votes, "counter must not move when the event append fails")
	_, events := mem.Len()
	assert.Zero(t, events)
	assert.Empty(t, rec.Events())
}

func TestAddLanguageDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, name := range []string{"Python", "Cython", "Rust"} {
		_, err := f.ledger.AddLanguage(ctx, name)
		require.NoError(t, err)
	}

	_, err := f.ledger.AddLanguage(ctx, "  python ")
	require.ErrorIs(t, err, errs.ErrDuplicateLanguage)

	var dup *errs.DuplicateLanguageError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "Python", dup.Existing)
	require.NotEmpty(t, dup.Suggestions)
	assert.Equal(t, "Python", dup.Suggestions[0])
	assert.Contains(t, dup.Suggestions, "Cython")
	assert.LessOrEqual(t, len(dup.Suggestions), 5)

	_, err = f.ledger.AddLanguage(ctx, "R U S T")
	assert.ErrorIs(t, err, errs.ErrDuplicateLanguage)

	options, err := f.ledger.Options(ctx)
	require.NoError(t, err)
	assert.Len(t, options, 3)
}

func TestAddLanguageValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, name := range []string{"", "   ", `<b>Go</b>`, `Go" onload="x`} {
		_, err := f.ledger.AddLanguage(ctx, name)
		assert.ErrorIs(t, err, errs.ErrValidation, "name %q", name)
	}

	options, err := f.ledger.Options(ctx)
	require.NoError(t, err)
	assert.Empty(t, options)
	assert.Empty(t, f.recorder.Events())
}

func TestResetAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, name := range []string{"Go", "Zig"} {
		option, err := f.ledger.AddLanguage(ctx, name)
		require.NoError(t, err)
		for i := 0; i < 3; i++ {
			_, err := f.ledger.CastVote(ctx, option.ID)
			require.NoError(t, err)
		}
	}
	require.Len(t, f.allEvents(t), 6)

	require.NoError(t, f.ledger.ResetAll(ctx))

	options, err := f.ledger.Options(ctx)
	require.NoError(t, err)
	require.Len(t, options, 2)
	for _, o := range options {
		assert.Zero(t, o.Votes, o.Name)
	}
	assert.Empty(t, f.allEvents(t))

	kinds := f.recorder.Kinds()
	assert.Equal(t, notify.KindDataReset, kinds[len(kinds)-1])

	// counting restarts from zero
	result, err := f.ledger.CastVote(ctx, options[0].ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, result.Count)
}

// TestResetSerializesWithVotes runs votes and resets concurrently and checks that
// counters always agree with the event log afterwards.
func TestResetSerializesWithVotes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	option, err := f.ledger.AddLanguage(ctx, "Go")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%25 == 0 {
				assert.NoError(t, f.ledger.ResetAll(ctx))
				return
			}
			_, err := f.ledger.CastVote(ctx, option.ID)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	options, err := f.ledger.Options(ctx)
	require.NoError(t, err)
	events := f.allEvents(t)
	assert.EqualValues(t, len(events), options[0].Votes)
	for i, e := range events {
		assert.EqualValues(t, i+1, e.VotesAfter)
	}
}

func TestEnsureLanguages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.ledger.EnsureLanguages(ctx, "Go", "rust", "GO")
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	created, err = f.ledger.EnsureLanguages(ctx, "Zig")
	require.NoError(t, err)
	assert.Zero(t, created)

	options, err := f.ledger.Options(ctx)
	require.NoError(t, err)
	assert.Len(t, options, 2)
}

type slowNotifier struct {
	delay time.Duration
	notify.Recorder
}

func (s *slowNotifier) Notify(ctx context.Context, event notify.Event) error {
	time.Sleep(s.delay)
	return s.Recorder.Notify(ctx, event)
}

func TestSlowNotifierDoesNotDelayCastVote(t *testing.T) {
	st := memstore.New()
	slow := &slowNotifier{delay: 500 * time.Millisecond}
	async := notify.NewAsync(slow, zaptest.NewLogger(t), 16)
	ledger := NewLedger(st, async, zaptest.NewLogger(t), metrics.New())
	ctx := context.Background()

	option, err := ledger.AddLanguage(ctx, "Go")
	require.NoError(t, err)

	start := time.Now()
	result, err := ledger.CastVote(ctx, option.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, result.Count)
	assert.Less(t, time.Since(start), 250*time.Millisecond)

	async.Close()
	assert.Equal(t, []notify.Kind{notify.KindLanguageAdded, notify.KindVoteRecorded}, slow.Kinds())
}

func TestCastVoteStampsWithStoreClock(t *testing.T) {
	storeTime := time.Date(2026, 5, 1, 10, 0, 0, 123456789, time.UTC)
	st := memstore.New().WithClock(func() time.Time { return storeTime })
	ledger := NewLedger(st, notify.Nop{}, zaptest.NewLogger(t), metrics.New()).
		WithClock(func() time.Time { return storeTime.Add(-time.Hour) })
	ctx := context.Background()

	option, err := ledger.AddLanguage(ctx, "Go")
	require.NoError(t, err)
	result, err := ledger.CastVote(ctx, option.ID)
	require.NoError(t, err)

	want := storeTime.Truncate(time.Microsecond)
	assert.Equal(t, want, result.Timestamp)
	events, err := st.EventsSince(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, want, events[0].CreatedAt)
}
