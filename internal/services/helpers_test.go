package services

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"langvote/internal/metrics"
	"langvote/internal/models"
	"langvote/internal/notify"
	"langvote/internal/store"
	"langvote/internal/store/memstore"
)

type fixture struct {
	store    *memstore.Store
	recorder *notify.Recorder
	metrics  *metrics.Metrics
	ledger   *Ledger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memstore.New()
	rec := &notify.Recorder{}
	m := metrics.New()
	return &fixture{
		store:    st,
		recorder: rec,
		metrics:  m,
		ledger:   NewLedger(st, rec, zaptest.NewLogger(t), m),
	}
}

func (f *fixture) allEvents(t *testing.T) []models.VoteEvent {
	t.Helper()
	events, err := f.store.EventsSince(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("EventsSince failed: %v", err)
	}
	return events
}

// faultyStore fails AppendEvents inside transactions to exercise rollback.
type faultyStore struct {
	*memstore.Store
	appendErr error
}

func (s *faultyStore) Atomic(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.Store.Atomic(ctx, func(tx store.Tx) error {
		return fn(&faultyTx{Tx: tx, appendErr: s.appendErr})
	})
}

type faultyTx struct {
	store.Tx
	appendErr error
}

func (t *faultyTx) AppendEvents(ctx context.Context, events []models.VoteEvent) error {
	return t.appendErr
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}
