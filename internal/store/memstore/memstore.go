// Package memstore is an in-memory store.Store. Each Atomic call works on a staged
// copy that only replaces the live state when fn returns nil.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"langvote/internal/errs"
	"langvote/internal/models"
	"langvote/internal/store"
)

type Store struct {
	mu sync.RWMutex

	options      []models.Option
	events       []models.VoteEvent
	nextOptionID uint
	nextEventID  uint

	now func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{nextOptionID: 1, nextEventID: 1, now: time.Now}
}

// WithClock replaces the clock used for default timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Atomic(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &txn{
		options:      append([]models.Option(nil), s.options...),
		nextOptionID: s.nextOptionID,
		nextEventID:  s.nextEventID,
		now:          s.now,
	}
	if err := fn(tx); err != nil {
		return err
	}

	// commit
	s.options = tx.options
	if tx.eventsCleared {
		s.events = tx.appended
	} else {
		s.events = append(s.events, tx.appended...)
	}
	s.nextOptionID = tx.nextOptionID
	s.nextEventID = tx.nextEventID
	return nil
}

func (s *Store) ListOptions(ctx context.Context) ([]models.Option, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	options := append([]models.Option(nil), s.options...)
	s.mu.RUnlock()

	sort.SliceStable(options, func(i, j int) bool {
		if options[i].Votes != options[j].Votes {
			return options[i].Votes > options[j].Votes
		}
		return options[i].ID < options[j].ID
	})
	return options, nil
}

func (s *Store) EventsSince(ctx context.Context, since time.Time) ([]models.VoteEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	var events []models.VoteEvent
	for _, e := range s.events {
		if !e.CreatedAt.Before(since) {
			events = append(events, e)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].CreatedAt.Equal(events[j].CreatedAt) {
			return events[i].CreatedAt.Before(events[j].CreatedAt)
		}
		return events[i].ID < events[j].ID
	})
	return events, nil
}

// Len returns the number of options and events currently committed.
func (s *Store) Len() (options, events int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.options), len(s.events)
}

type txn struct {
	options       []models.Option
	appended      []models.VoteEvent
	eventsCleared bool
	nextOptionID  uint
	nextEventID   uint
	now           func() time.Time
}

// LockOptions is a no-op: Atomic already holds the store exclusively.
func (t *txn) LockOptions(ctx context.Context) error {
	return ctx.Err()
}

func (t *txn) IncrementVotes(ctx context.Context, optionID uint) (models.Option, error) {
	i := t.indexOf(optionID)
	if i < 0 {
		return models.Option{}, errs.ErrOptionNotFound
	}
	t.options[i].Votes++
	t.options[i].UpdatedAt = t.now()
	return t.options[i], nil
}

func (t *txn) Now(ctx context.Context) (time.Time, error) {
	return t.now(), ctx.Err()
}

func (t *txn) AppendEvents(ctx context.Context, events []models.VoteEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := t.now()
	for i := range events {
		events[i].ID = t.nextEventID
		t.nextEventID++
		if events[i].CreatedAt.IsZero() {
			events[i].CreatedAt = now
		}
	}
	t.appended = append(t.appended, events...)
	return nil
}

func (t *txn) CreateOptions(ctx context.Context, options []models.Option) error {
	now := t.now()
	for i := range options {
		for _, existing := range t.options {
			if existing.Name == options[i].Name || existing.NameKey == options[i].NameKey {
				return fmt.Errorf("%w: option %q", store.ErrConflict, options[i].Name)
			}
		}
		options[i].ID = t.nextOptionID
		t.nextOptionID++
		if options[i].CreatedAt.IsZero() {
			options[i].CreatedAt = now
		}
		options[i].UpdatedAt = options[i].CreatedAt
		t.options = append(t.options, options[i])
	}
	return nil
}

func (t *txn) ListOptions(ctx context.Context) ([]models.Option, error) {
	return append([]models.Option(nil), t.options...), nil
}

func (t *txn) FindOptionByKey(ctx context.Context, key string) (*models.Option, error) {
	for _, o := range t.options {
		if o.NameKey == key {
			found := o
			return &found, nil
		}
	}
	return nil, nil
}

func (t *txn) SetVotes(ctx context.Context, optionID uint, votes int64) error {
	i := t.indexOf(optionID)
	if i < 0 {
		return errs.ErrOptionNotFound
	}
	t.options[i].Votes = votes
	t.options[i].UpdatedAt = t.now()
	return nil
}

func (t *txn) ZeroVotes(ctx context.Context) error {
	for i := range t.options {
		t.options[i].Votes = 0
	}
	return nil
}

func (t *txn) DeleteAllEvents(ctx context.Context) error {
	t.appended = nil
	t.eventsCleared = true
	return nil
}

func (t *txn) DeleteAllOptions(ctx context.Context) error {
	t.options = nil
	return nil
}

func (t *txn) indexOf(optionID uint) int {
	for i := range t.options {
		if t.options[i].ID == optionID {
			return i
		}
	}
	return -1
}
