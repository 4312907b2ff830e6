// Package store defines the storage primitives the vote core relies on.
// Any transactional backend that can provide them is acceptable.
package store

import (
	"context"
	"errors"
	"time"

	"langvote/internal/models"
)

// ErrConflict is returned when a write violates a uniqueness constraint.
var ErrConflict = errors.New("store: unique constraint conflict")

// Store is the read side plus the transaction entry point.
type Store interface {
	// Atomic runs fn as one transactional unit. A non-nil error from fn rolls back
	// every write fn made.
	Atomic(ctx context.Context, fn func(tx Tx) error) error

	ListOptions(ctx context.Context) ([]models.Option, error)
	// EventsSince returns events with CreatedAt >= since, ascending by CreatedAt then ID.
	EventsSince(ctx context.Context, since time.Time) ([]models.VoteEvent, error)
}

// Tx is the write side, only reachable inside Atomic.
type Tx interface {
	// LockOptions takes an exclusive lock on every option row so that no vote cast
	// can interleave with a whole-table operation.
	LockOptions(ctx context.Context) error

	// IncrementVotes adds one to the option counter and returns the row as it is
	// after the increment, in a single statement. errs.ErrOptionNotFound if no row matched.
	IncrementVotes(ctx context.Context, optionID uint) (models.Option, error)

	// Now reads the store's clock. Taken after IncrementVotes it orders events of one
	// option the same way their counter updates were serialized.
	Now(ctx context.Context) (time.Time, error)

	// AppendEvents bulk-inserts events, keeping the CreatedAt each event carries.
	AppendEvents(ctx context.Context, events []models.VoteEvent) error

	CreateOptions(ctx context.Context, options []models.Option) error
	ListOptions(ctx context.Context) ([]models.Option, error)
	// FindOptionByKey returns nil, nil when no option has the given folded key.
	FindOptionByKey(ctx context.Context, key string) (*models.Option, error)
	SetVotes(ctx context.Context, optionID uint, votes int64) error
	ZeroVotes(ctx context.Context) error
	DeleteAllEvents(ctx context.Context) error
	DeleteAllOptions(ctx context.Context) error
}
