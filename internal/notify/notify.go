// Package notify fans vote events out to whoever is listening. Delivery is best effort;
// storage stays the source of truth, so a missed event is recovered by re-querying.
package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Kind string

const (
	KindVoteRecorded  Kind = "vote-recorded"
	KindLanguageAdded Kind = "language-added"
	KindDataReset     Kind = "data-reset"
	KindDataSeeded    Kind = "data-seeded"
	KindTrendUpdated  Kind = "trend-updated"
)

// Event is the wire shape of a notification. Unused fields are omitted.
type Event struct {
	Kind      Kind      `json:"kind"`
	OptionID  uint      `json:"option_id,omitempty"`
	Count     int64     `json:"count,omitempty"`
	Language  string    `json:"language,omitempty"`
	Name      string    `json:"name,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }

// LogNotifier writes events to the log, handy when no broker is configured.
type LogNotifier struct {
	Logger *zap.Logger
}

func (n LogNotifier) Notify(_ context.Context, event Event) error {
	n.Logger.Debug("event",
		zap.String("kind", string(event.Kind)),
		zap.Uint("option_id", event.OptionID),
		zap.Int64("count", event.Count),
		zap.String("language", event.Language),
		zap.String("name", event.Name),
		zap.Time("timestamp", event.Timestamp),
	)
	return nil
}

// Multi delivers to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, event Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps every event in memory. Used by in-process consumers and tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Notify(_ context.Context, event Event) error {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Kinds returns the kinds of recorded events in order.
func (r *Recorder) Kinds() []Kind {
	events := r.Events()
	kinds := make([]Kind, len(events))
	for i, e := range events {
		kinds[i] = e.Kind
	}
	return kinds
}

// Emit delivers event and only logs a failure; callers never fail because of it.
func Emit(ctx context.Context, n Notifier, logger *zap.Logger, event Event) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, event); err != nil {
		logger.Warn("notify failed", zap.String("kind", string(event.Kind)), zap.Error(err))
	}
}
