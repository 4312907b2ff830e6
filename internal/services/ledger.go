package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"langvote/internal/errs"
	"langvote/internal/metrics"
	"langvote/internal/models"
	"langvote/internal/notify"
	"langvote/internal/store"
	"langvote/internal/utils"
)

// VoteResult 一次投票提交后的结果
type VoteResult struct {
	OptionID  uint      `json:"option_id"`
	Count     int64     `json:"count"`
	Language  string    `json:"language"`
	Timestamp time.Time `json:"timestamp"`
}

// Ledger 维护选项计数器和只追加的投票事件日志
type Ledger struct {
	store    store.Store
	notifier notify.Notifier
	logger   *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewLedger(st store.Store, notifier notify.Notifier, logger *zap.Logger, m *metrics.Metrics) *Ledger {
	return &Ledger{
		store:    st,
		notifier: notifier,
		logger:   logger.Named("ledger"),
		metrics:  m,
		now:      time.Now,
	}
}

// WithClock replaces the clock used for notification timestamps. Vote events are
// stamped with the store's clock.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// CastVote 在同一事务中原子递增计数器并追加一条 vote 事件
// 计数器的读取和写入是同一条语句，不存在先读后写的竞态
func (l *Ledger) CastVote(ctx context.Context, optionID uint) (VoteResult, error) {
	var result VoteResult
	err := l.store.Atomic(ctx, func(tx store.Tx) error {
		option, err := tx.IncrementVotes(ctx, optionID)
		if err != nil {
			return err
		}

		// 行锁已持有，此时读取的存储时钟与计数器顺序一致
		now, err := tx.Now(ctx)
		if err != nil {
			return err
		}
		event := models.VoteEvent{
			OptionID:   option.ID,
			Language:   option.Name,
			VotesAfter: option.Votes,
			EventType:  models.EventTypeVote,
			CreatedAt:  now.UTC().Truncate(time.Microsecond),
		}
		if err := tx.AppendEvents(ctx, []models.VoteEvent{event}); err != nil {
			return err
		}

		result = VoteResult{
			OptionID:  option.ID,
			Count:     option.Votes,
			Language:  option.Name,
			Timestamp: event.CreatedAt,
		}
		return nil
	})
	if err != nil {
		return VoteResult{}, l.fail("cast_vote", err, zap.Uint("option_id", optionID))
	}

	l.metrics.VotesCast.WithLabelValues(result.Language).Inc()
	notify.Emit(ctx, l.notifier, l.logger, notify.Event{
		Kind:      notify.KindVoteRecorded,
		OptionID:  result.OptionID,
		Count:     result.Count,
		Language:  result.Language,
		Timestamp: result.Timestamp,
	})
	return result, nil
}

// AddLanguage registers a new option with a zero counter. The name is normalized
// first; a case/whitespace-insensitive clash yields a DuplicateLanguageError with
// suggestions.
func (l *Ledger) AddLanguage(ctx context.Context, raw string) (models.Option, error) {
	name := utils.NormalizeName(raw)
	if err := utils.ValidateName(name); err != nil {
		return models.Option{}, l.fail("add_language", err, zap.String("name", raw))
	}
	key := utils.NameKey(name)

	var created models.Option
	err := l.store.Atomic(ctx, func(tx store.Tx) error {
		existing, err := tx.FindOptionByKey(ctx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			options, err := tx.ListOptions(ctx)
			if err != nil {
				return err
			}
			return duplicateOf(raw, name, existing.Name, options)
		}

		batch := []models.Option{{Name: name, NameKey: key}}
		if err := tx.CreateOptions(ctx, batch); err != nil {
			return err
		}
		created = batch[0]
		return nil
	})

	// 并发注册同名语言时，唯一约束兜底
	if errors.Is(err, store.ErrConflict) {
		options, listErr := l.store.ListOptions(ctx)
		if listErr == nil {
			existing := name
			for _, o := range options {
				if o.NameKey == key {
					existing = o.Name
				}
			}
			err = duplicateOf(raw, name, existing, options)
		}
	}
	if err != nil {
		return models.Option{}, l.fail("add_language", err, zap.String("name", raw))
	}

	l.metrics.LanguagesAdded.Inc()
	l.logger.Info("language added", zap.Uint("option_id", created.ID), zap.String("name", created.Name))
	notify.Emit(ctx, l.notifier, l.logger, notify.Event{
		Kind:      notify.KindLanguageAdded,
		OptionID:  created.ID,
		Name:      created.Name,
		Timestamp: l.stamp(),
	})
	return created, nil
}

// ResetAll zeroes every counter and empties the event log in one transaction.
// The option lock is taken first so in-flight vote casts either commit before the
// reset or start after it.
func (l *Ledger) ResetAll(ctx context.Context) error {
	err := l.store.Atomic(ctx, func(tx store.Tx) error {
		if err := tx.LockOptions(ctx); err != nil {
			return err
		}
		if err := tx.ZeroVotes(ctx); err != nil {
			return err
		}
		return tx.DeleteAllEvents(ctx)
	})
	if err != nil {
		return l.fail("reset_all", err)
	}

	ts := l.stamp()
	l.metrics.Resets.Inc()
	l.logger.Info("all votes reset")
	notify.Emit(ctx, l.notifier, l.logger, notify.Event{Kind: notify.KindDataReset, Timestamp: ts})
	return nil
}

// Options returns the current tally, highest first.
func (l *Ledger) Options(ctx context.Context) ([]models.Option, error) {
	return l.store.ListOptions(ctx)
}

// EnsureLanguages 在没有任何选项时写入一组初始语言，已有数据则跳过
func (l *Ledger) EnsureLanguages(ctx context.Context, names ...string) (int, error) {
	options, err := l.store.ListOptions(ctx)
	if err != nil {
		return 0, err
	}
	if len(options) > 0 {
		l.logger.Info("options already seeded, skipping", zap.Int("count", len(options)))
		return 0, nil
	}

	created := 0
	for _, name := range names {
		if _, err := l.AddLanguage(ctx, name); err != nil {
			if errors.Is(err, errs.ErrDuplicateLanguage) {
				continue
			}
			return created, err
		}
		created++
	}
	l.logger.Info("initial languages created", zap.Int("count", created))
	return created, nil
}

func (l *Ledger) stamp() time.Time {
	return l.now().UTC().Truncate(time.Microsecond)
}

func (l *Ledger) fail(op string, err error, fields ...zap.Field) error {
	err = errs.Aborted(op, err)

	kind := "aborted"
	switch {
	case errors.Is(err, errs.ErrValidation):
		kind = "validation"
	case errors.Is(err, errs.ErrDuplicateLanguage):
		kind = "duplicate"
	case errors.Is(err, errs.ErrOptionNotFound):
		kind = "not_found"
	}
	l.metrics.LedgerErrors.WithLabelValues(op, kind).Inc()

	fields = append(fields, zap.String("op", op), zap.Error(err))
	if kind == "aborted" {
		l.logger.Error("ledger operation failed", fields...)
	} else {
		l.logger.Debug("ledger operation rejected", fields...)
	}
	return err
}

func duplicateOf(raw, name, existing string, options []models.Option) error {
	names := make([]string, len(options))
	for i, o := range options {
		names[i] = o.Name
	}
	return &errs.DuplicateLanguageError{
		Name:        raw,
		Existing:    existing,
		Suggestions: utils.SimilarNames(name, names, utils.MaxSuggestions),
	}
}
