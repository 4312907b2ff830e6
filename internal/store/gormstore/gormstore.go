// Package gormstore implements store.Store on top of gorm and Postgres.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"langvote/internal/errs"
	"langvote/internal/models"
	"langvote/internal/store"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultBatchSize 批量写入时每条 INSERT 的行数
const DefaultBatchSize = 1000

type Store struct {
	db        *gorm.DB
	batchSize int
}

var _ store.Store = (*Store)(nil)

func New(db *gorm.DB) *Store {
	return &Store{db: db, batchSize: DefaultBatchSize}
}

// WithBatchSize overrides the bulk insert batch size.
func (s *Store) WithBatchSize(n int) *Store {
	if n > 0 {
		s.batchSize = n
	}
	return s
}

func (s *Store) Atomic(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&txn{db: tx, batchSize: s.batchSize})
	})
}

func (s *Store) ListOptions(ctx context.Context) ([]models.Option, error) {
	var options []models.Option
	err := s.db.WithContext(ctx).Order("votes DESC, id ASC").Find(&options).Error
	return options, err
}

func (s *Store) EventsSince(ctx context.Context, since time.Time) ([]models.VoteEvent, error) {
	var events []models.VoteEvent
	err := s.db.WithContext(ctx).
		Where("created_at >= ?", since).
		Order("created_at ASC, id ASC").
		Find(&events).Error
	return events, err
}

type txn struct {
	db        *gorm.DB
	batchSize int
}

// LockOptions 锁住整张 options 表。SHARE ROW EXCLUSIVE 与投票的 UPDATE 互斥，也与自身互斥，
// 所以重置/播种与投票、以及彼此之间都是串行的
func (t *txn) LockOptions(ctx context.Context) error {
	return t.db.WithContext(ctx).Exec("LOCK TABLE options IN SHARE ROW EXCLUSIVE MODE").Error
}

func (t *txn) IncrementVotes(ctx context.Context, optionID uint) (models.Option, error) {
	var option models.Option
	result := t.db.WithContext(ctx).
		Model(&option).
		Clauses(clause.Returning{}).
		Where("id = ?", optionID).
		UpdateColumn("votes", gorm.Expr("votes + ?", 1))
	if result.Error != nil {
		return option, result.Error
	}
	if result.RowsAffected == 0 {
		return option, errs.ErrOptionNotFound
	}
	return option, nil
}

// Now 使用数据库时钟，多个应用实例之间没有时钟偏差问题
func (t *txn) Now(ctx context.Context) (time.Time, error) {
	var now time.Time
	err := t.db.WithContext(ctx).Raw("SELECT clock_timestamp()").Row().Scan(&now)
	return now, err
}

func (t *txn) AppendEvents(ctx context.Context, events []models.VoteEvent) error {
	if len(events) == 0 {
		return nil
	}
	return t.db.WithContext(ctx).CreateInBatches(&events, t.batchSize).Error
}

func (t *txn) CreateOptions(ctx context.Context, options []models.Option) error {
	if len(options) == 0 {
		return nil
	}
	err := t.db.WithContext(ctx).CreateInBatches(&options, t.batchSize).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", store.ErrConflict, err)
	}
	return err
}

func (t *txn) ListOptions(ctx context.Context) ([]models.Option, error) {
	var options []models.Option
	err := t.db.WithContext(ctx).Order("id ASC").Find(&options).Error
	return options, err
}

func (t *txn) FindOptionByKey(ctx context.Context, key string) (*models.Option, error) {
	var option models.Option
	err := t.db.WithContext(ctx).Where("name_key = ?", key).Take(&option).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &option, nil
}

func (t *txn) SetVotes(ctx context.Context, optionID uint, votes int64) error {
	result := t.db.WithContext(ctx).
		Model(&models.Option{}).
		Where("id = ?", optionID).
		UpdateColumn("votes", votes)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errs.ErrOptionNotFound
	}
	return nil
}

func (t *txn) ZeroVotes(ctx context.Context) error {
	return t.db.WithContext(ctx).
		Model(&models.Option{}).
		Where("votes <> ?", 0).
		UpdateColumn("votes", 0).Error
}

func (t *txn) DeleteAllEvents(ctx context.Context) error {
	return t.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&models.VoteEvent{}).Error
}

func (t *txn) DeleteAllOptions(ctx context.Context) error {
	return t.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&models.Option{}).Error
}
