// Package ledger is the transactional view of accounts and orders used by the
// settlement engine. Every mutation runs inside Store.Transact; balance reads
// that lead to writes go through row locks taken in ascending id order.
package ledger

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Options bound how long a ledger transaction may run and wait for locks
type Options struct {
	TxTimeout       time.Duration
	LockTimeout     time.Duration
	InsertBatchSize int
}

// DefaultOptions returns the production defaults
func DefaultOptions() Options {
	return Options{
		TxTimeout:       5 * time.Second,
		LockTimeout:     2 * time.Second,
		InsertBatchSize: 500,
	}
}

// Store wraps the ledger database
type Store struct {
	db       *gorm.DB
	opts     Options
	logger   *zap.Logger
	postgres bool
}

// NewStore creates a ledger store over db
func NewStore(db *gorm.DB, opts Options, logger *zap.Logger) *Store {
	if opts.InsertBatchSize <= 0 {
		opts.InsertBatchSize = DefaultOptions().InsertBatchSize
	}
	return &Store{
		db:       db,
		opts:     opts,
		logger:   logger,
		postgres: db.Dialector.Name() == "postgres",
	}
}

// DB exposes the underlying handle for health checks
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Transact runs fn in a single database transaction bounded by TxTimeout.
// Any error returned by fn rolls the whole transaction back. Lock contention
// and deadline expiry surface as ErrLockTimeout.
func (s *Store) Transact(ctx context.Context, fn func(tx *Tx) error) error {
	if s.opts.TxTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.TxTimeout)
		defer cancel()
	}

	err := s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		if s.postgres && s.opts.LockTimeout > 0 {
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.opts.LockTimeout.Milliseconds())
			if err := db.Exec(stmt).Error; err != nil {
				return fmt.Errorf("failed to set lock timeout: %w", err)
			}
		}
		return fn(&Tx{db: db, batchSize: s.opts.InsertBatchSize})
	})
	return classify(ctx, err)
}

// SumOrderAmount returns the summed amount of live orders at price, without locking
func (s *Store) SumOrderAmount(ctx context.Context, price int64) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).
		Table("orders").
		Select("COALESCE(SUM(amount), 0)").
		Where("price = ?", price).
		Scan(&total).Error
	if err != nil {
		return 0, classify(ctx, fmt.Errorf("failed to sum order amount: %w", err))
	}
	return total, nil
}
