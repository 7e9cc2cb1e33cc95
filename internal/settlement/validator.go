package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/GhasemiTaheri/aban-exchange/internal/ledger"
	"github.com/GhasemiTaheri/aban-exchange/pkg/metrics"
	"github.com/GhasemiTaheri/aban-exchange/pkg/models"
	"go.uber.org/zap"
)

// BatchResult partitions one validator run
type BatchResult struct {
	// Accepted holds the ids of the orders committed in this run
	Accepted []uint64
	// Rejected holds one owner id per rejected request, in arrival order
	Rejected []uint64
	// Malformed holds the raw records that failed to parse
	Malformed [][]byte
}

// RunBatch drains up to maxBatchSize requests and settles them in one
// transaction: every referenced account is row-locked in ascending id order,
// requests are evaluated in arrival order against the progressively debited
// balance, then debits and accepted orders are written together.
//
// A drain failure returns ErrQueueUnavailable with nothing mutated. A
// transaction failure returns ErrSettlementUnavailable; the drained records
// are consumed and every parsed request is reported as rejected.
func (e *Engine) RunBatch(ctx context.Context, maxBatchSize int) (BatchResult, error) {
	start := time.Now()
	result := BatchResult{Accepted: []uint64{}, Rejected: []uint64{}}
	if maxBatchSize <= 0 {
		return result, fmt.Errorf("batch size must be positive, got %d", maxBatchSize)
	}

	records, err := e.queue.DrainHead(ctx, maxBatchSize)
	if err != nil {
		return result, ErrQueueUnavailable.Wrap(err)
	}
	if len(records) == 0 {
		return result, nil
	}

	requests := make([]models.OrderRequest, 0, len(records))
	for _, raw := range records {
		req, err := DecodeRequest(raw)
		if err != nil {
			e.logger.Warn("Dropping malformed order record", zap.ByteString("record", raw), zap.Error(err))
			result.Malformed = append(result.Malformed, raw)
			continue
		}
		requests = append(requests, req)
	}
	metrics.OrdersSettled.WithLabelValues("malformed").Add(float64(len(result.Malformed)))

	if len(requests) == 0 {
		return result, nil
	}

	owners := make([]uint64, 0, len(requests))
	for _, req := range requests {
		owners = append(owners, req.OwnerID)
	}

	var (
		accepted []models.Order
		rejected []uint64
	)
	err = e.ledger.Transact(ctx, func(tx *ledger.Tx) error {
		accepted, rejected = nil, nil

		locked, err := tx.LockAccounts(owners)
		if err != nil {
			return err
		}
		balances := make(map[uint64]int64, len(locked))
		for id, account := range locked {
			balances[id] = account.Balance
		}

		now := e.now()
		debits := make(map[uint64]int64)
		for _, req := range requests {
			balance, ok := balances[req.OwnerID]
			if !ok || balance < req.Amount {
				rejected = append(rejected, req.OwnerID)
				continue
			}
			balances[req.OwnerID] = balance - req.Amount
			debits[req.OwnerID] += req.Amount
			accepted = append(accepted, models.Order{
				OwnerID:   req.OwnerID,
				Price:     req.Price,
				Amount:    req.Amount,
				CreatedAt: now,
				UpdatedAt: now,
			})
		}

		if err := tx.DebitBalances(debits); err != nil {
			return err
		}
		return tx.InsertOrders(accepted)
	})
	if err != nil {
		result.Rejected = owners
		metrics.OrdersSettled.WithLabelValues("rejected").Add(float64(len(owners)))
		e.logger.Error("Order batch voided",
			zap.Int("batch_size", len(records)),
			zap.Int("rejected", len(owners)),
			zap.Int("malformed", len(result.Malformed)),
			zap.Error(err))
		return result, ErrSettlementUnavailable.Wrap(err)
	}

	for _, o := range accepted {
		result.Accepted = append(result.Accepted, o.ID)
	}
	if rejected != nil {
		result.Rejected = rejected
	}
	metrics.OrdersSettled.WithLabelValues("accepted").Add(float64(len(result.Accepted)))
	metrics.OrdersSettled.WithLabelValues("rejected").Add(float64(len(result.Rejected)))

	e.logger.Info("Order batch settled",
		zap.Int("batch_size", len(records)),
		zap.Int("accepted", len(result.Accepted)),
		zap.Int("rejected", len(result.Rejected)),
		zap.Int("malformed", len(result.Malformed)),
		zap.Duration("duration", time.Since(start)))
	return result, nil
}
