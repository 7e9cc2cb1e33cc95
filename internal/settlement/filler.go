package settlement

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/GhasemiTaheri/aban-exchange/internal/ledger"
	"github.com/GhasemiTaheri/aban-exchange/pkg/metrics"
	"github.com/GhasemiTaheri/aban-exchange/pkg/models"
	"go.uber.org/zap"
)

// Rounding decides how order amounts convert into whole tokens
type Rounding int

const (
	// RoundPerOrder floors each order on its own and sums the results.
	// Two orders of 5 at reference price 10 yield 0 tokens.
	RoundPerOrder Rounding = iota
	// RoundAggregate sums an owner's amounts first and floors once.
	// Two orders of 5 at reference price 10 yield 1 token.
	RoundAggregate
)

// ParseRounding maps a configuration value onto a Rounding
func ParseRounding(s string) (Rounding, error) {
	switch s {
	case "", "per_order":
		return RoundPerOrder, nil
	case "aggregate":
		return RoundAggregate, nil
	default:
		return RoundPerOrder, fmt.Errorf("unknown rounding strategy %q", s)
	}
}

func (r Rounding) String() string {
	if r == RoundAggregate {
		return "aggregate"
	}
	return "per_order"
}

// Credits computes the token credit per owner for orders at referencePrice.
// Owners whose credit floors to zero are omitted.
func (r Rounding) Credits(orders []models.Order, referencePrice int64) map[uint64]int64 {
	credits := make(map[uint64]int64)
	if referencePrice <= 0 {
		return credits
	}

	if r == RoundAggregate {
		sums := make(map[uint64]int64)
		for _, o := range orders {
			sums[o.OwnerID] += o.Amount
		}
		for owner, sum := range sums {
			if tokens := sum / referencePrice; tokens > 0 {
				credits[owner] = tokens
			}
		}
		return credits
	}

	for _, o := range orders {
		if tokens := o.Amount / referencePrice; tokens > 0 {
			credits[o.OwnerID] += tokens
		}
	}
	return credits
}

// RunFiller consolidates every live order at referencePrice once their summed
// amount reaches minTotalValue: owners are credited tokens, the orders are
// archived and then deleted, all in one transaction. It returns the distinct
// owners of the consolidated orders in ascending order, or an empty list when
// the threshold is not met. Under RoundPerOrder a listed owner may have been
// credited zero tokens: their orders were archived but each floored to 0.
func (e *Engine) RunFiller(ctx context.Context, referencePrice, minTotalValue int64) ([]uint64, error) {
	start := time.Now()
	if referencePrice <= 0 || minTotalValue <= 0 {
		return []uint64{}, fmt.Errorf("reference price and minimum value must be positive, got %d and %d", referencePrice, minTotalValue)
	}

	total, err := e.ledger.SumOrderAmount(ctx, referencePrice)
	if err != nil {
		return []uint64{}, ErrSettlementUnavailable.Wrap(err)
	}
	if total < minTotalValue {
		e.logger.Debug("Orders below consolidation threshold",
			zap.Int64("reference_price", referencePrice),
			zap.Int64("total", total),
			zap.Int64("min_total_value", minTotalValue))
		return []uint64{}, nil
	}

	var (
		owners   []uint64
		archived int
		credited int64
	)
	err = e.ledger.Transact(ctx, func(tx *ledger.Tx) error {
		owners, archived, credited = nil, 0, 0

		orders, err := tx.LockOrdersAtPrice(referencePrice)
		if err != nil {
			return err
		}

		// The unlocked pre-check may be stale; decide again on the locked set.
		var lockedTotal int64
		for _, o := range orders {
			lockedTotal += o.Amount
		}
		if lockedTotal < minTotalValue {
			return nil
		}

		credits := e.rounding.Credits(orders, referencePrice)
		if err := tx.CreditTokens(credits); err != nil {
			return err
		}
		if err := tx.ArchiveOrders(orders, e.now()); err != nil {
			return err
		}

		ids := make([]uint64, 0, len(orders))
		seen := make(map[uint64]struct{})
		for _, o := range orders {
			ids = append(ids, o.ID)
			if _, ok := seen[o.OwnerID]; !ok {
				seen[o.OwnerID] = struct{}{}
				owners = append(owners, o.OwnerID)
			}
		}
		if err := tx.DeleteOrders(ids); err != nil {
			return err
		}

		archived = len(orders)
		for _, c := range credits {
			credited += c
		}
		return nil
	})
	if err != nil {
		e.logger.Error("Order consolidation voided",
			zap.Int64("reference_price", referencePrice),
			zap.Error(err))
		return []uint64{}, ErrSettlementUnavailable.Wrap(err)
	}

	if owners == nil {
		return []uint64{}, nil
	}
	sort.Slice(owners, func(i, j int) bool { return owners[i] < owners[j] })

	metrics.OrdersArchived.Add(float64(archived))
	metrics.TokensCredited.Add(float64(credited))
	e.logger.Info("Orders consolidated",
		zap.Int64("reference_price", referencePrice),
		zap.Int("archived", archived),
		zap.Int64("tokens", credited),
		zap.Int("credited_owners", len(owners)),
		zap.Duration("duration", time.Since(start)))
	return owners, nil
}
