package ledger

import (
	"fmt"
	"sort"
	"time"

	"github.com/GhasemiTaheri/aban-exchange/pkg/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Tx is one open ledger transaction
type Tx struct {
	db        *gorm.DB
	batchSize int
}

func sortedIDs[V any](m map[uint64]V) []uint64 {
	ids := make([]uint64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func distinctSorted(ids []uint64) []uint64 {
	set := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return sortedIDs(set)
}

// LockAccounts takes row locks on the given accounts in ascending id order
// and returns the locked rows keyed by id. Unknown ids are absent from the map.
func (t *Tx) LockAccounts(ids []uint64) (map[uint64]models.Account, error) {
	locked := make(map[uint64]models.Account, len(ids))
	ids = distinctSorted(ids)
	if len(ids) == 0 {
		return locked, nil
	}

	var accounts []models.Account
	err := t.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&accounts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to lock accounts: %w", err)
	}

	for _, a := range accounts {
		locked[a.ID] = a
	}
	return locked, nil
}

// DebitBalances subtracts the given amounts from account balances. The
// update is guarded so a balance can never go below zero.
func (t *Tx) DebitBalances(debits map[uint64]int64) error {
	for _, id := range sortedIDs(debits) {
		amount := debits[id]
		if amount <= 0 {
			continue
		}
		res := t.db.Model(&models.Account{}).
			Where("id = ? AND balance >= ?", id, amount).
			Updates(map[string]interface{}{
				"balance":    gorm.Expr("balance - ?", amount),
				"updated_at": time.Now(),
			})
		if res.Error != nil {
			return fmt.Errorf("failed to debit account %d: %w", id, res.Error)
		}
		if res.RowsAffected != 1 {
			return fmt.Errorf("%w: account %d debit %d", ErrBalanceInvariant, id, amount)
		}
	}
	return nil
}

// CreditTokens adds the given amounts to account token balances
func (t *Tx) CreditTokens(credits map[uint64]int64) error {
	for _, id := range sortedIDs(credits) {
		amount := credits[id]
		if amount <= 0 {
			continue
		}
		res := t.db.Model(&models.Account{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"token_balance": gorm.Expr("token_balance + ?", amount),
				"updated_at":    time.Now(),
			})
		if res.Error != nil {
			return fmt.Errorf("failed to credit account %d: %w", id, res.Error)
		}
		if res.RowsAffected != 1 {
			return fmt.Errorf("%w: account %d", ErrAccountNotFound, id)
		}
	}
	return nil
}

// InsertOrders persists orders in batches. Assigned ids are written back
// into the slice.
func (t *Tx) InsertOrders(orders []models.Order) error {
	if len(orders) == 0 {
		return nil
	}
	if err := t.db.CreateInBatches(&orders, t.batchSize).Error; err != nil {
		return fmt.Errorf("failed to insert orders: %w", err)
	}
	return nil
}

// LockOrdersAtPrice takes row locks on every live order at price, in id order
func (t *Tx) LockOrdersAtPrice(price int64) ([]models.Order, error) {
	var orders []models.Order
	err := t.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("price = ?", price).
		Order("id ASC").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to lock orders at price %d: %w", price, err)
	}
	return orders, nil
}

// ArchiveOrders appends one archive row per order, keeping the original timestamps
func (t *Tx) ArchiveOrders(orders []models.Order, archivedAt time.Time) error {
	if len(orders) == 0 {
		return nil
	}
	archives := make([]models.ArchiveOrder, 0, len(orders))
	for _, o := range orders {
		archives = append(archives, models.NewArchiveOrder(o, archivedAt))
	}
	if err := t.db.CreateInBatches(&archives, t.batchSize).Error; err != nil {
		return fmt.Errorf("failed to archive orders: %w", err)
	}
	return nil
}

// DeleteOrders removes live orders by id. Every id must still exist.
func (t *Tx) DeleteOrders(ids []uint64) error {
	for start := 0; start < len(ids); start += t.batchSize {
		end := start + t.batchSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		res := t.db.Where("id IN ?", chunk).Delete(&models.Order{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete orders: %w", res.Error)
		}
		if res.RowsAffected != int64(len(chunk)) {
			return fmt.Errorf("%w: deleted %d of %d", ErrOrderSetChanged, res.RowsAffected, len(chunk))
		}
	}
	return nil
}
