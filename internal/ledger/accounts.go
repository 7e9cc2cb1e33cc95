package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/GhasemiTaheri/aban-exchange/pkg/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CreateAccount opens an account with the given starting balance and no tokens
func (s *Store) CreateAccount(ctx context.Context, username, email string, balance int64) (*models.Account, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}
	if balance < 0 {
		return nil, fmt.Errorf("%w: starting balance %d", ErrBalanceInvariant, balance)
	}

	account := &models.Account{
		Username: username,
		Email:    email,
		Balance:  balance,
	}

	err := s.Transact(ctx, func(tx *Tx) error {
		var count int64
		if err := tx.db.Model(&models.Account{}).Where("username = ?", username).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check account: %w", err)
		}
		if count > 0 {
			return ErrAccountExists
		}
		if err := tx.db.Create(account).Error; err != nil {
			return fmt.Errorf("failed to create account: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Account created", zap.Uint64("owner_id", account.ID), zap.String("username", username))
	return account, nil
}

// GetAccount loads an account by id
func (s *Store) GetAccount(ctx context.Context, id uint64) (*models.Account, error) {
	var account models.Account
	if err := s.db.WithContext(ctx).First(&account, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	return &account, nil
}

// RemoveAccount deletes an account that owns no live or archived orders.
// Accounts with order history are refused with ErrReferentialProtection.
func (s *Store) RemoveAccount(ctx context.Context, id uint64) error {
	err := s.Transact(ctx, func(tx *Tx) error {
		locked, err := tx.LockAccounts([]uint64{id})
		if err != nil {
			return err
		}
		if _, ok := locked[id]; !ok {
			return ErrAccountNotFound
		}

		var live, archived int64
		if err := tx.db.Model(&models.Order{}).Where("owner_id = ?", id).Count(&live).Error; err != nil {
			return fmt.Errorf("failed to count orders: %w", err)
		}
		if err := tx.db.Model(&models.ArchiveOrder{}).Where("owner_id = ?", id).Count(&archived).Error; err != nil {
			return fmt.Errorf("failed to count archived orders: %w", err)
		}
		if live > 0 || archived > 0 {
			return ErrReferentialProtection.New("account %d owns %d live and %d archived orders", id, live, archived)
		}

		if err := tx.db.Delete(&models.Account{}, id).Error; err != nil {
			return fmt.Errorf("failed to delete account: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Account removed", zap.Uint64("owner_id", id))
	return nil
}
