package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/zeebo/errs"
)

var (
	// ErrAccountNotFound is returned when an account id is not in the ledger.
	ErrAccountNotFound = errors.New("ledger: account not found")
	// ErrAccountExists is returned by CreateAccount for a taken username.
	ErrAccountExists = errors.New("ledger: account already exists")
	// ErrBalanceInvariant is returned when a debit would take a balance below zero.
	ErrBalanceInvariant = errors.New("ledger: balance would become negative")
	// ErrOrderSetChanged is returned when a locked order set was modified underneath a consolidation.
	ErrOrderSetChanged = errors.New("ledger: locked order set changed")
	// ErrLockTimeout is returned when a transaction could not get its locks in time.
	ErrLockTimeout = errors.New("ledger: lock wait timed out")
)

// ErrReferentialProtection is the class of refusals to remove an account
// that still owns live or archived orders.
var ErrReferentialProtection = errs.Class("referential protection")

// Postgres SQLSTATE codes treated as lock contention
const (
	pgLockNotAvailable     = "55P03"
	pgDeadlockDetected     = "40P01"
	pgSerializationFailure = "40001"
)

// classify maps driver and context failures onto ErrLockTimeout, leaving
// everything else untouched.
func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrLockTimeout) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable, pgDeadlockDetected, pgSerializationFailure:
			return fmt.Errorf("%w: %w", ErrLockTimeout, err)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrLockTimeout, err)
	}
	return err
}
