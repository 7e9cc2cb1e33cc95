// Package orderqueue is the intake buffer between the HTTP boundary and the
// batch validator: an ordered FIFO list of opaque order request records.
package orderqueue

import (
	"context"
	"errors"
)

// DefaultKey is the list key the intake API and the validator share.
const DefaultKey = "recieve_order_queue"

// ErrEmptyRecord is returned by Push for a zero-length record.
var ErrEmptyRecord = errors.New("orderqueue: empty record")

// Queue defines the contract the engine consumes from the queue store.
type Queue interface {
	// Push appends one record to the tail.
	Push(ctx context.Context, record []byte) error

	// DrainHead atomically reads and removes up to max records from the head,
	// oldest first. An empty queue yields an empty slice, not an error.
	DrainHead(ctx context.Context, max int) ([][]byte, error)

	// Len reports the number of waiting records.
	Len(ctx context.Context) (int64, error)
}
