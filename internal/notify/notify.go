// Package notify forwards settlement outcomes to downstream consumers.
// Delivery is fire-and-forget from the engine's point of view.
package notify

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Kind names a settlement outcome
type Kind string

const (
	// OrdersPlaced carries the ids of newly committed orders
	OrdersPlaced Kind = "orders.placed"
	// OrdersDropped carries the owner ids of rejected requests
	OrdersDropped Kind = "orders.dropped"
	// OrdersFilled carries the owner ids credited by consolidation
	OrdersFilled Kind = "orders.filled"
)

// Event is one notification payload
type Event struct {
	Kind  Kind      `json:"kind"`
	IDs   []uint64  `json:"ids"`
	Count int       `json:"count"`
	At    time.Time `json:"at"`
}

// NewEvent builds an event stamped with the current time
func NewEvent(kind Kind, ids []uint64) Event {
	return Event{Kind: kind, IDs: ids, Count: len(ids), At: time.Now().UTC()}
}

// Dispatcher delivers events
type Dispatcher interface {
	Dispatch(ctx context.Context, event Event) error
	Close() error
}

// LogDispatcher writes events to the log only. Used when no broker is configured.
type LogDispatcher struct {
	logger *zap.Logger
}

// NewLogDispatcher creates a log-only dispatcher
func NewLogDispatcher(logger *zap.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

// Dispatch logs the event
func (d *LogDispatcher) Dispatch(_ context.Context, event Event) error {
	d.logger.Info("Settlement notification",
		zap.String("kind", string(event.Kind)),
		zap.Int("count", event.Count),
		zap.Uint64s("ids", event.IDs))
	return nil
}

// Close is a no-op
func (d *LogDispatcher) Close() error { return nil }
