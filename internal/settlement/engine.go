// Package settlement turns queued order requests into balance-debited orders
// and periodically consolidates orders at the reference price into tokens.
package settlement

import (
	"time"

	"github.com/GhasemiTaheri/aban-exchange/internal/ledger"
	"github.com/GhasemiTaheri/aban-exchange/internal/orderqueue"
	"go.uber.org/zap"
)

// Engine runs the batch validator and the order filler
type Engine struct {
	queue    orderqueue.Queue
	ledger   *ledger.Store
	rounding Rounding
	logger   *zap.Logger
	now      func() time.Time
}

// NewEngine wires an engine over the queue and the ledger
func NewEngine(queue orderqueue.Queue, store *ledger.Store, rounding Rounding, logger *zap.Logger) *Engine {
	return &Engine{
		queue:    queue,
		ledger:   store,
		rounding: rounding,
		logger:   logger,
		now:      time.Now,
	}
}
