package settlement

import (
	"context"
	"time"

	"github.com/GhasemiTaheri/aban-exchange/internal/orderqueue"
	"github.com/GhasemiTaheri/aban-exchange/pkg/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Intake appends validated order requests to the queue. It never looks at
// balances; that happens when the batch validator drains the queue.
type Intake struct {
	queue  orderqueue.Queue
	logger *zap.Logger
	now    func() time.Time
}

// NewIntake creates an intake stage in front of queue
func NewIntake(queue orderqueue.Queue, logger *zap.Logger) *Intake {
	return &Intake{queue: queue, logger: logger, now: time.Now}
}

// Submit enqueues one order request and returns its request id.
// Invalid input fails with ErrMalformedRecord, a failed push with
// ErrQueueUnavailable.
func (i *Intake) Submit(ctx context.Context, ownerID uint64, amount, price int64) (uuid.UUID, error) {
	req := models.OrderRequest{
		RequestID:  uuid.New(),
		OwnerID:    ownerID,
		Amount:     amount,
		Price:      price,
		ReceivedAt: i.now().UTC(),
	}

	record, err := EncodeRequest(req)
	if err != nil {
		return uuid.Nil, err
	}
	if err := i.queue.Push(ctx, record); err != nil {
		i.logger.Error("Failed to enqueue order request",
			zap.Uint64("owner_id", ownerID),
			zap.Error(err))
		return uuid.Nil, ErrQueueUnavailable.Wrap(err)
	}

	i.logger.Debug("Order request enqueued",
		zap.String("request_id", req.RequestID.String()),
		zap.Uint64("owner_id", ownerID),
		zap.Int64("amount", amount),
		zap.Int64("price", price))
	return req.RequestID, nil
}
