package settlement

import (
	"context"
	"time"

	"github.com/GhasemiTaheri/aban-exchange/internal/notify"
	"github.com/GhasemiTaheri/aban-exchange/pkg/metrics"
	"go.uber.org/zap"
)

// Job names used for logging and metrics
const (
	JobHandleBatch      = "handle_batch_of_requests"
	JobAccumulateOrders = "accumulate_placed_orders"
)

// JobConfig carries the knobs the periodic jobs pass to the engine
type JobConfig struct {
	BatchSize      int
	TokenPrice     int64
	MinOrdersValue int64
}

// Jobs runs engine operations and forwards their outcomes to a dispatcher.
// Dispatch failures are logged and never fail a job.
type Jobs struct {
	engine     *Engine
	dispatcher notify.Dispatcher
	config     JobConfig
	logger     *zap.Logger
}

// NewJobs creates the job set
func NewJobs(engine *Engine, dispatcher notify.Dispatcher, config JobConfig, logger *zap.Logger) *Jobs {
	return &Jobs{engine: engine, dispatcher: dispatcher, config: config, logger: logger}
}

// HandleBatchOfRequests settles one batch and notifies placed and dropped orders
func (j *Jobs) HandleBatchOfRequests(ctx context.Context) error {
	start := time.Now()
	result, err := j.engine.RunBatch(ctx, j.config.BatchSize)

	// Voided batches still report their dropped requests.
	if len(result.Accepted) > 0 {
		j.dispatch(ctx, notify.NewEvent(notify.OrdersPlaced, result.Accepted))
	}
	if len(result.Rejected) > 0 {
		j.dispatch(ctx, notify.NewEvent(notify.OrdersDropped, result.Rejected))
	}

	j.observe(JobHandleBatch, start, err)
	return err
}

// AccumulatePlacedOrders consolidates orders at the token price and
// notifies credited owners
func (j *Jobs) AccumulatePlacedOrders(ctx context.Context) error {
	start := time.Now()
	owners, err := j.engine.RunFiller(ctx, j.config.TokenPrice, j.config.MinOrdersValue)

	if len(owners) > 0 {
		j.dispatch(ctx, notify.NewEvent(notify.OrdersFilled, owners))
	}

	j.observe(JobAccumulateOrders, start, err)
	return err
}

func (j *Jobs) dispatch(ctx context.Context, event notify.Event) {
	if err := j.dispatcher.Dispatch(ctx, event); err != nil {
		j.logger.Warn("Notification dispatch failed",
			zap.String("kind", string(event.Kind)),
			zap.Int("count", event.Count),
			zap.Error(err))
	}
}

func (j *Jobs) observe(job string, start time.Time, err error) {
	metrics.JobLatency.WithLabelValues(job).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.JobRuns.WithLabelValues(job, "failed").Inc()
		return
	}
	metrics.JobRuns.WithLabelValues(job, "ok").Inc()
}
