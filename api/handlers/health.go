package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/GhasemiTaheri/aban-exchange/api/responses"
	apierrors "github.com/GhasemiTaheri/aban-exchange/pkg/errors"
	"github.com/GhasemiTaheri/aban-exchange/pkg/metrics"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// QueueDepth reports how many order requests are waiting
type QueueDepth interface {
	Len(ctx context.Context) (int64, error)
}

// HealthHandler reports queue and database reachability
type HealthHandler struct {
	queue   QueueDepth
	pingDB  func(ctx context.Context) error
	timeout time.Duration
	logger  *zap.Logger
}

// NewHealthHandler creates a health handler
func NewHealthHandler(queue QueueDepth, pingDB func(ctx context.Context) error, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{queue: queue, pingDB: pingDB, timeout: 2 * time.Second, logger: logger}
}

// Health answers 200 when both dependencies respond and 503 otherwise
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	queueStatus, dbStatus := "ok", "ok"
	depth, err := h.queue.Len(ctx)
	if err != nil {
		h.logger.Warn("Health check: queue unreachable", zap.Error(err))
		queueStatus = "unavailable"
	} else {
		metrics.QueueDepth.Set(float64(depth))
	}
	if err := h.pingDB(ctx); err != nil {
		h.logger.Warn("Health check: database unreachable", zap.Error(err))
		dbStatus = "unavailable"
	}

	if queueStatus != "ok" || dbStatus != "ok" {
		problem := apierrors.NewServiceUnavailableError("a dependency is unavailable", c.Request.URL.Path).
			WithExtra("queue", queueStatus).
			WithExtra("database", dbStatus)
		responses.Error(c, problem)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"queue":       queueStatus,
		"queue_depth": depth,
		"database":    dbStatus,
		"time":        time.Now().UTC(),
	})
}
