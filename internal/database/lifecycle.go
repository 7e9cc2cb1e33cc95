package database

import (
	"context"
	"time"

	"github.com/GhasemiTaheri/aban-exchange/pkg/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RecordPoolStats publishes the current pool statistics for db under label name
func RecordPoolStats(db *gorm.DB, name string) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	stats := sqlDB.Stats()
	metrics.DBOpenConns.WithLabelValues(name).Set(float64(stats.OpenConnections))
	metrics.DBIdleConns.WithLabelValues(name).Set(float64(stats.Idle))
	metrics.DBInUseConns.WithLabelValues(name).Set(float64(stats.InUse))
	return nil
}

// CollectPoolStats records pool statistics every interval until ctx is done
func CollectPoolStats(ctx context.Context, db *gorm.DB, name string, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := RecordPoolStats(db, name); err != nil {
				logger.Warn("Failed to read DB pool stats", zap.String("db", name), zap.Error(err))
			}
		}
	}
}

// Ping checks database reachability within ctx
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
