package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GhasemiTaheri/aban-exchange/api"
	"github.com/GhasemiTaheri/aban-exchange/internal/config"
	"github.com/GhasemiTaheri/aban-exchange/internal/database"
	"github.com/GhasemiTaheri/aban-exchange/internal/ledger"
	"github.com/GhasemiTaheri/aban-exchange/internal/notify"
	"github.com/GhasemiTaheri/aban-exchange/internal/orderqueue"
	"github.com/GhasemiTaheri/aban-exchange/internal/redis"
	"github.com/GhasemiTaheri/aban-exchange/internal/scheduler"
	"github.com/GhasemiTaheri/aban-exchange/internal/settlement"
	"github.com/GhasemiTaheri/aban-exchange/pkg/logger"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Create logger
	zapLogger, err := logger.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	if err := run(cfg, zapLogger); err != nil {
		zapLogger.Fatal("Exchange stopped with error", zap.Error(err))
	}
	zapLogger.Info("Server exited properly")
}

func run(cfg *config.Config, zapLogger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Ledger database
	db, err := database.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(db); err != nil {
			zapLogger.Error("Failed to close database", zap.Error(err))
		}
	}()
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			return err
		}
	}

	// Queue store
	redisClient, err := redis.NewClient(ctx, redisConfig(cfg.Redis), zapLogger)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			zapLogger.Error("Failed to close Redis client", zap.Error(err))
		}
	}()
	queue := orderqueue.NewRedisQueue(redisClient.Redis(), cfg.Redis.QueueKey, cfg.Redis.OpTimeout, zapLogger)

	// Settlement engine
	store := ledger.NewStore(db, ledger.Options{
		TxTimeout:       cfg.Engine.TxTimeout,
		LockTimeout:     cfg.Engine.LockTimeout,
		InsertBatchSize: cfg.Engine.InsertBatchSize,
	}, zapLogger)
	rounding, err := settlement.ParseRounding(cfg.Engine.Rounding)
	if err != nil {
		return err
	}
	engine := settlement.NewEngine(queue, store, rounding, zapLogger)
	intake := settlement.NewIntake(queue, zapLogger)

	// Notifications
	dispatcher := newDispatcher(cfg.Kafka, zapLogger)
	defer func() {
		if err := dispatcher.Close(); err != nil {
			zapLogger.Error("Failed to close notification dispatcher", zap.Error(err))
		}
	}()

	jobs := settlement.NewJobs(engine, dispatcher, settlement.JobConfig{
		BatchSize:      cfg.Engine.BatchSize,
		TokenPrice:     cfg.Engine.TokenPrice,
		MinOrdersValue: cfg.Engine.MinOrdersValue,
	}, zapLogger)

	sched := scheduler.New(zapLogger,
		scheduler.Task{Name: settlement.JobHandleBatch, Interval: cfg.Engine.RequestInterval, Run: jobs.HandleBatchOfRequests},
		scheduler.Task{Name: settlement.JobAccumulateOrders, Interval: cfg.Engine.FillerInterval, Run: jobs.AccumulatePlacedOrders},
	)
	if err := sched.Start(ctx); err != nil {
		return err
	}

	// DB pool metrics collection every 30s
	go database.CollectPoolStats(ctx, db, cfg.Database.Driver, 30*time.Second, zapLogger)

	// HTTP intake API
	apiServer := api.NewServer(zapLogger, cfg.JWT.Secret, api.Dependencies{
		Intake: intake,
		Queue:  queue,
		PingDB: func(ctx context.Context) error { return database.Ping(ctx, db) },
	})
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- apiServer.Start(addr, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout)
	}()

	// Wait for interrupt or a fatal server error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	var runErr error
	select {
	case sig := <-quit:
		zapLogger.Info("Shutting down server...", zap.String("signal", sig.String()))
	case runErr = <-serverErr:
		zapLogger.Error("API server failed", zap.Error(runErr))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Failed to shut down API server", zap.Error(err))
	}

	cancel()
	if err := sched.Stop(); err != nil {
		zapLogger.Error("Failed to stop scheduler", zap.Error(err))
	}
	return runErr
}

func redisConfig(c config.RedisConfig) *redis.Config {
	rc := redis.DefaultConfig()
	rc.Addr = c.Address
	rc.Password = c.Password
	rc.DB = c.DB
	rc.PoolSize = c.PoolSize
	rc.DialTimeout = c.DialTimeout
	rc.ReadTimeout = c.ReadTimeout
	rc.WriteTimeout = c.WriteTimeout

	switch {
	case c.MasterName != "":
		rc.EnableSentinel = true
		rc.MasterName = c.MasterName
		rc.SentinelAddrs = c.Addresses
	case len(c.Addresses) > 0:
		rc.EnableCluster = true
		rc.ClusterAddrs = c.Addresses
	}
	return rc
}

func newDispatcher(c config.KafkaConfig, zapLogger *zap.Logger) notify.Dispatcher {
	if !c.Enabled {
		zapLogger.Info("Kafka disabled, notifications go to the log")
		return notify.NewLogDispatcher(zapLogger)
	}
	kc := notify.DefaultKafkaConfig()
	kc.Brokers = c.Brokers
	kc.TopicPrefix = c.TopicPrefix
	kc.WriteTimeout = c.WriteTimeout
	return notify.NewKafkaDispatcher(kc, zapLogger)
}
