package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Config holds Redis configuration
type Config struct {
	// Connection settings
	Addr     string
	Password string
	DB       int

	// Pool settings
	PoolSize        int
	MinIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PoolTimeout     time.Duration

	// Operational settings
	MaxRetries      int
	MinRetryBackoff time.Duration
	MaxRetryBackoff time.Duration

	// Timeout settings
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Cluster settings
	EnableCluster bool
	ClusterAddrs  []string

	// Sentinel settings
	EnableSentinel   bool
	SentinelAddrs    []string
	SentinelPassword string
	MasterName       string
}

// DefaultConfig returns default Redis configuration for the intake queue
func DefaultConfig() *Config {
	return &Config{
		Addr: "localhost:6379",

		PoolSize:        20,
		MinIdleConns:    2,
		ConnMaxLifetime: 24 * time.Hour,
		ConnMaxIdleTime: 5 * time.Minute,
		PoolTimeout:     4 * time.Second,

		MaxRetries:      3,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,

		DialTimeout:  5 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	}
}

// Client is the process-wide Redis handle. It is built once at startup,
// passed to whoever needs it and closed at shutdown.
type Client struct {
	rdb    redis.UniversalClient
	config *Config
	logger *zap.Logger
}

// NewClient connects according to config and verifies the connection with PING
func NewClient(ctx context.Context, config *Config, logger *zap.Logger) (*Client, error) {
	var rdb redis.UniversalClient

	switch {
	case config.EnableCluster:
		rdb = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:           config.ClusterAddrs,
			Password:        config.Password,
			PoolSize:        config.PoolSize,
			MinIdleConns:    config.MinIdleConns,
			ConnMaxLifetime: config.ConnMaxLifetime,
			ConnMaxIdleTime: config.ConnMaxIdleTime,
			PoolTimeout:     config.PoolTimeout,
			MaxRetries:      config.MaxRetries,
			MinRetryBackoff: config.MinRetryBackoff,
			MaxRetryBackoff: config.MaxRetryBackoff,
			DialTimeout:     config.DialTimeout,
			ReadTimeout:     config.ReadTimeout,
			WriteTimeout:    config.WriteTimeout,
		})
	case config.EnableSentinel:
		rdb = redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:       config.MasterName,
			SentinelAddrs:    config.SentinelAddrs,
			SentinelPassword: config.SentinelPassword,
			Password:         config.Password,
			DB:               config.DB,
			PoolSize:         config.PoolSize,
			MinIdleConns:     config.MinIdleConns,
			ConnMaxLifetime:  config.ConnMaxLifetime,
			ConnMaxIdleTime:  config.ConnMaxIdleTime,
			PoolTimeout:      config.PoolTimeout,
			MaxRetries:       config.MaxRetries,
			MinRetryBackoff:  config.MinRetryBackoff,
			MaxRetryBackoff:  config.MaxRetryBackoff,
			DialTimeout:      config.DialTimeout,
			ReadTimeout:      config.ReadTimeout,
			WriteTimeout:     config.WriteTimeout,
		})
	default:
		rdb = redis.NewClient(&redis.Options{
			Addr:            config.Addr,
			Password:        config.Password,
			DB:              config.DB,
			PoolSize:        config.PoolSize,
			MinIdleConns:    config.MinIdleConns,
			ConnMaxLifetime: config.ConnMaxLifetime,
			ConnMaxIdleTime: config.ConnMaxIdleTime,
			PoolTimeout:     config.PoolTimeout,
			MaxRetries:      config.MaxRetries,
			MinRetryBackoff: config.MinRetryBackoff,
			MaxRetryBackoff: config.MaxRetryBackoff,
			DialTimeout:     config.DialTimeout,
			ReadTimeout:     config.ReadTimeout,
			WriteTimeout:    config.WriteTimeout,
		})
	}

	pingCtx, cancel := context.WithTimeout(ctx, config.DialTimeout)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis client connected",
		zap.String("addr", config.Addr),
		zap.Int("db", config.DB),
		zap.Int("pool_size", config.PoolSize),
		zap.Bool("cluster_mode", config.EnableCluster),
		zap.Bool("sentinel_mode", config.EnableSentinel),
	)

	return &Client{
		rdb:    rdb,
		config: config,
		logger: logger,
	}, nil
}

// Redis exposes the underlying go-redis client
func (c *Client) Redis() redis.UniversalClient {
	return c.rdb
}

// Close releases every pooled connection
func (c *Client) Close() error {
	if err := c.rdb.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}
	c.logger.Info("Redis client closed")
	return nil
}
