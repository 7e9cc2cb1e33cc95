package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. ABAN_ENGINE_BATCH_SIZE
const EnvPrefix = "ABAN"

// DefaultPaths are probed in order when no explicit config file is given
var DefaultPaths = []string{
	"./config.yaml",
	"./configs/config.yaml",
	"/etc/aban/config.yaml",
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port" validate:"gt=0,lte=65535"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig selects and tunes the ledger database
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver" validate:"oneof=postgres sqlite"`
	DSN             string `mapstructure:"dsn" validate:"required"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // seconds
	AutoMigrate     bool   `mapstructure:"auto_migrate"`
	LogSQL          bool   `mapstructure:"log_sql"`
}

// RedisConfig points at the intake queue store
type RedisConfig struct {
	Address      string        `mapstructure:"address"`
	Addresses    []string      `mapstructure:"addresses"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	MasterName   string        `mapstructure:"master_name"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	QueueKey     string        `mapstructure:"queue_key" validate:"required"`
	OpTimeout    time.Duration `mapstructure:"op_timeout" validate:"gt=0"`
}

// KafkaConfig configures notification dispatch
type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers" validate:"required_if=Enabled true"`
	TopicPrefix  string        `mapstructure:"topic_prefix"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// JWTConfig verifies bearer tokens on the intake API
type JWTConfig struct {
	Secret string `mapstructure:"secret" validate:"required"`
}

// EngineConfig holds the settlement engine knobs. All integers must be positive.
type EngineConfig struct {
	BatchSize       int           `mapstructure:"batch_size" validate:"gt=0"`
	TokenPrice      int64         `mapstructure:"token_price" validate:"gt=0"`
	MinOrdersValue  int64         `mapstructure:"min_orders_value" validate:"gt=0"`
	Rounding        string        `mapstructure:"rounding" validate:"oneof=per_order aggregate"`
	RequestInterval time.Duration `mapstructure:"request_interval" validate:"gt=0"`
	FillerInterval  time.Duration `mapstructure:"filler_interval" validate:"gt=0"`
	TxTimeout       time.Duration `mapstructure:"tx_timeout" validate:"gt=0"`
	LockTimeout     time.Duration `mapstructure:"lock_timeout" validate:"gte=0"`
	InsertBatchSize int           `mapstructure:"insert_batch_size" validate:"gt=0"`
}

// Config represents the application configuration
type Config struct {
	LogLevel string         `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Engine   EngineConfig   `mapstructure:"engine"`
}

// setDefaults registers every default with viper so env overrides work for all keys
func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "host=localhost user=postgres password=postgres dbname=aban_exchange port=5432 sslmode=disable")
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", 3600)
	v.SetDefault("database.auto_migrate", false)
	v.SetDefault("database.log_sql", false)

	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.addresses", []string{})
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.master_name", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 500*time.Millisecond)
	v.SetDefault("redis.write_timeout", 500*time.Millisecond)
	v.SetDefault("redis.queue_key", "recieve_order_queue")
	v.SetDefault("redis.op_timeout", 2*time.Second)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic_prefix", "aban")
	v.SetDefault("kafka.write_timeout", 5*time.Second)

	v.SetDefault("jwt.secret", "")

	v.SetDefault("engine.batch_size", 100)
	v.SetDefault("engine.token_price", 4)
	v.SetDefault("engine.min_orders_value", 10)
	v.SetDefault("engine.rounding", "per_order")
	v.SetDefault("engine.request_interval", 500*time.Millisecond)
	v.SetDefault("engine.filler_interval", 10*time.Second)
	v.SetDefault("engine.tx_timeout", 5*time.Second)
	v.SetDefault("engine.lock_timeout", 2*time.Second)
	v.SetDefault("engine.insert_batch_size", 500)
}

// LoadConfig merges every existing file in paths (or DefaultPaths) over the
// defaults, then applies ABAN_* environment overrides.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if len(paths) == 0 {
		paths = DefaultPaths
	}
	for _, path := range paths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct tags on the whole configuration
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("configuration validation failed: kafka enabled without brokers")
	}
	return nil
}
