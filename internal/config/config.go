// Package config defines the configuration structures for CureAnalytics.
// Loading lives in loader.go and defaults in defaults.go; this file holds
// only plain data types and validation.
//
// Optional backends (redis, kafka, opensearch, neo4j, minio, the entity
// tagger) are enabled by setting their address and left out otherwise.
package config

import (
	"fmt"
	"time"

	"github.com/turtacn/CureAnalytics/internal/infrastructure/monitoring/logging"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP and gRPC server tunables.
type ServerConfig struct {
	Port            int             `mapstructure:"port"`
	GRPCPort        int             `mapstructure:"grpc_port"`
	ReadTimeout     time.Duration   `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration   `mapstructure:"write_timeout"`
	MaxBodySize     int64           `mapstructure:"max_body_size"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string        `mapstructure:"cors_origins"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
	// APIKeys, when non-empty, are required on /api routes as X-API-Key.
	APIKeys         []string        `mapstructure:"api_keys"`
}

// RateLimitConfig configures the per-client token buckets.  A zero
// RequestsPerSecond disables rate limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int64         `mapstructure:"burst"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
	ClientTTL         time.Duration `mapstructure:"client_ttl"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	MigrationPath   string        `mapstructure:"migration_path"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN renders the connection string understood by pgx and golang-migrate.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig holds Kafka producer/consumer parameters.
type KafkaConfig struct {
	Brokers         []string      `mapstructure:"brokers"`
	GroupID         string        `mapstructure:"group_id"`
	TopicPrefix     string        `mapstructure:"topic_prefix"`
	AutoOffsetReset string        `mapstructure:"auto_offset_reset"` // "earliest" | "latest"
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	BatchSize       int           `mapstructure:"batch_size"`
	MaxRetries      int           `mapstructure:"max_retries"`
}

// OpenSearchConfig holds OpenSearch cluster connection parameters.
type OpenSearchConfig struct {
	Addresses          []string `mapstructure:"addresses"`
	User               string   `mapstructure:"user"`
	Password           string   `mapstructure:"password"`
	InsecureSkipVerify bool     `mapstructure:"insecure_skip_verify"`
	IndexPrefix        string   `mapstructure:"index_prefix"`
}

// Neo4jConfig holds interaction-graph connection parameters.
type Neo4jConfig struct {
	URI                   string        `mapstructure:"uri"`
	User                  string        `mapstructure:"user"`
	Password              string        `mapstructure:"password"`
	Database              string        `mapstructure:"database"`
	MaxConnectionPoolSize int           `mapstructure:"max_connection_pool_size"`
	ConnectionTimeout     time.Duration `mapstructure:"connection_timeout"`
}

// MinIOConfig holds object-storage parameters for the report archive.
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// AnalysisConfig tunes the analysis engine and service.
type AnalysisConfig struct {
	BatchConcurrency int           `mapstructure:"batch_concurrency"`
	ItemTimeout      time.Duration `mapstructure:"item_timeout"`
	CacheTTL         time.Duration `mapstructure:"cache_ttl"`
	MaxTextLength    int           `mapstructure:"max_text_length"`
	ArchiveReports   bool          `mapstructure:"archive_reports"`

	// TaggerEndpoint is the base URL of the entity-tagger model server.
	// Empty means lexicon-only extraction.
	TaggerEndpoint    string        `mapstructure:"tagger_endpoint"`
	TaggerModel       string        `mapstructure:"tagger_model"`
	TaggerTimeout     time.Duration `mapstructure:"tagger_timeout"`
	TaggerInitTimeout time.Duration `mapstructure:"tagger_init_timeout"`

	HighTierJournals   []string `mapstructure:"high_tier_journals"`
	MediumTierJournals []string `mapstructure:"medium_tier_journals"`
}

// WorkerConfig holds background-worker parameters.
type WorkerConfig struct {
	ReprocessInterval time.Duration `mapstructure:"reprocess_interval"`
	ReprocessLimit    int           `mapstructure:"reprocess_limit"`
	MetricsPort       int           `mapstructure:"metrics_port"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure.
type Config struct {
	Server     ServerConfig      `mapstructure:"server"`
	Database   DatabaseConfig    `mapstructure:"database"`
	Redis      RedisConfig       `mapstructure:"redis"`
	Kafka      KafkaConfig       `mapstructure:"kafka"`
	OpenSearch OpenSearchConfig  `mapstructure:"opensearch"`
	Neo4j      Neo4jConfig       `mapstructure:"neo4j"`
	MinIO      MinIOConfig       `mapstructure:"minio"`
	Analysis   AnalysisConfig    `mapstructure:"analysis"`
	Worker     WorkerConfig      `mapstructure:"worker"`
	Log        logging.LogConfig `mapstructure:"log"`
}

// RedisEnabled reports whether the analysis cache is configured.
func (c *Config) RedisEnabled() bool { return c.Redis.Addr != "" }

// KafkaEnabled reports whether the message bus is configured.
func (c *Config) KafkaEnabled() bool { return len(c.Kafka.Brokers) > 0 }

// OpenSearchEnabled reports whether the search index is configured.
func (c *Config) OpenSearchEnabled() bool { return len(c.OpenSearch.Addresses) > 0 }

// Neo4jEnabled reports whether the interaction graph is configured.
func (c *Config) Neo4jEnabled() bool { return c.Neo4j.URI != "" }

// MinIOEnabled reports whether the report archive is configured.
func (c *Config) MinIOEnabled() bool { return c.MinIO.Endpoint != "" && c.MinIO.Bucket != "" }

// TaggerEnabled reports whether a model server is configured for tagging.
func (c *Config) TaggerEnabled() bool { return c.Analysis.TaggerEndpoint != "" }

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of a defaulted Config.  It returns
// the first problem found; binaries treat any error as fatal.
func (c *Config) Validate() error {
	if err := validPort("server.port", c.Server.Port); err != nil {
		return err
	}
	if c.Server.GRPCPort != 0 {
		if err := validPort("server.grpc_port", c.Server.GRPCPort); err != nil {
			return err
		}
		if c.Server.GRPCPort == c.Server.Port {
			return fmt.Errorf("config: server.grpc_port must differ from server.port")
		}
	}
	if c.Server.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("config: server.rate_limit.requests_per_second must be ≥ 0")
	}

	if c.Database.Host == "" {
		return fmt.Errorf("config: database.host is required")
	}
	if err := validPort("database.port", c.Database.Port); err != nil {
		return err
	}
	if c.Database.User == "" {
		return fmt.Errorf("config: database.user is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("config: database.db_name is required")
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("config: database.max_conns must be ≥ 1, got %d", c.Database.MaxConns)
	}

	if c.Redis.DB < 0 {
		return fmt.Errorf("config: redis.db must be ≥ 0, got %d", c.Redis.DB)
	}
	if c.KafkaEnabled() && c.Kafka.GroupID == "" {
		return fmt.Errorf("config: kafka.group_id is required when brokers are set")
	}
	switch c.Kafka.AutoOffsetReset {
	case "", "earliest", "latest":
	default:
		return fmt.Errorf("config: kafka.auto_offset_reset %q is invalid; expected earliest|latest", c.Kafka.AutoOffsetReset)
	}
	if c.MinIO.Endpoint != "" && c.MinIO.Bucket == "" {
		return fmt.Errorf("config: minio.bucket is required when endpoint is set")
	}
	if c.TaggerEnabled() && c.Analysis.TaggerModel == "" {
		return fmt.Errorf("config: analysis.tagger_model is required when tagger_endpoint is set")
	}

	if c.Analysis.BatchConcurrency < 1 {
		return fmt.Errorf("config: analysis.batch_concurrency must be ≥ 1, got %d", c.Analysis.BatchConcurrency)
	}
	if c.Analysis.MaxTextLength < 1 {
		return fmt.Errorf("config: analysis.max_text_length must be ≥ 1, got %d", c.Analysis.MaxTextLength)
	}
	if c.Worker.ReprocessLimit < 1 {
		return fmt.Errorf("config: worker.reprocess_limit must be ≥ 1, got %d", c.Worker.ReprocessLimit)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}
	return nil
}

func validPort(key string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("config: %s %d is out of range [1, 65535]", key, port)
	}
	return nil
}
