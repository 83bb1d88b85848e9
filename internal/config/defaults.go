package config

import "time"

const (
	DefaultServerPort = 8080
	DefaultGRPCPort   = 9090

	DefaultDBHost     = "localhost"
	DefaultDBPort     = 5432
	DefaultDBUser     = "cureanalytics"
	DefaultDBName     = "cureanalytics"
	DefaultDBMaxConns = 25

	DefaultKafkaGroupID = "cureanalytics-worker"
	DefaultTopicPrefix  = "cureanalytics."

	DefaultIndexPrefix = "cureanalytics"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultBatchConcurrency = 8
	DefaultMaxTextLength    = 1 << 20
	DefaultReprocessLimit   = 100
)

// ApplyDefaults fills zero-value fields with defaults.  Explicit settings
// always win.  Addresses of optional backends are never defaulted.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.GRPCPort == 0 {
		cfg.Server.GRPCPort = DefaultGRPCPort
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 20 * time.Second
	}
	if cfg.Server.MaxBodySize == 0 {
		cfg.Server.MaxBodySize = 4 << 20
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"*"}
	}
	if cfg.Server.RateLimit.Burst == 0 {
		cfg.Server.RateLimit.Burst = 20
	}
	if cfg.Server.RateLimit.CleanupInterval == 0 {
		cfg.Server.RateLimit.CleanupInterval = 5 * time.Minute
	}
	if cfg.Server.RateLimit.ClientTTL == 0 {
		cfg.Server.RateLimit.ClientTTL = 30 * time.Minute
	}

	// ── Database ──────────────────────────────────────────────────────────────
	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.User == "" {
		cfg.Database.User = DefaultDBUser
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = DefaultDBMaxConns
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = time.Hour
	}
	if cfg.Database.MigrationPath == "" {
		cfg.Database.MigrationPath = "file://migrations"
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	// DB 0 is both the default and a valid explicit value.
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = 20
	}
	if cfg.Redis.DialTimeout == 0 {
		cfg.Redis.DialTimeout = 5 * time.Second
	}
	if cfg.Redis.ReadTimeout == 0 {
		cfg.Redis.ReadTimeout = 3 * time.Second
	}
	if cfg.Redis.WriteTimeout == 0 {
		cfg.Redis.WriteTimeout = 3 * time.Second
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "cureanalytics:"
	}

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.TopicPrefix == "" {
		cfg.Kafka.TopicPrefix = DefaultTopicPrefix
	}
	if cfg.Kafka.AutoOffsetReset == "" {
		cfg.Kafka.AutoOffsetReset = "earliest"
	}
	if cfg.Kafka.WriteTimeout == 0 {
		cfg.Kafka.WriteTimeout = 10 * time.Second
	}
	if cfg.Kafka.BatchSize == 0 {
		cfg.Kafka.BatchSize = 100
	}
	if cfg.Kafka.MaxRetries == 0 {
		cfg.Kafka.MaxRetries = 3
	}

	// ── OpenSearch / Neo4j / MinIO ────────────────────────────────────────────
	if cfg.OpenSearch.IndexPrefix == "" {
		cfg.OpenSearch.IndexPrefix = DefaultIndexPrefix
	}
	if cfg.Neo4j.Database == "" {
		cfg.Neo4j.Database = "neo4j"
	}
	if cfg.Neo4j.MaxConnectionPoolSize == 0 {
		cfg.Neo4j.MaxConnectionPoolSize = 50
	}
	if cfg.Neo4j.ConnectionTimeout == 0 {
		cfg.Neo4j.ConnectionTimeout = 10 * time.Second
	}
	if cfg.MinIO.Region == "" {
		cfg.MinIO.Region = "us-east-1"
	}

	// ── Analysis ──────────────────────────────────────────────────────────────
	if cfg.Analysis.BatchConcurrency == 0 {
		cfg.Analysis.BatchConcurrency = DefaultBatchConcurrency
	}
	if cfg.Analysis.ItemTimeout == 0 {
		cfg.Analysis.ItemTimeout = 30 * time.Second
	}
	if cfg.Analysis.CacheTTL == 0 {
		cfg.Analysis.CacheTTL = 24 * time.Hour
	}
	if cfg.Analysis.MaxTextLength == 0 {
		cfg.Analysis.MaxTextLength = DefaultMaxTextLength
	}
	if cfg.Analysis.TaggerTimeout == 0 {
		cfg.Analysis.TaggerTimeout = 10 * time.Second
	}
	if cfg.Analysis.TaggerInitTimeout == 0 {
		cfg.Analysis.TaggerInitTimeout = 30 * time.Second
	}

	// ── Worker ────────────────────────────────────────────────────────────────
	if cfg.Worker.ReprocessInterval == 0 {
		cfg.Worker.ReprocessInterval = 15 * time.Minute
	}
	if cfg.Worker.ReprocessLimit == 0 {
		cfg.Worker.ReprocessLimit = DefaultReprocessLimit
	}
	if cfg.Worker.MetricsPort == 0 {
		cfg.Worker.MetricsPort = 9100
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
	if cfg.Log.ServiceName == "" {
		cfg.Log.ServiceName = "cureanalytics"
	}
}
