// Package bootstrap opens the backing services named in the configuration
// and assembles the analysis service on top of them.  Both binaries share it.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turtacn/CureAnalytics/internal/application/analysis"
	"github.com/turtacn/CureAnalytics/internal/config"
	neo4jdb "github.com/turtacn/CureAnalytics/internal/infrastructure/database/neo4j"
	neo4jrepo "github.com/turtacn/CureAnalytics/internal/infrastructure/database/neo4j/repositories"
	"github.com/turtacn/CureAnalytics/internal/infrastructure/database/postgres"
	pgrepo "github.com/turtacn/CureAnalytics/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/CureAnalytics/internal/infrastructure/database/redis"
	"github.com/turtacn/CureAnalytics/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/CureAnalytics/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CureAnalytics/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/CureAnalytics/internal/infrastructure/search/opensearch"
	"github.com/turtacn/CureAnalytics/internal/infrastructure/storage/minio"
	icommon "github.com/turtacn/CureAnalytics/internal/intelligence/common"
	"github.com/turtacn/CureAnalytics/internal/intelligence/pipeline"
)

const connectTimeout = 30 * time.Second

// Infrastructure holds every opened backing service.  Optional services are
// nil when their section of the configuration is empty.
type Infrastructure struct {
	Config    *config.Config
	Logger    logging.Logger
	Collector prometheus.MetricsCollector
	Metrics   *prometheus.AppMetrics

	Pool   *pgxpool.Pool
	Papers *pgrepo.PaperRepository

	Redis    *redis.Client
	Cache    *redis.AnalysisCache
	Producer *kafka.Producer
	Search   *opensearch.Client
	Index    *opensearch.PaperIndex
	Neo4j    *neo4jdb.Driver
	Graph    *neo4jrepo.InteractionRepository
	MinIO    *minio.Client
	Archive  *minio.ReportArchive

	closers []func(context.Context) error
}

// Open connects to PostgreSQL and to every optional service the
// configuration enables.  source names the emitting binary on published
// events.  On error everything already opened is closed again.
func Open(ctx context.Context, cfg *config.Config, source string, log logging.Logger) (_ *Infrastructure, err error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	infra := &Infrastructure{Config: cfg, Logger: log}
	defer func() {
		if err != nil {
			infra.Close(context.Background())
		}
	}()

	infra.Collector, err = prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace: "cureanalytics",
		Subsystem: source,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("metrics collector: %w", err)
	}
	infra.Metrics = prometheus.NewAppMetrics(infra.Collector)

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err = infra.openPostgres(ctx); err != nil {
		return nil, err
	}
	if cfg.RedisEnabled() {
		if err = infra.openRedis(ctx); err != nil {
			return nil, err
		}
	}
	if cfg.KafkaEnabled() {
		if infra.Producer, err = kafka.NewProducer(cfg.Kafka, source, log); err != nil {
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		infra.addCloser(func(context.Context) error { return infra.Producer.Close() })
	}
	if cfg.OpenSearchEnabled() {
		if err = infra.openOpenSearch(ctx); err != nil {
			return nil, err
		}
	}
	if cfg.Neo4jEnabled() {
		if err = infra.openNeo4j(ctx); err != nil {
			return nil, err
		}
	}
	if cfg.MinIOEnabled() {
		if infra.MinIO, err = minio.NewClient(ctx, cfg.MinIO, log); err != nil {
			return nil, fmt.Errorf("minio: %w", err)
		}
		infra.addCloser(func(context.Context) error { return infra.MinIO.Close() })
		infra.Archive = minio.NewReportArchive(infra.MinIO, "reports/", log)
	}
	return infra, nil
}

func (i *Infrastructure) openPostgres(ctx context.Context) (err error) {
	db := i.Config.Database
	if db.AutoMigrate {
		if err = postgres.RunMigrations(db.DSN(), db.MigrationPath, i.Logger); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
	}
	if i.Pool, err = postgres.NewPool(ctx, db, i.Logger); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	i.addCloser(func(context.Context) error { i.Pool.Close(); return nil })
	i.Papers = pgrepo.NewPaperRepository(i.Pool, i.Logger)
	return nil
}

func (i *Infrastructure) openRedis(ctx context.Context) (err error) {
	if i.Redis, err = redis.NewClient(ctx, i.Config.Redis, i.Logger); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	i.addCloser(func(context.Context) error { return i.Redis.Close() })
	i.Cache = redis.NewAnalysisCache(i.Redis, i.Logger,
		redis.WithPrefix(i.Config.Redis.KeyPrefix+"analysis:"),
		redis.WithDefaultTTL(i.Config.Analysis.CacheTTL))
	return nil
}

func (i *Infrastructure) openOpenSearch(ctx context.Context) (err error) {
	if i.Search, err = opensearch.NewClient(ctx, i.Config.OpenSearch, opensearch.ClientOptions{}, i.Logger); err != nil {
		return fmt.Errorf("opensearch: %w", err)
	}
	i.addCloser(func(context.Context) error { return i.Search.Close() })
	i.Index = opensearch.NewPaperIndex(i.Search, i.Config.OpenSearch.IndexPrefix, i.Logger)
	if err = i.Index.EnsureIndex(ctx); err != nil {
		return fmt.Errorf("opensearch index: %w", err)
	}
	return nil
}

func (i *Infrastructure) openNeo4j(ctx context.Context) (err error) {
	if i.Neo4j, err = neo4jdb.NewDriver(ctx, i.Config.Neo4j, i.Logger); err != nil {
		return fmt.Errorf("neo4j: %w", err)
	}
	i.addCloser(i.Neo4j.Close)
	i.Graph = neo4jrepo.NewInteractionRepository(i.Neo4j, i.Logger)
	if err = i.Graph.EnsureConstraints(ctx); err != nil {
		return fmt.Errorf("neo4j constraints: %w", err)
	}
	return nil
}

func (i *Infrastructure) addCloser(fn func(context.Context) error) {
	i.closers = append(i.closers, fn)
}

// Service builds the analyzer and the analysis service over the opened
// services.  The returned closer releases the analyzer's model client.
func (i *Infrastructure) Service() (analysis.Service, io.Closer, error) {
	var em icommon.ExtractionMetrics
	if i.Collector != nil {
		m, err := icommon.NewPrometheusExtractionMetrics(i.Collector.Registerer())
		if err != nil {
			return nil, nil, fmt.Errorf("extraction metrics: %w", err)
		}
		em = m
	}
	analyzer, closer, err := analysis.NewAnalyzer(i.Config.Analysis, em, i.Logger)
	if err != nil {
		return nil, nil, err
	}
	svc, err := analysis.NewService(i.Deps(analyzer), analysis.ConfigFrom(i.Config.Analysis))
	if err != nil {
		_ = closer.Close()
		return nil, nil, err
	}
	return svc, closer, nil
}

// Deps maps the opened services onto the analysis ports.  Absent services
// stay nil interfaces so the service skips them.
func (i *Infrastructure) Deps(analyzer pipeline.Analyzer) analysis.Deps {
	deps := analysis.Deps{Analyzer: analyzer, Logger: i.Logger}
	if i.Metrics != nil {
		deps.Metrics = i.Metrics
	}
	if i.Papers != nil {
		deps.Repo = i.Papers
		deps.Index = i.Papers
	}
	if i.Index != nil {
		deps.Index = i.Index
	}
	if i.Cache != nil {
		deps.Cache = i.Cache
	}
	if i.Producer != nil {
		deps.Publisher = i.Producer
	}
	if i.Graph != nil {
		deps.Graph = i.Graph
	}
	if i.Archive != nil {
		deps.Archive = i.Archive
	}
	return deps
}

// Close releases services in reverse order of opening.
func (i *Infrastructure) Close(ctx context.Context) {
	for n := len(i.closers) - 1; n >= 0; n-- {
		if err := i.closers[n](ctx); err != nil {
			i.Logger.Warn("closing infrastructure", logging.Err(err))
		}
	}
	i.closers = nil
}
