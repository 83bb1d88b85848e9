// Command worker consumes paper.submitted events and periodically
// re-analyzes papers left pending or failed.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-co-op/gocron"
	"golang.org/x/sync/errgroup"

	"github.com/turtacn/CureAnalytics/internal/application/analysis"
	"github.com/turtacn/CureAnalytics/internal/bootstrap"
	"github.com/turtacn/CureAnalytics/internal/config"
	"github.com/turtacn/CureAnalytics/internal/domain/paper"
	"github.com/turtacn/CureAnalytics/internal/infrastructure/database/redis"
	"github.com/turtacn/CureAnalytics/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/CureAnalytics/internal/infrastructure/monitoring/logging"
	httpserver "github.com/turtacn/CureAnalytics/internal/interfaces/http"
	"github.com/turtacn/CureAnalytics/internal/interfaces/http/handlers"
)

const serviceName = "worker"

// Version is injected at build time.
var Version = "dev"

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.LoadOptional(configPath)
	if err != nil {
		return err
	}
	cfg.Log.ServiceName = serviceName
	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	logging.SetDefault(logger)
	bootstrap.WatchLogLevel(configPath, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting worker",
		logging.String("version", Version),
		logging.Bool("kafka", cfg.KafkaEnabled()),
		logging.Duration("reprocess_interval", cfg.Worker.ReprocessInterval))

	infra, err := bootstrap.Open(ctx, cfg, serviceName, logger)
	if err != nil {
		return err
	}
	defer infra.Close(context.Background())

	svc, analyzerCloser, err := infra.Service()
	if err != nil {
		return fmt.Errorf("analysis service: %w", err)
	}
	defer analyzerCloser.Close()

	var consumer *kafka.Consumer
	if cfg.KafkaEnabled() {
		consumer, err = newConsumer(cfg, infra, svc, logger)
		if err != nil {
			return err
		}
		defer consumer.Close()
		if err := consumer.Start(ctx); err != nil {
			return err
		}
	} else {
		logger.Warn("kafka not configured, relying on the reprocess schedule only")
	}

	job := &reprocessJob{
		svc:     svc,
		limit:   cfg.Worker.ReprocessLimit,
		timeout: cfg.Worker.ReprocessInterval,
		metrics: infra.Metrics,
		log:     logger.Named("reprocess"),
	}
	if infra.Redis != nil {
		job.lock = redis.NewMutex(infra.Redis, cfg.Redis.KeyPrefix, "reprocess", cfg.Worker.ReprocessInterval, logger)
	}
	scheduler, err := schedule(ctx, job, cfg.Worker.ReprocessInterval, logger)
	if err != nil {
		return err
	}
	defer scheduler.Stop()

	metricsSrv := httpserver.NewServer(config.ServerConfig{Port: cfg.Worker.MetricsPort}, opsRouter(infra), logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(metricsSrv.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down worker")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return metricsSrv.Stop(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("worker stopped")
	return nil
}

func newConsumer(cfg *config.Config, infra *bootstrap.Infrastructure, svc analysis.Service, logger logging.Logger) (*kafka.Consumer, error) {
	topic := kafka.Topic(cfg.Kafka.TopicPrefix, paper.EventPaperSubmitted)
	opts := []kafka.ConsumerOption{
		kafka.WithRetryPolicy(kafka.RetryPolicy{
			MaxRetries: cfg.Kafka.MaxRetries,
			Backoff:    time.Second,
			MaxBackoff: 30 * time.Second,
		}),
		kafka.WithResultHook(func(eventType string, err error) {
			infra.Metrics.RecordEvent(eventType, err)
		}),
	}
	if infra.Producer != nil {
		opts = append(opts, kafka.WithDeadLetter(infra.Producer,
			kafka.Topic(cfg.Kafka.TopicPrefix, kafka.DeadLetterSuffix)))
	}
	consumer, err := kafka.NewConsumer(cfg.Kafka, []string{topic}, logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.Subscribe(paper.EventPaperSubmitted, submittedHandler(svc, logger.Named("consumer")))
	return consumer, nil
}

// schedule starts the reprocess job on a fixed interval.  The first run
// waits one interval so startup does not race the apiserver's migrations.
func schedule(ctx context.Context, job *reprocessJob, every time.Duration, logger logging.Logger) (*gocron.Scheduler, error) {
	s := gocron.NewScheduler(time.UTC)
	_, err := s.Every(every).WaitForSchedule().SingletonMode().Do(func() {
		if err := job.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("reprocess failed", logging.Err(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule reprocess: %w", err)
	}
	s.StartAsync()
	return s, nil
}

func opsRouter(infra *bootstrap.Infrastructure) *chi.Mux {
	health := handlers.NewHealthHandler(Version, infra.ObserveHealth(), infra.HealthCheckers()...)
	r := chi.NewRouter()
	r.Get("/healthz", health.Liveness)
	r.Get("/readyz", health.Readiness)
	r.Handle("/metrics", infra.Collector.Handler())
	return r
}
