// Command apiserver serves the analysis API over HTTP and the health service
// over gRPC.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/CureAnalytics/internal/bootstrap"
	"github.com/turtacn/CureAnalytics/internal/config"
	"github.com/turtacn/CureAnalytics/internal/infrastructure/monitoring/logging"
	grpcserver "github.com/turtacn/CureAnalytics/internal/interfaces/grpc"
	httpserver "github.com/turtacn/CureAnalytics/internal/interfaces/http"
	"github.com/turtacn/CureAnalytics/internal/interfaces/http/handlers"
	"github.com/turtacn/CureAnalytics/internal/interfaces/http/middleware"
)

const serviceName = "apiserver"

// Version is injected at build time.
var Version = "dev"

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "apiserver: %v\n", err)
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

	logger.Info("starting apiserver",
		logging.String("version", Version),
		logging.Int("http_port", cfg.Server.Port),
		logging.Int("grpc_port", cfg.Server.GRPCPort))

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

	var grpcSrv *grpcserver.Server
	if cfg.Server.GRPCPort != 0 {
		grpcSrv, err = grpcserver.NewServer(fmt.Sprintf(":%d", cfg.Server.GRPCPort),
			grpcserver.WithLogger(logger),
			grpcserver.WithMetrics(infra.Metrics),
			grpcserver.WithMaxMsgSize(int(cfg.Server.MaxBodySize)),
			grpcserver.WithGracefulTimeout(cfg.Server.ShutdownTimeout))
		if err != nil {
			return err
		}
	}

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimit)
	router := httpserver.NewRouter(httpserver.RouterConfig{
		AnalysisHandler:  handlers.NewAnalysisHandler(svc, cfg.Server.MaxBodySize),
		HealthHandler:    handlers.NewHealthHandler(Version, observer(infra, grpcSrv), infra.HealthCheckers()...),
		RateLimiter:      limiter,
		CORSOrigins:      cfg.Server.CORSOrigins,
		APIKeys:          cfg.Server.APIKeys,
		Logging:          middleware.DefaultLoggingConfig(),
		Logger:           logger,
		MetricsCollector: infra.Collector,
		Metrics:          infra.Metrics,
	})
	httpSrv := httpserver.NewServer(cfg.Server, router, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(httpSrv.Start)
	if grpcSrv != nil {
		g.Go(grpcSrv.Start)
	}
	if limiter != nil {
		g.Go(func() error {
			limiter.Run(gctx, cfg.Server.RateLimit.CleanupInterval)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down apiserver")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout+5*time.Second)
		defer cancel()
		if grpcSrv != nil {
			if err := grpcSrv.Stop(shutdownCtx); err != nil {
				logger.Warn("grpc shutdown", logging.Err(err))
			}
		}
		return httpSrv.Stop(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("apiserver stopped")
	return nil
}
