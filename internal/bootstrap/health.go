package bootstrap

import (
	"github.com/turtacn/CureAnalytics/internal/interfaces/http/handlers"
)

// HealthCheckers returns one readiness probe per opened service.
func (i *Infrastructure) HealthCheckers() []handlers.HealthChecker {
	var checks []handlers.HealthChecker
	if i.Pool != nil {
		checks = append(checks, handlers.CheckFunc{Component: "postgres", Fn: i.Pool.Ping})
	}
	if i.Redis != nil {
		checks = append(checks, handlers.CheckFunc{Component: "redis", Fn: i.Redis.Ping})
	}
	if i.Search != nil {
		checks = append(checks, handlers.CheckFunc{Component: "opensearch", Fn: i.Search.Ping})
	}
	if i.Neo4j != nil {
		checks = append(checks, handlers.CheckFunc{Component: "neo4j", Fn: i.Neo4j.HealthCheck})
	}
	if i.MinIO != nil {
		checks = append(checks, handlers.CheckFunc{Component: "minio", Fn: i.MinIO.HealthCheck})
	}
	return checks
}

// ObserveHealth feeds probe outcomes into the health gauge and any extra
// observers, e.g. the gRPC health service.
func (i *Infrastructure) ObserveHealth(extra ...handlers.HealthObserver) handlers.HealthObserver {
	return func(component string, up bool) {
		if i.Metrics != nil {
			i.Metrics.SetHealth(component, up)
		}
		for _, fn := range extra {
			fn(component, up)
		}
	}
}
