package main

import (
	"github.com/turtacn/CureAnalytics/internal/bootstrap"
	grpcserver "github.com/turtacn/CureAnalytics/internal/interfaces/grpc"
	"github.com/turtacn/CureAnalytics/internal/interfaces/http/handlers"
)

// observer mirrors readiness probe results into the health gauge and, when
// the gRPC server runs, into its per-component health status.
func observer(infra *bootstrap.Infrastructure, grpcSrv *grpcserver.Server) handlers.HealthObserver {
	if grpcSrv == nil {
		return infra.ObserveHealth()
	}
	return infra.ObserveHealth(grpcSrv.SetServing)
}
