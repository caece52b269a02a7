package httpapi

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/research-core/core-permissions/internal/obs"
)

// NewGRPCServer returns a gRPC server exposing the standard health service,
// mirroring /readyz for infrastructure that probes over gRPC.
func NewGRPCServer() (*grpc.Server, *health.Server) {
	srv := grpc.NewServer()
	h := health.NewServer()
	h.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, h)
	return srv, h
}

// WatchReadiness keeps the gRPC health status in sync with the readiness
// probe until ctx is done.
func WatchReadiness(ctx context.Context, rp ReadyProbe, h *health.Server, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := rp.Check(ctx); err != nil {
				obs.SetReady(false)
				h.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
			} else {
				obs.SetReady(true)
				h.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
			}
		}
	}
}
