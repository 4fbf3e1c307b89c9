package grpcserver

import (
	"context"

	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/mapmyfamily/familyapi/internal/logger"
)

// ServiceName is the name clients may pass to Check besides the empty
// overall-server name.
const ServiceName = "familyapi.DocumentService"

type pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports SERVING while the document store answers pings.
type HealthHandler struct {
	healthpb.UnimplementedHealthServer
	svc pinger
}

func NewHealthHandler(svc pinger) *HealthHandler {
	return &HealthHandler{svc: svc}
}

func (h *HealthHandler) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if name := req.GetService(); name != "" && name != ServiceName {
		return nil, status.Errorf(codes.NotFound, "unknown service %q", name)
	}

	if err := h.svc.Ping(ctx); err != nil {
		logger.Log.Warnw("document store ping failed", "error", err)
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
	}

	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}
