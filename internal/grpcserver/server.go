// Package grpcserver exposes the standard gRPC health service backed by the
// document store.
package grpcserver

import (
	"net"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/mapmyfamily/familyapi/internal/grpcserver/interceptor"
)

func NewGRPCServer(addr string, handler *HealthHandler) (*grpc.Server, net.Listener, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, err
	}

	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			interceptor.UnaryLoggingInterceptor([]string{
				healthpb.Health_Check_FullMethodName,
			}),
		),
	)
	healthpb.RegisterHealthServer(server, handler)

	return server, lis, nil
}
