package server

import (
	"runtime/debug"

	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpc_logrus "github.com/grpc-ecosystem/go-grpc-middleware/logging/logrus"
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	grpc_ctxtags "github.com/grpc-ecosystem/go-grpc-middleware/tags"
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"

	"github.com/rishansujesh/job-registry/internal/common/errs"
	"github.com/rishansujesh/job-registry/internal/common/requestid"
	"github.com/rishansujesh/job-registry/internal/configuration"
)

// CreateGrpcServer creates a gRPC server serving srv and the standard health
// service, with request ids, logging, error translation, metrics and panic
// recovery installed.
func CreateGrpcServer(cfg configuration.GrpcConfig, srv JobServiceServer) *grpc.Server {
	logger := log.NewEntry(log.StandardLogger())

	server := grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    cfg.KeepaliveTime,
			Timeout: cfg.KeepaliveTimeout,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			PermitWithoutStream: true,
		}),
		grpc_middleware.WithUnaryServerChain(
			grpc_ctxtags.UnaryServerInterceptor(),
			grpc_prometheus.UnaryServerInterceptor,
			requestid.UnaryServerInterceptor(false),
			grpc_logrus.UnaryServerInterceptor(logger),
			errs.UnaryServerInterceptor(),
			grpc_recovery.UnaryServerInterceptor(grpc_recovery.WithRecoveryHandler(panicRecoveryHandler)),
		),
	)

	RegisterJobServiceServer(server, srv)
	healthpb.RegisterHealthServer(server, health.NewServer())

	grpc_prometheus.EnableHandlingTimeHistogram()
	grpc_prometheus.Register(server)
	return server
}

// This function is called whenever a gRPC handler panics.
func panicRecoveryHandler(p interface{}) error {
	log.Errorf("Request triggered panic with cause %v \n%s", p, string(debug.Stack()))
	return status.Errorf(codes.Internal, "Internal server error caused by %v", p)
}
