// Package grpc serves the internal operator API, memeforge.ops.v1.Ops, next
// to the standard gRPC health service.
package grpc

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dmitrijs2005/memeforge/internal/logging"
	"github.com/dmitrijs2005/memeforge/internal/server/models"
	"github.com/dmitrijs2005/memeforge/internal/server/services"
)

type Seeder interface {
	Generate(ctx context.Context, req services.GenerateRequest) (*models.Meme, error)
}

type AgentLookup interface {
	Profile(ctx context.Context, agentID string) (*services.AgentProfile, error)
}

type OrphanReconciler interface {
	ReconcileOrphans(ctx context.Context, grace time.Duration) (int, error)
}

type OpsGRPCServer struct {
	address      string
	seeder       Seeder
	agents       AgentLookup
	reconciler   OrphanReconciler
	defaultGrace time.Duration
	logger       logging.Logger
	jwtSecret    []byte
}

func NewOpsGRPCServer(a string, l logging.Logger, seeder Seeder, agents AgentLookup, r OrphanReconciler,
	defaultGrace time.Duration, secretKey string) *OpsGRPCServer {
	return &OpsGRPCServer{
		address:      a,
		logger:       l.With("module", "grpc_server"),
		seeder:       seeder,
		agents:       agents,
		reconciler:   r,
		defaultGrace: defaultGrace,
		jwtSecret:    []byte(secretKey),
	}
}

// newGRPCServer builds a grpc.Server with the ops and health services
// registered.
func (s *OpsGRPCServer) newGRPCServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.operatorInterceptor))
	srv.RegisterService(&OpsServiceDesc, s)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(OpsServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	return srv
}

func (s *OpsGRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.serve(ctx, listen)
}

func (s *OpsGRPCServer) serve(ctx context.Context, listen net.Listener) error {
	srv := s.newGRPCServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	return srv.Serve(listen)
}
