package grpc

import (
	"context"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/yunhaishang/Mallorn-sub002/internal/app"
)

// ServerConfig holds configuration for the gRPC server.
type ServerConfig struct {
	Host              string
	Port              int
	EnableReflection  bool
	EnableHealthCheck bool
}

// Address returns the server listen address.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate validates the server configuration.
func (c ServerConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	return nil
}

// Server hosts the guard interceptor chain and the standard health
// service. Business RPC registration happens through GRPCServer before
// Start is called.
type Server struct {
	config       ServerConfig
	application  *app.Application
	grpcServer   *grpc.Server
	healthServer *health.Server
	logger       *zap.Logger

	mu       sync.Mutex
	listener net.Listener
}

// NewServer creates a new gRPC server with the full interceptor chain.
func NewServer(config ServerConfig, application *app.Application, guard *Guard, logger *zap.Logger) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(BuildUnaryInterceptors(logger, guard)...),
		grpc.ChainStreamInterceptor(BuildStreamInterceptors(logger, guard)...),
	)

	server := &Server{
		config:      config,
		application: application,
		grpcServer:  grpcServer,
		logger:      logger,
	}

	if config.EnableHealthCheck {
		server.healthServer = health.NewServer()
		grpc_health_v1.RegisterHealthServer(grpcServer, server.healthServer)
	}
	if config.EnableReflection {
		reflection.Register(grpcServer)
	}

	return server, nil
}

// Start listens on the configured address and serves until Stop is
// called. It blocks.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.config.Address())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.Address(), err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.logger.Info("gRPC server starting",
		zap.String("address", listener.Addr().String()),
		zap.Bool("reflection", s.config.EnableReflection),
		zap.Bool("health_check", s.config.EnableHealthCheck),
	)

	return s.grpcServer.Serve(listener)
}

// Stop drains in-flight requests and stops the server, forcing the stop
// when the context expires first.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("gRPC server stopping")

	if s.healthServer != nil {
		s.healthServer.Shutdown()
	}

	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-ctx.Done():
		s.logger.Warn("gRPC server force stopping")
		s.grpcServer.Stop()
		return ctx.Err()
	case <-stopped:
		s.logger.Info("gRPC server stopped")
		return nil
	}
}

// Address returns the bound listen address, or "" before Start.
func (s *Server) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// GRPCServer returns the underlying grpc.Server for service
// registration.
func (s *Server) GRPCServer() *grpc.Server {
	return s.grpcServer
}

// Application returns the wired handlers for service registration.
func (s *Server) Application() *app.Application {
	return s.application
}

// SetServingStatus updates the health status for a service name.
func (s *Server) SetServingStatus(service string, serving bool) {
	if s.healthServer == nil {
		return
	}
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.healthServer.SetServingStatus(service, status)
}
