package server

import (
	"context"
	"fmt"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	health "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

type Option func(*Options)

type Options struct {
	port              int
	listener          net.Listener
	logger            *zap.Logger
	reflection        bool
	unaryInterceptors []grpc.UnaryServerInterceptor
	enableLogging     bool
}

func WithPort(port int) Option {
	return func(o *Options) {
		o.port = port
	}
}

// WithListener serves on lis instead of opening a TCP port.
func WithListener(lis net.Listener) Option {
	return func(o *Options) {
		o.listener = lis
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		o.logger = logger
	}
}

func WithReflection(enabled bool) Option {
	return func(o *Options) {
		o.reflection = enabled
	}
}

// WithUnaryInterceptors appends interceptors that run after recovery and
// logging, in the order given.
func WithUnaryInterceptors(interceptors ...grpc.UnaryServerInterceptor) Option {
	return func(o *Options) {
		o.unaryInterceptors = append(o.unaryInterceptors, interceptors...)
	}
}

func WithLogging(enabled bool) Option {
	return func(o *Options) {
		o.enableLogging = enabled
	}
}

type Server struct {
	grpcServer   *grpc.Server
	lis          net.Listener
	logger       *zap.Logger
	healthServer *health.Server
}

// New creates a gRPC server with health checks and panic recovery.
func New(opts ...Option) (*Server, error) {
	options := &Options{port: 50051}

	for _, opt := range opts {
		opt(options)
	}

	logger := options.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	lis := options.listener
	if lis == nil {
		if options.port < 1 || options.port > 65535 {
			return nil, fmt.Errorf("invalid port %d: must be between 1 and 65535", options.port)
		}
		var err error
		lis, err = net.Listen("tcp", fmt.Sprintf(":%d", options.port))
		if err != nil {
			return nil, fmt.Errorf("failed to listen on port %d: %w", options.port, err)
		}
	}

	interceptors := []grpc.UnaryServerInterceptor{RecoveryInterceptor(logger)}
	if options.enableLogging {
		interceptors = append(interceptors, LoggingInterceptor(logger))
	}
	interceptors = append(interceptors, options.unaryInterceptors...)

	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(interceptors...))

	if options.reflection {
		reflection.Register(grpcServer)
	}

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	return &Server{
		grpcServer:   grpcServer,
		lis:          lis,
		logger:       logger.Named("grpc-server"),
		healthServer: healthServer,
	}, nil
}

// RegisterServiceWithHealth registers a service and marks it serving.
func (s *Server) RegisterServiceWithHealth(serviceName string, registerFunc func(s grpc.ServiceRegistrar)) {
	registerFunc(s.grpcServer)

	if serviceName != "" {
		s.healthServer.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
		s.logger.Info("registered service with health check", zap.String("service", serviceName))
	}
}

// Start runs the server in a goroutine and returns immediately.
func (s *Server) Start() {
	s.logger.Info("gRPC server starting", zap.String("addr", s.lis.Addr().String()))

	go func() {
		if err := s.grpcServer.Serve(s.lis); err != nil {
			s.logger.Error("gRPC server failed", zap.Error(err))
		}
	}()
}

// Shutdown stops accepting calls and waits for in-flight ones until ctx
// is done, then forces the stop.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("gRPC server shutting down")
	s.healthServer.Shutdown()

	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("gRPC server stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("forced shutdown due to timeout")
		s.grpcServer.Stop()
		return ctx.Err()
	}
}
