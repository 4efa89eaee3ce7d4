package app

import (
	"context"
	"database/sql"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/godilite/feedback-server/internal/auth"
	"github.com/godilite/feedback-server/internal/config"
	handler "github.com/godilite/feedback-server/internal/grpc"
	"github.com/godilite/feedback-server/internal/repository"
	"github.com/godilite/feedback-server/internal/service"
	"github.com/godilite/feedback-server/pkg/cache"
	dbbuilder "github.com/godilite/feedback-server/pkg/database"
	grpcsrv "github.com/godilite/feedback-server/pkg/grpc/server"

	"go.uber.org/zap"
	"google.golang.org/grpc"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	logger     *zap.Logger
	dbPool     *sql.DB
	cache      handler.Cacher
	grpcServer *grpcsrv.Server
}

// NewApp wires storage, cache, services and the gRPC server. serverOpts are
// applied after the configured ones.
func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, serverOpts ...grpcsrv.Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	dbPool, err := dbbuilder.New(ctx,
		dbbuilder.WithDriver(cfg.DBDriver),
		dbbuilder.WithDataSource(cfg.DBPath),
	)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}
	logger.Info("database pool initialized", zap.String("driver", cfg.DBDriver))

	if err := repository.Migrate(ctx, dbPool); err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	var cacher handler.Cacher
	if cfg.CacheEnabled {
		cacheClient, err := cache.New(ctx,
			cache.WithAddress(cfg.RedisAddr),
			cache.WithPassword(cfg.RedisPassword),
			cache.WithDB(cfg.RedisDB),
		)
		if err != nil {
			dbPool.Close()
			return nil, fmt.Errorf("cache init failed: %w", err)
		}
		cacher = cacheClient
		logger.Info("cache client initialized", zap.String("addr", cfg.RedisAddr))
	} else {
		logger.Info("report cache disabled")
	}

	feedbackRepo := repository.NewFeedbackRepository(dbPool, cfg.DBDriver)
	configRepo := repository.NewConfigRepository(dbPool, cfg.DBDriver)

	sessions := service.NewSessionService(configRepo, cfg.DefaultRound, logger)
	if err := sessions.Init(ctx); err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("session init failed: %w", err)
	}
	reports := service.NewReportService(feedbackRepo, sessions, logger)
	submissions := service.NewSubmissionService(feedbackRepo, sessions, logger)

	grpcHandlers := handler.NewFeedbackHandlers(reports, submissions, sessions, cacher, logger, cfg.CacheTTL)

	parser := auth.NewParser(cfg.JWTSecret, cfg.TokenTTL)
	opts := append([]grpcsrv.Option{
		grpcsrv.WithPort(cfg.GRPCPort),
		grpcsrv.WithLogger(logger),
		grpcsrv.WithReflection(cfg.GRPCReflectionEnabled),
		grpcsrv.WithLogging(cfg.GRPCLoggingEnabled),
		grpcsrv.WithUnaryInterceptors(auth.UnaryServerInterceptor(parser, logger)),
	}, serverOpts...)

	grpcServer, err := grpcsrv.New(opts...)
	if err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("failed to create gRPC server: %w", err)
	}

	grpcServer.RegisterServiceWithHealth(handler.FeedbackReportsServiceName, func(s grpc.ServiceRegistrar) {
		handler.RegisterFeedbackReportsServer(s, grpcHandlers)
	})

	return &App{
		logger:     logger,
		dbPool:     dbPool,
		cache:      cacher,
		grpcServer: grpcServer,
	}, nil
}

// Start serves in the background.
func (a *App) Start() {
	a.logger.Info("application starting")
	a.grpcServer.Start()
}

// Shutdown stops the server, then closes the cache and the database.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.grpcServer.Shutdown(ctx)

	if a.cache != nil {
		if cerr := a.cache.Close(); cerr != nil {
			a.logger.Error("cache shutdown error", zap.Error(cerr))
		}
	}
	if cerr := a.dbPool.Close(); cerr != nil {
		a.logger.Error("database shutdown error", zap.Error(cerr))
	}
	return err
}

// Run starts the application and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.Start()
	<-ctx.Done()
	a.logger.Info("application shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("shutdown deadline exceeded", zap.Error(err))
		return err
	}
	a.logger.Info("graceful shutdown completed")
	return nil
}
