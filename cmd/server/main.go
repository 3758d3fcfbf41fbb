package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	natsclient "github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	authgrpc "github.com/yunhaishang/Mallorn-sub002/internal/adapter/inbound/grpc"
	natsadapter "github.com/yunhaishang/Mallorn-sub002/internal/adapter/outbound/nats"
	"github.com/yunhaishang/Mallorn-sub002/internal/adapter/outbound/postgres"
	rediscache "github.com/yunhaishang/Mallorn-sub002/internal/adapter/outbound/redis"
	"github.com/yunhaishang/Mallorn-sub002/internal/app"
	"github.com/yunhaishang/Mallorn-sub002/internal/app/command"
	"github.com/yunhaishang/Mallorn-sub002/internal/app/query"
	"github.com/yunhaishang/Mallorn-sub002/internal/app/service"
	"github.com/yunhaishang/Mallorn-sub002/internal/config"
	"github.com/yunhaishang/Mallorn-sub002/internal/domain/model"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to yaml config file")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("starting auth service",
		zap.String("address", cfg.Server.Address()),
	)

	pool, err := connectPostgres(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	redisClient, err := connectRedis(ctx, cfg.Redis, logger)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()

	natsConn, err := connectNATS(cfg.NATS, logger)
	if err != nil {
		return fmt.Errorf("connect to nats: %w", err)
	}
	defer natsConn.Close()

	// Repositories
	principalRepo := postgres.NewPrincipalRepository(pool)
	credentialRepo := postgres.NewCredentialRepository(pool)

	// Outbound adapters
	genericCache := rediscache.NewCache(redisClient, cfg.Cache.DefaultTTL)
	eventPublisher := natsadapter.NewEventPublisher(natsConn, cfg.NATS.SubjectPrefix)

	// Services
	tokenService, err := service.NewTokenService(service.TokenConfig{
		Issuer:          cfg.Token.Issuer,
		Audience:        cfg.Token.Audience,
		AccessLifetime:  cfg.Token.AccessLifetime,
		RefreshLifetime: cfg.Token.RefreshLifetime,
		SigningKey:      []byte(cfg.Token.SigningKey),
	})
	if err != nil {
		return fmt.Errorf("create token service: %w", err)
	}

	userCache := service.NewUserCache(principalRepo, genericCache, eventPublisher, service.UserCacheConfig{
		ProfileTTL:    cfg.Cache.ProfileTTL,
		SecurityTTL:   cfg.Cache.SecurityTTL,
		PermissionTTL: cfg.Cache.PermissionTTL,
	}, logger)

	blacklist := service.NewTokenBlacklist(genericCache)

	credConfig := model.CredentialConfig{Lifetime: cfg.Token.RefreshLifetime}

	application := &app.Application{
		Commands: app.Commands{
			IssueTokenPair: command.NewIssueTokenPairHandler(
				principalRepo, credentialRepo, tokenService, eventPublisher, credConfig,
			),
			RotateToken: command.NewRotateTokenHandler(
				principalRepo, credentialRepo, tokenService, eventPublisher,
				command.RotationConfig{
					Credential:           credConfig,
					ReuseRevocationScope: cfg.Token.ReuseRevocationScope,
				}, logger,
			),
			RevokeToken: command.NewRevokeTokenHandler(
				credentialRepo, blacklist, tokenService, eventPublisher, logger,
			),
			RevokeAllTokens: command.NewRevokeAllTokensHandler(
				credentialRepo, userCache, eventPublisher,
			),
		},
		Queries: app.Queries{
			GetPrincipal:      query.NewGetPrincipalHandler(userCache),
			GetPrincipalBatch: query.NewGetPrincipalBatchHandler(userCache),
			GetPermissions:    query.NewGetPermissionsHandler(userCache),
		},
	}

	// Background reaper
	reaper := service.NewReaper(credentialRepo, service.ReaperConfig{
		Interval:  cfg.Reaper.Interval,
		Retention: cfg.Reaper.Retention,
	}, logger)
	go reaper.Run(ctx)

	// Metrics endpoint
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler: promhttp.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	// gRPC server with the guard chain
	guard := authgrpc.NewGuard(blacklist, authgrpc.GuardConfig{
		ExpiryWarningWindow: cfg.Guard.ExpiryWarningWindow,
	}, logger)

	server, err := authgrpc.NewServer(authgrpc.ServerConfig{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		EnableReflection:  cfg.Server.EnableReflection,
		EnableHealthCheck: cfg.Server.EnableHealthCheck,
	}, application, guard, logger)
	if err != nil {
		return fmt.Errorf("create grpc server: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("auth service started", zap.String("address", cfg.Server.Address()))

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown failed", zap.Error(err))
		}
		if err := server.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("stop server: %w", err)
		}

		logger.Info("auth service stopped gracefully")
		return nil
	}
}

func connectPostgres(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("connected to postgres",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database),
	)

	return pool, nil
}

func connectRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	logger.Info("connected to redis", zap.String("address", cfg.Address()))

	return client, nil
}

func connectNATS(cfg config.NATSConfig, logger *zap.Logger) (*natsclient.Conn, error) {
	opts := []natsclient.Option{
		natsclient.MaxReconnects(cfg.MaxReconnects),
		natsclient.ReconnectWait(cfg.ReconnectWait),
		natsclient.DisconnectErrHandler(func(nc *natsclient.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		natsclient.ReconnectHandler(func(nc *natsclient.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}

	conn, err := natsclient.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	logger.Info("connected to nats", zap.String("url", conn.ConnectedUrl()))

	return conn, nil
}
