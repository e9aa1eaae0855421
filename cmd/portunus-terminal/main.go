package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BrandonDHaskell/Portunus/terminal/internal/config"
	"github.com/BrandonDHaskell/Portunus/terminal/internal/db"
	"github.com/BrandonDHaskell/Portunus/terminal/internal/grpcapi"
	"github.com/BrandonDHaskell/Portunus/terminal/internal/httpapi"
	"github.com/BrandonDHaskell/Portunus/terminal/internal/logging"
	"github.com/BrandonDHaskell/Portunus/terminal/internal/metrics"
	"github.com/BrandonDHaskell/Portunus/terminal/internal/portunus/engine"
	"github.com/BrandonDHaskell/Portunus/terminal/internal/portunus/service"
	"github.com/BrandonDHaskell/Portunus/terminal/internal/portunus/store"
	"github.com/BrandonDHaskell/Portunus/terminal/internal/portunus/store/memory"
	"github.com/BrandonDHaskell/Portunus/terminal/internal/portunus/store/rediscache"
	sqlitestore "github.com/BrandonDHaskell/Portunus/terminal/internal/portunus/store/sqlite"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger, err := logging.New(logging.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(logger); err != nil {
		logger.Error("portunus-terminal exited", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

type stores struct {
	subjects store.SubjectStore
	events   store.AccessEventStore
	devices  store.DeviceStore
	close    func()
}

func run(logger *zap.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	policy, err := service.PolicyFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("fallback policy: %w", err)
	}
	if _, ok := policy.(service.Sandbox); ok {
		logger.Warn("SANDBOX FALLBACK ENABLED: engine outages will GRANT access to the most recent subject; never use outside testing",
			zap.Float64("sandbox_confidence", cfg.SandboxConfidence))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	m := metrics.New()
	eng := engine.NewHTTPClient(engine.HTTPClientConfig{
		BaseURL: cfg.EngineURL,
		Timeout: cfg.EngineTimeout,
	}, m, logger.Named("engine"))

	devices := service.NewDeviceRegistry(st.devices, logger)
	verification := service.NewVerificationService(service.VerificationDeps{
		Subjects:        st.subjects,
		Events:          st.events,
		Engine:          eng,
		Policy:          policy,
		Devices:         devices,
		Metrics:         m,
		Logger:          logger.Named("verify"),
		DefaultDeviceID: cfg.DefaultDeviceID,
	})
	registration := service.NewRegistrationService(service.RegistrationDeps{
		Subjects:          st.subjects,
		Engine:            eng,
		TemplateDimension: cfg.TemplateDimension,
		Metrics:           m,
		Logger:            logger.Named("register"),
	})

	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:         logger.Named("http"),
		Addr:           cfg.HTTPAddr,
		Verification:   verification,
		Registration:   registration,
		Query:          service.NewQueryService(st.subjects, st.events, devices),
		Metrics:        m,
		AdminJWTSecret: cfg.AdminJWTSecret,
	})
	if cfg.AdminJWTSecret == "" {
		logger.Warn("admin read endpoints are unauthenticated (PORTUNUS_ADMIN_JWT_SECRET unset)")
	}

	var (
		health  service.HealthReporter
		grpcSrv *grpcapi.HealthServer
		grpcLis net.Listener
	)
	if cfg.GRPCAddr != "" {
		grpcLis, err = net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		grpcSrv = grpcapi.NewHealthServer(logger.Named("grpc"))
		health = grpcSrv
	}

	probe := service.NewEngineProbe(eng, health, m, cfg.EngineProbeInterval, logger.Named("probe"))
	probe.Start(ctx)
	defer probe.Stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http listening",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("env", cfg.Env),
			zap.String("store", cfg.Store),
			zap.String("fallback", policy.Name()),
			zap.String("engine", cfg.EngineURL))
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if grpcLis != nil {
		g.Go(func() error { return grpcSrv.Serve(grpcLis) })
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if grpcSrv != nil {
			grpcSrv.Stop()
		}
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func openStores(ctx context.Context, cfg config.Config, logger *zap.Logger) (*stores, error) {
	var st stores

	switch cfg.Store {
	case "memory":
		logger.Warn("using in-memory stores; nothing survives a restart")
		st = stores{
			subjects: memory.NewSubjectStore(),
			events:   memory.NewAccessEventStore(),
			devices:  memory.NewDeviceStore(),
			close:    func() {},
		}

	default:
		conn, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env})
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		if cfg.Env == "dev" {
			if err := db.SeedDev(ctx, conn.DB, db.SeedDevOptions{
				TemplateDimension: cfg.TemplateDimension,
				DeviceID:          cfg.DefaultDeviceID,
			}); err != nil {
				_ = conn.Close()
				return nil, fmt.Errorf("seed dev: %w", err)
			}
		}
		writer := db.NewWriter(conn.DB)
		st = stores{
			subjects: sqlitestore.NewSubjectStore(conn, writer),
			events:   sqlitestore.NewAccessEventStore(conn, writer),
			devices:  sqlitestore.NewDeviceStore(conn, writer),
			close: func() {
				writer.Close()
				_ = conn.Close()
			},
		}
		logger.Info("sqlite store ready", zap.String("path", cfg.DBPath))
	}

	if cfg.RedisURL == "" {
		return &st, nil
	}

	rdb, err := rediscache.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		// The cache is optional; run without it rather than refuse to start.
		logger.Warn("redis unavailable; subject cache disabled", zap.Error(err))
		return &st, nil
	}
	st.subjects = rediscache.NewSubjectCache(st.subjects, rdb, cfg.SubjectCacheTTL, logger.Named("cache"))
	inner := st.close
	st.close = func() {
		_ = rdb.Close()
		inner()
	}
	logger.Info("subject cache enabled", zap.Duration("ttl", cfg.SubjectCacheTTL))
	return &st, nil
}
