package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/Tyrowin/gigboard/internal/api"
	"github.com/Tyrowin/gigboard/internal/auth"
	"github.com/Tyrowin/gigboard/internal/platform/logger"
	"github.com/Tyrowin/gigboard/internal/platform/metrics"
	"github.com/Tyrowin/gigboard/internal/server"
	"github.com/Tyrowin/gigboard/internal/store/badgerdb"
	"github.com/Tyrowin/gigboard/internal/store/postgres"
)

// appStore is what both the gateway and the API need from a backend.
type appStore interface {
	server.Store
	api.Store
	Ping(ctx context.Context) error
	Close() error
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	gatewayCfg := server.SetConfig(cfg.gatewayConfig())
	log.Info("starting gigboard",
		"port", gatewayCfg.Port,
		"store", cfg.StoreBackend,
		"allowed_origins", gatewayCfg.AllowedOrigins)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing store")
		if err := st.Close(); err != nil {
			log.Error("failed to close store", "error", err)
		}
	}()

	m := metrics.New()
	gateway := server.StartGateway(st, server.WithLogger(log), server.WithMetrics(m))

	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	router := server.SetupRoutes(gateway)
	router.Handle("/metrics", m.Handler())
	router.Mount("/api", api.NewHandler(st, gateway, tokens, log).Routes())

	httpServer := server.CreateServer(gatewayCfg.Port, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.StartServer(httpServer)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down", "timeout", cfg.ShutdownTimeout)
		return server.ShutdownServer(httpServer, gateway, cfg.ShutdownTimeout)
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg Config, log *slog.Logger) (appStore, error) {
	switch cfg.StoreBackend {
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
		st, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return st, nil
	case "badger", "":
		if cfg.BadgerPath == "" {
			log.Warn("BADGER_PATH is empty; data is kept in memory only")
		}
		st, err := badgerdb.Open(cfg.BadgerPath, badgerdb.WithLogger(log))
		if err != nil {
			return nil, fmt.Errorf("open badger: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
}
