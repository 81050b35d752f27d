// Command delegated runs the task delegation engine: it parses task notes,
// decides whether to delegate, routes work to registered executors, and
// drives the deterministic retry/learning loop, exposed over an HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/habitquest/delegate/internal/adapter/generic"
	httpad "github.com/habitquest/delegate/internal/adapter/http"
	memad "github.com/habitquest/delegate/internal/adapter/memory"
	natsad "github.com/habitquest/delegate/internal/adapter/nats"
	otelad "github.com/habitquest/delegate/internal/adapter/otel"
	"github.com/habitquest/delegate/internal/adapter/postgres"
	ristrettoad "github.com/habitquest/delegate/internal/adapter/ristretto"
	"github.com/habitquest/delegate/internal/config"
	"github.com/habitquest/delegate/internal/domain/tasknote"
	"github.com/habitquest/delegate/internal/logger"
	"github.com/habitquest/delegate/internal/port/executor"
	"github.com/habitquest/delegate/internal/port/history"
	"github.com/habitquest/delegate/internal/port/seedstore"
	"github.com/habitquest/delegate/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg.Logging)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		seeds seedstore.Store
		hist  history.Store
	)
	switch cfg.Store.Driver {
	case "postgres":
		if err := postgres.RunMigrations(ctx, cfg.Store.Postgres.DSN); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		pool, err := postgres.NewPool(ctx, cfg.Store.Postgres)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()
		seeds = postgres.NewSeedStore(pool)
		hist = postgres.NewHistory(pool)
	default:
		seeds = memad.NewSeedStore()
		hist = memad.NewHistory()
	}

	if cfg.NATS.Enabled {
		mirror, err := natsad.Connect(ctx, cfg.NATS.URL, hist)
		if err != nil {
			return fmt.Errorf("nats mirror: %w", err)
		}
		defer mirror.Close()
		hist = mirror
	}

	registry := executor.NewRegistry()
	if err := registry.Register(generic.New()); err != nil {
		return fmt.Errorf("register executor: %w", err)
	}

	routeCache, err := ristrettoad.NewRouteCache(cfg.Cache.MaxCostBytes, cfg.Cache.RouteTTL)
	if err != nil {
		return fmt.Errorf("route cache: %w", err)
	}
	defer routeCache.Close()

	metrics, err := otelad.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	parser := tasknote.New(tasknote.Versions{
		Model:   cfg.Versions.Model,
		Toolkit: cfg.Versions.Toolkit,
	})
	decision := service.NewDecisionEngine(&cfg.Decision, hist, cfg.Discovery.HistoryScan)
	router := service.NewRouter(&cfg.Discovery, registry, hist, routeCache)
	invoker := service.NewInvoker(registry, cfg.Breaker)
	controller := service.NewController(seeds, hist, invoker, &cfg.Engine, metrics)
	engine := service.NewEngine(parser, decision, router, controller, cfg, metrics)

	handlers := &httpad.Handlers{
		Engine:   engine,
		Seeds:    seeds,
		History:  hist,
		Registry: registry,
		Invoker:  invoker,
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(2 * time.Minute))
	r.Use(httpad.CORS(cfg.Server.CORSOrigin))
	r.Use(otelad.HTTPMiddleware(cfg.Logging.Service))
	r.Get("/health", httpad.Health(handlers))
	httpad.MountRoutes(r, handlers)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("delegation engine listening",
			"port", cfg.Server.Port,
			"store", cfg.Store.Driver,
			"executors", registry.Types(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
