// cmd/catalog/main.go
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"nftmarket/internal/catalog"
	"nftmarket/internal/chaos"
	"nftmarket/internal/config"
	"nftmarket/internal/eventstore"
	"nftmarket/internal/logging"
	"nftmarket/internal/telemetry"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load config")
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to set up logging")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		log.WithError(err).Fatal("Failed to set up tracing")
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.WithError(err).Warn("Tracer shutdown failed")
		}
	}()

	journal, closeJournal, err := openJournal(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to open activity journal")
	}
	defer closeJournal()

	seed, err := loadSeed(cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to load seed catalog")
	}

	store, err := catalog.Open(ctx, journal, seed)
	if err != nil {
		log.WithError(err).Fatal("Failed to rebuild catalog")
	}
	log.WithField("assets", store.Len()).Info("Catalog loaded")

	svc := catalog.NewService(store, journal,
		catalog.WithLogger(log),
		catalog.WithRateLimit(cfg.MutationRatePerMinute, cfg.MutationBurst),
	)

	injector := chaos.NewInjector(
		chaos.Fault{Latency: cfg.ReadLatency, Jitter: cfg.LatencyJitter, FailureRate: cfg.FailureRate},
		chaos.Fault{Latency: cfg.WriteLatency, Jitter: cfg.LatencyJitter, FailureRate: cfg.FailureRate},
	)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(injector.Middleware)
	catalog.NewHandler(svc).Routes(router)

	server := &http.Server{Addr: ":" + cfg.Port, Handler: router}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.WithField("port", cfg.Port).Info("Starting Catalog Service")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("Server failed")
	}
}

func openJournal(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (eventstore.Journal, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Info("No DATABASE_URL set, keeping activity in memory")
		return eventstore.NewMemoryJournal(), func() {}, nil
	}
	if path, ok := strings.CutPrefix(cfg.DatabaseURL, "sqlite://"); ok {
		journal, err := eventstore.OpenSQLiteJournal(ctx, path)
		if err != nil {
			return nil, nil, err
		}
		log.WithField("path", path).Info("Using SQLite activity journal")
		return journal, func() { journal.Close() }, nil
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}

	journal := eventstore.NewPostgresJournal(db)
	if err := journal.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return journal, func() { db.Close() }, nil
}

func loadSeed(cfg config.Config) ([]catalog.Asset, error) {
	switch {
	case !cfg.SeedCatalog:
		return nil, nil
	case cfg.SeedFile != "":
		data, err := os.ReadFile(cfg.SeedFile)
		if err != nil {
			return nil, err
		}
		return catalog.LoadSeed(data, time.Now())
	default:
		return catalog.DefaultSeed(time.Now())
	}
}
