// Command stats serves the counter statistics endpoints.
//
// It exposes GET /_titan/stats/counterdata (JSON aggregate data),
// GET /_titan/stats/graph (rendered graph page) and, when counter writes are
// configured, POST /_titan/stats/increment. Counter data is read from Redis or
// the Postgres archive depending on stats.backend, optionally through a Redis
// read-through cache.
//
// Usage:
//
//	go run ./cmd/stats [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/titan-stats/internal/counters"
	"github.com/Adithya-Monish-Kumar-K/titan-stats/internal/stats"
	"github.com/Adithya-Monish-Kumar-K/titan-stats/internal/webapp"
	"github.com/Adithya-Monish-Kumar-K/titan-stats/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/titan-stats/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/titan-stats/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/titan-stats/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/titan-stats/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/titan-stats/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/titan-stats/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/titan-stats/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/titan-stats/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting stats service",
		"port", cfg.Server.Port,
		"backend", cfg.Stats.Backend,
		"ingest_mode", cfg.Stats.IngestMode,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, prometheus.DefaultGatherer)
		defer shutdownMetrics(context.Background())
	}

	checker := health.NewChecker()

	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	checker.Register("redis", health.PingCheck(redisClient))
	redisStore := counters.NewRedisStore(redisClient)

	var service counters.Service = redisStore
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pgClient.Close()

		pgStore := counters.NewPostgresStore(pgClient)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			slog.Error("failed to prepare counter schema", "error", err)
			os.Exit(1)
		}
		if cfg.Stats.Backend == config.BackendPostgres {
			service = pgStore
			checker.Register("postgres", health.PingCheck(pgClient))
		} else {
			checker.Register("postgres", health.OptionalCheck(pgClient))
		}
	}

	if cfg.Stats.Breaker.Enabled {
		breaker := resilience.NewBreaker("counter-backend", resilience.BreakerFromConfig(cfg.Stats.Breaker))
		service = counters.NewGuardedService(service, breaker)
	}

	if cfg.Stats.CacheEnabled {
		service = counters.NewCachedService(service, redisClient, cfg.Redis, m)
		slog.Info("counter data cache enabled", "ttl", cfg.Redis.CacheTTL)
	}

	var incrementer counters.Incrementer = redisStore
	if cfg.Stats.IngestMode == config.IngestKafka {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.CounterEvents)
		defer producer.Close()

		recorder := counters.NewRecorder(producer, resilience.FromConfig(cfg.Kafka.Retry), 0)
		recorder.Start(ctx)
		defer recorder.Close()
		incrementer = recorder
		slog.Info("publishing counter increments to kafka", "topic", cfg.Kafka.Topics.CounterEvents)
	}

	app := webapp.NewApplication(stats.Routes(stats.Options{
		Service:     service,
		Incrementer: incrementer,
		Templates:   stats.TemplatesFrom(cfg.Stats.TemplatesDir),
		WindowSize:  cfg.Stats.DefaultWindowSize,
		Metrics:     m,
	})...)

	mux := http.NewServeMux()
	for _, path := range app.Paths() {
		mux.Handle(path, app)
	}
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	if cfg.Server.RequestTimeout > 0 {
		chain = middleware.Timeout(cfg.Server.RequestTimeout)(chain)
	}
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Deferred closers, the recorder included, run after in-flight requests finish.
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("stats service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	<-shutdownDone

	slog.Info("stats service stopped")
}
