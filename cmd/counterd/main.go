// Command counterd applies counter increments and archives day totals.
//
// It consumes counter events from Kafka and adds them to the Redis day
// buckets. When Postgres is enabled it also copies those buckets into the
// counter_data table every stats.archiveInterval, with a final archive on
// shutdown.
//
// Usage:
//
//	go run ./cmd/counterd [-config configs/development.yaml]
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
	"github.com/Adithya-Monish-Kumar-K/titan-stats/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/titan-stats/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/titan-stats/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/titan-stats/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/titan-stats/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/titan-stats/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/titan-stats/pkg/redis"
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
	slog.Info("starting counter daemon", "topic", cfg.Kafka.Topics.CounterEvents)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, prometheus.DefaultGatherer)
		defer shutdownMetrics(context.Background())
	}

	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	store := counters.NewRedisStore(redisClient)

	checker := health.NewChecker()
	checker.Register("redis", health.PingCheck(redisClient))

	var archiveDone <-chan struct{}
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pgClient.Close()
		checker.Register("postgres", health.PingCheck(pgClient))

		archive := counters.NewPostgresStore(pgClient)
		if err := archive.EnsureSchema(ctx); err != nil {
			slog.Error("failed to prepare counter schema", "error", err)
			os.Exit(1)
		}
		archiveDone = counters.NewArchiver(store, archive, m).StartPeriodic(ctx, cfg.Stats.ArchiveInterval)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		slog.Info("health endpoint listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("health server error", "error", err)
		}
	}()

	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.CounterEvents, counters.HandleEvent(store, m))
	if err := consumer.Start(ctx); err != nil {
		slog.Error("consumer stopped with error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("health server shutdown error", "error", err)
	}
	if archiveDone != nil {
		<-archiveDone
	}

	slog.Info("counter daemon stopped")
}
