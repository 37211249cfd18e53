package counters

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/titan-stats/pkg/metrics"
)

// DaySource lists counters and their day totals. *RedisStore implements it.
type DaySource interface {
	Names(ctx context.Context) ([]string, error)
	Days(ctx context.Context, name string) (map[string]int64, error)
}

// DaySink persists day totals. *PostgresStore implements it.
type DaySink interface {
	SaveDays(ctx context.Context, name string, days map[string]int64) error
}

// Archiver copies day totals from the live store into the archive.
type Archiver struct {
	source  DaySource
	sink    DaySink
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewArchiver builds an Archiver. m may be nil.
func NewArchiver(source DaySource, sink DaySink, m *metrics.Metrics) *Archiver {
	return &Archiver{
		source:  source,
		sink:    sink,
		metrics: m,
		logger:  slog.Default().With("component", "counter-archiver"),
	}
}

// ArchiveOnce copies every counter and returns how many were archived. A
// failing counter is logged and skipped; the first such error is returned
// after the others have been tried.
func (a *Archiver) ArchiveOnce(ctx context.Context) (int, error) {
	names, err := a.source.Names(ctx)
	if err != nil {
		a.record("error")
		return 0, fmt.Errorf("listing counters to archive: %w", err)
	}

	var firstErr error
	archived := 0
	for _, name := range names {
		days, err := a.source.Days(ctx, name)
		if err == nil {
			err = a.sink.SaveDays(ctx, name, days)
		}
		if err != nil {
			a.logger.Error("archiving counter failed", "counter", name, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("archiving counter %s: %w", name, err)
			}
			continue
		}
		archived++
	}

	if firstErr != nil {
		a.record("error")
		return archived, firstErr
	}
	a.record("ok")
	a.logger.Info("counters archived", "count", archived)
	return archived, nil
}

// StartPeriodic archives every interval until ctx is done, then runs one
// final archive. The returned channel closes once that has finished.
func (a *Archiver) StartPeriodic(ctx context.Context, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := a.ArchiveOnce(ctx); err != nil {
					a.logger.Error("periodic archive failed", "error", err)
				}
			case <-ctx.Done():
				// Final archive on shutdown.
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if _, err := a.ArchiveOnce(shutdownCtx); err != nil {
					a.logger.Error("final archive failed", "error", err)
				}
				return
			}
		}
	}()
	a.logger.Info("periodic archive started", "interval", interval)
	return done
}

func (a *Archiver) record(status string) {
	if a.metrics != nil {
		a.metrics.ArchiveRunsTotal.WithLabelValues(status).Inc()
	}
}
