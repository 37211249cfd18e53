package counters

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/titan-stats/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/titan-stats/pkg/metrics"
)

// Event is a counter increment as carried on the counter-events topic.
type Event struct {
	Name      string    `json:"name"`
	Delta     int64     `json:"delta"`
	Timestamp time.Time `json:"timestamp"`
}

// HandleEvent applies counter events to inc. Undecodable or invalid events are
// logged and committed; a failed increment is returned so the consumer keeps
// retrying that message before it moves on. m may be nil.
func HandleEvent(inc Incrementer, m *metrics.Metrics) kafka.MessageHandler {
	logger := slog.Default().With("component", "counter-ingest")
	record := func(result string) {
		if m != nil {
			m.CounterEventsTotal.WithLabelValues(result).Inc()
		}
	}

	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[Event](value)
		if err != nil {
			logger.Error("failed to decode counter event", "key", string(key), "error", err)
			record("invalid")
			return nil
		}
		if err := ValidateName(event.Name); err != nil {
			logger.Warn("dropping counter event", "key", string(key), "error", err)
			record("invalid")
			return nil
		}
		if event.Timestamp.IsZero() {
			event.Timestamp = time.Now()
		}
		if err := inc.Increment(ctx, event.Name, event.Delta, event.Timestamp); err != nil {
			record("failed")
			return err
		}
		record("applied")
		return nil
	}
}
