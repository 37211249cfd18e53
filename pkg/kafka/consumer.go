// Package kafka wraps segmentio/kafka-go with JSON producers and consumers.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/titan-stats/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/titan-stats/pkg/resilience"
	"github.com/segmentio/kafka-go"
)

// MessageHandler processes one message. A non-nil error is retried; the
// consumer does not move past the message until the handler succeeds.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// messageReader is the part of *kafka.Reader the consumer needs.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer processes messages strictly in order. Group offsets are committed
// per partition, so committing a later message would also skip a failed
// earlier one; a message that keeps failing therefore blocks the consumer,
// with backoff, until it succeeds or ctx ends.
type Consumer struct {
	reader  messageReader
	handler MessageHandler
	retry   resilience.RetryConfig
	backoff time.Duration
	logger  *slog.Logger
}

func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1,
		MaxBytes:    1 << 20,
		MaxWait:     500 * time.Millisecond,
		StartOffset: kafka.FirstOffset,
	})
	c := newConsumer(r, handler, resilience.FromConfig(cfg.Retry))
	c.logger = c.logger.With("topic", topic)
	return c
}

func newConsumer(r messageReader, handler MessageHandler, retry resilience.RetryConfig) *Consumer {
	return &Consumer{
		reader:  r,
		handler: handler,
		retry:   retry,
		backoff: time.Second,
		logger:  slog.Default().With("component", "kafka-consumer"),
	}
}

// Start consumes until ctx is cancelled, then closes the reader. A message
// being retried when ctx ends stays uncommitted and is redelivered to the
// next consumer of its partition.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	defer c.logger.Info("consumer stopped")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return c.reader.Close()
			}
			c.logger.Error("failed to fetch message", "error", err)
			if !c.wait(ctx) {
				return c.reader.Close()
			}
			continue
		}

		if !c.process(ctx, msg) {
			return c.reader.Close()
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("failed to commit message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

// process runs the handler until it succeeds. It returns false if ctx ended
// first.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) bool {
	for round := 1; ; round++ {
		err := resilience.Retry(ctx, "handle message", c.retry, func() error {
			return c.handler(ctx, msg.Key, msg.Value)
		})
		if err == nil {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		c.logger.Error("message still failing, holding partition",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"round", round,
			"error", err,
		)
		if !c.wait(ctx) {
			return false
		}
	}
}

func (c *Consumer) wait(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(c.backoff):
		return true
	}
}

// DecodeJSON unmarshals a message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}
