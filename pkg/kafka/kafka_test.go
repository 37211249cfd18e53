package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/titan-stats/pkg/resilience"
)

type sample struct {
	Name  string `json:"name"`
	Delta int64  `json:"delta"`
}

func TestEncode(t *testing.T) {
	msgs, err := Encode(
		Event{Key: "page/view", Value: sample{Name: "page/view", Delta: 2}},
		Event{Key: "api/call", Value: sample{Name: "api/call", Delta: 1}},
	)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "page/view", string(msgs[0].Key))
	assert.JSONEq(t, `{"name":"page/view","delta":2}`, string(msgs[0].Value))
}

func TestEncodeRejectsUnmarshalable(t *testing.T) {
	_, err := Encode(Event{Key: "bad", Value: make(chan int)})
	assert.Error(t, err)
}

func TestDecodeJSON(t *testing.T) {
	got, err := DecodeJSON[sample]([]byte(`{"name":"x","delta":4}`))
	require.NoError(t, err)
	assert.Equal(t, sample{Name: "x", Delta: 4}, got)

	_, err = DecodeJSON[sample]([]byte(`not json`))
	assert.Error(t, err)
}

type fakeReader struct {
	mu      sync.Mutex
	queue   []kafka.Message
	commits []int64
	closed  bool
	onEmpty func()
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) == 0 {
		r.mu.Unlock()
		r.onEmpty()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.queue[0]
	r.queue = r.queue[1:]
	r.mu.Unlock()
	return msg, nil
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.commits = append(r.commits, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func testConsumer(r messageReader, handler MessageHandler) *Consumer {
	c := newConsumer(r, handler, resilience.RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond})
	c.backoff = time.Millisecond
	return c
}

func TestConsumerHoldsFailingMessageUntilItSucceeds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reader := &fakeReader{
		queue:   []kafka.Message{{Offset: 1, Value: []byte("a")}, {Offset: 2, Value: []byte("b")}},
		onEmpty: cancel,
	}

	var handled []string
	failures := 5
	c := testConsumer(reader, func(ctx context.Context, key, value []byte) error {
		handled = append(handled, string(value))
		if string(value) == "a" && failures > 0 {
			failures--
			return errors.New("redis down")
		}
		return nil
	})

	require.NoError(t, c.Start(ctx))

	assert.Equal(t, []string{"a", "a", "a", "a", "a", "a", "b"}, handled)
	assert.Equal(t, []int64{1, 2}, reader.commits)
	assert.True(t, reader.closed)
}

func TestConsumerNeverCommitsPastPersistentFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reader := &fakeReader{
		queue:   []kafka.Message{{Offset: 7, Value: []byte("bad")}, {Offset: 8, Value: []byte("good")}},
		onEmpty: func() { t.Error("consumer moved past a failing message") },
	}

	calls := 0
	c := testConsumer(reader, func(ctx context.Context, key, value []byte) error {
		assert.Equal(t, "bad", string(value))
		calls++
		if calls == 6 {
			cancel()
		}
		return errors.New("redis down")
	})

	require.NoError(t, c.Start(ctx))

	assert.Empty(t, reader.commits)
	assert.Len(t, reader.queue, 1)
	assert.True(t, reader.closed)
}
