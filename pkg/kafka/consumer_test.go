package kafka

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"roombooking/pkg/logger"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func (w *fakeWriter) header(i int, key string) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, h := range w.messages[i].Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

type fakeReader struct {
	mu        sync.Mutex
	pending   []kafka.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.pending) > 0 {
		msg := r.pending[0]
		r.pending = r.pending[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func discardLogger() *logger.Logger {
	return logger.New(logger.Config{Level: logger.ERROR, Output: io.Discard})
}

func testConsumer(handler MessageHandler, dlq messageWriter) *Consumer {
	c := newConsumer(&fakeReader{}, "booking-events", "booking-audit", "booking-events-dlq", 3, handler, discardLogger())
	c.backoff = time.Millisecond
	c.dlqWriter = dlq
	return c
}

func TestProcessMessage_RetriesTransientFailures(t *testing.T) {
	attempts := 0
	handler := func(context.Context, Message) error {
		attempts++
		if attempts < 3 {
			return NewTransientError("store unavailable", nil)
		}
		return nil
	}
	dlq := &fakeWriter{}

	err := testConsumer(handler, dlq).processMessage(context.Background(), NewMessage().WithKey("r-1").WithRawValue([]byte("{}")).Build())

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Empty(t, dlq.messages)
}

func TestProcessMessage_PermanentFailureGoesToDLQ(t *testing.T) {
	attempts := 0
	handler := func(context.Context, Message) error {
		attempts++
		return NewPermanentError("bad payload", ErrInvalidMessage)
	}
	dlq := &fakeWriter{}
	msg := NewMessage().WithKey("r-1").WithRawValue([]byte("x")).WithEventID("evt-9").Build()

	err := testConsumer(handler, dlq).processMessage(context.Background(), msg)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidMessage)
	assert.Equal(t, 1, attempts)
	require.Len(t, dlq.messages, 1)
	assert.Equal(t, "r-1", string(dlq.messages[0].Key))
	assert.Equal(t, "booking-events", dlq.header(0, HeaderOriginalTopic))
	assert.Equal(t, "booking-audit", dlq.header(0, "dlq-consumer-group"))
	assert.Equal(t, "evt-9", dlq.header(0, HeaderEventID))
	assert.Contains(t, dlq.header(0, HeaderDLQError), "bad payload")
	assert.Empty(t, msg.Headers[HeaderDLQError], "caller headers must not be mutated")
}

func TestProcessMessage_ExhaustedRetriesGoToDLQ(t *testing.T) {
	attempts := 0
	handler := func(context.Context, Message) error {
		attempts++
		return NewTransientError("store unavailable", nil)
	}
	dlq := &fakeWriter{}

	err := testConsumer(handler, dlq).processMessage(context.Background(), NewMessage().WithKey("r-1").WithRawValue([]byte("x")).Build())

	require.Error(t, err)
	assert.Equal(t, 4, attempts)
	require.Len(t, dlq.messages, 1)
	assert.Equal(t, "3", dlq.header(0, HeaderRetryCount))
}

func TestProcessMessage_DLQFailureIsReported(t *testing.T) {
	handler := func(context.Context, Message) error { return NewPermanentError("bad", nil) }
	dlq := &fakeWriter{err: errors.New("broker down")}

	err := testConsumer(handler, dlq).processMessage(context.Background(), NewMessage().WithKey("k").WithRawValue([]byte("x")).Build())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to send message to DLQ")
}

func TestProcessMessage_MiddlewareWrapsHandlerInOrder(t *testing.T) {
	var order []string
	c := testConsumer(func(context.Context, Message) error {
		order = append(order, "handler")
		return nil
	}, nil)
	for _, name := range []string{"outer", "inner"} {
		name := name
		c.Use(func(ctx context.Context, msg Message, next MessageHandler) error {
			order = append(order, name)
			return next(ctx, msg)
		})
	}

	require.NoError(t, c.processMessage(context.Background(), NewMessage().WithKey("k").WithRawValue([]byte("x")).Build()))
	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestStart_CommitsEveryMessageAndStopsOnCancel(t *testing.T) {
	reader := &fakeReader{pending: []kafka.Message{
		{Key: []byte("r-1"), Value: []byte("ok"), Offset: 10},
		{Key: []byte("r-1"), Value: []byte("bad"), Offset: 11},
		{Key: []byte("r-2"), Value: []byte("ok"), Offset: 12},
	}}
	var mu sync.Mutex
	var seen []string
	handler := func(_ context.Context, msg Message) error {
		mu.Lock()
		seen = append(seen, string(msg.Value))
		mu.Unlock()
		if string(msg.Value) == "bad" {
			return NewPermanentError("bad", nil)
		}
		return nil
	}
	dlq := &fakeWriter{}
	c := newConsumer(reader, "booking-events", "booking-audit", "dlq", 0, handler, discardLogger())
	c.dlqWriter = dlq

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	require.Eventually(t, func() bool { return len(reader.commits()) == 3 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancel")
	}

	assert.Equal(t, []int64{10, 11, 12}, reader.commits())
	assert.Len(t, dlq.messages, 1)
	require.NoError(t, c.Close())
	assert.True(t, dlq.closed)
	assert.ErrorIs(t, c.Start(context.Background()), ErrConsumerClosed)
}

func TestConvertMessage(t *testing.T) {
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	msg := convertMessage(kafka.Message{
		Topic:     "booking-events",
		Partition: 2,
		Offset:    42,
		Key:       []byte("r-1"),
		Value:     []byte(`{"a":1}`),
		Headers:   []kafka.Header{{Key: HeaderEventID, Value: []byte("evt-1")}},
		Time:      at,
	})

	assert.Equal(t, "r-1", msg.Key)
	assert.Equal(t, "booking-events", msg.Topic)
	assert.Equal(t, 2, msg.Partition)
	assert.Equal(t, int64(42), msg.Offset)
	assert.Equal(t, "evt-1", msg.GetEventID())
	assert.Equal(t, at, msg.Timestamp)
}
