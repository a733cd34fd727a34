package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type writerMock struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *writerMock) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *writerMock) Close() error {
	w.closed = true
	return nil
}

func newTestPublisher(w *writerMock) *Publisher {
	return &Publisher{writer: w, timeout: time.Second, log: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestNewOrderCreated(t *testing.T) {
	ev := NewOrderCreated("o1", map[string]any{
		"productId":     "A",
		"quantity":      json.Number("2"),
		"total":         "200",
		"userId":        "u1",
		"email":         "u1@example.com",
		"transactionId": "TX",
	})

	_, err := uuid.Parse(ev.EventID)
	require.NoError(t, err)
	assert.Equal(t, "o1", ev.OrderID)
	assert.Equal(t, "A", ev.ProductID)
	assert.Equal(t, "u1", ev.UserID)
	assert.Equal(t, "TX", ev.TransactionID)
	assert.False(t, ev.OccurredAt.IsZero())
}

func TestPublishOrderCreated(t *testing.T) {
	w := &writerMock{}
	p := newTestPublisher(w)

	ev := NewOrderCreated("o1", map[string]any{"productId": "A", "quantity": 2})
	require.NoError(t, p.PublishOrderCreated(context.Background(), ev))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "o1", string(msg.Key))
	assert.Equal(t, []kafka.Header{
		{Key: "event_type", Value: []byte(TypeOrderCreated)},
		{Key: "event_id", Value: []byte(ev.EventID)},
	}, msg.Headers)

	var got map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, "o1", got["orderId"])
	assert.Equal(t, "A", got["productId"])
	assert.Equal(t, float64(2), got["quantity"])

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublishOrderCreated_WriterError(t *testing.T) {
	boom := errors.New("broker down")
	p := newTestPublisher(&writerMock{err: boom})

	err := p.PublishOrderCreated(context.Background(), NewOrderCreated("o1", nil))
	assert.ErrorIs(t, err, boom)
}
