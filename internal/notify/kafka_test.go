package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWriter struct {
	mu     sync.Mutex
	topic  string
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func newTestDispatcher(err error) (*KafkaDispatcher, map[string]*fakeWriter) {
	created := make(map[string]*fakeWriter)
	d := NewKafkaDispatcher(nil, zap.NewNop())
	d.newWriter = func(topic string) messageWriter {
		w := &fakeWriter{topic: topic, err: err}
		created[topic] = w
		return w
	}
	return d, created
}

func TestKafkaDispatcherRoutesByKind(t *testing.T) {
	d, writers := newTestDispatcher(nil)
	ctx := context.Background()

	require.NoError(t, d.Dispatch(ctx, NewEvent(OrdersPlaced, []uint64{1, 2})))
	require.NoError(t, d.Dispatch(ctx, NewEvent(OrdersPlaced, []uint64{3})))
	require.NoError(t, d.Dispatch(ctx, NewEvent(OrdersFilled, []uint64{7})))

	require.Len(t, writers, 2)
	placed := writers["aban.orders.placed"]
	require.NotNil(t, placed)
	require.Len(t, placed.msgs, 2)
	assert.NotEmpty(t, placed.msgs[0].Key)

	var event Event
	require.NoError(t, json.Unmarshal(placed.msgs[0].Value, &event))
	assert.Equal(t, OrdersPlaced, event.Kind)
	assert.Equal(t, []uint64{1, 2}, event.IDs)
	assert.Equal(t, 2, event.Count)

	require.Len(t, writers["aban.orders.filled"].msgs, 1)

	require.NoError(t, d.Close())
	assert.True(t, placed.closed)
}

func TestKafkaDispatcherReturnsWriteError(t *testing.T) {
	d, _ := newTestDispatcher(errors.New("broker down"))
	err := d.Dispatch(context.Background(), NewEvent(OrdersDropped, []uint64{9}))
	assert.ErrorContains(t, err, "broker down")
}

func TestTopicWithoutPrefix(t *testing.T) {
	d := NewKafkaDispatcher(&KafkaConfig{}, zap.NewNop())
	assert.Equal(t, "orders.dropped", d.Topic(OrdersDropped))
}

func TestLogDispatcher(t *testing.T) {
	d := NewLogDispatcher(zap.NewNop())
	assert.NoError(t, d.Dispatch(context.Background(), NewEvent(OrdersFilled, nil)))
	assert.NoError(t, d.Close())
}
