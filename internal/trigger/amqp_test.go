package trigger

import (
	"sync"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAcknowledger struct {
	acked  []uint64
	nacked []uint64
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.acked = append(f.acked, tag)
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.nacked = append(f.nacked, tag)
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	f.nacked = append(f.nacked, tag)
	return nil
}

func TestNewAMQPSource_Validation(t *testing.T) {
	publish := func(Event) {}

	_, err := NewAMQPSource(AMQPConfig{Queue: "q"}, publish)
	assert.Error(t, err)
	_, err = NewAMQPSource(AMQPConfig{URL: "amqp://localhost"}, publish)
	assert.Error(t, err)
	_, err = NewAMQPSource(AMQPConfig{URL: "amqp://localhost", Queue: "q"}, nil)
	assert.Error(t, err)

	src, err := NewAMQPSource(AMQPConfig{URL: "amqp://localhost", Queue: "q"}, publish)
	require.NoError(t, err)
	assert.Equal(t, 10, src.cfg.Prefetch)
}

func TestAMQPSource_HandleAcksDecodedEvents(t *testing.T) {
	var mu sync.Mutex
	var published []Event
	src, err := NewAMQPSource(AMQPConfig{URL: "amqp://localhost", Queue: "q"}, func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		published = append(published, ev)
	})
	require.NoError(t, err)

	ack := &fakeAcknowledger{}
	src.handle(amqp.Delivery{
		Acknowledger: ack,
		DeliveryTag:  7,
		Body:         []byte(`{"path":"listings/abc","after":{"title":"Cozy"}}`),
	})

	require.Len(t, published, 1)
	assert.Equal(t, "listings/abc", published[0].Path)
	assert.Equal(t, []uint64{7}, ack.acked)
	assert.Empty(t, ack.nacked)
}

func TestAMQPSource_HandleRejectsMalformed(t *testing.T) {
	called := false
	src, err := NewAMQPSource(AMQPConfig{URL: "amqp://localhost", Queue: "q"}, func(Event) { called = true })
	require.NoError(t, err)

	ack := &fakeAcknowledger{}
	src.handle(amqp.Delivery{Acknowledger: ack, DeliveryTag: 3, Body: []byte(`{"path":"listings"}`)})

	assert.False(t, called)
	assert.Empty(t, ack.acked)
	assert.Equal(t, []uint64{3}, ack.nacked)
}
