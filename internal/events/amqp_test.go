package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	declared   []string
	published  []amqp.Publishing
	keys       []string
	publishErr error
	closed     int
}

func (f *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	if !durable {
		return amqp.Queue{}, errors.New("queue must be durable")
	}
	f.declared = append(f.declared, name)
	return amqp.Queue{Name: name}, nil
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.keys = append(f.keys, key)
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed++
	return nil
}

func newTestPublisher(ch *fakeChannel, dials *int) *AMQPPublisher {
	p := NewAMQPPublisher("amqp://test", "", nil)
	p.dial = func(string) (channel, func() error, error) {
		*dials++
		return ch, nil, nil
	}
	return p
}

func TestAMQPPublisherPublishesPersistentJSON(t *testing.T) {
	ch := &fakeChannel{}
	dials := 0
	p := newTestPublisher(ch, &dials)

	event := TimetableGeneratedEvent{TimetableID: "tt-1", Branch: "CS", Division: "A", Year: "SE", Status: "COMPLETE", GeneratedAt: time.Now().UTC()}
	require.NoError(t, p.PublishTimetableGenerated(context.Background(), event))
	require.NoError(t, p.PublishTimetableGenerated(context.Background(), event))

	assert.Equal(t, 1, dials)
	assert.Equal(t, []string{TimetableGenerated}, ch.declared)
	require.Len(t, ch.published, 2)
	msg := ch.published[0]
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, TimetableGenerated, ch.keys[0])

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, "tt-1", decoded["timetable_id"])
	assert.Equal(t, "COMPLETE", decoded["status"])
}

func TestAMQPPublisherRedialsAfterFailure(t *testing.T) {
	ch := &fakeChannel{publishErr: errors.New("channel closed")}
	dials := 0
	p := newTestPublisher(ch, &dials)

	err := p.PublishTimetableGenerated(context.Background(), TimetableGeneratedEvent{TimetableID: "tt-1"})
	require.Error(t, err)
	assert.Equal(t, 1, ch.closed)

	ch.publishErr = nil
	require.NoError(t, p.PublishTimetableGenerated(context.Background(), TimetableGeneratedEvent{TimetableID: "tt-2"}))
	assert.Equal(t, 2, dials)
	require.NoError(t, p.Close())
}

func TestAMQPPublisherDialFailure(t *testing.T) {
	p := NewAMQPPublisher("amqp://test", "custom.queue", nil)
	p.dial = func(string) (channel, func() error, error) { return nil, nil, errors.New("refused") }
	assert.Error(t, p.PublishTimetableGenerated(context.Background(), TimetableGeneratedEvent{}))
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{}
	assert.NoError(t, p.PublishTimetableGenerated(context.Background(), TimetableGeneratedEvent{}))
	assert.NoError(t, p.Close())
}
