package outbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appoutbox "innkeep/internal/app/outbox"
	"innkeep/internal/domain/booking"
	"innkeep/internal/domain/shared/events"
	infraoutbox "innkeep/internal/infra/outbox"
	"innkeep/internal/infra/storage/memory"
)

type publishedMessage struct {
	topic   string
	key     string
	payload []byte
	headers map[string]string
}

type capturingProducer struct {
	mu       sync.Mutex
	err      error
	messages []publishedMessage
}

func (p *capturingProducer) Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, publishedMessage{topic: topic, key: key, payload: payload, headers: headers})
	return nil
}

func (p *capturingProducer) published() []publishedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedMessage(nil), p.messages...)
}

func addEvent(t *testing.T, store *memory.OutboxStore) {
	t.Helper()
	ev := booking.CheckedIn{BookingID: "bk-1", At: time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)}
	require.NoError(t, appoutbox.RecordDomainEvents(context.Background(), store, nil, []events.DomainEvent{ev}))
}

func TestWorker_PublishesCloudEventsEnvelope(t *testing.T) {
	store := memory.NewOutboxStore()
	addEvent(t, store)

	producer := &capturingProducer{}
	worker := &infraoutbox.Worker{
		Store:    store,
		Producer: producer,
		Interval: 5 * time.Millisecond,
		Source:   "app://innkeep-test",
		ID:       "worker-1",
	}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	err := worker.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	msgs := producer.published()
	require.Len(t, msgs, 1)
	assert.Equal(t, "booking.events.v1", msgs[0].topic)
	assert.Equal(t, "bk-1", msgs[0].key)
	assert.Equal(t, "application/cloudevents+json", msgs[0].headers["content-type"])

	var envelope map[string]any
	require.NoError(t, json.Unmarshal(msgs[0].payload, &envelope))
	assert.Equal(t, "1.0", envelope["specversion"])
	assert.Equal(t, "booking.checked_in.v1", envelope["type"])
	assert.Equal(t, "app://innkeep-test", envelope["source"])
	assert.NotEmpty(t, envelope["id"])
	assert.NotNil(t, envelope["data"])
}

func TestWorker_TopicPrefix(t *testing.T) {
	store := memory.NewOutboxStore()
	addEvent(t, store)

	producer := &capturingProducer{}
	worker := &infraoutbox.Worker{
		Store:       store,
		Producer:    producer,
		Interval:    5 * time.Millisecond,
		TopicPrefix: "prod.",
		ID:          "worker-1",
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_ = worker.Run(ctx)

	msgs := producer.published()
	require.Len(t, msgs, 1)
	assert.Equal(t, "prod.booking.events.v1", msgs[0].topic)
}

func TestWorker_RetriesFailedPublishes(t *testing.T) {
	store := memory.NewOutboxStore()
	addEvent(t, store)

	producer := &capturingProducer{err: errors.New("broker down")}
	worker := &infraoutbox.Worker{
		Store:    store,
		Producer: producer,
		Interval: 5 * time.Millisecond,
		Backoff:  []time.Duration{10 * time.Millisecond},
		ID:       "worker-1",
	}

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	go func() {
		time.Sleep(40 * time.Millisecond)
		producer.mu.Lock()
		producer.err = nil
		producer.mu.Unlock()
	}()
	defer cancel()
	_ = worker.Run(ctx)

	msgs := producer.published()
	require.Len(t, msgs, 1)
}

func TestWorker_MissingDependencies(t *testing.T) {
	worker := &infraoutbox.Worker{}
	err := worker.Run(context.Background())
	assert.ErrorIs(t, err, infraoutbox.ErrWorkerNotConfigured)
}
