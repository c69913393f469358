package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viralforge/stakeshare/internal/adapters/memory"
	"github.com/viralforge/stakeshare/internal/contracts"
	"github.com/viralforge/stakeshare/internal/domain"
	"github.com/viralforge/stakeshare/internal/ports"
)

type published struct {
	eventType    string
	partitionKey string
	payload      []byte
}

type recordingPublisher struct {
	mu       sync.Mutex
	failFor  map[string]error
	messages []published
}

func (p *recordingPublisher) Publish(_ context.Context, eventType string, payload []byte, partitionKey string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.failFor[eventType]; ok {
		return err
	}
	p.messages = append(p.messages, published{eventType: eventType, partitionKey: partitionKey, payload: payload})
	return nil
}

func (p *recordingPublisher) byType(eventType string) []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []published
	for _, m := range p.messages {
		if m.eventType == eventType {
			out = append(out, m)
		}
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func seedOutbox(t *testing.T, repos *memory.Repositories, code, eventType string) {
	t.Helper()
	envelope, err := json.Marshal(contracts.EventEnvelope{EventID: uuid.NewString(), EventType: eventType, PartitionKey: code})
	require.NoError(t, err)
	link := domain.TrackingLink{LinkID: uuid.NewString(), ReferralCode: code, CreatedAt: time.Now().UTC()}
	require.NoError(t, repos.Links.Create(context.Background(), link, ports.OutboxEvent{
		EventID:      uuid.New(),
		EventType:    eventType,
		PartitionKey: code,
		Payload:      envelope,
		OccurredAt:   time.Now().UTC(),
	}))
}

func TestOutboxWorkerPublishesAndMarks(t *testing.T) {
	repos := memory.NewRepositories()
	seedOutbox(t, repos, "AB12CD34", domain.EventLinkCreated)
	seedOutbox(t, repos, "EF56GH78", domain.EventLinkCreated)
	pub := &recordingPublisher{}
	w := NewOutboxWorker(discardLogger(), repos.Outbox, pub, OutboxWorkerConfig{BatchSize: 10})

	res, err := w.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Published)

	msgs := pub.byType(domain.EventLinkCreated)
	require.Len(t, msgs, 2)
	assert.Equal(t, "AB12CD34", msgs[0].partitionKey)

	for _, rec := range repos.Outbox.Records() {
		assert.NotNil(t, rec.PublishedAt)
	}

	res, err = w.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Published)
}

func TestOutboxWorkerDeadLettersAfterMaxRetries(t *testing.T) {
	repos := memory.NewRepositories()
	seedOutbox(t, repos, "AB12CD34", domain.EventPayoutSent)
	pub := &recordingPublisher{failFor: map[string]error{domain.EventPayoutSent: errors.New("broker down")}}
	w := NewOutboxWorker(discardLogger(), repos.Outbox, pub, OutboxWorkerConfig{BatchSize: 10, MaxRetries: 3})

	for i := 0; i < 2; i++ {
		res, err := w.ProcessOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, res.Failed)
		assert.Zero(t, res.DeadLettered)
	}
	res, err := w.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.DeadLettered)

	records := repos.Outbox.Records()
	require.Len(t, records, 1)
	assert.NotNil(t, records[0].DeadLetteredAt)
	assert.Equal(t, 3, records[0].RetryCount)

	dlq := pub.byType(contracts.TopicReferralDLQ)
	require.Len(t, dlq, 1)
	var rec contracts.DLQRecord
	require.NoError(t, json.Unmarshal(dlq[0].payload, &rec))
	assert.Equal(t, "broker down", rec.ErrorSummary)
	assert.Equal(t, domain.EventPayoutSent, rec.SourceTopic)
	assert.Equal(t, domain.EventPayoutSent, rec.OriginalEvent.EventType)

	res, err = w.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Failed+res.DeadLettered+res.Published)
}

func TestKafkaPublisherRequiresBrokers(t *testing.T) {
	_, err := NewKafkaPublisher(nil, nil)
	assert.Error(t, err)

	p, err := NewKafkaPublisher([]string{"localhost:9092"}, map[string]string{domain.EventPayoutSent: "payouts"})
	require.NoError(t, err)
	assert.Equal(t, "payouts", p.topicFor(domain.EventPayoutSent))
	assert.Equal(t, domain.EventLinkCreated, p.topicFor(domain.EventLinkCreated))
	require.NoError(t, p.Close())
}
