package application

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/viralforge/stakeshare/internal/contracts"
	"github.com/viralforge/stakeshare/internal/domain"
	"github.com/viralforge/stakeshare/internal/ports"
)

const eventSchemaVersion = "v1"

// newEvent builds the outbox row for an emitted domain event. The envelope is
// serialized here so repositories store opaque bytes.
func (s *Service) newEvent(eventType, partitionKeyPath, partitionKey, traceID string, data any, now time.Time) (ports.OutboxEvent, error) {
	if !domain.IsCanonicalEmittedEvent(eventType) {
		return ports.OutboxEvent{}, fmt.Errorf("%w: unsupported event type %s", domain.ErrInvalidInput, eventType)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return ports.OutboxEvent{}, err
	}
	if strings.TrimSpace(traceID) == "" {
		traceID = uuid.NewString()
	}
	// v7 ids sort by creation time, which keeps the relay in commit order.
	eventID, err := uuid.NewV7()
	if err != nil {
		return ports.OutboxEvent{}, err
	}
	envelope := contracts.EventEnvelope{
		EventID:          eventID.String(),
		EventType:        eventType,
		OccurredAt:       now,
		PartitionKeyPath: partitionKeyPath,
		PartitionKey:     partitionKey,
		SourceService:    s.cfg.ServiceName,
		TraceID:          traceID,
		SchemaVersion:    eventSchemaVersion,
		Data:             raw,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return ports.OutboxEvent{}, err
	}
	return ports.OutboxEvent{
		EventID:      eventID,
		EventType:    eventType,
		PartitionKey: partitionKey,
		Payload:      payload,
		OccurredAt:   now,
	}, nil
}

// retryDelay is the deterministic exponential schedule used for rescheduling
// settlement tasks and payout instructions after the given number of attempts.
func (s *Service) retryDelay(attempts int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.RetryInitialInterval
	b.MaxInterval = s.cfg.RetryMaxInterval
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	d := b.InitialInterval
	for i := 0; i < attempts; i++ {
		d = b.NextBackOff()
	}
	return d
}

func isAdmin(actor Actor) bool { return strings.EqualFold(strings.TrimSpace(actor.Role), "admin") }

func sha256Hex(v string) string {
	if v == "" {
		return ""
	}
	h := sha256.Sum256([]byte(v))
	return hex.EncodeToString(h[:])
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func requireActor(actor Actor) error {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.ErrUnauthorized
	}
	return nil
}

// newAuditID returns a time-ordered id so audit trails list in write order.
func newAuditID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
