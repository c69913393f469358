package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/stakeshare/internal/contracts"
	"github.com/viralforge/stakeshare/internal/ports"
)

// OutboxWorker relays committed outbox rows to the event publisher. Rows that
// exhaust their retries are dead-lettered and copied to the DLQ topic.
type OutboxWorker struct {
	logger     *slog.Logger
	outbox     ports.OutboxRepository
	publisher  ports.EventPublisher
	interval   time.Duration
	batchSize  int
	claimTTL   time.Duration
	maxRetries int
	dlqTopic   string
	nowFn      func() time.Time
}

type OutboxWorkerConfig struct {
	Interval   time.Duration
	BatchSize  int
	ClaimTTL   time.Duration
	MaxRetries int
	DLQTopic   string
}

func NewOutboxWorker(logger *slog.Logger, outbox ports.OutboxRepository, publisher ports.EventPublisher, cfg OutboxWorkerConfig) *OutboxWorker {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.DLQTopic == "" {
		cfg.DLQTopic = contracts.TopicReferralDLQ
	}
	return &OutboxWorker{
		logger:     logger,
		outbox:     outbox,
		publisher:  publisher,
		interval:   cfg.Interval,
		batchSize:  cfg.BatchSize,
		claimTTL:   cfg.ClaimTTL,
		maxRetries: cfg.MaxRetries,
		dlqTopic:   cfg.DLQTopic,
		nowFn:      func() time.Time { return time.Now().UTC() },
	}
}

// Run executes the periodic outbox publish loop until context cancellation.
func (w *OutboxWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if _, err := w.ProcessOnce(ctx); err != nil {
			w.logger.ErrorContext(ctx, "outbox iteration failed",
				"module", "events.outbox_worker",
				"layer", "adapter",
				"operation", "outbox_process_once",
				"outcome", "failure",
				"error", err,
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

type OutboxBatchResult struct {
	Published    int
	Failed       int
	DeadLettered int
}

func (w *OutboxWorker) ProcessOnce(ctx context.Context) (OutboxBatchResult, error) {
	var result OutboxBatchResult
	claimToken := uuid.NewString()
	records, err := w.outbox.ClaimUnpublished(ctx, w.batchSize, claimToken, w.nowFn().Add(w.claimTTL))
	if err != nil {
		return result, err
	}

	for _, rec := range records {
		now := w.nowFn()
		if rec.RetryCount >= w.maxRetries {
			result.DeadLettered++
			w.deadLetter(ctx, rec, claimToken, "retry threshold reached before publish", now)
			continue
		}

		if err := w.publisher.Publish(ctx, rec.EventType, rec.Payload, rec.PartitionKey); err != nil {
			result.Failed++
			retriesAfterFailure := rec.RetryCount + 1
			if retriesAfterFailure >= w.maxRetries {
				result.DeadLettered++
				w.logger.ErrorContext(ctx, "outbox message moved to dlq",
					"module", "events.outbox_worker",
					"layer", "adapter",
					"operation", "publish_event",
					"outcome", "failure",
					"outbox_id", rec.OutboxID,
					"event_type", rec.EventType,
					"retry_count", retriesAfterFailure,
					"error", err,
				)
				rec.RetryCount = retriesAfterFailure
				w.deadLetter(ctx, rec, claimToken, err.Error(), now)
				continue
			}

			w.logger.WarnContext(ctx, "outbox publish failed; retry scheduled",
				"module", "events.outbox_worker",
				"layer", "adapter",
				"operation", "publish_event",
				"outcome", "failure",
				"outbox_id", rec.OutboxID,
				"event_type", rec.EventType,
				"retry_count", retriesAfterFailure,
				"error", err,
			)
			if markErr := w.outbox.MarkFailed(ctx, rec.OutboxID, claimToken, err.Error(), now); markErr != nil {
				w.logMarkFailure(ctx, rec, markErr)
			}
			continue
		}
		result.Published++
		if markErr := w.outbox.MarkPublished(ctx, rec.OutboxID, claimToken, now); markErr != nil {
			w.logMarkFailure(ctx, rec, markErr)
		}
	}
	if len(records) > 0 {
		w.logger.InfoContext(ctx, "outbox batch processed",
			"module", "events.outbox_worker",
			"layer", "adapter",
			"operation", "outbox_process_once",
			"outcome", "success",
			"batch_size", len(records),
			"published_count", result.Published,
			"failed_count", result.Failed,
			"dead_lettered_count", result.DeadLettered,
		)
	}
	return result, nil
}

func (w *OutboxWorker) deadLetter(ctx context.Context, rec ports.OutboxRecord, claimToken, reason string, now time.Time) {
	if err := w.outbox.MarkDeadLettered(ctx, rec.OutboxID, claimToken, reason, now); err != nil {
		w.logMarkFailure(ctx, rec, err)
		return
	}
	var envelope contracts.EventEnvelope
	_ = json.Unmarshal(rec.Payload, &envelope)
	raw, err := json.Marshal(contracts.DLQRecord{
		OriginalEvent: envelope,
		ErrorSummary:  reason,
		RetryCount:    rec.RetryCount,
		LastErrorAt:   now,
		SourceTopic:   rec.EventType,
		DLQTopic:      w.dlqTopic,
	})
	if err != nil {
		return
	}
	if err := w.publisher.Publish(ctx, w.dlqTopic, raw, rec.PartitionKey); err != nil {
		w.logger.ErrorContext(ctx, "dlq publish failed",
			"module", "events.outbox_worker",
			"layer", "adapter",
			"operation", "publish_dlq",
			"outcome", "failure",
			"outbox_id", rec.OutboxID,
			"error", err,
		)
	}
}

func (w *OutboxWorker) logMarkFailure(ctx context.Context, rec ports.OutboxRecord, err error) {
	w.logger.WarnContext(ctx, "outbox state update failed",
		"module", "events.outbox_worker",
		"layer", "adapter",
		"operation", "mark_outbox",
		"outcome", "failure",
		"outbox_id", rec.OutboxID,
		"error", err,
	)
}
