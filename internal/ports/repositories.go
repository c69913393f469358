package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/stakeshare/internal/domain"
)

// OutboxEvent is written in the same transaction as the state change it describes.
type OutboxEvent struct {
	EventID      uuid.UUID
	EventType    string
	PartitionKey string
	Payload      []byte
	OccurredAt   time.Time
}

// OutboxRecord is the persisted outbox row as seen by the relay worker.
type OutboxRecord struct {
	OutboxID       uuid.UUID
	EventType      string
	PartitionKey   string
	Payload        []byte
	RetryCount     int
	LastError      *string
	CreatedAt      time.Time
	PublishedAt    *time.Time
	LastErrorAt    *time.Time
	ClaimToken     *string
	ClaimUntil     *time.Time
	DeadLetteredAt *time.Time
}

type OutboxRepository interface {
	ClaimUnpublished(ctx context.Context, limit int, claimToken string, claimUntil time.Time) ([]OutboxRecord, error)
	MarkPublished(ctx context.Context, outboxID uuid.UUID, claimToken string, at time.Time) error
	MarkFailed(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
	MarkDeadLettered(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
}

type LinkRepository interface {
	// Create returns domain.ErrConflict when the referral code is already taken.
	Create(ctx context.Context, link domain.TrackingLink, event OutboxEvent) error
	GetByCode(ctx context.Context, code string) (domain.TrackingLink, error)
	ListByCreatorProgram(ctx context.Context, creatorID, programID string) ([]domain.TrackingLink, error)
	// RecordClick appends the click and increments click_count atomically.
	RecordClick(ctx context.Context, click domain.ClickEvent, event OutboxEvent) (domain.TrackingLink, error)
}

type ConversionRepository interface {
	// Record is an atomic compare-and-insert on dedup_key. On first insert it also
	// increments the link conversion_count and stores the settlement task and event.
	// When the key already exists the stored conversion is returned with created=false.
	Record(ctx context.Context, conversion domain.ConversionEvent, task domain.SettlementTask, event OutboxEvent) (stored domain.ConversionEvent, created bool, err error)
	GetByID(ctx context.Context, conversionID string) (domain.ConversionEvent, error)
	GetByDedupKey(ctx context.Context, dedupKey string) (domain.ConversionEvent, error)
	ListByProgram(ctx context.Context, programID string) ([]domain.ConversionEvent, error)
	// RecordUnattributed keeps one diagnostic note per dedup_key.
	RecordUnattributed(ctx context.Context, note domain.UnattributedConversion, event OutboxEvent) (stored domain.UnattributedConversion, created bool, err error)
	ListUnattributed(ctx context.Context, limit int) ([]domain.UnattributedConversion, error)
}

type SettlementRepository interface {
	// Apply upserts the record by conversion id, upserts the payout instruction when
	// given (amount refreshed only while pending), and marks the settlement task done.
	Apply(ctx context.Context, record domain.SettlementRecord, payout *domain.PayoutInstruction, event OutboxEvent) error
	Get(ctx context.Context, conversionID string) (domain.SettlementRecord, error)
	ListDueTasks(ctx context.Context, now time.Time, limit int) ([]domain.SettlementTask, error)
	RescheduleTask(ctx context.Context, task domain.SettlementTask) error
}

type PayoutRepository interface {
	ClaimDue(ctx context.Context, now time.Time, limit int, claimToken string, claimUntil time.Time) ([]domain.PayoutInstruction, error)
	MarkSent(ctx context.Context, payoutID, claimToken, transferID string, at time.Time, event OutboxEvent) error
	MarkFailed(ctx context.Context, payoutID, claimToken string, attempts int, nextAttemptAt time.Time, lastErr string, at time.Time) error
	Escalate(ctx context.Context, payoutID, claimToken string, attempts int, lastErr string, at time.Time, event OutboxEvent) error
	GetByKey(ctx context.Context, idempotencyKey string) (domain.PayoutInstruction, error)
	ListByStatus(ctx context.Context, status domain.PayoutStatus, limit int) ([]domain.PayoutInstruction, error)
	// Requeue moves an operator_review instruction back to pending; any other state is a conflict.
	Requeue(ctx context.Context, payoutID string, at time.Time) error
}

type TerminationRepository interface {
	// Create returns domain.ErrConflict when the contract already has a pending request.
	Create(ctx context.Context, req domain.TerminationRequest, audit domain.TerminationAudit, event OutboxEvent) error
	GetByID(ctx context.Context, requestID string) (domain.TerminationRequest, error)
	// Transition compare-and-swaps the status from expected to next.Status and
	// persists the snapshot fields, payout, audit and event in the same transaction.
	// A status mismatch returns domain.ErrConflict.
	Transition(ctx context.Context, next domain.TerminationRequest, expected domain.TerminationStatus, payout *domain.PayoutInstruction, audit domain.TerminationAudit, event OutboxEvent) error
	ListAudit(ctx context.Context, requestID string) ([]domain.TerminationAudit, error)
}

// DirectoryWriter applies projections of program, creator and contract records
// received from their owning services.
type DirectoryWriter interface {
	SaveProgram(ctx context.Context, p domain.Program) error
	SaveCreator(ctx context.Context, c domain.Creator) error
	SaveContract(ctx context.Context, c domain.Contract) error
}
