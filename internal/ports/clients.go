package ports

import (
	"context"

	"github.com/viralforge/stakeshare/internal/domain"
)

// ProgramReader, CreatorReader and ContractReader expose read-mostly records
// owned by other services. The engine never writes their business fields.
type ProgramReader interface {
	GetProgram(ctx context.Context, programID string) (domain.Program, error)
}

type CreatorReader interface {
	GetCreator(ctx context.Context, creatorID string) (domain.Creator, error)
}

type ContractReader interface {
	GetContract(ctx context.Context, contractID string) (domain.Contract, error)
}

type TransferRequest struct {
	IdempotencyKey  string
	PayoutAccountID string
	AmountCents     int64
	Currency        string
	Description     string
}

type TransferResult struct {
	TransferID string
}

// PayoutClient sends money out. Errors wrap domain.ErrTransient when a retry may succeed.
type PayoutClient interface {
	Transfer(ctx context.Context, req TransferRequest) (TransferResult, error)
}

// EventPublisher is the outbound domain-event publish port used by the outbox relay.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error
}

// Metrics receives engine counters; outcome labels are short lower-case words.
type Metrics interface {
	ClickRecorded(outcome string)
	ConversionIngested(outcome string)
	SettlementComputed(outcome string)
	PayoutDispatched(outcome string)
	TerminationTransitioned(status string)
}

type NopMetrics struct{}

func (NopMetrics) ClickRecorded(string)           {}
func (NopMetrics) ConversionIngested(string)      {}
func (NopMetrics) SettlementComputed(string)      {}
func (NopMetrics) PayoutDispatched(string)        {}
func (NopMetrics) TerminationTransitioned(string) {}
