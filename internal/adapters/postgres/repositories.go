package postgres

import (
	"github.com/viralforge/stakeshare/internal/ports"
	"gorm.io/gorm"
)

type Repositories struct {
	Links        ports.LinkRepository
	Conversions  ports.ConversionRepository
	Settlements  ports.SettlementRepository
	Payouts      ports.PayoutRepository
	Terminations ports.TerminationRepository
	Outbox       ports.OutboxRepository
	Directory    *DirectoryRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Links:        &linkRepository{db: db},
		Conversions:  &conversionRepository{db: db},
		Settlements:  &settlementRepository{db: db},
		Payouts:      &payoutRepository{db: db},
		Terminations: &terminationRepository{db: db},
		Outbox:       &outboxRepository{db: db},
		Directory:    &DirectoryRepository{db: db},
	}
}

// enqueueOutbox must run on the transaction that performs the state change.
func enqueueOutbox(tx *gorm.DB, event ports.OutboxEvent) error {
	rec := referralOutboxModel{
		OutboxID:     event.EventID,
		EventType:    event.EventType,
		PartitionKey: event.PartitionKey,
		Payload:      string(event.Payload),
		CreatedAt:    event.OccurredAt.UTC(),
	}
	return tx.Create(&rec).Error
}
