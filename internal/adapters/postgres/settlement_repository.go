package postgres

import (
	"context"
	"time"

	"github.com/viralforge/stakeshare/internal/domain"
	"github.com/viralforge/stakeshare/internal/ports"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type settlementRepository struct {
	db *gorm.DB
}

func (r *settlementRepository) Apply(ctx context.Context, record domain.SettlementRecord, payout *domain.PayoutInstruction, event ports.OutboxEvent) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := settlementRecordModel{
			ConversionID:            record.ConversionID,
			CreatorID:               record.CreatorID,
			ProgramID:               record.ProgramID,
			RevenueAmountCents:      record.RevenueAmountCents,
			RevenueSharePercent:     record.RevenueSharePercent,
			RevenueShareAmountCents: record.RevenueShareAmountCents,
			Currency:                record.Currency,
			ComputedAt:              record.ComputedAt.UTC(),
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "conversion_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"creator_id",
				"program_id",
				"revenue_amount_cents",
				"revenue_share_percent",
				"revenue_share_amount_cents",
				"currency",
				"computed_at",
			}),
		}).Create(&row).Error; err != nil {
			return err
		}
		if payout != nil {
			if err := upsertPayout(tx, *payout); err != nil {
				return err
			}
		}
		if err := tx.Model(&settlementTaskModel{}).
			Where("conversion_id = ?", record.ConversionID).
			Updates(map[string]any{
				"status":     string(domain.SettlementTaskDone),
				"last_error": nil,
				"updated_at": record.ComputedAt.UTC(),
			}).Error; err != nil {
			return err
		}
		return enqueueOutbox(tx, event)
	})
}

// upsertPayout inserts the instruction or, while it is still pending and not
// claimed by a dispatcher, refreshes its amount and destination. Sent and
// escalated instructions are left untouched.
func upsertPayout(tx *gorm.DB, p domain.PayoutInstruction) error {
	row := toPayoutModel(p)
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "idempotency_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"amount_cents",
			"payout_account_id",
			"currency",
			"description",
			"updated_at",
		}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Eq{Column: clause.Column{Table: "payout_instructions", Name: "status"}, Value: string(domain.PayoutStatusPending)},
			clause.Expr{
				SQL:  "(payout_instructions.claim_until IS NULL OR payout_instructions.claim_until < ?)",
				Vars: []any{p.UpdatedAt.UTC()},
			},
		}},
	}).Create(&row).Error
}

func (r *settlementRepository) Get(ctx context.Context, conversionID string) (domain.SettlementRecord, error) {
	var row settlementRecordModel
	if err := r.db.WithContext(ctx).Where("conversion_id = ?", conversionID).First(&row).Error; err != nil {
		return domain.SettlementRecord{}, notFound(err)
	}
	return toDomainSettlement(row), nil
}

func (r *settlementRepository) ListDueTasks(ctx context.Context, now time.Time, limit int) ([]domain.SettlementTask, error) {
	var rows []settlementTaskModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", string(domain.SettlementTaskPending)).
		Where("next_attempt_at <= ?", now.UTC()).
		Order("next_attempt_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.SettlementTask, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainTask(row))
	}
	return out, nil
}

func (r *settlementRepository) RescheduleTask(ctx context.Context, task domain.SettlementTask) error {
	res := r.db.WithContext(ctx).
		Model(&settlementTaskModel{}).
		Where("conversion_id = ?", task.ConversionID).
		Updates(map[string]any{
			"status":          string(task.Status),
			"attempts":        task.Attempts,
			"next_attempt_at": task.NextAttemptAt.UTC(),
			"last_error":      nullableString(task.LastError),
			"updated_at":      task.UpdatedAt.UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
