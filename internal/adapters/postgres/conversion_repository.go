package postgres

import (
	"context"

	"github.com/viralforge/stakeshare/internal/domain"
	"github.com/viralforge/stakeshare/internal/ports"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type conversionRepository struct {
	db *gorm.DB
}

// Record relies on the unique dedup_key index: concurrent inserts of one key
// serialize in the database and all but the first see zero affected rows.
func (r *conversionRepository) Record(ctx context.Context, conversion domain.ConversionEvent, task domain.SettlementTask, event ports.OutboxEvent) (domain.ConversionEvent, bool, error) {
	var (
		stored  conversionEventModel
		created bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := toConversionModel(conversion)
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "dedup_key"}},
			DoNothing: true,
		}).Create(&row)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return tx.Where("dedup_key = ?", conversion.DedupKey).First(&stored).Error
		}
		created = true
		stored = row
		counter := tx.Model(&trackingLinkModel{}).
			Where("link_id = ?", conversion.LinkID).
			UpdateColumn("conversion_count", gorm.Expr("conversion_count + 1"))
		if counter.Error != nil {
			return counter.Error
		}
		if counter.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		taskRow := settlementTaskModel{
			ConversionID:  task.ConversionID,
			Status:        string(task.Status),
			Attempts:      task.Attempts,
			NextAttemptAt: task.NextAttemptAt.UTC(),
			LastError:     nullableString(task.LastError),
			UpdatedAt:     task.UpdatedAt.UTC(),
		}
		if err := tx.Create(&taskRow).Error; err != nil {
			return err
		}
		return enqueueOutbox(tx, event)
	})
	if err != nil {
		return domain.ConversionEvent{}, false, notFound(err)
	}
	return toDomainConversion(stored), created, nil
}

func (r *conversionRepository) GetByID(ctx context.Context, conversionID string) (domain.ConversionEvent, error) {
	var row conversionEventModel
	if err := r.db.WithContext(ctx).Where("conversion_id = ?", conversionID).First(&row).Error; err != nil {
		return domain.ConversionEvent{}, notFound(err)
	}
	return toDomainConversion(row), nil
}

func (r *conversionRepository) GetByDedupKey(ctx context.Context, dedupKey string) (domain.ConversionEvent, error) {
	var row conversionEventModel
	if err := r.db.WithContext(ctx).Where("dedup_key = ?", dedupKey).First(&row).Error; err != nil {
		return domain.ConversionEvent{}, notFound(err)
	}
	return toDomainConversion(row), nil
}

func (r *conversionRepository) ListByProgram(ctx context.Context, programID string) ([]domain.ConversionEvent, error) {
	var rows []conversionEventModel
	if err := r.db.WithContext(ctx).
		Where("program_id = ?", programID).
		Order("created_at ASC, conversion_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.ConversionEvent, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainConversion(row))
	}
	return out, nil
}

func (r *conversionRepository) RecordUnattributed(ctx context.Context, note domain.UnattributedConversion, event ports.OutboxEvent) (domain.UnattributedConversion, bool, error) {
	var (
		stored  unattributedConversionModel
		created bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := unattributedConversionModel{
			DedupKey:           note.DedupKey,
			ReferralCode:       note.ReferralCode,
			CompanyID:          note.CompanyID,
			RevenueAmountCents: note.RevenueAmountCents,
			CustomerEmail:      note.CustomerEmail,
			ConversionType:     note.ConversionType,
			OrderID:            nullableString(note.OrderID),
			OccurredAt:         note.OccurredAt.UTC(),
			Reason:             note.Reason,
			CreatedAt:          note.CreatedAt.UTC(),
		}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "dedup_key"}},
			DoNothing: true,
		}).Create(&row)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return tx.Where("dedup_key = ?", note.DedupKey).First(&stored).Error
		}
		created = true
		stored = row
		return enqueueOutbox(tx, event)
	})
	if err != nil {
		return domain.UnattributedConversion{}, false, err
	}
	return toDomainUnattributed(stored), created, nil
}

func (r *conversionRepository) ListUnattributed(ctx context.Context, limit int) ([]domain.UnattributedConversion, error) {
	var rows []unattributedConversionModel
	if err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.UnattributedConversion, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainUnattributed(row))
	}
	return out, nil
}
