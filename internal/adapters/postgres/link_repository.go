package postgres

import (
	"context"

	"github.com/viralforge/stakeshare/internal/domain"
	"github.com/viralforge/stakeshare/internal/ports"
	"gorm.io/gorm"
)

type linkRepository struct {
	db *gorm.DB
}

func (r *linkRepository) Create(ctx context.Context, link domain.TrackingLink, event ports.OutboxEvent) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := toLinkModel(link)
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return domain.ErrConflict
			}
			return err
		}
		return enqueueOutbox(tx, event)
	})
}

func (r *linkRepository) GetByCode(ctx context.Context, code string) (domain.TrackingLink, error) {
	var row trackingLinkModel
	if err := r.db.WithContext(ctx).Where("referral_code = ?", code).First(&row).Error; err != nil {
		return domain.TrackingLink{}, notFound(err)
	}
	return toDomainLink(row), nil
}

func (r *linkRepository) ListByCreatorProgram(ctx context.Context, creatorID, programID string) ([]domain.TrackingLink, error) {
	var rows []trackingLinkModel
	if err := r.db.WithContext(ctx).
		Where("creator_id = ? AND program_id = ?", creatorID, programID).
		Order("created_at ASC, link_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.TrackingLink, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainLink(row))
	}
	return out, nil
}

func (r *linkRepository) RecordClick(ctx context.Context, click domain.ClickEvent, event ports.OutboxEvent) (domain.TrackingLink, error) {
	var row trackingLinkModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&trackingLinkModel{}).
			Where("link_id = ?", click.LinkID).
			UpdateColumn("click_count", gorm.Expr("click_count + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		clickRow := toClickModel(click)
		if err := tx.Create(&clickRow).Error; err != nil {
			return err
		}
		if err := enqueueOutbox(tx, event); err != nil {
			return err
		}
		return tx.Where("link_id = ?", click.LinkID).First(&row).Error
	})
	if err != nil {
		return domain.TrackingLink{}, err
	}
	return toDomainLink(row), nil
}
