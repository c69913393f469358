package postgres

import (
	"context"

	"github.com/viralforge/stakeshare/internal/domain"
	"github.com/viralforge/stakeshare/internal/ports"
	"gorm.io/gorm"
)

type terminationRepository struct {
	db *gorm.DB
}

func (r *terminationRepository) Create(ctx context.Context, req domain.TerminationRequest, audit domain.TerminationAudit, event ports.OutboxEvent) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := toTerminationModel(req)
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return domain.ErrConflict
			}
			return err
		}
		auditRow := toAuditModel(audit)
		if err := tx.Create(&auditRow).Error; err != nil {
			return err
		}
		return enqueueOutbox(tx, event)
	})
}

func (r *terminationRepository) GetByID(ctx context.Context, requestID string) (domain.TerminationRequest, error) {
	var row terminationRequestModel
	if err := r.db.WithContext(ctx).Where("request_id = ?", requestID).First(&row).Error; err != nil {
		return domain.TerminationRequest{}, notFound(err)
	}
	return toDomainTermination(row), nil
}

func (r *terminationRepository) Transition(ctx context.Context, next domain.TerminationRequest, expected domain.TerminationStatus, payout *domain.PayoutInstruction, audit domain.TerminationAudit, event ports.OutboxEvent) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := toTerminationModel(next)
		res := tx.Model(&terminationRequestModel{}).
			Where("request_id = ?", next.RequestID).
			Where("status = ?", string(expected)).
			Updates(map[string]any{
				"status":                   row.Status,
				"months_served":            row.MonthsServed,
				"earned_equity_pct":        row.EarnedEquityPct,
				"company_valuation_cents":  row.CompanyValuationCents,
				"compensation_value_cents": row.CompensationValueCents,
				"decided_by":               row.DecidedBy,
				"decided_at":               row.DecidedAt,
				"updated_at":               row.UpdatedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&terminationRequestModel{}).Where("request_id = ?", next.RequestID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return domain.ErrNotFound
			}
			return domain.ErrConflict
		}
		if payout != nil {
			if err := upsertPayout(tx, *payout); err != nil {
				return err
			}
		}
		auditRow := toAuditModel(audit)
		if err := tx.Create(&auditRow).Error; err != nil {
			return err
		}
		return enqueueOutbox(tx, event)
	})
}

func (r *terminationRepository) ListAudit(ctx context.Context, requestID string) ([]domain.TerminationAudit, error) {
	var rows []terminationAuditModel
	if err := r.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("created_at ASC, audit_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.TerminationAudit, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.TerminationAudit{
			AuditID:   row.AuditID,
			RequestID: row.RequestID,
			Action:    row.Action,
			ActorID:   row.ActorID,
			Party:     domain.Party(row.Party),
			Note:      deref(row.Note),
			CreatedAt: row.CreatedAt.UTC(),
		})
	}
	return out, nil
}
