package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/viralforge/stakeshare/internal/domain"
	"github.com/viralforge/stakeshare/internal/ports"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type payoutRepository struct {
	db *gorm.DB
}

func (r *payoutRepository) ClaimDue(ctx context.Context, now time.Time, limit int, claimToken string, claimUntil time.Time) ([]domain.PayoutInstruction, error) {
	if limit <= 0 {
		return nil, nil
	}
	if claimToken == "" {
		return nil, errors.New("claim token is required")
	}
	now = now.UTC()
	var rows []payoutInstructionModel
	if err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		subquery := tx.Model(&payoutInstructionModel{}).
			Select("payout_id").
			Where("status = ?", string(domain.PayoutStatusPending)).
			Where("next_attempt_at <= ?", now).
			Where("claim_until IS NULL OR claim_until < ?", now).
			Order("created_at ASC").
			Limit(limit).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})

		if err := tx.Model(&payoutInstructionModel{}).
			Where("payout_id IN (?)", subquery).
			Updates(map[string]any{
				"claim_token": claimToken,
				"claim_until": claimUntil.UTC(),
			}).Error; err != nil {
			return err
		}

		return tx.Where("claim_token = ?", claimToken).
			Where("status = ?", string(domain.PayoutStatusPending)).
			Order("created_at ASC").
			Find(&rows).Error
	}); err != nil {
		return nil, err
	}
	out := make([]domain.PayoutInstruction, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainPayout(row))
	}
	return out, nil
}

// updateClaimed applies updates only while the caller still holds the claim.
func updateClaimed(tx *gorm.DB, payoutID, claimToken string, updates map[string]any) error {
	updates["claim_token"] = nil
	updates["claim_until"] = nil
	res := tx.Model(&payoutInstructionModel{}).
		Where("payout_id = ?", payoutID).
		Where("claim_token = ?", claimToken).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return missingOrConflict(tx, payoutID)
	}
	return nil
}

func missingOrConflict(tx *gorm.DB, payoutID string) error {
	var count int64
	if err := tx.Model(&payoutInstructionModel{}).Where("payout_id = ?", payoutID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return domain.ErrNotFound
	}
	return domain.ErrConflict
}

func (r *payoutRepository) MarkSent(ctx context.Context, payoutID, claimToken, transferID string, at time.Time, event ports.OutboxEvent) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := updateClaimed(tx, payoutID, claimToken, map[string]any{
			"status":      string(domain.PayoutStatusSent),
			"transfer_id": transferID,
			"attempts":    gorm.Expr("attempts + 1"),
			"last_error":  nil,
			"updated_at":  at.UTC(),
		}); err != nil {
			return err
		}
		return enqueueOutbox(tx, event)
	})
}

func (r *payoutRepository) MarkFailed(ctx context.Context, payoutID, claimToken string, attempts int, nextAttemptAt time.Time, lastErr string, at time.Time) error {
	return updateClaimed(r.db.WithContext(ctx), payoutID, claimToken, map[string]any{
		"attempts":        attempts,
		"next_attempt_at": nextAttemptAt.UTC(),
		"last_error":      lastErr,
		"updated_at":      at.UTC(),
	})
}

func (r *payoutRepository) Escalate(ctx context.Context, payoutID, claimToken string, attempts int, lastErr string, at time.Time, event ports.OutboxEvent) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := updateClaimed(tx, payoutID, claimToken, map[string]any{
			"status":     string(domain.PayoutStatusOperatorReview),
			"attempts":   attempts,
			"last_error": lastErr,
			"updated_at": at.UTC(),
		}); err != nil {
			return err
		}
		return enqueueOutbox(tx, event)
	})
}

func (r *payoutRepository) GetByKey(ctx context.Context, idempotencyKey string) (domain.PayoutInstruction, error) {
	var row payoutInstructionModel
	if err := r.db.WithContext(ctx).Where("idempotency_key = ?", idempotencyKey).First(&row).Error; err != nil {
		return domain.PayoutInstruction{}, notFound(err)
	}
	return toDomainPayout(row), nil
}

func (r *payoutRepository) ListByStatus(ctx context.Context, status domain.PayoutStatus, limit int) ([]domain.PayoutInstruction, error) {
	var rows []payoutInstructionModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", string(status)).
		Order("updated_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.PayoutInstruction, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainPayout(row))
	}
	return out, nil
}

func (r *payoutRepository) Requeue(ctx context.Context, payoutID string, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&payoutInstructionModel{}).
			Where("payout_id = ?", payoutID).
			Where("status = ?", string(domain.PayoutStatusOperatorReview)).
			Updates(map[string]any{
				"status":          string(domain.PayoutStatusPending),
				"attempts":        0,
				"next_attempt_at": at.UTC(),
				"updated_at":      at.UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return missingOrConflict(tx, payoutID)
		}
		return nil
	})
}
