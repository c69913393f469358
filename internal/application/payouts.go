package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/stakeshare/internal/contracts"
	"github.com/viralforge/stakeshare/internal/domain"
	"github.com/viralforge/stakeshare/internal/ports"
)

// ProcessPayouts claims due payout instructions and hands them to the payout
// collaborator under their stable idempotency key. Instructions that keep failing
// land in the operator review queue.
func (s *Service) ProcessPayouts(ctx context.Context) (int, error) {
	if s.payoutAPI == nil {
		return 0, nil
	}
	now := s.nowFn()
	claimToken := uuid.NewString()
	due, err := s.payouts.ClaimDue(ctx, now, s.cfg.PayoutBatchSize, claimToken, now.Add(s.cfg.PayoutClaimTTL))
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, p := range due {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		res, err := s.payoutAPI.Transfer(ctx, ports.TransferRequest{
			IdempotencyKey:  p.IdempotencyKey,
			PayoutAccountID: p.PayoutAccountID,
			AmountCents:     p.AmountCents,
			Currency:        p.Currency,
			Description:     p.Description,
		})
		at := s.nowFn()
		if err == nil {
			p.TransferID = res.TransferID
			event, evErr := s.payoutEvent(domain.EventPayoutSent, p, at)
			if evErr != nil {
				return sent, evErr
			}
			if err := s.payouts.MarkSent(ctx, p.PayoutID, claimToken, res.TransferID, at, event); err != nil {
				return sent, err
			}
			s.logger.Info("payout sent",
				"module", "payout_dispatcher",
				"operation", "process_payouts",
				"outcome", "sent",
				"payout_id", p.PayoutID,
				"transfer_id", res.TransferID,
			)
			s.metrics.PayoutDispatched("sent")
			sent++
			continue
		}

		p.Attempts++
		p.LastError = err.Error()
		if errors.Is(err, domain.ErrPermanent) || p.Attempts >= s.cfg.PayoutMaxAttempts {
			event, evErr := s.payoutEvent(domain.EventPayoutEscalated, p, at)
			if evErr != nil {
				return sent, evErr
			}
			if err := s.payouts.Escalate(ctx, p.PayoutID, claimToken, p.Attempts, p.LastError, at, event); err != nil {
				return sent, err
			}
			s.logger.Error("payout moved to operator review",
				"module", "payout_dispatcher",
				"operation", "process_payouts",
				"outcome", "escalated",
				"payout_id", p.PayoutID,
				"attempts", p.Attempts,
				"error", err,
			)
			s.metrics.PayoutDispatched("escalated")
			continue
		}
		next := at.Add(s.retryDelay(p.Attempts))
		if err := s.payouts.MarkFailed(ctx, p.PayoutID, claimToken, p.Attempts, next, p.LastError, at); err != nil {
			return sent, err
		}
		s.logger.Warn("payout attempt failed",
			"module", "payout_dispatcher",
			"operation", "process_payouts",
			"outcome", "retry",
			"payout_id", p.PayoutID,
			"attempts", p.Attempts,
			"next_attempt_at", next,
			"error", err,
		)
		s.metrics.PayoutDispatched("retry")
	}
	return sent, nil
}

func (s *Service) payoutEvent(eventType string, p domain.PayoutInstruction, at time.Time) (ports.OutboxEvent, error) {
	return s.newEvent(eventType, "creator_id", p.CreatorID, "", contracts.PayoutPayload{
		PayoutID:       p.PayoutID,
		IdempotencyKey: p.IdempotencyKey,
		CreatorID:      p.CreatorID,
		AmountCents:    p.AmountCents,
		Currency:       p.Currency,
		TransferID:     p.TransferID,
		Attempts:       p.Attempts,
		LastError:      p.LastError,
	}, at)
}

func (s *Service) ListOperatorQueue(ctx context.Context, actor Actor, limit int) ([]domain.PayoutInstruction, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !isAdmin(actor) {
		return nil, domain.ErrForbidden
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.payouts.ListByStatus(ctx, domain.PayoutStatusOperatorReview, limit)
}

// RequeuePayout returns an escalated instruction to the dispatcher with a fresh attempt budget.
func (s *Service) RequeuePayout(ctx context.Context, actor Actor, payoutID string) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if !isAdmin(actor) {
		return domain.ErrForbidden
	}
	payoutID = strings.TrimSpace(payoutID)
	if payoutID == "" {
		return fmt.Errorf("%w: payout_id is required", domain.ErrInvalidInput)
	}
	if err := s.payouts.Requeue(ctx, payoutID, s.nowFn()); err != nil {
		return err
	}
	s.logger.Info("payout requeued",
		"module", "payout_dispatcher",
		"operation", "requeue_payout",
		"outcome", "success",
		"payout_id", payoutID,
		"actor_id", actor.SubjectID,
	)
	return nil
}
