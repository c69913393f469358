package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/viralforge/stakeshare/internal/contracts"
	"github.com/viralforge/stakeshare/internal/domain"
)

// errProgramNotSynced is retryable: the directory projection may still be catching up.
var errProgramNotSynced = fmt.Errorf("%w: program not yet synced", domain.ErrTransient)

// SettleConversion computes the settlement for one stored conversion and upserts
// it by conversion id. Running it again with unchanged terms yields the same record.
func (s *Service) SettleConversion(ctx context.Context, conversionID string) (domain.SettlementRecord, error) {
	conversion, err := s.conversions.GetByID(ctx, conversionID)
	if err != nil {
		return domain.SettlementRecord{}, err
	}
	program, err := s.programs.GetProgram(ctx, conversion.ProgramID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.SettlementRecord{}, fmt.Errorf("%w: %s", errProgramNotSynced, conversion.ProgramID)
	}
	if err != nil {
		return domain.SettlementRecord{}, err
	}
	now := s.nowFn()
	record := domain.ComputeSettlement(conversion, program, now)

	payout, err := s.settlementPayout(ctx, record, now)
	if err != nil {
		return domain.SettlementRecord{}, err
	}
	event, err := s.newEvent(domain.EventSettlementComputed, "creator_id", record.CreatorID, "", contracts.SettlementComputedPayload{
		ConversionID:            record.ConversionID,
		CreatorID:               record.CreatorID,
		ProgramID:               record.ProgramID,
		RevenueSharePercent:     record.RevenueSharePercent.String(),
		RevenueShareAmountCents: record.RevenueShareAmountCents,
		ComputedAt:              formatTime(now),
	}, now)
	if err != nil {
		return domain.SettlementRecord{}, err
	}
	if err := s.settlements.Apply(ctx, record, payout, event); err != nil {
		return domain.SettlementRecord{}, err
	}
	s.logger.Info("settlement computed",
		"module", "settlement_calculator",
		"operation", "settle_conversion",
		"outcome", "success",
		"conversion_id", record.ConversionID,
		"amount_cents", record.RevenueShareAmountCents,
	)
	s.metrics.SettlementComputed("computed")
	return record, nil
}

func (s *Service) settlementPayout(ctx context.Context, record domain.SettlementRecord, now time.Time) (*domain.PayoutInstruction, error) {
	if record.RevenueShareAmountCents <= 0 || s.creators == nil {
		return nil, nil
	}
	creator, err := s.creators.GetCreator(ctx, record.CreatorID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(creator.PayoutAccountID) == "" {
		s.logger.Warn("creator has no payout account",
			"module", "settlement_calculator",
			"operation", "settle_conversion",
			"outcome", "payout_skipped",
			"creator_id", record.CreatorID,
		)
		return nil, nil
	}
	return &domain.PayoutInstruction{
		PayoutID:        uuid.NewString(),
		IdempotencyKey:  domain.SettlementPayoutKey(record.ConversionID),
		SourceKind:      domain.PayoutSourceSettlement,
		SourceID:        record.ConversionID,
		CreatorID:       record.CreatorID,
		PayoutAccountID: creator.PayoutAccountID,
		AmountCents:     record.RevenueShareAmountCents,
		Currency:        record.Currency,
		Description:     "revenue share for conversion " + record.ConversionID,
		Status:          domain.PayoutStatusPending,
		NextAttemptAt:   now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

func (s *Service) settleWithRetry(ctx context.Context, conversionID string) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = time.Second
	op := func() error {
		_, err := s.SettleConversion(ctx, conversionID)
		// A missing program is left to the worker rather than held on the request.
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidInput) || errors.Is(err, errProgramNotSynced) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, s.cfg.InlineSettleRetries), ctx))
}

// ProcessSettlementTasks settles every due task once. Failed tasks are rescheduled
// with exponential backoff and become dead after SettlementMaxAttempts.
func (s *Service) ProcessSettlementTasks(ctx context.Context) (int, error) {
	tasks, err := s.settlements.ListDueTasks(ctx, s.nowFn(), s.cfg.SettlementBatchSize)
	if err != nil {
		return 0, err
	}
	settled := 0
	for _, task := range tasks {
		if ctx.Err() != nil {
			return settled, ctx.Err()
		}
		_, err := s.SettleConversion(ctx, task.ConversionID)
		if err == nil {
			settled++
			continue
		}
		now := s.nowFn()
		task.Attempts++
		task.LastError = err.Error()
		task.UpdatedAt = now
		permanent := errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidInput)
		if permanent || task.Attempts >= s.cfg.SettlementMaxAttempts {
			task.Status = domain.SettlementTaskDead
			s.logger.Error("settlement task dead",
				"module", "settlement_calculator",
				"operation", "process_settlement_tasks",
				"outcome", "dead",
				"conversion_id", task.ConversionID,
				"attempts", task.Attempts,
				"error", err,
			)
			s.metrics.SettlementComputed("dead")
		} else {
			task.NextAttemptAt = now.Add(s.retryDelay(task.Attempts))
			s.logger.Warn("settlement task rescheduled",
				"module", "settlement_calculator",
				"operation", "process_settlement_tasks",
				"outcome", "retry",
				"conversion_id", task.ConversionID,
				"attempts", task.Attempts,
				"error", err,
			)
			s.metrics.SettlementComputed("retry")
		}
		if err := s.settlements.RescheduleTask(ctx, task); err != nil {
			return settled, err
		}
	}
	return settled, nil
}

// RecomputeProgramSettlements re-derives every settlement of a program after a
// terms correction. Payouts already sent keep the amount they were sent with.
func (s *Service) RecomputeProgramSettlements(ctx context.Context, actor Actor, programID string) (int, error) {
	if err := requireActor(actor); err != nil {
		return 0, err
	}
	programID = strings.TrimSpace(programID)
	if programID == "" {
		return 0, fmt.Errorf("%w: program_id is required", domain.ErrInvalidInput)
	}
	program, err := s.programs.GetProgram(ctx, programID)
	if err != nil {
		return 0, err
	}
	if !isAdmin(actor) && program.FounderID != actor.SubjectID {
		return 0, domain.ErrForbidden
	}
	conversions, err := s.conversions.ListByProgram(ctx, programID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, c := range conversions {
		if _, err := s.SettleConversion(ctx, c.ConversionID); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (s *Service) GetSettlement(ctx context.Context, actor Actor, conversionID string) (domain.SettlementRecord, error) {
	if err := requireActor(actor); err != nil {
		return domain.SettlementRecord{}, err
	}
	record, err := s.settlements.Get(ctx, strings.TrimSpace(conversionID))
	if err != nil {
		return domain.SettlementRecord{}, err
	}
	if isAdmin(actor) || record.CreatorID == actor.SubjectID {
		return record, nil
	}
	program, err := s.programs.GetProgram(ctx, record.ProgramID)
	if err != nil {
		return domain.SettlementRecord{}, err
	}
	if program.FounderID != actor.SubjectID {
		return domain.SettlementRecord{}, domain.ErrForbidden
	}
	return record, nil
}
