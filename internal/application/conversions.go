package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/viralforge/stakeshare/internal/contracts"
	"github.com/viralforge/stakeshare/internal/domain"
)

const (
	reasonMissingCode     = "missing_referral_code"
	reasonUnknownCode     = "unknown_referral_code"
	reasonCompanyMismatch = "company_mismatch"
)

// IngestConversion records one conversion at most once per dedup key. Conversions
// whose referral code cannot be resolved are kept as diagnostic notes and still
// succeed, so the caller's checkout never fails on attribution.
func (s *Service) IngestConversion(ctx context.Context, in IngestConversionInput) (IngestResult, error) {
	in.CompanyID = strings.TrimSpace(in.CompanyID)
	if in.CompanyID == "" {
		return IngestResult{}, fmt.Errorf("%w: company_id is required", domain.ErrInvalidInput)
	}
	in.ConversionType = strings.ToLower(strings.TrimSpace(in.ConversionType))
	if in.ConversionType == "" {
		in.ConversionType = domain.DefaultConversionType
	}
	email, err := domain.NormalizeEmail(in.CustomerEmail)
	if err != nil {
		return IngestResult{}, err
	}
	in.CustomerEmail = email
	if err := domain.ValidateRevenue(in.RevenueAmountCents, in.ConversionType, s.cfg.ZeroRevenueConversionTypes); err != nil {
		return IngestResult{}, err
	}
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if in.Currency == "" {
		in.Currency = s.cfg.DefaultCurrency
	}
	in.OrderID = strings.TrimSpace(in.OrderID)
	if in.OccurredAt.IsZero() {
		in.OccurredAt = s.nowFn()
	}
	in.OccurredAt = in.OccurredAt.UTC()

	// A redelivered order resolves to the stored event whatever the retry carries.
	if in.OrderID != "" {
		stored, err := s.conversions.GetByDedupKey(ctx, domain.DedupKey(in.OrderID, "", "", 0, in.OccurredAt))
		if err == nil {
			return s.duplicateConversion(stored), nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return IngestResult{}, err
		}
	}

	code := domain.NormalizeReferralCode(in.ReferralCode)
	clientID := strings.TrimSpace(in.ClientID)
	usedToken := false
	if code == "" && clientID != "" {
		resolved, ok, err := s.ResolveClient(ctx, clientID)
		if err != nil {
			return IngestResult{}, err
		}
		if ok {
			code, usedToken = resolved, true
		}
	}
	dedupKey := domain.DedupKey(in.OrderID, code, in.CustomerEmail, in.RevenueAmountCents, in.OccurredAt)

	if code == "" {
		return s.recordUnattributed(ctx, in, code, dedupKey, reasonMissingCode)
	}
	link, err := s.links.GetByCode(ctx, code)
	if errors.Is(err, domain.ErrNotFound) {
		return s.recordUnattributed(ctx, in, code, dedupKey, reasonUnknownCode)
	}
	if err != nil {
		return IngestResult{}, err
	}
	if in.OccurredAt.Before(link.CreatedAt) {
		return IngestResult{}, fmt.Errorf("%w: occurred_at precedes link creation", domain.ErrInvalidInput)
	}
	if s.programs != nil {
		program, err := s.programs.GetProgram(ctx, link.ProgramID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			s.logger.Warn("program not yet synced, company check skipped",
				"module", "conversion_ledger",
				"operation", "ingest_conversion",
				"outcome", "company_check_deferred",
				"program_id", link.ProgramID,
			)
		case err != nil:
			return IngestResult{}, err
		case program.CompanyID != "" && program.CompanyID != in.CompanyID:
			return s.recordUnattributed(ctx, in, code, dedupKey, reasonCompanyMismatch)
		}
	}

	now := s.nowFn()
	conversion := domain.ConversionEvent{
		ConversionID:       uuid.NewString(),
		ReferralCode:       link.ReferralCode,
		LinkID:             link.LinkID,
		ProgramID:          link.ProgramID,
		CreatorID:          link.CreatorID,
		CompanyID:          in.CompanyID,
		RevenueAmountCents: in.RevenueAmountCents,
		Currency:           in.Currency,
		CustomerEmail:      in.CustomerEmail,
		ConversionType:     in.ConversionType,
		OrderID:            in.OrderID,
		OccurredAt:         in.OccurredAt,
		DedupKey:           dedupKey,
		CreatedAt:          now,
	}
	task := domain.SettlementTask{
		ConversionID:  conversion.ConversionID,
		Status:        domain.SettlementTaskPending,
		NextAttemptAt: now,
		UpdatedAt:     now,
	}
	event, err := s.newEvent(domain.EventConversionRecorded, "creator_id", conversion.CreatorID, in.RequestID, contracts.ConversionRecordedPayload{
		ConversionID:       conversion.ConversionID,
		LinkID:             conversion.LinkID,
		ProgramID:          conversion.ProgramID,
		CreatorID:          conversion.CreatorID,
		RevenueAmountCents: conversion.RevenueAmountCents,
		Currency:           conversion.Currency,
		ConversionType:     conversion.ConversionType,
		OccurredAt:         formatTime(conversion.OccurredAt),
	}, now)
	if err != nil {
		return IngestResult{}, err
	}
	stored, created, err := s.conversions.Record(ctx, conversion, task, event)
	if err != nil {
		return IngestResult{}, err
	}
	if !created {
		return s.duplicateConversion(stored), nil
	}
	s.logger.Info("conversion recorded",
		"module", "conversion_ledger",
		"operation", "ingest_conversion",
		"outcome", "success",
		"conversion_id", stored.ConversionID,
		"link_id", stored.LinkID,
	)
	s.metrics.ConversionIngested("recorded")

	if usedToken && s.attribution != nil {
		if err := s.attribution.Delete(ctx, clientID); err != nil {
			s.logger.Warn("attribution token clear failed",
				"module", "conversion_ledger",
				"operation", "ingest_conversion",
				"outcome", "token_error",
				"error", err,
			)
		}
	}
	if s.cfg.SettleInline {
		// The task row stays pending on failure and the worker picks it up.
		if err := s.settleWithRetry(ctx, stored.ConversionID); err != nil {
			s.logger.Warn("inline settlement deferred",
				"module", "conversion_ledger",
				"operation", "ingest_conversion",
				"outcome", "deferred",
				"conversion_id", stored.ConversionID,
				"error", err,
			)
		}
	}
	return IngestResult{Conversion: stored, DedupKey: stored.DedupKey, Attributed: true}, nil
}

func (s *Service) duplicateConversion(stored domain.ConversionEvent) IngestResult {
	s.logger.Info("duplicate conversion delivery",
		"module", "conversion_ledger",
		"operation", "ingest_conversion",
		"outcome", "duplicate",
		"conversion_id", stored.ConversionID,
	)
	s.metrics.ConversionIngested("duplicate")
	return IngestResult{Conversion: stored, DedupKey: stored.DedupKey, Attributed: true, Duplicate: true}
}

func (s *Service) recordUnattributed(ctx context.Context, in IngestConversionInput, code, dedupKey, reason string) (IngestResult, error) {
	now := s.nowFn()
	note := domain.UnattributedConversion{
		DedupKey:           dedupKey,
		ReferralCode:       code,
		CompanyID:          in.CompanyID,
		RevenueAmountCents: in.RevenueAmountCents,
		CustomerEmail:      in.CustomerEmail,
		ConversionType:     in.ConversionType,
		OrderID:            in.OrderID,
		OccurredAt:         in.OccurredAt,
		Reason:             reason,
		CreatedAt:          now,
	}
	event, err := s.newEvent(domain.EventConversionUnresolved, "company_id", in.CompanyID, in.RequestID, contracts.ConversionUnattributedPayload{
		DedupKey:     dedupKey,
		ReferralCode: code,
		CompanyID:    in.CompanyID,
		Reason:       reason,
	}, now)
	if err != nil {
		return IngestResult{}, err
	}
	_, created, err := s.conversions.RecordUnattributed(ctx, note, event)
	if err != nil {
		return IngestResult{}, err
	}
	s.logger.Warn("conversion could not be attributed",
		"module", "conversion_ledger",
		"operation", "ingest_conversion",
		"outcome", "unattributed",
		"reason", reason,
		"referral_code", code,
		"company_id", in.CompanyID,
	)
	s.metrics.ConversionIngested("unattributed")
	return IngestResult{DedupKey: dedupKey, Duplicate: !created}, nil
}

func (s *Service) GetConversion(ctx context.Context, conversionID string) (domain.ConversionEvent, error) {
	conversionID = strings.TrimSpace(conversionID)
	if conversionID == "" {
		return domain.ConversionEvent{}, fmt.Errorf("%w: conversion_id is required", domain.ErrInvalidInput)
	}
	return s.conversions.GetByID(ctx, conversionID)
}

// ListUnattributed is the operator view of conversions that resolved to no link.
func (s *Service) ListUnattributed(ctx context.Context, actor Actor, limit int) ([]domain.UnattributedConversion, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !isAdmin(actor) {
		return nil, domain.ErrForbidden
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.conversions.ListUnattributed(ctx, limit)
}
