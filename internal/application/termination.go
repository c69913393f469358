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

// RequestTermination opens a pending termination for a contract on behalf of
// either party. Months served and earned equity are fixed at request time.
func (s *Service) RequestTermination(ctx context.Context, actor Actor, in RequestTerminationInput) (domain.TerminationRequest, error) {
	if err := requireActor(actor); err != nil {
		return domain.TerminationRequest{}, err
	}
	in.ContractID = strings.TrimSpace(in.ContractID)
	in.Reason = strings.TrimSpace(in.Reason)
	if in.ContractID == "" {
		return domain.TerminationRequest{}, fmt.Errorf("%w: contract_id is required", domain.ErrInvalidInput)
	}
	if in.Reason == "" {
		return domain.TerminationRequest{}, fmt.Errorf("%w: reason is required", domain.ErrInvalidInput)
	}
	contract, err := s.contracts.GetContract(ctx, in.ContractID)
	if err != nil {
		return domain.TerminationRequest{}, err
	}
	party, err := partyOf(actor, contract)
	if err != nil {
		return domain.TerminationRequest{}, err
	}
	now := s.nowFn()
	effective := in.EffectiveDate.UTC()
	if in.EffectiveDate.IsZero() {
		effective = now
	}
	if effective.Before(contract.StartDate) {
		return domain.TerminationRequest{}, fmt.Errorf("%w: effective_date precedes contract start", domain.ErrInvalidInput)
	}
	served := domain.MonthsServed(contract.StartDate, effective)
	req := domain.TerminationRequest{
		RequestID:       uuid.NewString(),
		ContractID:      contract.ContractID,
		ProgramID:       contract.ProgramID,
		CreatorID:       contract.CreatorID,
		RequestedBy:     party,
		RequesterID:     actor.SubjectID,
		Reason:          in.Reason,
		EffectiveDate:   effective,
		MonthsServed:    served,
		TotalMonths:     contract.TotalMonths,
		EquityPercent:   contract.EquityPercent,
		Status:          domain.TerminationPending,
		EarnedEquityPct: domain.ComputeEarnedEquity(contract.EquityPercent, served, contract.TotalMonths),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	audit := domain.TerminationAudit{
		AuditID:   newAuditID(),
		RequestID: req.RequestID,
		Action:    "request",
		ActorID:   actor.SubjectID,
		Party:     party,
		Note:      in.Reason,
		CreatedAt: now,
	}
	event, err := s.terminationEvent(req, actor, now)
	if err != nil {
		return domain.TerminationRequest{}, err
	}
	if err := s.terminations.Create(ctx, req, audit, event); err != nil {
		return domain.TerminationRequest{}, err
	}
	s.logger.Info("termination requested",
		"module", "termination_engine",
		"operation", "request_termination",
		"outcome", "success",
		"request_id", req.RequestID,
		"contract_id", req.ContractID,
		"requested_by", string(party),
	)
	s.metrics.TerminationTransitioned(string(domain.TerminationPending))
	return req, nil
}

func (s *Service) ApproveTermination(ctx context.Context, actor Actor, requestID, note string) (domain.TerminationRequest, error) {
	return s.decideTermination(ctx, actor, requestID, domain.ActionApprove, note)
}

func (s *Service) RejectTermination(ctx context.Context, actor Actor, requestID, note string) (domain.TerminationRequest, error) {
	return s.decideTermination(ctx, actor, requestID, domain.ActionReject, note)
}

func (s *Service) CancelTermination(ctx context.Context, actor Actor, requestID, note string) (domain.TerminationRequest, error) {
	return s.decideTermination(ctx, actor, requestID, domain.ActionCancel, note)
}

func (s *Service) decideTermination(ctx context.Context, actor Actor, requestID string, action domain.TerminationAction, note string) (domain.TerminationRequest, error) {
	if err := requireActor(actor); err != nil {
		return domain.TerminationRequest{}, err
	}
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return domain.TerminationRequest{}, fmt.Errorf("%w: request_id is required", domain.ErrInvalidInput)
	}
	req, err := s.terminations.GetByID(ctx, requestID)
	if err != nil {
		return domain.TerminationRequest{}, err
	}
	contract, err := s.contracts.GetContract(ctx, req.ContractID)
	if err != nil {
		return domain.TerminationRequest{}, err
	}
	party, err := partyOf(actor, contract)
	if err != nil {
		return domain.TerminationRequest{}, err
	}
	next, err := domain.NextStatus(req, action, party)
	if err != nil {
		return domain.TerminationRequest{}, err
	}

	now := s.nowFn()
	updated := req
	updated.Status = next
	updated.DecidedBy = actor.SubjectID
	updated.DecidedAt = &now
	updated.UpdatedAt = now

	var payout *domain.PayoutInstruction
	if next == domain.TerminationApproved {
		program, err := s.programs.GetProgram(ctx, req.ProgramID)
		if err != nil {
			return domain.TerminationRequest{}, err
		}
		updated.CompanyValuationCents = program.CompanyValuationCents
		updated.CompensationValueCents = domain.CompensationValueCents(updated.EarnedEquityPct, program.CompanyValuationCents)
		currency := program.Currency
		if currency == "" {
			currency = s.cfg.DefaultCurrency
		}
		payout, err = s.terminationPayout(ctx, updated, currency)
		if err != nil {
			return domain.TerminationRequest{}, err
		}
	}
	audit := domain.TerminationAudit{
		AuditID:   newAuditID(),
		RequestID: req.RequestID,
		Action:    string(action),
		ActorID:   actor.SubjectID,
		Party:     party,
		Note:      strings.TrimSpace(note),
		CreatedAt: now,
	}
	event, err := s.terminationEvent(updated, actor, now)
	if err != nil {
		return domain.TerminationRequest{}, err
	}
	if err := s.terminations.Transition(ctx, updated, domain.TerminationPending, payout, audit, event); err != nil {
		return domain.TerminationRequest{}, err
	}
	s.logger.Info("termination decided",
		"module", "termination_engine",
		"operation", string(action)+"_termination",
		"outcome", string(next),
		"request_id", updated.RequestID,
		"compensation_value_cents", updated.CompensationValueCents,
	)
	s.metrics.TerminationTransitioned(string(next))
	return updated, nil
}

func (s *Service) terminationPayout(ctx context.Context, req domain.TerminationRequest, currency string) (*domain.PayoutInstruction, error) {
	if req.CompensationValueCents <= 0 || s.creators == nil {
		return nil, nil
	}
	creator, err := s.creators.GetCreator(ctx, req.CreatorID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if strings.TrimSpace(creator.PayoutAccountID) == "" {
		s.logger.Warn("creator has no payout account",
			"module", "termination_engine",
			"operation", "approve_termination",
			"outcome", "payout_skipped",
			"creator_id", req.CreatorID,
		)
		return nil, nil
	}
	return &domain.PayoutInstruction{
		PayoutID:        uuid.NewString(),
		IdempotencyKey:  domain.TerminationPayoutKey(req.RequestID),
		SourceKind:      domain.PayoutSourceTermination,
		SourceID:        req.RequestID,
		CreatorID:       req.CreatorID,
		PayoutAccountID: creator.PayoutAccountID,
		AmountCents:     req.CompensationValueCents,
		Currency:        currency,
		Description:     "equity compensation for contract " + req.ContractID,
		Status:          domain.PayoutStatusPending,
		NextAttemptAt:   req.UpdatedAt,
		CreatedAt:       req.UpdatedAt,
		UpdatedAt:       req.UpdatedAt,
	}, nil
}

// GetTermination is visible to both contract parties and admins.
func (s *Service) GetTermination(ctx context.Context, actor Actor, requestID string) (domain.TerminationRequest, error) {
	if err := requireActor(actor); err != nil {
		return domain.TerminationRequest{}, err
	}
	req, err := s.terminations.GetByID(ctx, strings.TrimSpace(requestID))
	if err != nil {
		return domain.TerminationRequest{}, err
	}
	if isAdmin(actor) {
		return req, nil
	}
	contract, err := s.contracts.GetContract(ctx, req.ContractID)
	if err != nil {
		return domain.TerminationRequest{}, err
	}
	if _, err := partyOf(actor, contract); err != nil {
		return domain.TerminationRequest{}, err
	}
	return req, nil
}

func (s *Service) ListTerminationAudit(ctx context.Context, actor Actor, requestID string) ([]domain.TerminationAudit, error) {
	req, err := s.GetTermination(ctx, actor, requestID)
	if err != nil {
		return nil, err
	}
	return s.terminations.ListAudit(ctx, req.RequestID)
}

func (s *Service) terminationEvent(req domain.TerminationRequest, actor Actor, now time.Time) (ports.OutboxEvent, error) {
	return s.newEvent(domain.TerminationEvent(req.Status), "contract_id", req.ContractID, actor.RequestID, contracts.TerminationPayload{
		RequestID:              req.RequestID,
		ContractID:             req.ContractID,
		Status:                 string(req.Status),
		RequestedBy:            string(req.RequestedBy),
		ActorID:                actor.SubjectID,
		EarnedEquityPct:        req.EarnedEquityPct.String(),
		CompensationValueCents: req.CompensationValueCents,
		OccurredAt:             formatTime(now),
	}, now)
}

func partyOf(actor Actor, contract domain.Contract) (domain.Party, error) {
	switch actor.SubjectID {
	case contract.CreatorID:
		return domain.PartyCreator, nil
	case contract.FounderID:
		return domain.PartyFounder, nil
	default:
		return "", domain.ErrForbidden
	}
}
