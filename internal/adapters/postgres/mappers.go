package postgres

import (
	"errors"
	"strings"
	"time"

	"github.com/viralforge/stakeshare/internal/domain"
	"github.com/viralforge/stakeshare/internal/ports"
	"gorm.io/gorm"
)

func nullableString(v string) *string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// isUniqueViolation accepts both the translated gorm error and raw driver text,
// since not every dialector implements error translation.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return err
}

func toLinkModel(l domain.TrackingLink) trackingLinkModel {
	return trackingLinkModel{
		LinkID:          l.LinkID,
		CreatorID:       l.CreatorID,
		ProgramID:       l.ProgramID,
		ReferralCode:    l.ReferralCode,
		DestinationURL:  l.DestinationURL,
		CampaignName:    nullableString(l.CampaignName),
		ClickCount:      l.ClickCount,
		ConversionCount: l.ConversionCount,
		CreatedAt:       l.CreatedAt.UTC(),
	}
}

func toDomainLink(row trackingLinkModel) domain.TrackingLink {
	return domain.TrackingLink{
		LinkID:          row.LinkID,
		CreatorID:       row.CreatorID,
		ProgramID:       row.ProgramID,
		ReferralCode:    row.ReferralCode,
		DestinationURL:  row.DestinationURL,
		CampaignName:    deref(row.CampaignName),
		ClickCount:      row.ClickCount,
		ConversionCount: row.ConversionCount,
		CreatedAt:       row.CreatedAt.UTC(),
	}
}

func toClickModel(c domain.ClickEvent) clickEventModel {
	return clickEventModel{
		ClickID:       c.ClickID,
		LinkID:        c.LinkID,
		ReferralCode:  c.ReferralCode,
		ClientID:      c.ClientID,
		UTMSource:     nullableString(c.UTMSource),
		UTMMedium:     nullableString(c.UTMMedium),
		UTMCampaign:   nullableString(c.UTMCampaign),
		Referrer:      nullableString(c.Referrer),
		IPHash:        nullableString(c.IPHash),
		UserAgentHash: nullableString(c.UserAgentHash),
		ClickedAt:     c.ClickedAt.UTC(),
	}
}

func toConversionModel(c domain.ConversionEvent) conversionEventModel {
	return conversionEventModel{
		ConversionID:       c.ConversionID,
		ReferralCode:       c.ReferralCode,
		LinkID:             c.LinkID,
		ProgramID:          c.ProgramID,
		CreatorID:          c.CreatorID,
		CompanyID:          c.CompanyID,
		RevenueAmountCents: c.RevenueAmountCents,
		Currency:           c.Currency,
		CustomerEmail:      c.CustomerEmail,
		ConversionType:     c.ConversionType,
		OrderID:            nullableString(c.OrderID),
		OccurredAt:         c.OccurredAt.UTC(),
		DedupKey:           c.DedupKey,
		CreatedAt:          c.CreatedAt.UTC(),
	}
}

func toDomainConversion(row conversionEventModel) domain.ConversionEvent {
	return domain.ConversionEvent{
		ConversionID:       row.ConversionID,
		ReferralCode:       row.ReferralCode,
		LinkID:             row.LinkID,
		ProgramID:          row.ProgramID,
		CreatorID:          row.CreatorID,
		CompanyID:          row.CompanyID,
		RevenueAmountCents: row.RevenueAmountCents,
		Currency:           row.Currency,
		CustomerEmail:      row.CustomerEmail,
		ConversionType:     row.ConversionType,
		OrderID:            deref(row.OrderID),
		OccurredAt:         row.OccurredAt.UTC(),
		DedupKey:           row.DedupKey,
		CreatedAt:          row.CreatedAt.UTC(),
	}
}

func toDomainUnattributed(row unattributedConversionModel) domain.UnattributedConversion {
	return domain.UnattributedConversion{
		DedupKey:           row.DedupKey,
		ReferralCode:       row.ReferralCode,
		CompanyID:          row.CompanyID,
		RevenueAmountCents: row.RevenueAmountCents,
		CustomerEmail:      row.CustomerEmail,
		ConversionType:     row.ConversionType,
		OrderID:            deref(row.OrderID),
		OccurredAt:         row.OccurredAt.UTC(),
		Reason:             row.Reason,
		CreatedAt:          row.CreatedAt.UTC(),
	}
}

func toDomainSettlement(row settlementRecordModel) domain.SettlementRecord {
	return domain.SettlementRecord{
		ConversionID:            row.ConversionID,
		CreatorID:               row.CreatorID,
		ProgramID:               row.ProgramID,
		RevenueAmountCents:      row.RevenueAmountCents,
		RevenueSharePercent:     row.RevenueSharePercent,
		RevenueShareAmountCents: row.RevenueShareAmountCents,
		Currency:                row.Currency,
		ComputedAt:              row.ComputedAt.UTC(),
	}
}

func toDomainTask(row settlementTaskModel) domain.SettlementTask {
	return domain.SettlementTask{
		ConversionID:  row.ConversionID,
		Status:        domain.SettlementTaskStatus(row.Status),
		Attempts:      row.Attempts,
		NextAttemptAt: row.NextAttemptAt.UTC(),
		LastError:     deref(row.LastError),
		UpdatedAt:     row.UpdatedAt.UTC(),
	}
}

func toPayoutModel(p domain.PayoutInstruction) payoutInstructionModel {
	return payoutInstructionModel{
		PayoutID:        p.PayoutID,
		IdempotencyKey:  p.IdempotencyKey,
		SourceKind:      string(p.SourceKind),
		SourceID:        p.SourceID,
		CreatorID:       p.CreatorID,
		PayoutAccountID: p.PayoutAccountID,
		AmountCents:     p.AmountCents,
		Currency:        p.Currency,
		Description:     p.Description,
		Status:          string(p.Status),
		TransferID:      nullableString(p.TransferID),
		Attempts:        p.Attempts,
		NextAttemptAt:   p.NextAttemptAt.UTC(),
		LastError:       nullableString(p.LastError),
		CreatedAt:       p.CreatedAt.UTC(),
		UpdatedAt:       p.UpdatedAt.UTC(),
	}
}

func toDomainPayout(row payoutInstructionModel) domain.PayoutInstruction {
	return domain.PayoutInstruction{
		PayoutID:        row.PayoutID,
		IdempotencyKey:  row.IdempotencyKey,
		SourceKind:      domain.PayoutSource(row.SourceKind),
		SourceID:        row.SourceID,
		CreatorID:       row.CreatorID,
		PayoutAccountID: row.PayoutAccountID,
		AmountCents:     row.AmountCents,
		Currency:        row.Currency,
		Description:     row.Description,
		Status:          domain.PayoutStatus(row.Status),
		TransferID:      deref(row.TransferID),
		Attempts:        row.Attempts,
		NextAttemptAt:   row.NextAttemptAt.UTC(),
		LastError:       deref(row.LastError),
		CreatedAt:       row.CreatedAt.UTC(),
		UpdatedAt:       row.UpdatedAt.UTC(),
	}
}

func toTerminationModel(r domain.TerminationRequest) terminationRequestModel {
	var decidedAt *time.Time
	if r.DecidedAt != nil {
		t := r.DecidedAt.UTC()
		decidedAt = &t
	}
	return terminationRequestModel{
		RequestID:              r.RequestID,
		ContractID:             r.ContractID,
		ProgramID:              r.ProgramID,
		CreatorID:              r.CreatorID,
		RequestedBy:            string(r.RequestedBy),
		RequesterID:            r.RequesterID,
		Reason:                 r.Reason,
		EffectiveDate:          r.EffectiveDate.UTC(),
		MonthsServed:           r.MonthsServed,
		TotalMonths:            r.TotalMonths,
		EquityPercent:          r.EquityPercent,
		Status:                 string(r.Status),
		EarnedEquityPct:        r.EarnedEquityPct,
		CompanyValuationCents:  r.CompanyValuationCents,
		CompensationValueCents: r.CompensationValueCents,
		DecidedBy:              nullableString(r.DecidedBy),
		DecidedAt:              decidedAt,
		CreatedAt:              r.CreatedAt.UTC(),
		UpdatedAt:              r.UpdatedAt.UTC(),
	}
}

func toDomainTermination(row terminationRequestModel) domain.TerminationRequest {
	var decidedAt *time.Time
	if row.DecidedAt != nil {
		t := row.DecidedAt.UTC()
		decidedAt = &t
	}
	return domain.TerminationRequest{
		RequestID:              row.RequestID,
		ContractID:             row.ContractID,
		ProgramID:              row.ProgramID,
		CreatorID:              row.CreatorID,
		RequestedBy:            domain.Party(row.RequestedBy),
		RequesterID:            row.RequesterID,
		Reason:                 row.Reason,
		EffectiveDate:          row.EffectiveDate.UTC(),
		MonthsServed:           row.MonthsServed,
		TotalMonths:            row.TotalMonths,
		EquityPercent:          row.EquityPercent,
		Status:                 domain.TerminationStatus(row.Status),
		EarnedEquityPct:        row.EarnedEquityPct,
		CompanyValuationCents:  row.CompanyValuationCents,
		CompensationValueCents: row.CompensationValueCents,
		DecidedBy:              deref(row.DecidedBy),
		DecidedAt:              decidedAt,
		CreatedAt:              row.CreatedAt.UTC(),
		UpdatedAt:              row.UpdatedAt.UTC(),
	}
}

func toAuditModel(a domain.TerminationAudit) terminationAuditModel {
	return terminationAuditModel{
		AuditID:   a.AuditID,
		RequestID: a.RequestID,
		Action:    a.Action,
		ActorID:   a.ActorID,
		Party:     string(a.Party),
		Note:      nullableString(a.Note),
		CreatedAt: a.CreatedAt.UTC(),
	}
}

func toOutboxRecord(row referralOutboxModel) ports.OutboxRecord {
	return ports.OutboxRecord{
		OutboxID:       row.OutboxID,
		EventType:      row.EventType,
		PartitionKey:   row.PartitionKey,
		Payload:        []byte(row.Payload),
		RetryCount:     row.RetryCount,
		LastError:      row.LastError,
		CreatedAt:      row.CreatedAt,
		PublishedAt:    row.PublishedAt,
		LastErrorAt:    row.LastErrorAt,
		ClaimToken:     row.ClaimToken,
		ClaimUntil:     row.ClaimUntil,
		DeadLetteredAt: row.DeadLetteredAt,
	}
}
