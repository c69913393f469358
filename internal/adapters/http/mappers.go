package http

import (
	"time"

	"github.com/viralforge/stakeshare/internal/contracts"
	"github.com/viralforge/stakeshare/internal/domain"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func toLinkResponse(l domain.TrackingLink) contracts.LinkResponse {
	return contracts.LinkResponse{
		LinkID:          l.LinkID,
		CreatorID:       l.CreatorID,
		ProgramID:       l.ProgramID,
		ReferralCode:    l.ReferralCode,
		DestinationURL:  l.DestinationURL,
		CampaignName:    l.CampaignName,
		ClickCount:      l.ClickCount,
		ConversionCount: l.ConversionCount,
		CreatedAt:       formatTime(l.CreatedAt),
	}
}

func toSettlementResponse(r domain.SettlementRecord) contracts.SettlementResponse {
	return contracts.SettlementResponse{
		ConversionID:            r.ConversionID,
		CreatorID:               r.CreatorID,
		ProgramID:               r.ProgramID,
		RevenueAmountCents:      r.RevenueAmountCents,
		RevenueSharePercent:     r.RevenueSharePercent.String(),
		RevenueShareAmountCents: r.RevenueShareAmountCents,
		Currency:                r.Currency,
		ComputedAt:              formatTime(r.ComputedAt),
	}
}

func toTerminationResponse(t domain.TerminationRequest) contracts.TerminationResponse {
	out := contracts.TerminationResponse{
		RequestID:              t.RequestID,
		ContractID:             t.ContractID,
		RequestedBy:            string(t.RequestedBy),
		Reason:                 t.Reason,
		EffectiveDate:          formatTime(t.EffectiveDate),
		MonthsServed:           t.MonthsServed.String(),
		TotalMonths:            t.TotalMonths,
		EquityPercent:          t.EquityPercent.String(),
		Status:                 string(t.Status),
		EarnedEquityPct:        t.EarnedEquityPct.String(),
		CompanyValuationCents:  t.CompanyValuationCents,
		CompensationValueCents: t.CompensationValueCents,
		DecidedBy:              t.DecidedBy,
	}
	if t.DecidedAt != nil {
		out.DecidedAt = formatTime(*t.DecidedAt)
	}
	return out
}

func toPayoutResponse(p domain.PayoutInstruction) contracts.PayoutResponse {
	return contracts.PayoutResponse{
		PayoutID:       p.PayoutID,
		IdempotencyKey: p.IdempotencyKey,
		SourceKind:     string(p.SourceKind),
		SourceID:       p.SourceID,
		CreatorID:      p.CreatorID,
		AmountCents:    p.AmountCents,
		Currency:       p.Currency,
		Status:         string(p.Status),
		Attempts:       p.Attempts,
		LastError:      p.LastError,
	}
}

func toUnattributedResponse(n domain.UnattributedConversion) contracts.UnattributedResponse {
	return contracts.UnattributedResponse{
		DedupKey:           n.DedupKey,
		ReferralCode:       n.ReferralCode,
		CompanyID:          n.CompanyID,
		RevenueAmountCents: n.RevenueAmountCents,
		Reason:             n.Reason,
		OccurredAt:         formatTime(n.OccurredAt),
	}
}
