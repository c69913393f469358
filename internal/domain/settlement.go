package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// SettlementRecord is derived from one conversion and the program terms at compute time.
// It is upserted by ConversionID, so recomputation overwrites instead of accumulating.
type SettlementRecord struct {
	ConversionID            string          `json:"conversion_id"`
	CreatorID               string          `json:"creator_id"`
	ProgramID               string          `json:"program_id"`
	RevenueAmountCents      int64           `json:"revenue_amount_cents"`
	RevenueSharePercent     decimal.Decimal `json:"revenue_share_percent"`
	RevenueShareAmountCents int64           `json:"revenue_share_amount_cents"`
	Currency                string          `json:"currency"`
	ComputedAt              time.Time       `json:"computed_at"`
}

type SettlementTaskStatus string

const (
	SettlementTaskPending SettlementTaskStatus = "pending"
	SettlementTaskDone    SettlementTaskStatus = "done"
	SettlementTaskDead    SettlementTaskStatus = "dead"
)

// SettlementTask is written in the same transaction as its conversion.
type SettlementTask struct {
	ConversionID  string               `json:"conversion_id"`
	Status        SettlementTaskStatus `json:"status"`
	Attempts      int                  `json:"attempts"`
	NextAttemptAt time.Time            `json:"next_attempt_at"`
	LastError     string               `json:"last_error,omitempty"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// RoundHalfUpCents rounds a non-negative cent amount to the nearest whole cent, ties up.
func RoundHalfUpCents(v decimal.Decimal) int64 {
	return v.Round(0).IntPart()
}

// RevenueShareCents is round_half_up(revenue * percent / 100).
func RevenueShareCents(revenueCents int64, percent decimal.Decimal) int64 {
	return RoundHalfUpCents(decimal.NewFromInt(revenueCents).Mul(percent).Div(hundred))
}

// ComputeSettlement is a pure function of the conversion and the program terms.
func ComputeSettlement(conversion ConversionEvent, program Program, computedAt time.Time) SettlementRecord {
	rec := SettlementRecord{
		ConversionID:        conversion.ConversionID,
		CreatorID:           conversion.CreatorID,
		ProgramID:           conversion.ProgramID,
		RevenueAmountCents:  conversion.RevenueAmountCents,
		RevenueSharePercent: decimal.Zero,
		Currency:            conversion.Currency,
		ComputedAt:          computedAt,
	}
	if !program.RevenueShareEnabled {
		return rec
	}
	rec.RevenueSharePercent = program.RevenueSharePercent
	rec.RevenueShareAmountCents = RevenueShareCents(conversion.RevenueAmountCents, program.RevenueSharePercent)
	return rec
}
