package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type TerminationStatus string

const (
	TerminationPending   TerminationStatus = "pending"
	TerminationApproved  TerminationStatus = "approved"
	TerminationRejected  TerminationStatus = "rejected"
	TerminationCancelled TerminationStatus = "cancelled"
)

type Party string

const (
	PartyCreator Party = "creator"
	PartyFounder Party = "founder"
)

func (p Party) Valid() bool { return p == PartyCreator || p == PartyFounder }

// Counterparty returns the side that must decide a request raised by p.
func (p Party) Counterparty() Party {
	if p == PartyCreator {
		return PartyFounder
	}
	return PartyCreator
}

type TerminationAction string

const (
	ActionApprove TerminationAction = "approve"
	ActionReject  TerminationAction = "reject"
	ActionCancel  TerminationAction = "cancel"
)

// averageMonthDays is the mean Gregorian month length (365.2425 / 12).
var averageMonthDays = decimal.RequireFromString("30.436875")

type TerminationRequest struct {
	RequestID              string            `json:"request_id"`
	ContractID             string            `json:"contract_id"`
	ProgramID              string            `json:"program_id"`
	CreatorID              string            `json:"creator_id"`
	RequestedBy            Party             `json:"requested_by"`
	RequesterID            string            `json:"requester_id"`
	Reason                 string            `json:"reason"`
	EffectiveDate          time.Time         `json:"effective_date"`
	MonthsServed           decimal.Decimal   `json:"months_served"`
	TotalMonths            int               `json:"total_months"`
	EquityPercent          decimal.Decimal   `json:"equity_percent"`
	Status                 TerminationStatus `json:"status"`
	EarnedEquityPct        decimal.Decimal   `json:"earned_equity_pct"`
	CompanyValuationCents  int64             `json:"company_valuation_cents"`
	CompensationValueCents int64             `json:"compensation_value_cents"`
	DecidedBy              string            `json:"decided_by,omitempty"`
	DecidedAt              *time.Time        `json:"decided_at,omitempty"`
	CreatedAt              time.Time         `json:"created_at"`
	UpdatedAt              time.Time         `json:"updated_at"`
}

type TerminationAudit struct {
	AuditID   string    `json:"audit_id"`
	RequestID string    `json:"request_id"`
	Action    string    `json:"action"`
	ActorID   string    `json:"actor_id"`
	Party     Party     `json:"party"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NextStatus validates a transition. Only pending requests move, the counter-party
// approves or rejects, and only the requester cancels.
func NextStatus(req TerminationRequest, action TerminationAction, actor Party) (TerminationStatus, error) {
	if req.Status != TerminationPending {
		return "", fmt.Errorf("%w: termination request is %s", ErrConflict, req.Status)
	}
	switch action {
	case ActionApprove, ActionReject:
		if actor != req.RequestedBy.Counterparty() {
			return "", fmt.Errorf("%w: only the %s may %s this request", ErrForbidden, req.RequestedBy.Counterparty(), action)
		}
		if action == ActionApprove {
			return TerminationApproved, nil
		}
		return TerminationRejected, nil
	case ActionCancel:
		if actor != req.RequestedBy {
			return "", fmt.Errorf("%w: only the requester may cancel", ErrForbidden)
		}
		return TerminationCancelled, nil
	default:
		return "", fmt.Errorf("%w: unknown action %q", ErrInvalidInput, action)
	}
}

// MonthsServed prorates linearly by elapsed days, not truncated calendar months.
func MonthsServed(start, effective time.Time) decimal.Decimal {
	elapsed := effective.UTC().Sub(start.UTC())
	if elapsed <= 0 {
		return decimal.Zero
	}
	days := decimal.NewFromInt(int64(elapsed / time.Second)).Div(decimal.NewFromInt(86400))
	return days.Div(averageMonthDays).Round(4)
}

// ComputeEarnedEquity is clamp(equity * served / total, 0, equity).
func ComputeEarnedEquity(equityPercent, monthsServed decimal.Decimal, totalMonths int) decimal.Decimal {
	if totalMonths <= 0 || equityPercent.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	earned := equityPercent.Mul(monthsServed).Div(decimal.NewFromInt(int64(totalMonths))).Round(6)
	if earned.LessThan(decimal.Zero) {
		return decimal.Zero
	}
	if earned.GreaterThan(equityPercent) {
		return equityPercent
	}
	return earned
}

// CompensationValueCents is round_half_up(earned_pct / 100 * valuation).
func CompensationValueCents(earnedEquityPct decimal.Decimal, valuationCents int64) int64 {
	if valuationCents <= 0 {
		return 0
	}
	return RoundHalfUpCents(earnedEquityPct.Div(hundred).Mul(decimal.NewFromInt(valuationCents)))
}
