package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Program carries the company-side terms the engine reads but never writes.
type Program struct {
	ProgramID             string          `json:"program_id"`
	CompanyID             string          `json:"company_id"`
	FounderID             string          `json:"founder_id"`
	RevenueShareEnabled   bool            `json:"revenue_share_enabled"`
	RevenueSharePercent   decimal.Decimal `json:"revenue_share_percent"`
	CompanyValuationCents int64           `json:"company_valuation_cents"`
	Currency              string          `json:"currency"`
}

type Creator struct {
	CreatorID       string `json:"creator_id"`
	PayoutAccountID string `json:"payout_account_id"`
}

// Contract is the creator/program agreement a termination request refers to.
type Contract struct {
	ContractID    string          `json:"contract_id"`
	CreatorID     string          `json:"creator_id"`
	FounderID     string          `json:"founder_id"`
	ProgramID     string          `json:"program_id"`
	StartDate     time.Time       `json:"start_date"`
	TotalMonths   int             `json:"total_months"`
	EquityPercent decimal.Decimal `json:"equity_percent"`
}
