package domain

import "time"

type PayoutStatus string

const (
	PayoutStatusPending        PayoutStatus = "pending"
	PayoutStatusSent           PayoutStatus = "sent"
	PayoutStatusOperatorReview PayoutStatus = "operator_review"
)

type PayoutSource string

const (
	PayoutSourceSettlement  PayoutSource = "settlement"
	PayoutSourceTermination PayoutSource = "termination"
)

// PayoutInstruction is the outbound task handed to the payout collaborator.
// IdempotencyKey is stable per settlement or termination so retries never double-pay.
type PayoutInstruction struct {
	PayoutID        string       `json:"payout_id"`
	IdempotencyKey  string       `json:"idempotency_key"`
	SourceKind      PayoutSource `json:"source_kind"`
	SourceID        string       `json:"source_id"`
	CreatorID       string       `json:"creator_id"`
	PayoutAccountID string       `json:"payout_account_id"`
	AmountCents     int64        `json:"amount_cents"`
	Currency        string       `json:"currency"`
	Description     string       `json:"description"`
	Status          PayoutStatus `json:"status"`
	TransferID      string       `json:"transfer_id,omitempty"`
	Attempts        int          `json:"attempts"`
	NextAttemptAt   time.Time    `json:"next_attempt_at"`
	LastError       string       `json:"last_error,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

func SettlementPayoutKey(conversionID string) string { return "settlement:" + conversionID }

func TerminationPayoutKey(requestID string) string { return "termination:" + requestID }
