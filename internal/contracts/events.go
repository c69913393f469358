package contracts

import (
	"encoding/json"
	"time"
)

// EventEnvelope wraps every payload written to the outbox.
type EventEnvelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	OccurredAt       time.Time       `json:"occurred_at"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    string          `json:"schema_version"`
	Data             json.RawMessage `json:"data"`
}

type DLQRecord struct {
	OriginalEvent EventEnvelope `json:"original_event"`
	ErrorSummary  string        `json:"error_summary"`
	RetryCount    int           `json:"retry_count"`
	LastErrorAt   time.Time     `json:"last_error_at"`
	SourceTopic   string        `json:"source_topic,omitempty"`
	DLQTopic      string        `json:"dlq_topic,omitempty"`
}

type LinkCreatedPayload struct {
	LinkID       string `json:"link_id"`
	CreatorID    string `json:"creator_id"`
	ProgramID    string `json:"program_id"`
	ReferralCode string `json:"referral_code"`
	CreatedAt    string `json:"created_at"`
}

type ClickRecordedPayload struct {
	ClickID      string `json:"click_id"`
	LinkID       string `json:"link_id"`
	ReferralCode string `json:"referral_code"`
	UTMSource    string `json:"utm_source,omitempty"`
	UTMCampaign  string `json:"utm_campaign,omitempty"`
	IPHash       string `json:"ip_hash"`
	ClickedAt    string `json:"clicked_at"`
}

type ConversionRecordedPayload struct {
	ConversionID       string `json:"conversion_id"`
	LinkID             string `json:"link_id"`
	ProgramID          string `json:"program_id"`
	CreatorID          string `json:"creator_id"`
	RevenueAmountCents int64  `json:"revenue_amount_cents"`
	Currency           string `json:"currency"`
	ConversionType     string `json:"conversion_type"`
	OccurredAt         string `json:"occurred_at"`
}

type ConversionUnattributedPayload struct {
	DedupKey     string `json:"dedup_key"`
	ReferralCode string `json:"referral_code"`
	CompanyID    string `json:"company_id"`
	Reason       string `json:"reason"`
}

type SettlementComputedPayload struct {
	ConversionID            string `json:"conversion_id"`
	CreatorID               string `json:"creator_id"`
	ProgramID               string `json:"program_id"`
	RevenueSharePercent     string `json:"revenue_share_percent"`
	RevenueShareAmountCents int64  `json:"revenue_share_amount_cents"`
	ComputedAt              string `json:"computed_at"`
}

type PayoutPayload struct {
	PayoutID       string `json:"payout_id"`
	IdempotencyKey string `json:"idempotency_key"`
	CreatorID      string `json:"creator_id"`
	AmountCents    int64  `json:"amount_cents"`
	Currency       string `json:"currency"`
	TransferID     string `json:"transfer_id,omitempty"`
	Attempts       int    `json:"attempts"`
	LastError      string `json:"last_error,omitempty"`
}

type TerminationPayload struct {
	RequestID              string `json:"request_id"`
	ContractID             string `json:"contract_id"`
	Status                 string `json:"status"`
	RequestedBy            string `json:"requested_by"`
	ActorID                string `json:"actor_id"`
	EarnedEquityPct        string `json:"earned_equity_pct"`
	CompensationValueCents int64  `json:"compensation_value_cents"`
	OccurredAt             string `json:"occurred_at"`
}

// Upstream topics mirrored into the local directory tables.
const (
	TopicProgramTermsUpdated   = "program.terms.updated"
	TopicCreatorAccountUpdated = "creator.payout_account.updated"
	TopicContractSigned        = "contract.signed"
	TopicReferralDLQ           = "referral-settlement-service.dlq"
)
