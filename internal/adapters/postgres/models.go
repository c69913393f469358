package postgres

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type trackingLinkModel struct {
	LinkID          string    `gorm:"column:link_id;primaryKey"`
	CreatorID       string    `gorm:"column:creator_id;index:ix_tracking_links_owner,priority:1"`
	ProgramID       string    `gorm:"column:program_id;index:ix_tracking_links_owner,priority:2"`
	ReferralCode    string    `gorm:"column:referral_code;uniqueIndex:ux_tracking_links_code"`
	DestinationURL  string    `gorm:"column:destination_url"`
	CampaignName    *string   `gorm:"column:campaign_name"`
	ClickCount      int64     `gorm:"column:click_count"`
	ConversionCount int64     `gorm:"column:conversion_count"`
	CreatedAt       time.Time `gorm:"column:created_at"`
}

func (trackingLinkModel) TableName() string { return "tracking_links" }

type clickEventModel struct {
	ClickID       string    `gorm:"column:click_id;primaryKey"`
	LinkID        string    `gorm:"column:link_id;index"`
	ReferralCode  string    `gorm:"column:referral_code"`
	ClientID      string    `gorm:"column:client_id"`
	UTMSource     *string   `gorm:"column:utm_source"`
	UTMMedium     *string   `gorm:"column:utm_medium"`
	UTMCampaign   *string   `gorm:"column:utm_campaign"`
	Referrer      *string   `gorm:"column:referrer"`
	IPHash        *string   `gorm:"column:ip_hash"`
	UserAgentHash *string   `gorm:"column:user_agent_hash"`
	ClickedAt     time.Time `gorm:"column:clicked_at"`
}

func (clickEventModel) TableName() string { return "click_events" }

type conversionEventModel struct {
	ConversionID       string    `gorm:"column:conversion_id;primaryKey"`
	ReferralCode       string    `gorm:"column:referral_code"`
	LinkID             string    `gorm:"column:link_id"`
	ProgramID          string    `gorm:"column:program_id;index"`
	CreatorID          string    `gorm:"column:creator_id"`
	CompanyID          string    `gorm:"column:company_id"`
	RevenueAmountCents int64     `gorm:"column:revenue_amount_cents"`
	Currency           string    `gorm:"column:currency"`
	CustomerEmail      string    `gorm:"column:customer_email"`
	ConversionType     string    `gorm:"column:conversion_type"`
	OrderID            *string   `gorm:"column:order_id"`
	OccurredAt         time.Time `gorm:"column:occurred_at"`
	DedupKey           string    `gorm:"column:dedup_key;uniqueIndex:ux_conversion_events_dedup"`
	CreatedAt          time.Time `gorm:"column:created_at"`
}

func (conversionEventModel) TableName() string { return "conversion_events" }

type unattributedConversionModel struct {
	DedupKey           string    `gorm:"column:dedup_key;primaryKey"`
	ReferralCode       string    `gorm:"column:referral_code"`
	CompanyID          string    `gorm:"column:company_id"`
	RevenueAmountCents int64     `gorm:"column:revenue_amount_cents"`
	CustomerEmail      string    `gorm:"column:customer_email"`
	ConversionType     string    `gorm:"column:conversion_type"`
	OrderID            *string   `gorm:"column:order_id"`
	OccurredAt         time.Time `gorm:"column:occurred_at"`
	Reason             string    `gorm:"column:reason"`
	CreatedAt          time.Time `gorm:"column:created_at;index"`
}

func (unattributedConversionModel) TableName() string { return "unattributed_conversions" }

type settlementRecordModel struct {
	ConversionID            string          `gorm:"column:conversion_id;primaryKey"`
	CreatorID               string          `gorm:"column:creator_id"`
	ProgramID               string          `gorm:"column:program_id"`
	RevenueAmountCents      int64           `gorm:"column:revenue_amount_cents"`
	RevenueSharePercent     decimal.Decimal `gorm:"column:revenue_share_percent;type:numeric(9,4)"`
	RevenueShareAmountCents int64           `gorm:"column:revenue_share_amount_cents"`
	Currency                string          `gorm:"column:currency"`
	ComputedAt              time.Time       `gorm:"column:computed_at"`
}

func (settlementRecordModel) TableName() string { return "settlement_records" }

type settlementTaskModel struct {
	ConversionID  string    `gorm:"column:conversion_id;primaryKey"`
	Status        string    `gorm:"column:status;index:ix_settlement_tasks_due,priority:1"`
	Attempts      int       `gorm:"column:attempts"`
	NextAttemptAt time.Time `gorm:"column:next_attempt_at;index:ix_settlement_tasks_due,priority:2"`
	LastError     *string   `gorm:"column:last_error"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

func (settlementTaskModel) TableName() string { return "settlement_tasks" }

type payoutInstructionModel struct {
	PayoutID        string     `gorm:"column:payout_id;primaryKey"`
	IdempotencyKey  string     `gorm:"column:idempotency_key;uniqueIndex:ux_payout_instructions_key"`
	SourceKind      string     `gorm:"column:source_kind"`
	SourceID        string     `gorm:"column:source_id"`
	CreatorID       string     `gorm:"column:creator_id"`
	PayoutAccountID string     `gorm:"column:payout_account_id"`
	AmountCents     int64      `gorm:"column:amount_cents"`
	Currency        string     `gorm:"column:currency"`
	Description     string     `gorm:"column:description"`
	Status          string     `gorm:"column:status;index:ix_payout_instructions_due,priority:1"`
	TransferID      *string    `gorm:"column:transfer_id"`
	Attempts        int        `gorm:"column:attempts"`
	NextAttemptAt   time.Time  `gorm:"column:next_attempt_at;index:ix_payout_instructions_due,priority:2"`
	LastError       *string    `gorm:"column:last_error"`
	ClaimToken      *string    `gorm:"column:claim_token"`
	ClaimUntil      *time.Time `gorm:"column:claim_until"`
	CreatedAt       time.Time  `gorm:"column:created_at"`
	UpdatedAt       time.Time  `gorm:"column:updated_at"`
}

func (payoutInstructionModel) TableName() string { return "payout_instructions" }

type terminationRequestModel struct {
	RequestID              string          `gorm:"column:request_id;primaryKey"`
	ContractID             string          `gorm:"column:contract_id;index"`
	ProgramID              string          `gorm:"column:program_id"`
	CreatorID              string          `gorm:"column:creator_id"`
	RequestedBy            string          `gorm:"column:requested_by"`
	RequesterID            string          `gorm:"column:requester_id"`
	Reason                 string          `gorm:"column:reason"`
	EffectiveDate          time.Time       `gorm:"column:effective_date"`
	MonthsServed           decimal.Decimal `gorm:"column:months_served;type:numeric(10,4)"`
	TotalMonths            int             `gorm:"column:total_months"`
	EquityPercent          decimal.Decimal `gorm:"column:equity_percent;type:numeric(9,4)"`
	Status                 string          `gorm:"column:status"`
	EarnedEquityPct        decimal.Decimal `gorm:"column:earned_equity_pct;type:numeric(12,6)"`
	CompanyValuationCents  int64           `gorm:"column:company_valuation_cents"`
	CompensationValueCents int64           `gorm:"column:compensation_value_cents"`
	DecidedBy              *string         `gorm:"column:decided_by"`
	DecidedAt              *time.Time      `gorm:"column:decided_at"`
	CreatedAt              time.Time       `gorm:"column:created_at"`
	UpdatedAt              time.Time       `gorm:"column:updated_at"`
}

func (terminationRequestModel) TableName() string { return "termination_requests" }

type terminationAuditModel struct {
	AuditID   string    `gorm:"column:audit_id;primaryKey"`
	RequestID string    `gorm:"column:request_id;index"`
	Action    string    `gorm:"column:action"`
	ActorID   string    `gorm:"column:actor_id"`
	Party     string    `gorm:"column:party"`
	Note      *string   `gorm:"column:note"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (terminationAuditModel) TableName() string { return "termination_audits" }

type referralOutboxModel struct {
	OutboxID       uuid.UUID  `gorm:"column:outbox_id;primaryKey"`
	EventType      string     `gorm:"column:event_type"`
	PartitionKey   string     `gorm:"column:partition_key"`
	Payload        string     `gorm:"column:payload"`
	CreatedAt      time.Time  `gorm:"column:created_at;index"`
	PublishedAt    *time.Time `gorm:"column:published_at"`
	RetryCount     int        `gorm:"column:retry_count"`
	LastError      *string    `gorm:"column:last_error"`
	LastErrorAt    *time.Time `gorm:"column:last_error_at"`
	ClaimToken     *string    `gorm:"column:claim_token"`
	ClaimUntil     *time.Time `gorm:"column:claim_until"`
	DeadLetteredAt *time.Time `gorm:"column:dead_lettered_at"`
}

func (referralOutboxModel) TableName() string { return "referral_outbox" }

// programTermsModel, creatorAccountModel and creatorContractModel mirror records
// replicated from the programs and contracts services.
type programTermsModel struct {
	ProgramID             string          `gorm:"column:program_id;primaryKey"`
	CompanyID             string          `gorm:"column:company_id"`
	FounderID             string          `gorm:"column:founder_id"`
	RevenueShareEnabled   bool            `gorm:"column:revenue_share_enabled"`
	RevenueSharePercent   decimal.Decimal `gorm:"column:revenue_share_percent;type:numeric(9,4)"`
	CompanyValuationCents int64           `gorm:"column:company_valuation_cents"`
	Currency              string          `gorm:"column:currency"`
}

func (programTermsModel) TableName() string { return "program_terms" }

type creatorAccountModel struct {
	CreatorID       string `gorm:"column:creator_id;primaryKey"`
	PayoutAccountID string `gorm:"column:payout_account_id"`
}

func (creatorAccountModel) TableName() string { return "creator_accounts" }

type creatorContractModel struct {
	ContractID    string          `gorm:"column:contract_id;primaryKey"`
	CreatorID     string          `gorm:"column:creator_id"`
	FounderID     string          `gorm:"column:founder_id"`
	ProgramID     string          `gorm:"column:program_id"`
	StartDate     time.Time       `gorm:"column:start_date"`
	TotalMonths   int             `gorm:"column:total_months"`
	EquityPercent decimal.Decimal `gorm:"column:equity_percent;type:numeric(9,4)"`
}

func (creatorContractModel) TableName() string { return "creator_contracts" }
