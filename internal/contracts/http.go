package contracts

type SuccessResponse struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// ConversionWebhookRequest is the inbound conversion payload; revenueAmount is in cents.
type ConversionWebhookRequest struct {
	ReferralCode   string `json:"referralCode"`
	CustomerEmail  string `json:"customerEmail"`
	RevenueAmount  *int64 `json:"revenueAmount"`
	CompanyID      string `json:"companyId"`
	OrderID        string `json:"orderId,omitempty"`
	ConversionType string `json:"conversionType"`
	Timestamp      string `json:"timestamp,omitempty"`
	ClientID       string `json:"clientId,omitempty"`
	Currency       string `json:"currency,omitempty"`
}

type ConversionWebhookResponse struct {
	Attributed   bool   `json:"attributed"`
	Duplicate    bool   `json:"duplicate"`
	ConversionID string `json:"conversion_id,omitempty"`
	DedupKey     string `json:"dedup_key"`
}

type RecordClickRequest struct {
	Ref         string `json:"ref"`
	UTMSource   string `json:"utm_source,omitempty"`
	UTMMedium   string `json:"utm_medium,omitempty"`
	UTMCampaign string `json:"utm_campaign,omitempty"`
	Referrer    string `json:"referrer,omitempty"`
	ClientID    string `json:"clientId,omitempty"`
}

type RecordClickResponse struct {
	Found          bool   `json:"found"`
	ClientID       string `json:"client_id"`
	DestinationURL string `json:"destination_url,omitempty"`
}

type GenerateLinkRequest struct {
	CreatorID      string `json:"creator_id,omitempty"`
	ProgramID      string `json:"program_id"`
	DestinationURL string `json:"destination_url"`
	CampaignName   string `json:"campaign_name,omitempty"`
}

type LinkResponse struct {
	LinkID          string `json:"link_id"`
	CreatorID       string `json:"creator_id"`
	ProgramID       string `json:"program_id"`
	ReferralCode    string `json:"referral_code"`
	DestinationURL  string `json:"destination_url"`
	CampaignName    string `json:"campaign_name,omitempty"`
	ClickCount      int64  `json:"click_count"`
	ConversionCount int64  `json:"conversion_count"`
	CreatedAt       string `json:"created_at"`
}

type LinksListResponse struct {
	Items []LinkResponse `json:"items"`
}

type AttributionResponse struct {
	ClientID     string `json:"client_id"`
	ReferralCode string `json:"referral_code,omitempty"`
	Attributed   bool   `json:"attributed"`
}

type SettlementResponse struct {
	ConversionID            string `json:"conversion_id"`
	CreatorID               string `json:"creator_id"`
	ProgramID               string `json:"program_id"`
	RevenueAmountCents      int64  `json:"revenue_amount_cents"`
	RevenueSharePercent     string `json:"revenue_share_percent"`
	RevenueShareAmountCents int64  `json:"revenue_share_amount_cents"`
	Currency                string `json:"currency"`
	ComputedAt              string `json:"computed_at"`
}

type RecomputeResponse struct {
	ProgramID  string `json:"program_id"`
	Recomputed int    `json:"recomputed"`
}

type RequestTerminationRequest struct {
	ContractID    string `json:"contract_id"`
	Reason        string `json:"reason"`
	EffectiveDate string `json:"effective_date"`
}

type TerminationDecisionRequest struct {
	Note string `json:"note,omitempty"`
}

type TerminationResponse struct {
	RequestID              string `json:"request_id"`
	ContractID             string `json:"contract_id"`
	RequestedBy            string `json:"requested_by"`
	Reason                 string `json:"reason"`
	EffectiveDate          string `json:"effective_date"`
	MonthsServed           string `json:"months_served"`
	TotalMonths            int    `json:"total_months"`
	EquityPercent          string `json:"equity_percent"`
	Status                 string `json:"status"`
	EarnedEquityPct        string `json:"earned_equity_pct"`
	CompanyValuationCents  int64  `json:"company_valuation_cents"`
	CompensationValueCents int64  `json:"compensation_value_cents"`
	DecidedBy              string `json:"decided_by,omitempty"`
	DecidedAt              string `json:"decided_at,omitempty"`
}

type PayoutResponse struct {
	PayoutID       string `json:"payout_id"`
	IdempotencyKey string `json:"idempotency_key"`
	SourceKind     string `json:"source_kind"`
	SourceID       string `json:"source_id"`
	CreatorID      string `json:"creator_id"`
	AmountCents    int64  `json:"amount_cents"`
	Currency       string `json:"currency"`
	Status         string `json:"status"`
	Attempts       int    `json:"attempts"`
	LastError      string `json:"last_error,omitempty"`
}

type PayoutListResponse struct {
	Items []PayoutResponse `json:"items"`
}

type UnattributedResponse struct {
	DedupKey           string `json:"dedup_key"`
	ReferralCode       string `json:"referral_code"`
	CompanyID          string `json:"company_id"`
	RevenueAmountCents int64  `json:"revenue_amount_cents"`
	Reason             string `json:"reason"`
	OccurredAt         string `json:"occurred_at"`
}

type UnattributedListResponse struct {
	Items []UnattributedResponse `json:"items"`
}
