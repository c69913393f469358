package application

import (
	"log/slog"
	"time"

	"github.com/viralforge/stakeshare/internal/domain"
	"github.com/viralforge/stakeshare/internal/ports"
)

type Config struct {
	ServiceName                string
	DefaultCurrency            string
	ZeroRevenueConversionTypes []string
	LinkCodeMaxAttempts        int
	SettleInline               bool
	InlineSettleRetries        uint64
	SettlementMaxAttempts      int
	SettlementBatchSize        int
	PayoutMaxAttempts          int
	PayoutBatchSize            int
	PayoutClaimTTL             time.Duration
	RetryInitialInterval       time.Duration
	RetryMaxInterval           time.Duration
}

type Actor struct {
	SubjectID string
	Role      string
	RequestID string
}

type GenerateLinkInput struct {
	CreatorID      string
	ProgramID      string
	DestinationURL string
	CampaignName   string
}

// ClientContext is what the click endpoint knows about the visitor.
type ClientContext struct {
	ClientID    string
	UTMSource   string
	UTMMedium   string
	UTMCampaign string
	Referrer    string
	IP          string
	UserAgent   string
}

type RecordClickResult struct {
	Found          bool
	ClientID       string
	DestinationURL string
	Link           domain.TrackingLink
	Token          domain.AttributionToken
}

type IngestConversionInput struct {
	ReferralCode       string
	ClientID           string
	CompanyID          string
	RevenueAmountCents int64
	Currency           string
	CustomerEmail      string
	ConversionType     string
	OrderID            string
	OccurredAt         time.Time
	RequestID          string
}

// IngestResult reports what the ledger did with one webhook delivery.
// Conversion is zero when Attributed is false.
type IngestResult struct {
	Conversion domain.ConversionEvent
	DedupKey   string
	Attributed bool
	Duplicate  bool
}

type RequestTerminationInput struct {
	ContractID    string
	Reason        string
	EffectiveDate time.Time
}

type Service struct {
	cfg Config

	links        ports.LinkRepository
	conversions  ports.ConversionRepository
	settlements  ports.SettlementRepository
	payouts      ports.PayoutRepository
	terminations ports.TerminationRepository

	programs  ports.ProgramReader
	creators  ports.CreatorReader
	contracts ports.ContractReader

	attribution ports.AttributionStore
	payoutAPI   ports.PayoutClient
	metrics     ports.Metrics
	logger      *slog.Logger

	nowFn func() time.Time
}

type Dependencies struct {
	Config Config

	Links        ports.LinkRepository
	Conversions  ports.ConversionRepository
	Settlements  ports.SettlementRepository
	Payouts      ports.PayoutRepository
	Terminations ports.TerminationRepository

	Programs  ports.ProgramReader
	Creators  ports.CreatorReader
	Contracts ports.ContractReader

	Attribution ports.AttributionStore
	PayoutAPI   ports.PayoutClient
	Metrics     ports.Metrics
	Logger      *slog.Logger

	Now func() time.Time
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.ServiceName == "" {
		cfg.ServiceName = "referral-settlement-service"
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "USD"
	}
	if cfg.ZeroRevenueConversionTypes == nil {
		cfg.ZeroRevenueConversionTypes = []string{"signup", "lead"}
	}
	if cfg.LinkCodeMaxAttempts <= 0 {
		cfg.LinkCodeMaxAttempts = 5
	}
	if cfg.SettlementMaxAttempts <= 0 {
		cfg.SettlementMaxAttempts = 8
	}
	if cfg.SettlementBatchSize <= 0 {
		cfg.SettlementBatchSize = 100
	}
	if cfg.PayoutMaxAttempts <= 0 {
		cfg.PayoutMaxAttempts = 6
	}
	if cfg.PayoutBatchSize <= 0 {
		cfg.PayoutBatchSize = 50
	}
	if cfg.PayoutClaimTTL <= 0 {
		cfg.PayoutClaimTTL = 2 * time.Minute
	}
	if cfg.RetryInitialInterval <= 0 {
		cfg.RetryInitialInterval = 5 * time.Second
	}
	if cfg.RetryMaxInterval <= 0 {
		cfg.RetryMaxInterval = 30 * time.Minute
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	nowFn := deps.Now
	if nowFn == nil {
		nowFn = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		cfg:          cfg,
		links:        deps.Links,
		conversions:  deps.Conversions,
		settlements:  deps.Settlements,
		payouts:      deps.Payouts,
		terminations: deps.Terminations,
		programs:     deps.Programs,
		creators:     deps.Creators,
		contracts:    deps.Contracts,
		attribution:  deps.Attribution,
		payoutAPI:    deps.PayoutAPI,
		metrics:      metrics,
		logger:       logger.With("service", cfg.ServiceName, "layer", "application"),
		nowFn:        nowFn,
	}
}

func (s *Service) Config() Config { return s.cfg }
