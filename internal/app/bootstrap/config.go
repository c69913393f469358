package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
	StorageMemory   = "memory"
)

// Config is the resolved runtime configuration for the referral settlement service.
type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	StorageDriver string
	DatabaseURL   string
	SQLitePath    string
	MaxDBConns    int32
	RedisURL      string

	KafkaBrokers []string
	KafkaGroupID string

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string

	WebhookSecret       string
	FallbackRedirectURL string
	CookieDomain        string
	CookieSecure        bool

	ClickRateLimitPerMinute float64
	ClickRateLimitBurst     int

	PayoutBaseURL string
	PayoutAPIKey  string
	PayoutTimeout time.Duration

	DefaultCurrency            string
	ZeroRevenueConversionTypes []string
	SettleInline               bool
	InlineSettleRetries        int
	SettlementMaxAttempts      int
	SettlementBatchSize        int
	PayoutMaxAttempts          int
	PayoutBatchSize            int
	PayoutClaimTTL             time.Duration
	RetryInitialInterval       time.Duration
	RetryMaxInterval           time.Duration

	SettlementPollInterval time.Duration
	PayoutPollInterval     time.Duration
	OutboxPollInterval     time.Duration
	OutboxBatchSize        int
	OutboxClaimTTL         time.Duration
	OutboxMaxRetries       int

	MetricsNamespace string
}

type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Storage struct {
		Driver      string `yaml:"driver"`
		PostgresURL string `yaml:"postgres_url"`
		SQLitePath  string `yaml:"sqlite_path"`
		MaxConns    int32  `yaml:"max_conns"`
	} `yaml:"storage"`
	Dependencies struct {
		RedisURL     string   `yaml:"redis_url"`
		KafkaBrokers []string `yaml:"kafka_brokers"`
		KafkaGroupID string   `yaml:"kafka_group_id"`
		PayoutURL    string   `yaml:"payout_base_url"`
	} `yaml:"dependencies"`
	Auth struct {
		JWTIssuer   string `yaml:"jwt_issuer"`
		JWTAudience string `yaml:"jwt_audience"`
	} `yaml:"auth"`
	Tracking struct {
		FallbackRedirectURL string  `yaml:"fallback_redirect_url"`
		CookieDomain        string  `yaml:"cookie_domain"`
		CookieSecure        *bool   `yaml:"cookie_secure"`
		RateLimitPerMinute  float64 `yaml:"rate_limit_per_minute"`
		RateLimitBurst      int     `yaml:"rate_limit_burst"`
	} `yaml:"tracking"`
	Settlement struct {
		DefaultCurrency            string   `yaml:"default_currency"`
		ZeroRevenueConversionTypes []string `yaml:"zero_revenue_conversion_types"`
		SettleInline               *bool    `yaml:"settle_inline"`
		MaxAttempts                int      `yaml:"max_attempts"`
	} `yaml:"settlement"`
	Payout struct {
		MaxAttempts int `yaml:"max_attempts"`
		BatchSize   int `yaml:"batch_size"`
	} `yaml:"payout"`
}

// LoadConfig resolves configuration in priority order: defaults -> file -> env.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:                  "referral-settlement-service",
		HTTPPort:                   8080,
		GRPCPort:                   9090,
		StorageDriver:              StoragePostgres,
		SQLitePath:                 "file:referral.db?_pragma=busy_timeout(5000)",
		MaxDBConns:                 20,
		KafkaGroupID:               "referral-settlement-service",
		CookieSecure:               true,
		ClickRateLimitPerMinute:    120,
		ClickRateLimitBurst:        20,
		PayoutTimeout:              10 * time.Second,
		DefaultCurrency:            "USD",
		ZeroRevenueConversionTypes: []string{"signup", "lead"},
		SettleInline:               true,
		InlineSettleRetries:        3,
		SettlementMaxAttempts:      8,
		SettlementBatchSize:        100,
		PayoutMaxAttempts:          6,
		PayoutBatchSize:            50,
		PayoutClaimTTL:             2 * time.Minute,
		RetryInitialInterval:       5 * time.Second,
		RetryMaxInterval:           30 * time.Minute,
		SettlementPollInterval:     5 * time.Second,
		PayoutPollInterval:         10 * time.Second,
		OutboxPollInterval:         2 * time.Second,
		OutboxBatchSize:            100,
		OutboxClaimTTL:             30 * time.Second,
		OutboxMaxRetries:           5,
		MetricsNamespace:           "referral",
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		if err := applyFile(&cfg, raw); err != nil {
			return Config{}, err
		}
	}

	cfg.ServiceID = envOrDefault("SERVICE_ID", cfg.ServiceID)
	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)

	cfg.StorageDriver = strings.ToLower(strings.TrimSpace(envOrDefault("STORAGE_DRIVER", cfg.StorageDriver)))
	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.SQLitePath = envOrDefault("SQLITE_PATH", cfg.SQLitePath)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaGroupID = envOrDefault("KAFKA_GROUP_ID", cfg.KafkaGroupID)

	cfg.JWTSecret = envOrDefault("JWT_SECRET", cfg.JWTSecret)
	cfg.JWTIssuer = envOrDefault("JWT_ISSUER", cfg.JWTIssuer)
	cfg.JWTAudience = envOrDefault("JWT_AUDIENCE", cfg.JWTAudience)
	cfg.WebhookSecret = envOrDefault("CONVERSION_WEBHOOK_SECRET", cfg.WebhookSecret)

	cfg.FallbackRedirectURL = envOrDefault("FALLBACK_REDIRECT_URL", cfg.FallbackRedirectURL)
	cfg.CookieDomain = envOrDefault("COOKIE_DOMAIN", cfg.CookieDomain)
	cfg.CookieSecure = envBool("COOKIE_SECURE", cfg.CookieSecure)
	cfg.ClickRateLimitPerMinute = envFloat("CLICK_RATE_LIMIT_PER_MINUTE", cfg.ClickRateLimitPerMinute)
	cfg.ClickRateLimitBurst = envInt("CLICK_RATE_LIMIT_BURST", cfg.ClickRateLimitBurst)

	cfg.PayoutBaseURL = envOrDefault("PAYOUT_BASE_URL", cfg.PayoutBaseURL)
	cfg.PayoutAPIKey = envOrDefault("PAYOUT_API_KEY", cfg.PayoutAPIKey)
	cfg.PayoutTimeout = time.Duration(envInt("PAYOUT_TIMEOUT_SECONDS", int(cfg.PayoutTimeout.Seconds()))) * time.Second

	cfg.DefaultCurrency = strings.ToUpper(envOrDefault("DEFAULT_CURRENCY", cfg.DefaultCurrency))
	cfg.ZeroRevenueConversionTypes = envCSV("ZERO_REVENUE_CONVERSION_TYPES", cfg.ZeroRevenueConversionTypes)
	cfg.SettleInline = envBool("SETTLE_INLINE", cfg.SettleInline)
	cfg.InlineSettleRetries = envInt("INLINE_SETTLE_RETRIES", cfg.InlineSettleRetries)
	cfg.SettlementMaxAttempts = envInt("SETTLEMENT_MAX_ATTEMPTS", cfg.SettlementMaxAttempts)
	cfg.SettlementBatchSize = envInt("SETTLEMENT_BATCH_SIZE", cfg.SettlementBatchSize)
	cfg.PayoutMaxAttempts = envInt("PAYOUT_MAX_ATTEMPTS", cfg.PayoutMaxAttempts)
	cfg.PayoutBatchSize = envInt("PAYOUT_BATCH_SIZE", cfg.PayoutBatchSize)
	cfg.PayoutClaimTTL = time.Duration(envInt("PAYOUT_CLAIM_TTL_SECONDS", int(cfg.PayoutClaimTTL.Seconds()))) * time.Second
	cfg.RetryInitialInterval = time.Duration(envInt("RETRY_INITIAL_SECONDS", int(cfg.RetryInitialInterval.Seconds()))) * time.Second
	cfg.RetryMaxInterval = time.Duration(envInt("RETRY_MAX_SECONDS", int(cfg.RetryMaxInterval.Seconds()))) * time.Second

	cfg.SettlementPollInterval = time.Duration(envInt("SETTLEMENT_POLL_SECONDS", int(cfg.SettlementPollInterval.Seconds()))) * time.Second
	cfg.PayoutPollInterval = time.Duration(envInt("PAYOUT_POLL_SECONDS", int(cfg.PayoutPollInterval.Seconds()))) * time.Second
	cfg.OutboxPollInterval = time.Duration(envInt("OUTBOX_POLL_SECONDS", int(cfg.OutboxPollInterval.Seconds()))) * time.Second
	cfg.OutboxBatchSize = envInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxClaimTTL = time.Duration(envInt("OUTBOX_CLAIM_TTL_SECONDS", int(cfg.OutboxClaimTTL.Seconds()))) * time.Second
	cfg.OutboxMaxRetries = envInt("OUTBOX_MAX_RETRIES", cfg.OutboxMaxRetries)
	cfg.MetricsNamespace = envOrDefault("METRICS_NAMESPACE", cfg.MetricsNamespace)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, raw []byte) error {
	var f configFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	if f.Service.ID != "" {
		cfg.ServiceID = f.Service.ID
	}
	if f.Service.HTTPPort > 0 {
		cfg.HTTPPort = f.Service.HTTPPort
	}
	if f.Service.GRPCPort > 0 {
		cfg.GRPCPort = f.Service.GRPCPort
	}
	if f.Storage.Driver != "" {
		cfg.StorageDriver = f.Storage.Driver
	}
	if f.Storage.PostgresURL != "" {
		cfg.DatabaseURL = f.Storage.PostgresURL
	}
	if f.Storage.SQLitePath != "" {
		cfg.SQLitePath = f.Storage.SQLitePath
	}
	if f.Storage.MaxConns > 0 {
		cfg.MaxDBConns = f.Storage.MaxConns
	}
	if f.Dependencies.RedisURL != "" {
		cfg.RedisURL = f.Dependencies.RedisURL
	}
	if len(f.Dependencies.KafkaBrokers) > 0 {
		cfg.KafkaBrokers = f.Dependencies.KafkaBrokers
	}
	if f.Dependencies.KafkaGroupID != "" {
		cfg.KafkaGroupID = f.Dependencies.KafkaGroupID
	}
	if f.Dependencies.PayoutURL != "" {
		cfg.PayoutBaseURL = f.Dependencies.PayoutURL
	}
	if f.Auth.JWTIssuer != "" {
		cfg.JWTIssuer = f.Auth.JWTIssuer
	}
	if f.Auth.JWTAudience != "" {
		cfg.JWTAudience = f.Auth.JWTAudience
	}
	if f.Tracking.FallbackRedirectURL != "" {
		cfg.FallbackRedirectURL = f.Tracking.FallbackRedirectURL
	}
	if f.Tracking.CookieDomain != "" {
		cfg.CookieDomain = f.Tracking.CookieDomain
	}
	if f.Tracking.CookieSecure != nil {
		cfg.CookieSecure = *f.Tracking.CookieSecure
	}
	if f.Tracking.RateLimitPerMinute > 0 {
		cfg.ClickRateLimitPerMinute = f.Tracking.RateLimitPerMinute
	}
	if f.Tracking.RateLimitBurst > 0 {
		cfg.ClickRateLimitBurst = f.Tracking.RateLimitBurst
	}
	if f.Settlement.DefaultCurrency != "" {
		cfg.DefaultCurrency = f.Settlement.DefaultCurrency
	}
	if len(f.Settlement.ZeroRevenueConversionTypes) > 0 {
		cfg.ZeroRevenueConversionTypes = f.Settlement.ZeroRevenueConversionTypes
	}
	if f.Settlement.SettleInline != nil {
		cfg.SettleInline = *f.Settlement.SettleInline
	}
	if f.Settlement.MaxAttempts > 0 {
		cfg.SettlementMaxAttempts = f.Settlement.MaxAttempts
	}
	if f.Payout.MaxAttempts > 0 {
		cfg.PayoutMaxAttempts = f.Payout.MaxAttempts
	}
	if f.Payout.BatchSize > 0 {
		cfg.PayoutBatchSize = f.Payout.BatchSize
	}
	return nil
}

func (c Config) validate() error {
	switch c.StorageDriver {
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("missing DB_URL/POSTGRES_URL")
		}
	case StorageSQLite, StorageMemory:
	default:
		return fmt.Errorf("unsupported storage driver %q", c.StorageDriver)
	}
	if len(strings.TrimSpace(c.JWTSecret)) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 characters")
	}
	if c.HTTPPort <= 0 || c.GRPCPort <= 0 {
		return fmt.Errorf("http and grpc ports must be positive")
	}
	if c.ClickRateLimitPerMinute <= 0 || c.ClickRateLimitBurst <= 0 {
		return fmt.Errorf("click rate limit must be positive")
	}
	if c.PayoutBaseURL != "" && c.PayoutAPIKey == "" {
		return fmt.Errorf("missing PAYOUT_API_KEY for %s", c.PayoutBaseURL)
	}
	if c.InlineSettleRetries < 0 {
		return fmt.Errorf("INLINE_SETTLE_RETRIES must not be negative")
	}
	return nil
}

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envFloat(name string, fallback float64) float64 {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}

// envBool accepts the usual truthy and falsy spellings; anything else keeps the fallback.
func envBool(name string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	default:
		return fallback
	}
}

func envCSV(name string, fallback []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	if len(parts) == 0 {
		return fallback
	}
	return parts
}
