package domain

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"net/url"
	"strings"
	"time"
)

const (
	ReferralCodeLength   = 8
	referralCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// TrackingLink binds a referral code to one creator and program.
// Links are never deleted and their counters only increase.
type TrackingLink struct {
	LinkID          string    `json:"link_id"`
	CreatorID       string    `json:"creator_id"`
	ProgramID       string    `json:"program_id"`
	ReferralCode    string    `json:"referral_code"`
	DestinationURL  string    `json:"destination_url"`
	CampaignName    string    `json:"campaign_name,omitempty"`
	ClickCount      int64     `json:"click_count"`
	ConversionCount int64     `json:"conversion_count"`
	CreatedAt       time.Time `json:"created_at"`
}

// ClickEvent is the audit row appended for every resolved click.
type ClickEvent struct {
	ClickID       string    `json:"click_id"`
	LinkID        string    `json:"link_id"`
	ReferralCode  string    `json:"referral_code"`
	ClientID      string    `json:"client_id"`
	UTMSource     string    `json:"utm_source,omitempty"`
	UTMMedium     string    `json:"utm_medium,omitempty"`
	UTMCampaign   string    `json:"utm_campaign,omitempty"`
	Referrer      string    `json:"referrer,omitempty"`
	IPHash        string    `json:"ip_hash,omitempty"`
	UserAgentHash string    `json:"user_agent_hash,omitempty"`
	ClickedAt     time.Time `json:"clicked_at"`
}

// GenerateReferralCode returns a fixed-length upper-case alphanumeric code.
func GenerateReferralCode() (string, error) {
	max := big.NewInt(int64(len(referralCodeAlphabet)))
	var b strings.Builder
	b.Grow(ReferralCodeLength)
	for i := 0; i < ReferralCodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate referral code: %w", err)
		}
		b.WriteByte(referralCodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

func NormalizeReferralCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidReferralCode reports whether code has the generated shape.
func ValidReferralCode(code string) bool {
	if len(code) != ReferralCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if !strings.ContainsRune(referralCodeAlphabet, rune(code[i])) {
			return false
		}
	}
	return true
}

// ValidateDestinationURL accepts only absolute http(s) URLs with a host.
func ValidateDestinationURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: destination_url is required", ErrInvalidInput)
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: destination_url is malformed", ErrInvalidInput)
	}
	if !u.IsAbs() || u.Host == "" {
		return "", fmt.Errorf("%w: destination_url must be absolute", ErrInvalidInput)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return "", fmt.Errorf("%w: destination_url scheme must be http or https", ErrInvalidInput)
	}
	return u.String(), nil
}
