package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"
)

const DefaultConversionType = "purchase"

// ConversionEvent is one attributed real-world transaction. It is immutable once stored.
type ConversionEvent struct {
	ConversionID       string    `json:"conversion_id"`
	ReferralCode       string    `json:"referral_code"`
	LinkID             string    `json:"link_id"`
	ProgramID          string    `json:"program_id"`
	CreatorID          string    `json:"creator_id"`
	CompanyID          string    `json:"company_id"`
	RevenueAmountCents int64     `json:"revenue_amount_cents"`
	Currency           string    `json:"currency"`
	CustomerEmail      string    `json:"customer_email"`
	ConversionType     string    `json:"conversion_type"`
	OrderID            string    `json:"order_id,omitempty"`
	OccurredAt         time.Time `json:"occurred_at"`
	DedupKey           string    `json:"dedup_key"`
	CreatedAt          time.Time `json:"created_at"`
}

// UnattributedConversion is the diagnostic note kept when a referral code does not resolve.
type UnattributedConversion struct {
	DedupKey           string    `json:"dedup_key"`
	ReferralCode       string    `json:"referral_code"`
	CompanyID          string    `json:"company_id"`
	RevenueAmountCents int64     `json:"revenue_amount_cents"`
	CustomerEmail      string    `json:"customer_email"`
	ConversionType     string    `json:"conversion_type"`
	OrderID            string    `json:"order_id,omitempty"`
	OccurredAt         time.Time `json:"occurred_at"`
	Reason             string    `json:"reason"`
	CreatedAt          time.Time `json:"created_at"`
}

// NormalizeEmail canonicalizes and validates an address before it is stored or hashed.
func NormalizeEmail(email string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(email))
	if trimmed == "" {
		return "", fmt.Errorf("%w: customer_email is required", ErrInvalidInput)
	}
	addr, err := mail.ParseAddress(trimmed)
	if err != nil || addr.Address != trimmed {
		return "", fmt.Errorf("%w: customer_email is malformed", ErrInvalidInput)
	}
	return trimmed, nil
}

// ValidateRevenue rejects negative amounts, and zero unless the type is on the allow list.
func ValidateRevenue(amountCents int64, conversionType string, zeroAllowed []string) error {
	if amountCents < 0 {
		return fmt.Errorf("%w: revenue_amount_cents must not be negative", ErrInvalidInput)
	}
	if amountCents > 0 {
		return nil
	}
	for _, t := range zeroAllowed {
		if strings.EqualFold(strings.TrimSpace(t), conversionType) {
			return nil
		}
	}
	return fmt.Errorf("%w: revenue_amount_cents must be positive for %s conversions", ErrInvalidInput, conversionType)
}

// DedupKey identifies one real-world transaction. The order id wins when present;
// otherwise the key is derived from code, customer, amount and the UTC day.
func DedupKey(orderID, referralCode, email string, amountCents int64, occurredAt time.Time) string {
	if id := strings.TrimSpace(orderID); id != "" {
		return id
	}
	raw := strings.Join([]string{
		NormalizeReferralCode(referralCode),
		strings.ToLower(strings.TrimSpace(email)),
		strconv.FormatInt(amountCents, 10),
		occurredAt.UTC().Format("2006-01-02"),
	}, "|")
	sum := sha256.Sum256([]byte(raw))
	return "derived:" + hex.EncodeToString(sum[:])
}
