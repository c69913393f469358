package domain

import "time"

// AttributionWindow is measured from the first click and is never extended.
const AttributionWindow = 30 * 24 * time.Hour

type AttributionSource struct {
	UTMSource   string `json:"utm_source,omitempty"`
	UTMMedium   string `json:"utm_medium,omitempty"`
	UTMCampaign string `json:"utm_campaign,omitempty"`
	Referrer    string `json:"referrer,omitempty"`
}

// AttributionToken is the per-client referral state kept in the keyed store.
// ReferralCode follows the latest click; FirstSeenAt is fixed at creation.
type AttributionToken struct {
	ClientID     string            `json:"client_id"`
	ReferralCode string            `json:"referral_code"`
	FirstSeenAt  time.Time         `json:"first_seen_at"`
	LastSeenAt   time.Time         `json:"last_seen_at"`
	Source       AttributionSource `json:"source"`
}

// Touch applies a click to an existing token or creates a new one when current is nil.
func Touch(current *AttributionToken, clientID, referralCode string, source AttributionSource, now time.Time) AttributionToken {
	if current == nil {
		return AttributionToken{
			ClientID:     clientID,
			ReferralCode: referralCode,
			FirstSeenAt:  now,
			LastSeenAt:   now,
			Source:       source,
		}
	}
	next := *current
	next.ClientID = clientID
	next.ReferralCode = referralCode
	next.LastSeenAt = now
	next.Source = source
	return next
}

func (t AttributionToken) ExpiresAt() time.Time {
	return t.FirstSeenAt.Add(AttributionWindow)
}

// TTL is the remaining store lifetime, anchored to the first click.
func (t AttributionToken) TTL(now time.Time) time.Duration {
	return t.ExpiresAt().Sub(now)
}

// Resolve returns the credited referral code while now <= first_seen_at + window.
func Resolve(token AttributionToken, now time.Time) (string, bool) {
	if token.ReferralCode == "" || token.FirstSeenAt.IsZero() {
		return "", false
	}
	if now.After(token.ExpiresAt()) {
		return "", false
	}
	return token.ReferralCode, true
}
