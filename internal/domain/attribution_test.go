package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTouchOverwritesCodeButKeepsAnchor(t *testing.T) {
	t0 := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	token := Touch(nil, "client-1", "AB12CD34", AttributionSource{UTMSource: "twitter"}, t0)
	assert.Equal(t, t0, token.FirstSeenAt)
	assert.Equal(t, t0, token.LastSeenAt)

	t1 := t0.Add(10 * 24 * time.Hour)
	next := Touch(&token, "client-1", "QW34ER56", AttributionSource{UTMSource: "youtube"}, t1)
	assert.Equal(t, "QW34ER56", next.ReferralCode)
	assert.Equal(t, t0, next.FirstSeenAt)
	assert.Equal(t, t1, next.LastSeenAt)
	assert.Equal(t, "youtube", next.Source.UTMSource)
	assert.Equal(t, 20*24*time.Hour, next.TTL(t1))
}

func TestResolveWindowBoundary(t *testing.T) {
	t0 := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	token := Touch(nil, "client-1", "AB12CD34", AttributionSource{}, t0)

	code, ok := Resolve(token, t0.Add(AttributionWindow))
	assert.True(t, ok)
	assert.Equal(t, "AB12CD34", code)

	_, ok = Resolve(token, t0.Add(AttributionWindow+time.Second))
	assert.False(t, ok)

	_, ok = Resolve(AttributionToken{}, t0)
	assert.False(t, ok)
}
