package cache

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viralforge/stakeshare/internal/domain"
)

func TestAttributionKey(t *testing.T) {
	assert.Equal(t, "referral:attr:client-1", attributionKey("client-1"))
}

func TestDecodeTokenDropsExpiredEntries(t *testing.T) {
	first := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	raw, err := json.Marshal(domain.AttributionToken{
		ClientID:     "client-1",
		ReferralCode: "AB12CD34",
		FirstSeenAt:  first,
		LastSeenAt:   first,
	})
	require.NoError(t, err)

	live, err := decodeToken(raw, first.Add(domain.AttributionWindow))
	require.NoError(t, err)
	require.NotNil(t, live)
	assert.Equal(t, "AB12CD34", live.ReferralCode)
	assert.True(t, live.FirstSeenAt.Equal(first))

	expired, err := decodeToken(raw, first.Add(domain.AttributionWindow+time.Second))
	require.NoError(t, err)
	assert.Nil(t, expired)

	_, err = decodeToken([]byte("{"), first)
	assert.Error(t, err)
}
