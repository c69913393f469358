package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupKey(t *testing.T) {
	morning := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	evening := time.Date(2025, 5, 1, 22, 0, 0, 0, time.UTC)
	nextDay := morning.Add(24 * time.Hour)

	assert.Equal(t, "order-1", DedupKey(" order-1 ", "AB12CD34", "a@b.co", 100, morning))

	k1 := DedupKey("", "ab12cd34", "A@B.co", 100, morning)
	k2 := DedupKey("", "AB12CD34", "a@b.co", 100, evening)
	assert.True(t, strings.HasPrefix(k1, "derived:"))
	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, DedupKey("", "AB12CD34", "a@b.co", 100, nextDay))
	assert.NotEqual(t, k1, DedupKey("", "AB12CD34", "a@b.co", 101, morning))
}

func TestNormalizeEmail(t *testing.T) {
	got, err := NormalizeEmail("  Buyer@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, "buyer@example.com", got)

	for _, bad := range []string{"", "nope", "Buyer <buyer@example.com>", "a@"} {
		_, err := NormalizeEmail(bad)
		assert.ErrorIs(t, err, ErrInvalidInput, bad)
	}
}

func TestValidateRevenue(t *testing.T) {
	allow := []string{"signup", "lead"}
	assert.NoError(t, ValidateRevenue(100, "purchase", allow))
	assert.NoError(t, ValidateRevenue(0, "signup", allow))
	assert.ErrorIs(t, ValidateRevenue(0, "purchase", allow), ErrInvalidInput)
	assert.ErrorIs(t, ValidateRevenue(-5, "signup", allow), ErrInvalidInput)
}
