package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateReferralCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		code, err := GenerateReferralCode()
		require.NoError(t, err)
		assert.True(t, ValidReferralCode(code), code)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 195)
}

func TestValidateDestinationURL(t *testing.T) {
	got, err := ValidateDestinationURL(" https://shop.example.com/a?b=c ")
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example.com/a?b=c", got)

	for _, bad := range []string{"", "shop.example.com", "/relative", "javascript:alert(1)", "ftp://x.example.com", "http://"} {
		_, err := ValidateDestinationURL(bad)
		assert.ErrorIs(t, err, ErrInvalidInput, bad)
	}
}
