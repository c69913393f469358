package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestHMACVerifierRoundTrip(t *testing.T) {
	v, err := NewHMACVerifier(testSecret, "viralforge-auth", "referral")
	require.NoError(t, err)

	now := time.Now().UTC()
	raw, err := v.Sign(Claims{Subject: "creator-1", Role: "Creator", ExpiresAt: now.Add(time.Hour)}, now)
	require.NoError(t, err)

	claims, err := v.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "creator-1", claims.Subject)
	assert.Equal(t, "creator", claims.Role)
}

func TestHMACVerifierRejects(t *testing.T) {
	v, err := NewHMACVerifier(testSecret, "", "")
	require.NoError(t, err)
	now := time.Now().UTC()

	expired, err := v.Sign(Claims{Subject: "creator-1", Role: "creator", ExpiresAt: now.Add(-time.Hour)}, now.Add(-2*time.Hour))
	require.NoError(t, err)
	_, err = v.Verify(expired)
	assert.Error(t, err)

	badRole, err := v.Sign(Claims{Subject: "creator-1", Role: "guest", ExpiresAt: now.Add(time.Hour)}, now)
	require.NoError(t, err)
	_, err = v.Verify(badRole)
	assert.Error(t, err)

	other, err := NewHMACVerifier("another-secret-of-enough-length", "", "")
	require.NoError(t, err)
	foreign, err := other.Sign(Claims{Subject: "creator-1", Role: "creator", ExpiresAt: now.Add(time.Hour)}, now)
	require.NoError(t, err)
	_, err = v.Verify(foreign)
	assert.Error(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "x", "role": "admin", "exp": now.Add(time.Hour).Unix()})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = v.Verify(unsigned)
	assert.Error(t, err)

	_, err = NewHMACVerifier("short", "", "")
	assert.Error(t, err)
}

func TestPayloadSignature(t *testing.T) {
	body := []byte(`{"referralCode":"AB12CD34"}`)
	sig := SignPayload("whsec", body)

	assert.True(t, VerifyPayloadSignature("whsec", body, sig))
	assert.True(t, VerifyPayloadSignature("whsec", body, "sha256="+sig))
	assert.False(t, VerifyPayloadSignature("other", body, sig))
	assert.False(t, VerifyPayloadSignature("whsec", []byte(`{}`), sig))
	assert.False(t, VerifyPayloadSignature("whsec", body, "not-hex"))
	assert.False(t, VerifyPayloadSignature("whsec", body, ""))
}
