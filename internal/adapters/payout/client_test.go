package payout

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viralforge/stakeshare/internal/domain"
	"github.com/viralforge/stakeshare/internal/ports"
)

func TestHTTPClientTransferSendsIdempotencyKey(t *testing.T) {
	var (
		gotKey  string
		gotAuth string
		gotBody transferRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/transfers", r.URL.Path)
		gotKey = r.Header.Get("Idempotency-Key")
		gotAuth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"id":"tr_123"}`))
	}))
	defer srv.Close()

	c, err := NewHTTPClient(srv.URL+"/", "sk_test", time.Second)
	require.NoError(t, err)

	res, err := c.Transfer(context.Background(), ports.TransferRequest{
		IdempotencyKey:  "settlement:conv-1",
		PayoutAccountID: "acct_1",
		AmountCents:     500,
		Currency:        "USD",
		Description:     "revenue share",
	})
	require.NoError(t, err)
	assert.Equal(t, "tr_123", res.TransferID)
	assert.Equal(t, "settlement:conv-1", gotKey)
	assert.Equal(t, "Bearer sk_test", gotAuth)
	assert.Equal(t, transferRequest{Destination: "acct_1", Amount: 500, Currency: "usd", Description: "revenue share"}, gotBody)
}

func TestHTTPClientClassifiesFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{name: "server error", status: http.StatusBadGateway, want: domain.ErrTransient},
		{name: "throttled", status: http.StatusTooManyRequests, want: domain.ErrTransient},
		{name: "rejected", status: http.StatusUnprocessableEntity, body: `{"error":"account closed"}`, want: domain.ErrPermanent},
		{name: "missing id", status: http.StatusOK, body: `{}`, want: domain.ErrTransient},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()
			c, err := NewHTTPClient(srv.URL, "", time.Second)
			require.NoError(t, err)
			_, err = c.Transfer(context.Background(), ports.TransferRequest{IdempotencyKey: "k", AmountCents: 1, Currency: "USD"})
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestHTTPClientTimeoutIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()
	c, err := NewHTTPClient(srv.URL, "", 20*time.Millisecond)
	require.NoError(t, err)
	_, err = c.Transfer(context.Background(), ports.TransferRequest{IdempotencyKey: "k", AmountCents: 1, Currency: "USD"})
	assert.ErrorIs(t, err, domain.ErrTransient)

	_, err = NewHTTPClient(" ", "", 0)
	assert.Error(t, err)
}
