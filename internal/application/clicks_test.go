package application_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viralforge/stakeshare/internal/application"
	"github.com/viralforge/stakeshare/internal/domain"
)

func TestRecordClickUnknownCodeIsNotAnError(t *testing.T) {
	h := newHarness(t, application.Config{})
	res, err := h.svc.RecordClick(context.Background(), "ZZZZ9999", application.ClientContext{ClientID: "client-1"})
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Equal(t, "client-1", res.ClientID)
	assert.Empty(t, h.repos.Links.Clicks())
}

func TestRecordClickCountsAndKeepsFirstSeen(t *testing.T) {
	h := newHarness(t, application.Config{})
	ctx := context.Background()
	first := h.seedLink(t, "AB12CD34")
	second := h.seedLink(t, "QW34ER56")

	res, err := h.svc.RecordClick(ctx, "ab12cd34", application.ClientContext{UTMSource: "twitter", IP: "203.0.113.9", UserAgent: "Mozilla/5.0"})
	require.NoError(t, err)
	require.True(t, res.Found)
	require.NotEmpty(t, res.ClientID, "a client id is minted when none is supplied")
	assert.Equal(t, first.DestinationURL, res.DestinationURL)
	assert.EqualValues(t, 1, res.Link.ClickCount)
	firstSeen := res.Token.FirstSeenAt

	h.clock.Advance(3 * 24 * time.Hour)
	res2, err := h.svc.RecordClick(ctx, second.ReferralCode, application.ClientContext{ClientID: res.ClientID, UTMSource: "youtube"})
	require.NoError(t, err)
	assert.Equal(t, second.ReferralCode, res2.Token.ReferralCode, "latest click wins the code")
	assert.Equal(t, firstSeen, res2.Token.FirstSeenAt, "window stays anchored to the first click")
	assert.Equal(t, h.clock.Now(), res2.Token.LastSeenAt)
	assert.Equal(t, "youtube", res2.Token.Source.UTMSource)

	again, err := h.svc.RecordClick(ctx, first.ReferralCode, application.ClientContext{ClientID: res.ClientID})
	require.NoError(t, err)
	assert.EqualValues(t, 2, again.Link.ClickCount)

	clicks := h.repos.Links.Clicks()
	require.Len(t, clicks, 3)
	assert.Len(t, clicks[0].IPHash, 64)
	assert.NotEqual(t, "203.0.113.9", clicks[0].IPHash)
}

func TestRecordClickAfterExpiryStartsNewWindow(t *testing.T) {
	h := newHarness(t, application.Config{})
	ctx := context.Background()
	link := h.seedLink(t, "AB12CD34")

	res, err := h.svc.RecordClick(ctx, link.ReferralCode, application.ClientContext{ClientID: "client-1"})
	require.NoError(t, err)
	h.clock.Advance(domain.AttributionWindow + time.Hour)

	res2, err := h.svc.RecordClick(ctx, link.ReferralCode, application.ClientContext{ClientID: "client-1"})
	require.NoError(t, err)
	assert.True(t, res2.Token.FirstSeenAt.After(res.Token.FirstSeenAt))
}

func TestResolveClientWindowBoundary(t *testing.T) {
	h := newHarness(t, application.Config{})
	ctx := context.Background()
	link := h.seedLink(t, "AB12CD34")
	_, err := h.svc.RecordClick(ctx, link.ReferralCode, application.ClientContext{ClientID: "client-1"})
	require.NoError(t, err)

	h.clock.Advance(domain.AttributionWindow)
	code, ok, err := h.svc.ResolveClient(ctx, "client-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "AB12CD34", code)

	h.clock.Advance(time.Second)
	_, ok, err = h.svc.ResolveClient(ctx, "client-1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = h.svc.ResolveClient(ctx, "never-clicked")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConcurrentClicksOnOneLinkAreAllCounted(t *testing.T) {
	h := newHarness(t, application.Config{})
	ctx := context.Background()
	link := h.seedLink(t, "AB12CD34")

	const clicks = 50
	var wg sync.WaitGroup
	errs := make(chan error, clicks)
	for i := 0; i < clicks; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.RecordClick(ctx, link.ReferralCode, application.ClientContext{ClientID: "client-burst"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := h.svc.GetLinkByCode(ctx, link.ReferralCode)
	require.NoError(t, err)
	assert.EqualValues(t, clicks, got.ClickCount)
	assert.Len(t, h.repos.Links.Clicks(), clicks)

	token, err := h.tokens.Get(ctx, "client-burst")
	require.NoError(t, err)
	require.NotNil(t, token)
	assert.Equal(t, baseTime, token.FirstSeenAt)
}
