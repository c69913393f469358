package application_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viralforge/stakeshare/internal/application"
	"github.com/viralforge/stakeshare/internal/domain"
	"github.com/viralforge/stakeshare/internal/ports"
)

type collidingLinks struct {
	ports.LinkRepository
	collisions int
	attempts   int
}

func (c *collidingLinks) Create(ctx context.Context, link domain.TrackingLink, event ports.OutboxEvent) error {
	c.attempts++
	if c.collisions > 0 {
		c.collisions--
		return domain.ErrConflict
	}
	return c.LinkRepository.Create(ctx, link, event)
}

func TestGenerateLinkIssuesFreshCode(t *testing.T) {
	h := newHarness(t, application.Config{})
	ctx := context.Background()

	link, err := h.svc.GenerateLink(ctx, creatorActor(), application.GenerateLinkInput{
		ProgramID:      "prog-1",
		DestinationURL: "https://shop.example.com/pricing",
		CampaignName:   " spring ",
	})
	require.NoError(t, err)
	assert.True(t, domain.ValidReferralCode(link.ReferralCode))
	assert.Equal(t, "creator-1", link.CreatorID)
	assert.Equal(t, "spring", link.CampaignName)
	assert.Zero(t, link.ClickCount)
	assert.Zero(t, link.ConversionCount)

	got, err := h.svc.GetLinkByCode(ctx, " "+link.ReferralCode+" ")
	require.NoError(t, err)
	assert.Equal(t, link.LinkID, got.LinkID)

	records := h.repos.Outbox.Records()
	require.Len(t, records, 1)
	assert.Equal(t, domain.EventLinkCreated, records[0].EventType)
}

func TestGenerateLinkValidation(t *testing.T) {
	h := newHarness(t, application.Config{})
	ctx := context.Background()

	cases := map[string]application.GenerateLinkInput{
		"relative url":    {ProgramID: "prog-1", DestinationURL: "/pricing"},
		"ftp scheme":      {ProgramID: "prog-1", DestinationURL: "ftp://example.com/file"},
		"missing host":    {ProgramID: "prog-1", DestinationURL: "https://"},
		"missing url":     {ProgramID: "prog-1"},
		"missing program": {DestinationURL: "https://example.com"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := h.svc.GenerateLink(ctx, creatorActor(), in)
			require.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}

	_, err := h.svc.GenerateLink(ctx, creatorActor(), application.GenerateLinkInput{ProgramID: "nope", DestinationURL: "https://example.com"})
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = h.svc.GenerateLink(ctx, creatorActor(), application.GenerateLinkInput{CreatorID: "creator-2", ProgramID: "prog-1", DestinationURL: "https://example.com"})
	require.ErrorIs(t, err, domain.ErrForbidden)

	_, err = h.svc.GenerateLink(ctx, application.Actor{}, application.GenerateLinkInput{ProgramID: "prog-1", DestinationURL: "https://example.com"})
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestGenerateLinkRetriesCodeCollisions(t *testing.T) {
	var wrapper *collidingLinks
	h := newHarness(t, application.Config{LinkCodeMaxAttempts: 5}, func(d *application.Dependencies) {
		wrapper = &collidingLinks{LinkRepository: d.Links, collisions: 3}
		d.Links = wrapper
	})
	link, err := h.svc.GenerateLink(context.Background(), creatorActor(), application.GenerateLinkInput{ProgramID: "prog-1", DestinationURL: "https://example.com"})
	require.NoError(t, err)
	assert.NotEmpty(t, link.ReferralCode)
	assert.Equal(t, 4, wrapper.attempts)
}

func TestGenerateLinkGivesUpAfterMaxAttempts(t *testing.T) {
	var wrapper *collidingLinks
	h := newHarness(t, application.Config{LinkCodeMaxAttempts: 3}, func(d *application.Dependencies) {
		wrapper = &collidingLinks{LinkRepository: d.Links, collisions: 10}
		d.Links = wrapper
	})
	_, err := h.svc.GenerateLink(context.Background(), creatorActor(), application.GenerateLinkInput{ProgramID: "prog-1", DestinationURL: "https://example.com"})
	require.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, 3, wrapper.attempts)
}

func TestListLinksCreationOrderAndAccess(t *testing.T) {
	h := newHarness(t, application.Config{})
	ctx := context.Background()
	var ids []string
	for i := 0; i < 3; i++ {
		link, err := h.svc.GenerateLink(ctx, creatorActor(), application.GenerateLinkInput{ProgramID: "prog-1", DestinationURL: "https://example.com"})
		require.NoError(t, err)
		ids = append(ids, link.LinkID)
		h.clock.Advance(1)
	}

	links, err := h.svc.ListLinks(ctx, creatorActor(), "", "prog-1")
	require.NoError(t, err)
	require.Len(t, links, 3)
	for i, l := range links {
		assert.Equal(t, ids[i], l.LinkID)
	}

	founderView, err := h.svc.ListLinks(ctx, founderActor(), "creator-1", "prog-1")
	require.NoError(t, err)
	assert.Len(t, founderView, 3)

	_, err = h.svc.ListLinks(ctx, application.Actor{SubjectID: "creator-2", Role: "creator"}, "creator-1", "prog-1")
	require.ErrorIs(t, err, domain.ErrForbidden)
}
