package application_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/viralforge/stakeshare/internal/adapters/memory"
	"github.com/viralforge/stakeshare/internal/application"
	"github.com/viralforge/stakeshare/internal/domain"
	"github.com/viralforge/stakeshare/internal/ports"
)

var baseTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakePayoutClient struct {
	mu    sync.Mutex
	calls []ports.TransferRequest
	err   error
}

func (f *fakePayoutClient) Transfer(_ context.Context, req ports.TransferRequest) (ports.TransferResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return ports.TransferResult{}, f.err
	}
	return ports.TransferResult{TransferID: "tr_" + req.IdempotencyKey}, nil
}

func (f *fakePayoutClient) Calls() []ports.TransferRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ports.TransferRequest(nil), f.calls...)
}

type harness struct {
	svc    *application.Service
	repos  *memory.Repositories
	tokens *memory.AttributionStore
	clock  *clock
	payout *fakePayoutClient
}

type harnessOption func(*application.Dependencies)

func newHarness(t *testing.T, cfg application.Config, opts ...harnessOption) *harness {
	t.Helper()
	clk := &clock{now: baseTime}
	repos := memory.NewRepositories()
	tokens := memory.NewAttributionStore(clk.Now)
	payout := &fakePayoutClient{}
	deps := application.Dependencies{
		Config:       cfg,
		Links:        repos.Links,
		Conversions:  repos.Conversions,
		Settlements:  repos.Settlements,
		Payouts:      repos.Payouts,
		Terminations: repos.Terminations,
		Programs:     repos.Directory,
		Creators:     repos.Directory,
		Contracts:    repos.Directory,
		Attribution:  tokens,
		PayoutAPI:    payout,
		Now:          clk.Now,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	repos.Directory.PutProgram(domain.Program{
		ProgramID:             "prog-1",
		CompanyID:             "company-1",
		FounderID:             "founder-1",
		RevenueShareEnabled:   true,
		RevenueSharePercent:   decimal.NewFromInt(5),
		CompanyValuationCents: 100_000_000,
		Currency:              "USD",
	})
	repos.Directory.PutCreator(domain.Creator{CreatorID: "creator-1", PayoutAccountID: "acct_creator_1"})
	return &harness{
		svc:    application.NewService(deps),
		repos:  repos,
		tokens: tokens,
		clock:  clk,
		payout: payout,
	}
}

// seedLink stores a link with a fixed code so scenarios can refer to it.
func (h *harness) seedLink(t *testing.T, code string) domain.TrackingLink {
	t.Helper()
	link := domain.TrackingLink{
		LinkID:         "link-" + code,
		CreatorID:      "creator-1",
		ProgramID:      "prog-1",
		ReferralCode:   code,
		DestinationURL: "https://shop.example.com/landing",
		CreatedAt:      h.clock.Now(),
	}
	if err := h.repos.Links.Create(context.Background(), link, ports.OutboxEvent{EventType: domain.EventLinkCreated, OccurredAt: link.CreatedAt}); err != nil {
		t.Fatalf("seed link: %v", err)
	}
	return link
}

func creatorActor() application.Actor {
	return application.Actor{SubjectID: "creator-1", Role: "creator", RequestID: "req-creator"}
}

func founderActor() application.Actor {
	return application.Actor{SubjectID: "founder-1", Role: "founder", RequestID: "req-founder"}
}

func adminActor() application.Actor {
	return application.Actor{SubjectID: "ops-1", Role: "admin"}
}

func inlineConfig() application.Config {
	return application.Config{SettleInline: true}
}
