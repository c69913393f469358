package application_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viralforge/stakeshare/internal/application"
	"github.com/viralforge/stakeshare/internal/domain"
)

// secondsPerAverageMonth is 30.436875 days.
const secondsPerAverageMonth = 2_629_746

var contractStart = baseTime.AddDate(-1, 0, 0)

func seedContract(h *harness) domain.Contract {
	c := domain.Contract{
		ContractID:    "contract-1",
		CreatorID:     "creator-1",
		FounderID:     "founder-1",
		ProgramID:     "prog-1",
		StartDate:     contractStart,
		TotalMonths:   12,
		EquityPercent: decimal.NewFromInt(10),
	}
	h.repos.Directory.PutContract(c)
	return c
}

func sixMonthsIn() time.Time {
	return contractStart.Add(6 * secondsPerAverageMonth * time.Second)
}

func TestTerminationApprovalSnapshotsCompensation(t *testing.T) {
	h := newHarness(t, application.Config{})
	ctx := context.Background()
	seedContract(h)

	req, err := h.svc.RequestTermination(ctx, creatorActor(), application.RequestTerminationInput{
		ContractID:    "contract-1",
		Reason:        "moving on",
		EffectiveDate: sixMonthsIn(),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TerminationPending, req.Status)
	assert.Equal(t, domain.PartyCreator, req.RequestedBy)
	assert.Equal(t, "6", req.MonthsServed.String())
	assert.Equal(t, "5", req.EarnedEquityPct.String())

	approved, err := h.svc.ApproveTermination(ctx, founderActor(), req.RequestID, "agreed")
	require.NoError(t, err)
	assert.Equal(t, domain.TerminationApproved, approved.Status)
	assert.EqualValues(t, 100_000_000, approved.CompanyValuationCents)
	assert.EqualValues(t, 5_000_000, approved.CompensationValueCents)
	require.NotNil(t, approved.DecidedAt)

	payout, err := h.repos.Payouts.GetByKey(ctx, domain.TerminationPayoutKey(req.RequestID))
	require.NoError(t, err)
	assert.EqualValues(t, 5_000_000, payout.AmountCents)
	assert.Equal(t, domain.PayoutSourceTermination, payout.SourceKind)

	h.repos.Directory.PutProgram(domain.Program{ProgramID: "prog-1", CompanyID: "company-1", FounderID: "founder-1", CompanyValuationCents: 900_000_000})
	stored, err := h.svc.GetTermination(ctx, creatorActor(), req.RequestID)
	require.NoError(t, err)
	assert.EqualValues(t, 5_000_000, stored.CompensationValueCents)
	assert.EqualValues(t, 100_000_000, stored.CompanyValuationCents)

	audit, err := h.svc.ListTerminationAudit(ctx, founderActor(), req.RequestID)
	require.NoError(t, err)
	require.Len(t, audit, 2)
	assert.Equal(t, "request", audit[0].Action)
	assert.Equal(t, "approve", audit[1].Action)
}

func TestApprovalCommitsWhenCreatorIsNotSynced(t *testing.T) {
	h := newHarness(t, application.Config{})
	ctx := context.Background()
	h.repos.Directory.PutContract(domain.Contract{
		ContractID:    "contract-unsynced",
		CreatorID:     "creator-unsynced",
		FounderID:     "founder-1",
		ProgramID:     "prog-1",
		StartDate:     contractStart,
		TotalMonths:   12,
		EquityPercent: decimal.NewFromInt(10),
	})
	creator := application.Actor{SubjectID: "creator-unsynced", Role: "creator"}

	req, err := h.svc.RequestTermination(ctx, founderActor(), application.RequestTerminationInput{
		ContractID:    "contract-unsynced",
		Reason:        "restructuring",
		EffectiveDate: sixMonthsIn(),
	})
	require.NoError(t, err)

	approved, err := h.svc.ApproveTermination(ctx, creator, req.RequestID, "")
	require.NoError(t, err)
	assert.Equal(t, domain.TerminationApproved, approved.Status)
	assert.EqualValues(t, 5_000_000, approved.CompensationValueCents)

	stored, err := h.svc.GetTermination(ctx, creator, req.RequestID)
	require.NoError(t, err)
	assert.Equal(t, domain.TerminationApproved, stored.Status)
	_, err = h.repos.Payouts.GetByKey(ctx, domain.TerminationPayoutKey(req.RequestID))
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConcurrentApprovalsOnlyOneWins(t *testing.T) {
	h := newHarness(t, application.Config{})
	ctx := context.Background()
	seedContract(h)
	req, err := h.svc.RequestTermination(ctx, creatorActor(), application.RequestTerminationInput{ContractID: "contract-1", Reason: "done", EffectiveDate: sixMonthsIn()})
	require.NoError(t, err)

	const callers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.ApproveTermination(ctx, founderActor(), req.RequestID, "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case assert.ErrorIs(t, err, domain.ErrConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, successes)
	assert.Equal(t, callers-1, conflicts)
}

func TestTerminationPartyRules(t *testing.T) {
	h := newHarness(t, application.Config{})
	ctx := context.Background()
	seedContract(h)
	req, err := h.svc.RequestTermination(ctx, creatorActor(), application.RequestTerminationInput{ContractID: "contract-1", Reason: "done", EffectiveDate: sixMonthsIn()})
	require.NoError(t, err)

	_, err = h.svc.RequestTermination(ctx, founderActor(), application.RequestTerminationInput{ContractID: "contract-1", Reason: "again"})
	require.ErrorIs(t, err, domain.ErrConflict, "one pending request per contract")

	_, err = h.svc.ApproveTermination(ctx, creatorActor(), req.RequestID, "")
	require.ErrorIs(t, err, domain.ErrForbidden, "requester cannot approve")
	_, err = h.svc.CancelTermination(ctx, founderActor(), req.RequestID, "")
	require.ErrorIs(t, err, domain.ErrForbidden, "only requester cancels")
	_, err = h.svc.RejectTermination(ctx, application.Actor{SubjectID: "stranger"}, req.RequestID, "")
	require.ErrorIs(t, err, domain.ErrForbidden)

	cancelled, err := h.svc.CancelTermination(ctx, creatorActor(), req.RequestID, "changed my mind")
	require.NoError(t, err)
	assert.Equal(t, domain.TerminationCancelled, cancelled.Status)
	assert.Zero(t, cancelled.CompensationValueCents)

	_, err = h.svc.RejectTermination(ctx, founderActor(), req.RequestID, "")
	require.ErrorIs(t, err, domain.ErrConflict, "terminal requests do not move")

	next, err := h.svc.RequestTermination(ctx, founderActor(), application.RequestTerminationInput{ContractID: "contract-1", Reason: "restructure", EffectiveDate: sixMonthsIn()})
	require.NoError(t, err)
	rejected, err := h.svc.RejectTermination(ctx, creatorActor(), next.RequestID, "no")
	require.NoError(t, err)
	assert.Equal(t, domain.TerminationRejected, rejected.Status)
	_, err = h.repos.Payouts.GetByKey(ctx, domain.TerminationPayoutKey(next.RequestID))
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRequestTerminationValidation(t *testing.T) {
	h := newHarness(t, application.Config{})
	ctx := context.Background()
	seedContract(h)

	_, err := h.svc.RequestTermination(ctx, creatorActor(), application.RequestTerminationInput{ContractID: "contract-1", Reason: "x", EffectiveDate: contractStart.Add(-time.Hour)})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = h.svc.RequestTermination(ctx, creatorActor(), application.RequestTerminationInput{ContractID: "contract-1"})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = h.svc.RequestTermination(ctx, creatorActor(), application.RequestTerminationInput{ContractID: "missing", Reason: "x"})
	require.ErrorIs(t, err, domain.ErrNotFound)

	late, err := h.svc.RequestTermination(ctx, creatorActor(), application.RequestTerminationInput{ContractID: "contract-1", Reason: "x", EffectiveDate: contractStart.AddDate(3, 0, 0)})
	require.NoError(t, err)
	assert.Equal(t, "10", late.EarnedEquityPct.String(), "earned equity is capped at the grant")
}
