package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonthsServed(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, MonthsServed(start, start).IsZero())
	assert.True(t, MonthsServed(start, start.Add(-time.Hour)).IsZero())
	assert.Equal(t, "6", MonthsServed(start, start.Add(6*2_629_746*time.Second)).String())
	assert.Equal(t, "1", MonthsServed(start, start.Add(2_629_746*time.Second)).String())
	assert.Equal(t, "0.0329", MonthsServed(start, start.Add(24*time.Hour)).String())
}

func TestComputeEarnedEquity(t *testing.T) {
	ten := decimal.NewFromInt(10)
	assert.Equal(t, "5", ComputeEarnedEquity(ten, decimal.NewFromInt(6), 12).String())
	assert.Equal(t, "10", ComputeEarnedEquity(ten, decimal.NewFromInt(30), 12).String())
	assert.True(t, ComputeEarnedEquity(ten, decimal.NewFromInt(-1), 12).IsZero())
	assert.True(t, ComputeEarnedEquity(ten, decimal.NewFromInt(6), 0).IsZero())
	assert.True(t, ComputeEarnedEquity(decimal.Zero, decimal.NewFromInt(6), 12).IsZero())
}

func TestCompensationValueCents(t *testing.T) {
	assert.EqualValues(t, 5_000_000, CompensationValueCents(decimal.NewFromInt(5), 100_000_000))
	assert.EqualValues(t, 1, CompensationValueCents(decimal.RequireFromString("0.5"), 100))
	assert.Zero(t, CompensationValueCents(decimal.NewFromInt(5), 0))
}

func TestNextStatus(t *testing.T) {
	pending := TerminationRequest{Status: TerminationPending, RequestedBy: PartyCreator}

	next, err := NextStatus(pending, ActionApprove, PartyFounder)
	require.NoError(t, err)
	assert.Equal(t, TerminationApproved, next)

	next, err = NextStatus(pending, ActionReject, PartyFounder)
	require.NoError(t, err)
	assert.Equal(t, TerminationRejected, next)

	next, err = NextStatus(pending, ActionCancel, PartyCreator)
	require.NoError(t, err)
	assert.Equal(t, TerminationCancelled, next)

	_, err = NextStatus(pending, ActionApprove, PartyCreator)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = NextStatus(pending, ActionCancel, PartyFounder)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = NextStatus(pending, TerminationAction("escalate"), PartyFounder)
	assert.ErrorIs(t, err, ErrInvalidInput)

	for _, status := range []TerminationStatus{TerminationApproved, TerminationRejected, TerminationCancelled} {
		_, err := NextStatus(TerminationRequest{Status: status, RequestedBy: PartyCreator}, ActionApprove, PartyFounder)
		assert.ErrorIs(t, err, ErrConflict, "status %s", status)
	}
}
