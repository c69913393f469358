package domain

const (
	EventLinkCreated          = "referral.link.created"
	EventClickRecorded        = "referral.click.recorded"
	EventConversionRecorded   = "referral.conversion.recorded"
	EventConversionUnresolved = "referral.conversion.unattributed"
	EventSettlementComputed   = "referral.settlement.computed"
	EventPayoutSent           = "referral.payout.sent"
	EventPayoutEscalated      = "referral.payout.escalated"
	EventTerminationRequested = "referral.termination.requested"
	EventTerminationApproved  = "referral.termination.approved"
	EventTerminationRejected  = "referral.termination.rejected"
	EventTerminationCancelled = "referral.termination.cancelled"
)

func IsCanonicalEmittedEvent(eventType string) bool {
	switch eventType {
	case EventLinkCreated, EventClickRecorded, EventConversionRecorded, EventConversionUnresolved,
		EventSettlementComputed, EventPayoutSent, EventPayoutEscalated,
		EventTerminationRequested, EventTerminationApproved, EventTerminationRejected, EventTerminationCancelled:
		return true
	default:
		return false
	}
}

// TerminationEvent maps a terminal status to its emitted event type.
func TerminationEvent(status TerminationStatus) string {
	switch status {
	case TerminationApproved:
		return EventTerminationApproved
	case TerminationRejected:
		return EventTerminationRejected
	case TerminationCancelled:
		return EventTerminationCancelled
	default:
		return EventTerminationRequested
	}
}
