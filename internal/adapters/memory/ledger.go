package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/stakeshare/internal/domain"
	"github.com/viralforge/stakeshare/internal/ports"
)

type SettlementRepository struct{ st *state }

func (r *SettlementRepository) Apply(_ context.Context, record domain.SettlementRecord, payout *domain.PayoutInstruction, event ports.OutboxEvent) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	r.st.settlements[record.ConversionID] = record
	if payout != nil {
		r.st.upsertPayout(*payout)
	}
	if task, ok := r.st.tasks[record.ConversionID]; ok {
		task.Status = domain.SettlementTaskDone
		task.LastError = ""
		task.UpdatedAt = record.ComputedAt
		r.st.tasks[record.ConversionID] = task
	}
	r.st.appendOutbox(event)
	return nil
}

func (r *SettlementRepository) Get(_ context.Context, conversionID string) (domain.SettlementRecord, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	rec, ok := r.st.settlements[conversionID]
	if !ok {
		return domain.SettlementRecord{}, domain.ErrNotFound
	}
	return rec, nil
}

func (r *SettlementRepository) ListDueTasks(_ context.Context, now time.Time, limit int) ([]domain.SettlementTask, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	out := make([]domain.SettlementTask, 0)
	for _, t := range r.st.tasks {
		if t.Status == domain.SettlementTaskPending && !t.NextAttemptAt.After(now) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextAttemptAt.Before(out[j].NextAttemptAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *SettlementRepository) RescheduleTask(_ context.Context, task domain.SettlementTask) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if _, ok := r.st.tasks[task.ConversionID]; !ok {
		return domain.ErrNotFound
	}
	r.st.tasks[task.ConversionID] = task
	return nil
}

// Task exposes a settlement task for assertions.
func (r *SettlementRepository) Task(conversionID string) (domain.SettlementTask, bool) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	t, ok := r.st.tasks[conversionID]
	return t, ok
}

func (r *SettlementRepository) Count() int {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	return len(r.st.settlements)
}

// upsertPayout refreshes amount and destination only while the instruction is
// pending and no dispatcher holds a live claim on it.
func (st *state) upsertPayout(p domain.PayoutInstruction) {
	if id, ok := st.payoutByKey[p.IdempotencyKey]; ok {
		existing := st.payouts[id]
		if existing.Status != domain.PayoutStatusPending {
			return
		}
		if c, claimed := st.payoutClaim[id]; claimed && c.until.After(p.UpdatedAt) {
			return
		}
		existing.AmountCents = p.AmountCents
		existing.PayoutAccountID = p.PayoutAccountID
		existing.Currency = p.Currency
		existing.Description = p.Description
		existing.UpdatedAt = p.UpdatedAt
		st.payouts[id] = existing
		return
	}
	st.payouts[p.PayoutID] = p
	st.payoutByKey[p.IdempotencyKey] = p.PayoutID
}

type PayoutRepository struct{ st *state }

func (r *PayoutRepository) ClaimDue(_ context.Context, now time.Time, limit int, claimToken string, claimUntil time.Time) ([]domain.PayoutInstruction, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	out := make([]domain.PayoutInstruction, 0)
	for _, p := range r.st.payouts {
		if p.Status != domain.PayoutStatusPending || p.NextAttemptAt.After(now) {
			continue
		}
		if c, ok := r.st.payoutClaim[p.PayoutID]; ok && c.until.After(now) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	for _, p := range out {
		r.st.payoutClaim[p.PayoutID] = claim{token: claimToken, until: claimUntil}
	}
	return out, nil
}

func (r *PayoutRepository) owned(payoutID, claimToken string) (domain.PayoutInstruction, error) {
	p, ok := r.st.payouts[payoutID]
	if !ok {
		return domain.PayoutInstruction{}, domain.ErrNotFound
	}
	if c, ok := r.st.payoutClaim[payoutID]; !ok || c.token != claimToken {
		return domain.PayoutInstruction{}, domain.ErrConflict
	}
	return p, nil
}

func (r *PayoutRepository) MarkSent(_ context.Context, payoutID, claimToken, transferID string, at time.Time, event ports.OutboxEvent) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	p, err := r.owned(payoutID, claimToken)
	if err != nil {
		return err
	}
	p.Status = domain.PayoutStatusSent
	p.TransferID = transferID
	p.Attempts++
	p.LastError = ""
	p.UpdatedAt = at
	r.st.payouts[payoutID] = p
	delete(r.st.payoutClaim, payoutID)
	r.st.appendOutbox(event)
	return nil
}

func (r *PayoutRepository) MarkFailed(_ context.Context, payoutID, claimToken string, attempts int, nextAttemptAt time.Time, lastErr string, at time.Time) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	p, err := r.owned(payoutID, claimToken)
	if err != nil {
		return err
	}
	p.Attempts = attempts
	p.NextAttemptAt = nextAttemptAt
	p.LastError = lastErr
	p.UpdatedAt = at
	r.st.payouts[payoutID] = p
	delete(r.st.payoutClaim, payoutID)
	return nil
}

func (r *PayoutRepository) Escalate(_ context.Context, payoutID, claimToken string, attempts int, lastErr string, at time.Time, event ports.OutboxEvent) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	p, err := r.owned(payoutID, claimToken)
	if err != nil {
		return err
	}
	p.Status = domain.PayoutStatusOperatorReview
	p.Attempts = attempts
	p.LastError = lastErr
	p.UpdatedAt = at
	r.st.payouts[payoutID] = p
	delete(r.st.payoutClaim, payoutID)
	r.st.appendOutbox(event)
	return nil
}

func (r *PayoutRepository) GetByKey(_ context.Context, idempotencyKey string) (domain.PayoutInstruction, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	id, ok := r.st.payoutByKey[idempotencyKey]
	if !ok {
		return domain.PayoutInstruction{}, domain.ErrNotFound
	}
	return r.st.payouts[id], nil
}

func (r *PayoutRepository) ListByStatus(_ context.Context, status domain.PayoutStatus, limit int) ([]domain.PayoutInstruction, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	out := make([]domain.PayoutInstruction, 0)
	for _, p := range r.st.payouts {
		if p.Status == status {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *PayoutRepository) Requeue(_ context.Context, payoutID string, at time.Time) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	p, ok := r.st.payouts[payoutID]
	if !ok {
		return domain.ErrNotFound
	}
	if p.Status != domain.PayoutStatusOperatorReview {
		return domain.ErrConflict
	}
	p.Status = domain.PayoutStatusPending
	p.Attempts = 0
	p.NextAttemptAt = at
	p.UpdatedAt = at
	r.st.payouts[payoutID] = p
	return nil
}

type TerminationRepository struct{ st *state }

func (r *TerminationRepository) Create(_ context.Context, req domain.TerminationRequest, audit domain.TerminationAudit, event ports.OutboxEvent) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	for _, existing := range r.st.requests {
		if existing.ContractID == req.ContractID && existing.Status == domain.TerminationPending {
			return domain.ErrConflict
		}
	}
	if _, ok := r.st.requests[req.RequestID]; ok {
		return domain.ErrConflict
	}
	r.st.requests[req.RequestID] = req
	r.st.audits = append(r.st.audits, audit)
	r.st.appendOutbox(event)
	return nil
}

func (r *TerminationRepository) GetByID(_ context.Context, requestID string) (domain.TerminationRequest, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	req, ok := r.st.requests[requestID]
	if !ok {
		return domain.TerminationRequest{}, domain.ErrNotFound
	}
	return req, nil
}

func (r *TerminationRepository) Transition(_ context.Context, next domain.TerminationRequest, expected domain.TerminationStatus, payout *domain.PayoutInstruction, audit domain.TerminationAudit, event ports.OutboxEvent) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	current, ok := r.st.requests[next.RequestID]
	if !ok {
		return domain.ErrNotFound
	}
	if current.Status != expected {
		return domain.ErrConflict
	}
	r.st.requests[next.RequestID] = next
	if payout != nil {
		r.st.upsertPayout(*payout)
	}
	r.st.audits = append(r.st.audits, audit)
	r.st.appendOutbox(event)
	return nil
}

func (r *TerminationRepository) ListAudit(_ context.Context, requestID string) ([]domain.TerminationAudit, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	out := make([]domain.TerminationAudit, 0)
	for _, a := range r.st.audits {
		if a.RequestID == requestID {
			out = append(out, a)
		}
	}
	return out, nil
}

type OutboxRepository struct{ st *state }

func (r *OutboxRepository) ClaimUnpublished(_ context.Context, limit int, claimToken string, claimUntil time.Time) ([]ports.OutboxRecord, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	now := time.Now().UTC()
	out := make([]ports.OutboxRecord, 0, limit)
	for _, id := range r.st.outboxOrder {
		if len(out) >= limit {
			break
		}
		rec := r.st.outbox[id]
		if rec.PublishedAt != nil || rec.DeadLetteredAt != nil {
			continue
		}
		if rec.ClaimUntil != nil && rec.ClaimUntil.After(now) {
			continue
		}
		token, until := claimToken, claimUntil
		rec.ClaimToken, rec.ClaimUntil = &token, &until
		r.st.outbox[id] = rec
		out = append(out, rec)
	}
	return out, nil
}

func (r *OutboxRepository) update(outboxID uuid.UUID, claimToken string, fn func(*ports.OutboxRecord)) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	rec, ok := r.st.outbox[outboxID]
	if !ok || rec.ClaimToken == nil || *rec.ClaimToken != claimToken {
		return domain.ErrConflict
	}
	fn(&rec)
	rec.ClaimToken, rec.ClaimUntil = nil, nil
	r.st.outbox[outboxID] = rec
	return nil
}

func (r *OutboxRepository) MarkPublished(_ context.Context, outboxID uuid.UUID, claimToken string, at time.Time) error {
	return r.update(outboxID, claimToken, func(rec *ports.OutboxRecord) { rec.PublishedAt = &at })
}

func (r *OutboxRepository) MarkFailed(_ context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error {
	return r.update(outboxID, claimToken, func(rec *ports.OutboxRecord) {
		rec.RetryCount++
		rec.LastError = &errMsg
		rec.LastErrorAt = &at
	})
}

func (r *OutboxRepository) MarkDeadLettered(_ context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error {
	return r.update(outboxID, claimToken, func(rec *ports.OutboxRecord) {
		rec.RetryCount++
		rec.LastError = &errMsg
		rec.LastErrorAt = &at
		rec.DeadLetteredAt = &at
	})
}

// Records returns every outbox row in insertion order.
func (r *OutboxRepository) Records() []ports.OutboxRecord {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	out := make([]ports.OutboxRecord, 0, len(r.st.outboxOrder))
	for _, id := range r.st.outboxOrder {
		out = append(out, r.st.outbox[id])
	}
	return out
}

// Directory stands in for the program, creator and contract records owned elsewhere.
type Directory struct{ st *state }

func (d *Directory) PutProgram(p domain.Program) {
	d.st.mu.Lock()
	defer d.st.mu.Unlock()
	d.st.programs[p.ProgramID] = p
}

func (d *Directory) PutCreator(c domain.Creator) {
	d.st.mu.Lock()
	defer d.st.mu.Unlock()
	d.st.creators[c.CreatorID] = c
}

func (d *Directory) PutContract(c domain.Contract) {
	d.st.mu.Lock()
	defer d.st.mu.Unlock()
	d.st.contracts[c.ContractID] = c
}

func (d *Directory) GetProgram(_ context.Context, programID string) (domain.Program, error) {
	d.st.mu.Lock()
	defer d.st.mu.Unlock()
	p, ok := d.st.programs[programID]
	if !ok {
		return domain.Program{}, domain.ErrNotFound
	}
	return p, nil
}

func (d *Directory) GetCreator(_ context.Context, creatorID string) (domain.Creator, error) {
	d.st.mu.Lock()
	defer d.st.mu.Unlock()
	c, ok := d.st.creators[creatorID]
	if !ok {
		return domain.Creator{}, domain.ErrNotFound
	}
	return c, nil
}

func (d *Directory) GetContract(_ context.Context, contractID string) (domain.Contract, error) {
	d.st.mu.Lock()
	defer d.st.mu.Unlock()
	c, ok := d.st.contracts[contractID]
	if !ok {
		return domain.Contract{}, domain.ErrNotFound
	}
	return c, nil
}

func (d *Directory) SaveProgram(_ context.Context, p domain.Program) error {
	d.PutProgram(p)
	return nil
}

func (d *Directory) SaveCreator(_ context.Context, c domain.Creator) error {
	d.PutCreator(c)
	return nil
}

func (d *Directory) SaveContract(_ context.Context, c domain.Contract) error {
	d.PutContract(c)
	return nil
}
