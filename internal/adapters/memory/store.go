package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/stakeshare/internal/domain"
	"github.com/viralforge/stakeshare/internal/ports"
)

// state holds every table behind one mutex so multi-table writes commit together.
type state struct {
	mu sync.Mutex

	links       map[string]domain.TrackingLink
	linkByCode  map[string]string
	clicks      []domain.ClickEvent
	conversions map[string]domain.ConversionEvent
	convByDedup map[string]string
	convOrder   []string
	unresolved  map[string]domain.UnattributedConversion
	unresOrder  []string
	settlements map[string]domain.SettlementRecord
	tasks       map[string]domain.SettlementTask
	payouts     map[string]domain.PayoutInstruction
	payoutByKey map[string]string
	payoutClaim map[string]claim
	requests    map[string]domain.TerminationRequest
	audits      []domain.TerminationAudit
	outbox      map[uuid.UUID]ports.OutboxRecord
	outboxOrder []uuid.UUID

	programs  map[string]domain.Program
	creators  map[string]domain.Creator
	contracts map[string]domain.Contract
}

type claim struct {
	token string
	until time.Time
}

type Repositories struct {
	Links        *LinkRepository
	Conversions  *ConversionRepository
	Settlements  *SettlementRepository
	Payouts      *PayoutRepository
	Terminations *TerminationRepository
	Outbox       *OutboxRepository
	Directory    *Directory
}

func NewRepositories() *Repositories {
	st := &state{
		links:       map[string]domain.TrackingLink{},
		linkByCode:  map[string]string{},
		conversions: map[string]domain.ConversionEvent{},
		convByDedup: map[string]string{},
		unresolved:  map[string]domain.UnattributedConversion{},
		settlements: map[string]domain.SettlementRecord{},
		tasks:       map[string]domain.SettlementTask{},
		payouts:     map[string]domain.PayoutInstruction{},
		payoutByKey: map[string]string{},
		payoutClaim: map[string]claim{},
		requests:    map[string]domain.TerminationRequest{},
		outbox:      map[uuid.UUID]ports.OutboxRecord{},
		programs:    map[string]domain.Program{},
		creators:    map[string]domain.Creator{},
		contracts:   map[string]domain.Contract{},
	}
	return &Repositories{
		Links:        &LinkRepository{st: st},
		Conversions:  &ConversionRepository{st: st},
		Settlements:  &SettlementRepository{st: st},
		Payouts:      &PayoutRepository{st: st},
		Terminations: &TerminationRepository{st: st},
		Outbox:       &OutboxRepository{st: st},
		Directory:    &Directory{st: st},
	}
}

func (st *state) appendOutbox(event ports.OutboxEvent) {
	id := event.EventID
	if id == uuid.Nil {
		id = uuid.New()
	}
	st.outbox[id] = ports.OutboxRecord{
		OutboxID:     id,
		EventType:    event.EventType,
		PartitionKey: event.PartitionKey,
		Payload:      append([]byte(nil), event.Payload...),
		CreatedAt:    event.OccurredAt,
	}
	st.outboxOrder = append(st.outboxOrder, id)
}

type LinkRepository struct{ st *state }

func (r *LinkRepository) Create(_ context.Context, link domain.TrackingLink, event ports.OutboxEvent) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if _, ok := r.st.linkByCode[link.ReferralCode]; ok {
		return domain.ErrConflict
	}
	if _, ok := r.st.links[link.LinkID]; ok {
		return domain.ErrConflict
	}
	r.st.links[link.LinkID] = link
	r.st.linkByCode[link.ReferralCode] = link.LinkID
	r.st.appendOutbox(event)
	return nil
}

func (r *LinkRepository) GetByCode(_ context.Context, code string) (domain.TrackingLink, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	id, ok := r.st.linkByCode[strings.TrimSpace(code)]
	if !ok {
		return domain.TrackingLink{}, domain.ErrNotFound
	}
	return r.st.links[id], nil
}

func (r *LinkRepository) ListByCreatorProgram(_ context.Context, creatorID, programID string) ([]domain.TrackingLink, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	out := make([]domain.TrackingLink, 0)
	for _, l := range r.st.links {
		if l.CreatorID == creatorID && l.ProgramID == programID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].LinkID < out[j].LinkID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *LinkRepository) RecordClick(_ context.Context, click domain.ClickEvent, event ports.OutboxEvent) (domain.TrackingLink, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	link, ok := r.st.links[click.LinkID]
	if !ok {
		return domain.TrackingLink{}, domain.ErrNotFound
	}
	link.ClickCount++
	r.st.links[link.LinkID] = link
	r.st.clicks = append(r.st.clicks, click)
	r.st.appendOutbox(event)
	return link, nil
}

// Clicks returns a copy of the click audit rows.
func (r *LinkRepository) Clicks() []domain.ClickEvent {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	return append([]domain.ClickEvent(nil), r.st.clicks...)
}

type ConversionRepository struct{ st *state }

func (r *ConversionRepository) Record(_ context.Context, conversion domain.ConversionEvent, task domain.SettlementTask, event ports.OutboxEvent) (domain.ConversionEvent, bool, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if id, ok := r.st.convByDedup[conversion.DedupKey]; ok {
		return r.st.conversions[id], false, nil
	}
	link, ok := r.st.links[conversion.LinkID]
	if !ok {
		return domain.ConversionEvent{}, false, domain.ErrNotFound
	}
	link.ConversionCount++
	r.st.links[link.LinkID] = link
	r.st.conversions[conversion.ConversionID] = conversion
	r.st.convByDedup[conversion.DedupKey] = conversion.ConversionID
	r.st.convOrder = append(r.st.convOrder, conversion.ConversionID)
	r.st.tasks[task.ConversionID] = task
	r.st.appendOutbox(event)
	return conversion, true, nil
}

func (r *ConversionRepository) GetByID(_ context.Context, conversionID string) (domain.ConversionEvent, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	c, ok := r.st.conversions[conversionID]
	if !ok {
		return domain.ConversionEvent{}, domain.ErrNotFound
	}
	return c, nil
}

func (r *ConversionRepository) GetByDedupKey(_ context.Context, dedupKey string) (domain.ConversionEvent, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	id, ok := r.st.convByDedup[dedupKey]
	if !ok {
		return domain.ConversionEvent{}, domain.ErrNotFound
	}
	return r.st.conversions[id], nil
}

func (r *ConversionRepository) ListByProgram(_ context.Context, programID string) ([]domain.ConversionEvent, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	out := make([]domain.ConversionEvent, 0)
	for _, id := range r.st.convOrder {
		if c := r.st.conversions[id]; c.ProgramID == programID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *ConversionRepository) RecordUnattributed(_ context.Context, note domain.UnattributedConversion, event ports.OutboxEvent) (domain.UnattributedConversion, bool, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if existing, ok := r.st.unresolved[note.DedupKey]; ok {
		return existing, false, nil
	}
	r.st.unresolved[note.DedupKey] = note
	r.st.unresOrder = append(r.st.unresOrder, note.DedupKey)
	r.st.appendOutbox(event)
	return note, true, nil
}

func (r *ConversionRepository) ListUnattributed(_ context.Context, limit int) ([]domain.UnattributedConversion, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	out := make([]domain.UnattributedConversion, 0, limit)
	for i := len(r.st.unresOrder) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.st.unresolved[r.st.unresOrder[i]])
	}
	return out, nil
}

// Count reports how many conversions are stored.
func (r *ConversionRepository) Count() int {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	return len(r.st.conversions)
}
