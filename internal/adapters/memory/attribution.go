package memory

import (
	"context"
	"sync"
	"time"

	"github.com/viralforge/stakeshare/internal/domain"
)

// AttributionStore is a process-local TTL map. Expired entries read as absent.
type AttributionStore struct {
	mu     sync.Mutex
	tokens map[string]domain.AttributionToken
	nowFn  func() time.Time
}

func NewAttributionStore(nowFn func() time.Time) *AttributionStore {
	if nowFn == nil {
		nowFn = func() time.Time { return time.Now().UTC() }
	}
	return &AttributionStore{tokens: map[string]domain.AttributionToken{}, nowFn: nowFn}
}

func (s *AttributionStore) load(clientID string) *domain.AttributionToken {
	token, ok := s.tokens[clientID]
	if !ok {
		return nil
	}
	if token.TTL(s.nowFn()) < 0 {
		delete(s.tokens, clientID)
		return nil
	}
	return &token
}

func (s *AttributionStore) Get(_ context.Context, clientID string) (*domain.AttributionToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(clientID), nil
}

func (s *AttributionStore) Upsert(_ context.Context, clientID string, fn func(current *domain.AttributionToken) domain.AttributionToken) (domain.AttributionToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := fn(s.load(clientID))
	s.tokens[clientID] = next
	return next, nil
}

func (s *AttributionStore) Delete(_ context.Context, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, clientID)
	return nil
}
