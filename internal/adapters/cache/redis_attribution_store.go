package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/viralforge/stakeshare/internal/domain"
)

const (
	attributionKeyPrefix = "referral:attr:"
	maxUpsertRetries     = 5
)

var errUpsertContended = errors.New("attribution upsert contended")

// RedisAttributionStore keeps one JSON token per client id. Keys expire at the
// token's first_seen_at plus the attribution window, so later clicks never
// extend the lifetime.
type RedisAttributionStore struct {
	client *redis.Client
	nowFn  func() time.Time
}

func NewRedisAttributionStore(client *redis.Client, nowFn func() time.Time) *RedisAttributionStore {
	if nowFn == nil {
		nowFn = func() time.Time { return time.Now().UTC() }
	}
	return &RedisAttributionStore{client: client, nowFn: nowFn}
}

func attributionKey(clientID string) string {
	return attributionKeyPrefix + clientID
}

func decodeToken(raw []byte, now time.Time) (*domain.AttributionToken, error) {
	var token domain.AttributionToken
	if err := json.Unmarshal(raw, &token); err != nil {
		return nil, fmt.Errorf("decode attribution token: %w", err)
	}
	if token.TTL(now) < 0 {
		return nil, nil
	}
	return &token, nil
}

func (s *RedisAttributionStore) Get(ctx context.Context, clientID string) (*domain.AttributionToken, error) {
	raw, err := s.client.Get(ctx, attributionKey(clientID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return decodeToken(raw, s.nowFn())
}

// Upsert runs fn under WATCH so two concurrent clicks for one client cannot
// both observe an empty key and reset first_seen_at.
func (s *RedisAttributionStore) Upsert(ctx context.Context, clientID string, fn func(current *domain.AttributionToken) domain.AttributionToken) (domain.AttributionToken, error) {
	key := attributionKey(clientID)
	var next domain.AttributionToken
	txf := func(tx *redis.Tx) error {
		now := s.nowFn()
		var current *domain.AttributionToken
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			current, err = decodeToken(raw, now)
			if err != nil {
				return err
			}
		}
		next = fn(current)
		ttl := next.TTL(now)
		if ttl < time.Millisecond {
			_, err := tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
				p.Del(ctx, key)
				return nil
			})
			return err
		}
		payload, err := json.Marshal(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, payload, ttl)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxUpsertRetries; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return next, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return domain.AttributionToken{}, err
	}
	return domain.AttributionToken{}, errUpsertContended
}

func (s *RedisAttributionStore) Delete(ctx context.Context, clientID string) error {
	return s.client.Del(ctx, attributionKey(clientID)).Err()
}
