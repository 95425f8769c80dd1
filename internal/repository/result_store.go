package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"MarketSweep/internal/domain/models"
	pkgcache "MarketSweep/pkg/cache"
)

// CacheResultStore keeps backtest results addressable by ref for the
// follow-up analysis endpoints. It rides the shared cache service, so with
// Redis enabled results survive a restart; with the memory backend they are
// process-local with LRU eviction. Either way entries expire after the TTL
// and a miss is indistinguishable from an expired ref.
type CacheResultStore struct {
	cache pkgcache.Service
	ttl   time.Duration
}

func NewCacheResultStore(cache pkgcache.Service, ttl time.Duration) *CacheResultStore {
	if ttl <= 0 {
		ttl = 4 * time.Hour
	}
	return &CacheResultStore{cache: cache, ttl: ttl}
}

func (s *CacheResultStore) Put(ctx context.Context, res *models.BacktestResult) error {
	b, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := s.cache.Set(ctx, s.key(res.Ref), string(b), s.ttl); err != nil {
		return fmt.Errorf("store result: %w", err)
	}
	return nil
}

func (s *CacheResultStore) Get(ctx context.Context, ref string) (*models.BacktestResult, error) {
	var raw string
	if err := s.cache.Get(ctx, s.key(ref), &raw); err != nil {
		if errors.Is(err, pkgcache.ErrCacheMiss) {
			return nil, models.ErrResultNotFound
		}
		return nil, fmt.Errorf("load result: %w", err)
	}
	var res models.BacktestResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &res, nil
}

func (s *CacheResultStore) Delete(ctx context.Context, ref string) error {
	return s.cache.Delete(ctx, s.key(ref))
}

func (s *CacheResultStore) key(ref string) string {
	return pkgcache.GenerateKey("result", ref)
}
