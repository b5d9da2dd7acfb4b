package repository

import (
	"context"
	"time"

	"IndexPulse/internal/resilience"
	"IndexPulse/pkg/cache"
)

// CacheWindowStore persists the rate-limiter credit window in the shared
// cache so worker processes split one provider quota. Stamps travel as
// unix nanoseconds; consistency is best-effort by design.
type CacheWindowStore struct {
	cache cache.Service
	key   string
}

var _ resilience.WindowStore = (*CacheWindowStore)(nil)

func NewCacheWindowStore(c cache.Service, name string) *CacheWindowStore {
	if name == "" {
		name = "default"
	}
	return &CacheWindowStore{
		cache: c,
		key:   cache.BuildKey("ratelimit", "window", map[string]string{"name": name}),
	}
}

func (s *CacheWindowStore) Load(ctx context.Context) ([]time.Time, error) {
	var nanos []int64
	if err := s.cache.Get(ctx, s.key, &nanos); err != nil {
		if err == cache.ErrCacheMiss {
			return nil, nil
		}
		return nil, err
	}
	out := make([]time.Time, 0, len(nanos))
	for _, n := range nanos {
		out = append(out, time.Unix(0, n))
	}
	return out, nil
}

func (s *CacheWindowStore) Save(ctx context.Context, stamps []time.Time, ttl time.Duration) error {
	nanos := make([]int64, 0, len(stamps))
	for _, ts := range stamps {
		nanos = append(nanos, ts.UnixNano())
	}
	return s.cache.Set(ctx, s.key, nanos, ttl)
}
