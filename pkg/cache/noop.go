package cache

import (
	"context"
	"time"
)

// NoopCache implements Service as a pure pass-through: every Get misses,
// every Set is discarded. Used when the backing store is unavailable so
// callers never special-case cache absence.
type NoopCache struct{}

func NewNoopCache() *NoopCache { return &NoopCache{} }

func (NoopCache) Set(context.Context, string, interface{}, time.Duration) error { return nil }

func (NoopCache) Get(context.Context, string, interface{}) error { return ErrCacheMiss }

func (NoopCache) Delete(context.Context, ...string) error { return nil }

func (NoopCache) DeleteByPattern(context.Context, string) error { return nil }

func (NoopCache) Exists(context.Context, ...string) (bool, error) { return false, nil }

func (NoopCache) Expire(context.Context, string, time.Duration) (bool, error) { return false, nil }

func (NoopCache) TryLock(context.Context, string, time.Duration) (bool, error) { return true, nil }

func (NoopCache) Unlock(context.Context, string) error { return nil }
