// Package cache keeps short-lived copies of read-mostly projections.
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Value caches the result of one loader for ttl. Concurrent misses share a
// single load, and failed loads are never cached.
type Value[T any] struct {
	mu        sync.Mutex
	ttl       time.Duration
	load      func(ctx context.Context) (T, error)
	data      T
	expiresAt time.Time
	valid     bool
	group     singleflight.Group
	now       func() time.Time
}

func NewValue[T any](ttl time.Duration, load func(ctx context.Context) (T, error)) *Value[T] {
	return &Value[T]{ttl: ttl, load: load, now: time.Now}
}

// Get returns the cached value, loading it when absent or expired. The load
// is detached from the cancellation of whichever caller started it, so a
// caller that gives up returns ctx.Err() while the others still get the value.
func (v *Value[T]) Get(ctx context.Context) (T, error) {
	v.mu.Lock()
	if v.valid && v.now().Before(v.expiresAt) {
		data := v.data
		v.mu.Unlock()
		return data, nil
	}
	v.mu.Unlock()

	loadCtx := context.WithoutCancel(ctx)
	ch := v.group.DoChan("load", func() (any, error) {
		data, err := v.load(loadCtx)
		if err != nil {
			return data, err
		}
		v.mu.Lock()
		v.data, v.valid, v.expiresAt = data, true, v.now().Add(v.ttl)
		v.mu.Unlock()
		return data, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}
