// Package cache memoizes expensive string-keyed lookups, such as query embeddings,
// in an expiring LRU and coalesces concurrent misses for the same key.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

var errInvalidSize = errors.New("cache size must be positive")

// LoadFunc produces the value for a key on a miss.
type LoadFunc[V any] func(ctx context.Context, key string) (V, error)

// Loader caches the results of a LoadFunc. Keys pass through Normalize (when set) first, so
// "a  b" and "a b" share an entry. Failed loads are never cached.
type Loader[V any] struct {
	lru   *expirable.LRU[string, V]
	group singleflight.Group
	load  LoadFunc[V]

	// Normalize maps a raw key to its cache key.
	Normalize func(string) string
}

// NewLoader creates a Loader holding at most maxEntries values for ttl each (ttl <= 0: no expiry).
func NewLoader[V any](maxEntries int, ttl time.Duration, load LoadFunc[V]) (*Loader[V], error) {
	if maxEntries <= 0 {
		return nil, errInvalidSize
	}

	return &Loader[V]{
		lru:  expirable.NewLRU[string, V](maxEntries, nil, max(ttl, 0)),
		load: load,
	}, nil
}

func (l *Loader[V]) key(raw string) string {
	if l.Normalize == nil {
		return raw
	}

	return l.Normalize(raw)
}

// Get returns the value for key and whether it came from the cache. Concurrent misses for one
// key share a single load; a caller whose ctx ends while waiting returns ctx.Err() and the load
// carries on for the others.
func (l *Loader[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V

	k := l.key(key)
	if v, ok := l.lru.Get(k); ok {
		return v, true, nil
	}

	ch := l.group.DoChan(k, func() (any, error) {
		v, err := l.load(context.WithoutCancel(ctx), k)
		if err != nil {
			return nil, err
		}

		l.lru.Add(k, v)

		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, false, res.Err
		}

		return res.Val.(V), false, nil
	}
}

// Forget drops the entry for key.
func (l *Loader[V]) Forget(key string) {
	l.lru.Remove(l.key(key))
}

// Purge drops every entry.
func (l *Loader[V]) Purge() {
	l.lru.Purge()
}

// Len is the number of live entries.
func (l *Loader[V]) Len() int {
	return l.lru.Len()
}
