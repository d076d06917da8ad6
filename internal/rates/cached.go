package rates

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"patrimonio/internal/cache"
	"patrimonio/internal/core"
	"patrimonio/internal/log"
)

const (
	timelineKey = "timeline"

	defaultFetchTimeout = 30 * time.Second
)

// CachedProvider memoizes an upstream provider for a bounded time.
// Concurrent misses share a single upstream call, which runs detached from
// the caller that started it and is bounded by fetchTimeout instead.
type CachedProvider struct {
	upstream     Provider
	cache        *cache.LRUCache[Timeline]
	group        singleflight.Group
	fetchTimeout time.Duration
	now          func() time.Time
	log          *log.Logger
}

// NewCachedProvider wraps upstream, keeping its result for ttl.
func NewCachedProvider(upstream Provider, ttl time.Duration, logger *log.Logger) *CachedProvider {
	if logger == nil {
		logger = log.Discard()
	}
	return &CachedProvider{
		upstream:     upstream,
		cache:        cache.NewLRUCache[Timeline](1, ttl),
		fetchTimeout: defaultFetchTimeout,
		now:          time.Now,
		log:          logger.WithComponent(log.ComponentRates),
	}
}

// WithFetchTimeout bounds each shared upstream call.
func (p *CachedProvider) WithFetchTimeout(d time.Duration) *CachedProvider {
	if d > 0 {
		p.fetchTimeout = d
	}
	return p
}

// WithClock replaces the time source of both the provider and its cache.
func (p *CachedProvider) WithClock(now func() time.Time) *CachedProvider {
	p.now = now
	p.cache.WithClock(now)
	return p
}

// Cache exposes the underlying cache so it can be registered for cleanup.
func (p *CachedProvider) Cache() cache.Cleaner { return p.cache }

// Timeline returns the cached timeline, fetching it when missing or expired.
// Open intervals always resolve to the current day.
func (p *CachedProvider) Timeline(ctx context.Context) (Timeline, error) {
	tl, ok := p.cache.Get(timelineKey)
	if !ok {
		ch := p.group.DoChan(timelineKey, func() (any, error) {
			if cached, ok := p.cache.Get(timelineKey); ok {
				return cached, nil
			}
			fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.fetchTimeout)
			defer cancel()
			fresh, err := p.upstream.Timeline(fctx)
			if err != nil {
				return Timeline{}, err
			}
			p.cache.Set(timelineKey, fresh)
			return fresh, nil
		})

		var res singleflight.Result
		select {
		case res = <-ch:
		case <-ctx.Done():
			return Timeline{}, ctx.Err()
		}
		if res.Err != nil {
			p.log.ErrorContext(ctx, "Rate history fetch failed", log.FieldError, res.Err, log.FieldOperation, log.OpFetch)
			return Timeline{}, res.Err
		}
		tl = res.Val.(Timeline)
		p.log.DebugContext(ctx, "Rate history cache miss", "shared", res.Shared)
	}

	tl.Today = core.DateOf(p.now())
	return tl, nil
}

// Invalidate drops the cached timeline.
func (p *CachedProvider) Invalidate() {
	p.cache.Delete(timelineKey)
}
