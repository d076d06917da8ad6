package rates

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"patrimonio/internal/core"
)

type countingProvider struct {
	calls atomic.Int32
	delay time.Duration
	err   error
}

func (p *countingProvider) Timeline(context.Context) (Timeline, error) {
	p.calls.Add(1)
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	if p.err != nil {
		return Timeline{}, p.err
	}
	return NewTimeline([]Interval{{Start: core.NewDate(2024, 1, 1), RatePercent: 10}}, core.NewDate(2024, 1, 2)), nil
}

func TestCachedProviderMemoizesForTTL(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	upstream := &countingProvider{}
	p := NewCachedProvider(upstream, 24*time.Hour, nil).WithClock(clock)

	for i := 0; i < 3; i++ {
		tl, err := p.Timeline(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !tl.Today.Equal(core.NewDate(2024, 5, 1)) {
			t.Fatalf("today should follow the clock, got %s", tl.Today)
		}
	}
	if got := upstream.calls.Load(); got != 1 {
		t.Fatalf("upstream called %d times, want 1", got)
	}

	now = now.Add(25 * time.Hour)
	tl, err := p.Timeline(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := upstream.calls.Load(); got != 2 {
		t.Fatalf("upstream called %d times after expiry, want 2", got)
	}
	if !tl.Today.Equal(core.NewDate(2024, 5, 2)) {
		t.Fatalf("today = %s", tl.Today)
	}

	p.Invalidate()
	if _, err := p.Timeline(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := upstream.calls.Load(); got != 3 {
		t.Fatalf("upstream called %d times after invalidate, want 3", got)
	}
}

func TestCachedProviderSharesConcurrentMisses(t *testing.T) {
	upstream := &countingProvider{delay: 50 * time.Millisecond}
	p := NewCachedProvider(upstream, time.Hour, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Timeline(context.Background()); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := upstream.calls.Load(); got != 1 {
		t.Fatalf("upstream called %d times, want 1", got)
	}
}

// gatedProvider blocks until release is closed and reports whether the
// context it was called with ended first.
type gatedProvider struct {
	started chan struct{}
	release chan struct{}
}

func (p *gatedProvider) Timeline(ctx context.Context) (Timeline, error) {
	close(p.started)
	select {
	case <-p.release:
	case <-ctx.Done():
		return Timeline{}, ctx.Err()
	}
	return NewTimeline([]Interval{{Start: core.NewDate(2024, 1, 1), RatePercent: 10}}, core.NewDate(2024, 1, 2)), nil
}

func TestCachedProviderCanceledCallerDoesNotFailOthers(t *testing.T) {
	upstream := &gatedProvider{started: make(chan struct{}), release: make(chan struct{})}
	p := NewCachedProvider(upstream, time.Hour, nil)

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := p.Timeline(leaderCtx)
		leaderErr <- err
	}()
	<-upstream.started

	followerErr := make(chan error, 1)
	go func() {
		_, err := p.Timeline(context.Background())
		followerErr <- err
	}()

	cancel()
	if err := <-leaderErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("canceled caller: expected context.Canceled, got %v", err)
	}
	close(upstream.release)

	if err := <-followerErr; err != nil {
		t.Fatalf("follower should get the shared result, got %v", err)
	}
	if _, ok := p.cache.Get(timelineKey); !ok {
		t.Error("shared result should be cached")
	}
}

func TestCachedProviderFetchTimeout(t *testing.T) {
	upstream := &gatedProvider{started: make(chan struct{}), release: make(chan struct{})}
	p := NewCachedProvider(upstream, time.Hour, nil).WithFetchTimeout(20 * time.Millisecond)

	if _, err := p.Timeline(context.Background()); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
}

func TestCachedProviderDoesNotCacheErrors(t *testing.T) {
	upstream := &countingProvider{err: errors.New("unavailable")}
	p := NewCachedProvider(upstream, time.Hour, nil)

	for i := 0; i < 2; i++ {
		if _, err := p.Timeline(context.Background()); err == nil {
			t.Fatalf("expected error")
		}
	}
	if got := upstream.calls.Load(); got != 2 {
		t.Fatalf("upstream called %d times, want 2", got)
	}
}
