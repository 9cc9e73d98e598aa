// Package ratelimit tracks upstream rate-limit state per resource bucket.
package ratelimit

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"concord/internal/logging"
)

const defaultMaxBuckets = 1024

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

// Bucket holds the quota state for one upstream resource scope. Entries are
// always replaced wholesale: the upstream is authoritative and the most
// recent response wins.
type Bucket struct {
	Remaining int
	Limit     int
	ResetAt   time.Time
}

// Tracker accounts quota for every bucket observed from upstream responses,
// plus a distinct process-wide global bucket. Bucket residency is bounded by
// an LRU so a long-lived process touching many resources stays bounded.
type Tracker struct {
	mu      sync.Mutex
	buckets *lru.Cache[string, Bucket]
	global  *Bucket
	clock   Clock
	logger  logging.Logger
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock injects an alternative clock.
func WithClock(clock Clock) Option {
	return func(t *Tracker) { t.clock = clock }
}

// WithMaxBuckets bounds the number of resident buckets.
func WithMaxBuckets(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			cache, err := lru.New[string, Bucket](n)
			if err == nil {
				t.buckets = cache
			}
		}
	}
}

// NewTracker creates a tracker with the given logger.
func NewTracker(logger logging.Logger, opts ...Option) *Tracker {
	cache, _ := lru.New[string, Bucket](defaultMaxBuckets)
	t := &Tracker{
		buckets: cache,
		clock:   systemClock{},
		logger:  logging.OrNop(logger),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Admit reports how long a sender must wait before a request against
// bucketKey may proceed. Zero means send now. Both the global bucket and the
// per-resource bucket must pass.
func (t *Tracker) Admit(bucketKey string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()

	if wait := t.globalWait(now); wait > 0 {
		t.logger.Warn("Global rate limit hit, wait %s", wait)
		return wait
	}

	bucket, ok := t.buckets.Get(bucketKey)
	if !ok || bucket.Remaining > 0 {
		return 0
	}
	wait := bucket.ResetAt.Sub(now)
	if wait <= 0 {
		// Window elapsed; drop the stale entry rather than merge.
		t.buckets.Remove(bucketKey)
		return 0
	}
	t.logger.Warn("Rate limit hit for bucket %s, wait %s", bucketKey, wait)
	return wait
}

func (t *Tracker) globalWait(now time.Time) time.Duration {
	if t.global == nil || t.global.Remaining > 0 {
		return 0
	}
	wait := t.global.ResetAt.Sub(now)
	if wait <= 0 {
		t.global = nil
		return 0
	}
	return wait
}

// Observe overwrites tracked state from a response's rate-limit headers.
// Last writer wins; responses for the same bucket arrive in send order per
// caller but not globally, and a briefly stale view only risks one extra 429
// because every send re-checks Admit first.
func (t *Tracker) Observe(bucketKey string, remaining, limit int, resetAfter time.Duration, global bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	bucket := Bucket{
		Remaining: remaining,
		Limit:     limit,
		ResetAt:   t.clock.Now().Add(resetAfter),
	}

	if global {
		t.global = &bucket
	} else {
		t.buckets.Add(bucketKey, bucket)
	}

	t.logger.Debug("Rate limit observed: bucket=%s remaining=%d reset_after=%s global=%v",
		bucketKey, remaining, resetAfter, global)
}

// Snapshot returns the tracked state for a bucket, false when unknown.
func (t *Tracker) Snapshot(bucketKey string) (Bucket, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buckets.Get(bucketKey)
}

// GlobalSnapshot returns the global bucket state, false when unknown.
func (t *Tracker) GlobalSnapshot() (Bucket, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.global == nil {
		return Bucket{}, false
	}
	return *t.global, true
}
