// Package ratelimit implements a fixed-window request counter keyed by
// endpoint class, tenant, identity, and client IP.
//
// The store is process-wide shared mutable state touched by every in-flight
// request, so mutation is serialized per key through a sharded lock map:
// for any N concurrent calls on one key inside a window the stored count is
// exactly N. A background sweep bounds memory and never blocks the request
// path.
package ratelimit

import (
	"context"
	"hash/fnv"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	shardCount = 32

	// maxShardRecords caps each shard to bound total memory; new keys are
	// denied when a shard is full.
	maxShardRecords = 4096

	sweepInterval = 1 * time.Minute
)

// Config describes one endpoint class's quota.
type Config struct {
	Window         time.Duration
	MaxRequests    int
	SkipSuccessful bool
}

// Result is the outcome of a quota check.
type Result struct {
	Allowed           bool
	Limit             int
	Remaining         int
	ResetTime         time.Time
	RetryAfterSeconds int
}

type record struct {
	count       int
	windowStart time.Time
	resetTime   time.Time
}

type shard struct {
	mu      sync.Mutex
	records map[string]*record
}

// Store is a concurrency-safe fixed-window counter store with an explicit
// lifecycle: created at process start, swept in the background until ctx is
// cancelled, drainable via Reset for tests.
type Store struct {
	shards [shardCount]*shard
	log    *logrus.Logger
	now    func() time.Time
}

// NewStore creates a Store and starts the background sweep, which stops
// when ctx is cancelled.
func NewStore(ctx context.Context, log *logrus.Logger) *Store {
	s := &Store{log: log, now: time.Now}

	for i := range s.shards {
		s.shards[i] = &shard{records: make(map[string]*record)}
	}

	go s.sweepLoop(ctx)

	return s
}

func (s *Store) shardFor(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key)) //nolint:errcheck // fnv never fails.

	return s.shards[h.Sum32()%shardCount]
}

// CheckAndIncrement records one request against key and reports whether it
// is within quota. The first call in a window creates the record with count
// 1; a record at or past its reset time starts a fresh window.
func (s *Store) CheckAndIncrement(key string, cfg Config) Result {
	sh := s.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	now := s.now()

	rec, ok := sh.records[key]
	if !ok || !now.Before(rec.resetTime) {
		if !ok && len(sh.records) >= maxShardRecords {
			// Deny new keys when the shard is full to prevent memory
			// exhaustion; existing windows keep counting.
			return Result{
				Allowed:           false,
				Limit:             cfg.MaxRequests,
				ResetTime:         now.Add(cfg.Window),
				RetryAfterSeconds: ceilSeconds(cfg.Window),
			}
		}

		rec = &record{count: 1, windowStart: now, resetTime: now.Add(cfg.Window)}
		sh.records[key] = rec

		return Result{
			Allowed:   true,
			Limit:     cfg.MaxRequests,
			Remaining: cfg.MaxRequests - 1,
			ResetTime: rec.resetTime,
		}
	}

	rec.count++

	if rec.count > cfg.MaxRequests {
		return Result{
			Allowed:           false,
			Limit:             cfg.MaxRequests,
			Remaining:         0,
			ResetTime:         rec.resetTime,
			RetryAfterSeconds: ceilSeconds(rec.resetTime.Sub(now)),
		}
	}

	return Result{
		Allowed:   true,
		Limit:     cfg.MaxRequests,
		Remaining: cfg.MaxRequests - rec.count,
		ResetTime: rec.resetTime,
	}
}

// Forgive refunds one increment for key within its current window. Used by
// classes with SkipSuccessful so only failed requests count against quota.
func (s *Store) Forgive(key string) {
	sh := s.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	rec, ok := sh.records[key]
	if ok && s.now().Before(rec.resetTime) && rec.count > 0 {
		rec.count--
	}
}

// Count returns the stored count for key, or 0 if its window has expired.
func (s *Store) Count(key string) int {
	sh := s.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	rec, ok := sh.records[key]
	if !ok || !s.now().Before(rec.resetTime) {
		return 0
	}

	return rec.count
}

// Len returns the number of tracked records across all shards, including
// expired records not yet swept.
func (s *Store) Len() int {
	total := 0

	for _, sh := range s.shards {
		sh.mu.Lock()
		total += len(sh.records)
		sh.mu.Unlock()
	}

	return total
}

// Reset drains all records. Exposed for tests and the admin clear action.
func (s *Store) Reset() {
	for _, sh := range s.shards {
		sh.mu.Lock()
		sh.records = make(map[string]*record)
		sh.mu.Unlock()
	}
}

// sweepLoop periodically evicts expired records, one shard at a time so no
// lock is held long.
func (s *Store) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Store) sweep() {
	removed := 0

	for _, sh := range s.shards {
		sh.mu.Lock()
		now := s.now()
		for key, rec := range sh.records {
			if !now.Before(rec.resetTime) {
				delete(sh.records, key)
				removed++
			}
		}
		sh.mu.Unlock()
	}

	if removed > 0 {
		s.log.WithField("removed", removed).Debug("swept expired rate limit records")
	}
}

func ceilSeconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}
