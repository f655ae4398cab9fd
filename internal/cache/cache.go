// Package cache holds reasoning results in per-kind TTL buckets.
//
// Results are keyed by a 64-bit hash of the query input. Every ontology
// mutation invalidates all buckets; a computation that started before the
// invalidation never stores its result afterwards.
package cache

import (
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"

	"owlreasoner/internal/logging"
)

// Bucket names a family of cached results.
type Bucket string

const (
	BucketConsistency    Bucket = "consistency"
	BucketSatisfiability Bucket = "satisfiability"
	BucketSubclass       Bucket = "subclass"
	BucketInstances      Bucket = "instances"
	BucketClassification Bucket = "classification"
)

// Buckets lists every bucket in a fixed order.
var Buckets = []Bucket{
	BucketConsistency,
	BucketSatisfiability,
	BucketSubclass,
	BucketInstances,
	BucketClassification,
}

// TTLs sets the lifetime of each bucket. A zero TTL disables the bucket.
type TTLs struct {
	Consistency    time.Duration
	Satisfiability time.Duration
	Subclass       time.Duration
	Instances      time.Duration
	Classification time.Duration
}

// DefaultTTLs returns the lifetimes used when none are configured.
func DefaultTTLs() TTLs {
	return TTLs{
		Consistency:    time.Hour,
		Satisfiability: 20 * time.Minute,
		Subclass:       10 * time.Minute,
		Instances:      30 * time.Second,
		Classification: time.Hour,
	}
}

func (t TTLs) of(b Bucket) time.Duration {
	switch b {
	case BucketConsistency:
		return t.Consistency
	case BucketSatisfiability:
		return t.Satisfiability
	case BucketSubclass:
		return t.Subclass
	case BucketInstances:
		return t.Instances
	case BucketClassification:
		return t.Classification
	}
	return 0
}

// Config configures a Manager.
type Config struct {
	Enabled bool
	TTLs    TTLs
}

// DefaultConfig returns an enabled cache with the default lifetimes.
func DefaultConfig() Config {
	return Config{Enabled: true, TTLs: DefaultTTLs()}
}

// Key hashes the parts of a query input into a cache key. Parts are
// separated so that ("ab","c") and ("a","bc") differ.
func Key(parts ...string) uint64 {
	d := xxhash.New()
	for _, p := range parts {
		_, _ = d.WriteString(p)
		_, _ = d.Write([]byte{0})
	}
	return d.Sum64()
}

type entry struct {
	value   any
	expires time.Time
}

type bucket struct {
	name   Bucket
	ttl    time.Duration
	mu     sync.RWMutex
	items  map[uint64]entry
	hits   atomic.Int64
	misses atomic.Int64
	stores atomic.Int64
}

// BucketStats reports the counters of one bucket.
type BucketStats struct {
	Entries int
	Hits    int64
	Misses  int64
	Stores  int64
	TTL     time.Duration
}

// HitRate returns hits / (hits + misses), or 0 before the first lookup.
func (s BucketStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Stats reports the state of the whole cache.
type Stats struct {
	Enabled       bool
	Epoch         uint64
	Invalidations int64
	Buckets       map[Bucket]BucketStats
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager owns the result buckets. It is safe for concurrent use.
type Manager struct {
	enabled bool
	now     func() time.Time
	buckets map[Bucket]*bucket

	epoch         atomic.Uint64
	invalidations atomic.Int64
	flights       singleflight.Group

	metrics *metrics
}

// NewManager creates the buckets described by cfg.
func NewManager(cfg Config, opts ...Option) (*Manager, error) {
	m := &Manager{
		enabled: cfg.Enabled,
		now:     time.Now,
		buckets: make(map[Bucket]*bucket, len(Buckets)),
		metrics: newMetrics(),
	}
	for _, opt := range opts {
		opt(m)
	}
	for _, b := range Buckets {
		m.buckets[b] = &bucket{name: b, ttl: cfg.TTLs.of(b), items: make(map[uint64]entry)}
	}
	if m.metrics.registerer != nil {
		if err := m.metrics.register(); err != nil {
			return nil, fmt.Errorf("register cache metrics: %w", err)
		}
	}
	return m, nil
}

func (m *Manager) bucket(b Bucket) *bucket {
	bk, ok := m.buckets[b]
	if !ok {
		panic(fmt.Sprintf("cache: unknown bucket %q", b))
	}
	return bk
}

// Get returns the live value stored under key.
func (m *Manager) Get(b Bucket, key uint64) (any, bool) {
	if !m.enabled {
		return nil, false
	}
	bk := m.bucket(b)
	bk.mu.RLock()
	e, ok := bk.items[key]
	bk.mu.RUnlock()

	if ok && !m.now().Before(e.expires) {
		bk.mu.Lock()
		if cur, still := bk.items[key]; still && !m.now().Before(cur.expires) {
			delete(bk.items, key)
			m.metrics.entries.WithLabelValues(string(b)).Set(float64(len(bk.items)))
		}
		bk.mu.Unlock()
		ok = false
	}
	if !ok {
		bk.misses.Add(1)
		m.metrics.misses.WithLabelValues(string(b)).Inc()
		return nil, false
	}
	bk.hits.Add(1)
	m.metrics.hits.WithLabelValues(string(b)).Inc()
	return e.value, true
}

// Put stores value under key for the bucket's TTL.
func (m *Manager) Put(b Bucket, key uint64, value any) {
	m.put(b, key, value, m.epoch.Load())
}

// put stores value only if no invalidation happened since epoch was read.
func (m *Manager) put(b Bucket, key uint64, value any, epoch uint64) bool {
	if !m.enabled {
		return false
	}
	bk := m.bucket(b)
	if bk.ttl <= 0 {
		return false
	}
	bk.mu.Lock()
	defer bk.mu.Unlock()
	if m.epoch.Load() != epoch {
		return false
	}
	bk.items[key] = entry{value: value, expires: m.now().Add(bk.ttl)}
	bk.stores.Add(1)
	m.metrics.stores.WithLabelValues(string(b)).Inc()
	m.metrics.entries.WithLabelValues(string(b)).Set(float64(len(bk.items)))
	return true
}

// GetOrCompute returns the cached value for key or computes and stores it.
// Concurrent misses on the same key share one computation. Errors are
// returned to every waiter and never stored.
func GetOrCompute[T any](m *Manager, b Bucket, key uint64, compute func() (T, error)) (T, error) {
	if v, ok := m.Get(b, key); ok {
		if t, ok := v.(T); ok {
			return t, nil
		}
	}
	if !m.enabled {
		return compute()
	}

	epoch := m.epoch.Load()
	flight := string(b) + ":" + strconv.FormatUint(key, 16) + ":" + strconv.FormatUint(epoch, 10)
	v, err, shared := m.flights.Do(flight, func() (any, error) {
		val, err := compute()
		if err != nil {
			return nil, err
		}
		m.put(b, key, val, epoch)
		return val, nil
	})
	if shared {
		logging.CacheDebug("%s: shared computation for key %x", b, key)
	}
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Invalidate drops every entry of one bucket.
func (m *Manager) Invalidate(b Bucket) {
	bk := m.bucket(b)
	bk.mu.Lock()
	n := len(bk.items)
	bk.items = make(map[uint64]entry)
	bk.mu.Unlock()
	m.metrics.entries.WithLabelValues(string(b)).Set(0)
	logging.CacheDebug("%s: invalidated %d entries", b, n)
}

// InvalidateAll drops every entry and advances the epoch so that results of
// computations already in flight are discarded.
func (m *Manager) InvalidateAll() {
	epoch := m.epoch.Add(1)
	m.invalidations.Add(1)
	m.metrics.invalidations.Inc()
	dropped := 0
	for _, b := range Buckets {
		bk := m.buckets[b]
		bk.mu.Lock()
		dropped += len(bk.items)
		bk.items = make(map[uint64]entry)
		bk.mu.Unlock()
		m.metrics.entries.WithLabelValues(string(b)).Set(0)
	}
	logging.CacheDebug("invalidated all buckets (epoch %d, %d entries dropped)", epoch, dropped)
}

// Purge removes expired entries and returns how many were dropped.
func (m *Manager) Purge() int {
	now := m.now()
	dropped := 0
	for _, b := range Buckets {
		bk := m.buckets[b]
		bk.mu.Lock()
		for k, e := range bk.items {
			if !now.Before(e.expires) {
				delete(bk.items, k)
				dropped++
			}
		}
		m.metrics.entries.WithLabelValues(string(b)).Set(float64(len(bk.items)))
		bk.mu.Unlock()
	}
	return dropped
}

// Stats returns a snapshot of all counters.
func (m *Manager) Stats() Stats {
	s := Stats{
		Enabled:       m.enabled,
		Epoch:         m.epoch.Load(),
		Invalidations: m.invalidations.Load(),
		Buckets:       make(map[Bucket]BucketStats, len(m.buckets)),
	}
	for name, bk := range m.buckets {
		bk.mu.RLock()
		n := len(bk.items)
		bk.mu.RUnlock()
		s.Buckets[name] = BucketStats{
			Entries: n,
			Hits:    bk.hits.Load(),
			Misses:  bk.misses.Load(),
			Stores:  bk.stores.Load(),
			TTL:     bk.ttl,
		}
	}
	return s
}

// Names returns the bucket names of s in a fixed order.
func (s Stats) Names() []Bucket {
	out := make([]Bucket, 0, len(s.Buckets))
	for b := range s.Buckets {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
