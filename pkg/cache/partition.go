package cache

import (
	"strings"
	"sync"
	"time"
)

// Config per-partition settings
type Config struct {
	TTL     time.Duration
	MaxSize int
	Enabled bool
}

// Stats partition counters since creation
type Stats struct {
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Evictions   int64 `json:"evictions"`
	Expirations int64 `json:"expirations"`
	Size        int   `json:"size"`
}

type entry struct {
	value        interface{}
	timestamp    time.Time
	ttl          time.Duration
	accessCount  int64
	lastAccessed time.Time
}

func (e *entry) expired(now time.Time) bool {
	return now.Sub(e.timestamp) >= e.ttl
}

// score lower is evicted first: rarely used and long idle
func (e *entry) score(now time.Time) float64 {
	idle := now.Sub(e.lastAccessed).Milliseconds()
	if idle < 0 {
		idle = 0
	}
	return float64(e.accessCount) / float64(idle+1)
}

// Partition TTL + capacity bounded cache for one content kind.
// A disabled partition misses on every Get and ignores Set.
type Partition struct {
	name string
	cfg  Config
	now  func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
	stats   Stats
}

// NewPartition creates a partition; now may be nil for the wall clock
func NewPartition(name string, cfg Config, now func() time.Time) *Partition {
	if now == nil {
		now = time.Now
	}
	if cfg.MaxSize < 1 {
		cfg.MaxSize = 1
	}
	return &Partition{
		name:    name,
		cfg:     cfg,
		now:     now,
		entries: make(map[string]*entry),
	}
}

func (p *Partition) Name() string { return p.name }

func (p *Partition) Config() Config { return p.cfg }

// Get returns the value when present and younger than its ttl.
// A stale entry is removed and reported as a miss.
func (p *Partition) Get(key string) (interface{}, bool) {
	if !p.cfg.Enabled {
		return nil, false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	e, ok := p.entries[key]
	if !ok {
		p.miss()
		return nil, false
	}
	if e.expired(now) {
		delete(p.entries, key)
		p.stats.Expirations++
		p.miss()
		p.sizeChanged()
		return nil, false
	}

	e.accessCount++
	e.lastAccessed = now
	p.stats.Hits++
	cacheHits.WithLabelValues(p.name).Inc()
	return e.value, true
}

// Set stores value with the partition ttl
func (p *Partition) Set(key string, value interface{}) {
	p.SetWithTTL(key, value, 0)
}

// SetWithTTL stores value; ttl <= 0 means the partition ttl.
// At capacity one entry is evicted first.
func (p *Partition) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	if !p.cfg.Enabled {
		return
	}
	if ttl <= 0 {
		ttl = p.cfg.TTL
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if _, exists := p.entries[key]; !exists && len(p.entries) >= p.cfg.MaxSize {
		p.evictOne(now)
	}
	p.entries[key] = &entry{
		value:        value,
		timestamp:    now,
		ttl:          ttl,
		lastAccessed: now,
	}
	p.sizeChanged()
}

// evictOne removes the lowest scoring entry; ties go to the longest idle. Caller holds mu.
func (p *Partition) evictOne(now time.Time) {
	var (
		victim    string
		victimE   *entry
		lowest    float64
		hasVictim bool
	)
	for key, e := range p.entries {
		s := e.score(now)
		if !hasVictim || s < lowest || (s == lowest && e.lastAccessed.Before(victimE.lastAccessed)) {
			victim, victimE, lowest, hasVictim = key, e, s, true
		}
	}
	if !hasVictim {
		return
	}
	delete(p.entries, victim)
	p.stats.Evictions++
	cacheEvictions.WithLabelValues(p.name).Inc()
}

// Delete removes key and reports whether it was present
func (p *Partition) Delete(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.entries[key]; !ok {
		return false
	}
	delete(p.entries, key)
	p.invalidated(1)
	return true
}

// DeleteFunc removes every entry whose key matches and returns the count
func (p *Partition) DeleteFunc(match func(key string) bool) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	removed := 0
	for key := range p.entries {
		if match(key) {
			delete(p.entries, key)
			removed++
		}
	}
	p.invalidated(removed)
	return removed
}

// DeletePrefix removes every entry under prefix
func (p *Partition) DeletePrefix(prefix string) int {
	return p.DeleteFunc(func(key string) bool { return strings.HasPrefix(key, prefix) })
}

// Clear drops every entry
func (p *Partition) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.entries)
	p.entries = make(map[string]*entry)
	p.invalidated(n)
}

// Sweep drops expired entries without waiting for a read
func (p *Partition) Sweep() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	removed := 0
	for key, e := range p.entries {
		if e.expired(now) {
			delete(p.entries, key)
			removed++
		}
	}
	p.stats.Expirations += int64(removed)
	if removed > 0 {
		p.sizeChanged()
	}
	return removed
}

func (p *Partition) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

func (p *Partition) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.stats
	s.Size = len(p.entries)
	return s
}

func (p *Partition) miss() {
	p.stats.Misses++
	cacheMisses.WithLabelValues(p.name).Inc()
}

func (p *Partition) invalidated(n int) {
	if n == 0 {
		return
	}
	cacheInvalidations.WithLabelValues(p.name).Add(float64(n))
	p.sizeChanged()
}

func (p *Partition) sizeChanged() {
	cacheEntries.WithLabelValues(p.name).Set(float64(len(p.entries)))
}
