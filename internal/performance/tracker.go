package performance

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/architect-ai/model-router/internal/types"
)

// DefaultCapacity bounds the number of task:model entries kept in memory
const DefaultCapacity = 100

// Tracker records latency statistics per task and model. Entries are kept in
// least-recently-used order, so the entry with the oldest LastUsed is the one
// evicted when an insert crosses the capacity.
type Tracker struct {
	mu      sync.Mutex
	entries *lru.Cache[string, types.PerformanceEntry]
	logger  *logrus.Logger
	now     func() time.Time

	evictions int
}

// Option configures a Tracker
type Option func(*Tracker)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// NewTracker creates a tracker holding at most capacity entries
func NewTracker(capacity int, logger *logrus.Logger, opts ...Option) (*Tracker, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	t := &Tracker{
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}

	cache, err := lru.NewWithEvict[string, types.PerformanceEntry](capacity, t.onEvict)
	if err != nil {
		return nil, fmt.Errorf("failed to create performance cache: %w", err)
	}
	t.entries = cache

	return t, nil
}

// Key builds the "task:model" key used for entries
func Key(task, model string) string {
	return task + ":" + model
}

// Record adds one completed invocation to the statistics
func (t *Tracker) Record(task, model string, latency time.Duration, failed bool) {
	key := Key(task, model)

	t.mu.Lock()
	defer t.mu.Unlock()

	entry, _ := t.entries.Peek(key)
	entry.Count++
	entry.TotalLatency += latency
	entry.AvgLatency = entry.TotalLatency / time.Duration(entry.Count)
	entry.LastUsed = t.now()
	if failed {
		entry.Failures++
	}

	t.entries.Add(key, entry)
}

// GetStats returns a copy of every entry. Reading does not change recency.
func (t *Tracker) GetStats() map[string]types.PerformanceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := make(map[string]types.PerformanceEntry, t.entries.Len())
	for _, key := range t.entries.Keys() {
		if entry, ok := t.entries.Peek(key); ok {
			stats[key] = entry
		}
	}
	return stats
}

// Get returns the entry for a task and model without touching recency
func (t *Tracker) Get(task, model string) (types.PerformanceEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entries.Peek(Key(task, model))
}

// Len returns the number of tracked entries
func (t *Tracker) Len() int {
	return t.entries.Len()
}

// Evictions returns how many entries have been evicted so far
func (t *Tracker) Evictions() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.evictions
}

// Reset drops all entries
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries.Purge()
	t.evictions = 0
}

// onEvict runs inside Add while t.mu is held by Record
func (t *Tracker) onEvict(key string, entry types.PerformanceEntry) {
	t.evictions++
	if t.logger != nil {
		t.logger.WithFields(logrus.Fields{
			"key":       key,
			"count":     entry.Count,
			"last_used": entry.LastUsed,
		}).Debug("Evicted performance entry")
	}
}
