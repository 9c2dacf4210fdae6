package performance

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracker(t *testing.T, capacity int) (*Tracker, *time.Time) {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tracker, err := NewTracker(capacity, logger, WithClock(func() time.Time {
		clock = clock.Add(time.Millisecond)
		return clock
	}))
	require.NoError(t, err)
	return tracker, &clock
}

func TestTracker_RecordAggregates(t *testing.T) {
	tracker, _ := newTestTracker(t, DefaultCapacity)

	tracker.Record("DESIGN_SPECIFICATION", "gpt-4o", 100*time.Millisecond, false)
	tracker.Record("DESIGN_SPECIFICATION", "gpt-4o", 300*time.Millisecond, true)

	entry, ok := tracker.Get("DESIGN_SPECIFICATION", "gpt-4o")
	require.True(t, ok)
	assert.Equal(t, 2, entry.Count)
	assert.Equal(t, 400*time.Millisecond, entry.TotalLatency)
	assert.Equal(t, 200*time.Millisecond, entry.AvgLatency)
	assert.Equal(t, 1, entry.Failures)
	assert.False(t, entry.LastUsed.IsZero())
}

func TestTracker_LRUBound(t *testing.T) {
	tracker, _ := newTestTracker(t, DefaultCapacity)

	for i := 0; i < 101; i++ {
		tracker.Record(fmt.Sprintf("TASK_%d", i), "model", time.Millisecond, false)
	}

	stats := tracker.GetStats()
	assert.Len(t, stats, 100)
	assert.Equal(t, 1, tracker.Evictions())
	assert.NotContains(t, stats, Key("TASK_0", "model"))
	assert.Contains(t, stats, Key("TASK_100", "model"))
}

func TestTracker_EvictsOldestLastUsed(t *testing.T) {
	tracker, _ := newTestTracker(t, 3)

	tracker.Record("A", "m", time.Millisecond, false)
	tracker.Record("B", "m", time.Millisecond, false)
	tracker.Record("C", "m", time.Millisecond, false)

	// Touching A makes B the least recently used
	tracker.Record("A", "m", time.Millisecond, false)

	before := tracker.GetStats()
	oldest := ""
	for key, entry := range before {
		if oldest == "" || entry.LastUsed.Before(before[oldest].LastUsed) {
			oldest = key
		}
	}
	assert.Equal(t, Key("B", "m"), oldest)

	tracker.Record("D", "m", time.Millisecond, false)

	stats := tracker.GetStats()
	assert.Len(t, stats, 3)
	assert.NotContains(t, stats, oldest)
	assert.Contains(t, stats, Key("A", "m"))
	assert.Equal(t, 1, tracker.Evictions())
}

func TestTracker_GetStatsDoesNotChangeRecency(t *testing.T) {
	tracker, _ := newTestTracker(t, 2)

	tracker.Record("A", "m", time.Millisecond, false)
	tracker.Record("B", "m", time.Millisecond, false)

	_, _ = tracker.Get("A", "m")
	_ = tracker.GetStats()

	tracker.Record("C", "m", time.Millisecond, false)

	stats := tracker.GetStats()
	assert.NotContains(t, stats, Key("A", "m"))
}

func TestTracker_ConcurrentRecord(t *testing.T) {
	tracker, err := NewTracker(DefaultCapacity, logrus.New())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				tracker.Record("TASK", "model", time.Millisecond, j%2 == 0)
			}
		}()
	}
	wg.Wait()

	entry, ok := tracker.Get("TASK", "model")
	require.True(t, ok)
	assert.Equal(t, 1000, entry.Count)
	assert.Equal(t, 500, entry.Failures)
}

func TestTracker_Reset(t *testing.T) {
	tracker, _ := newTestTracker(t, 10)
	tracker.Record("A", "m", time.Millisecond, false)

	tracker.Reset()

	assert.Equal(t, 0, tracker.Len())
	assert.Equal(t, 0, tracker.Evictions())
}
