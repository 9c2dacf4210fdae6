package availability

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/architect-ai/model-router/internal/metrics"
	"github.com/architect-ai/model-router/internal/providers"
	"github.com/architect-ai/model-router/internal/registry"
	"github.com/architect-ai/model-router/internal/types"
)

// UnknownAvailabilityDefault is reported for providers we have no observation
// for, and for probes that fail for any reason other than rejected credentials.
const UnknownAvailabilityDefault = true

const (
	// SnapshotTTL is how long a probe round is trusted
	SnapshotTTL = 5 * time.Minute

	DefaultProbeTimeout = 10 * time.Second

	refreshKey = "refresh"
)

// ProberSource lists the providers to probe on every refresh
type ProberSource interface {
	Probers() []providers.Prober
}

// Monitor caches provider reachability for the lifetime of the process
type Monitor struct {
	mu          sync.RWMutex
	snapshot    types.AvailabilitySnapshot
	initialized bool
	closed      bool

	source       ProberSource
	probeTimeout time.Duration
	now          func() time.Time
	logger       *logrus.Logger

	group      singleflight.Group
	refreshing bool
	wg         sync.WaitGroup
	baseCtx    context.Context
	cancel     context.CancelFunc
}

// Option configures a Monitor
type Option func(*Monitor)

// WithClock replaces the wall clock used for snapshot age
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		m.now = now
	}
}

// WithProbeTimeout bounds each individual probe
func WithProbeTimeout(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.probeTimeout = d
		}
	}
}

// NewMonitor creates a monitor with an optimistic empty snapshot. No probes are
// sent until Initialize is called.
func NewMonitor(source ProberSource, logger *logrus.Logger, opts ...Option) *Monitor {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Monitor{
		snapshot:     types.AvailabilitySnapshot{Providers: map[string]bool{}},
		source:       source,
		probeTimeout: DefaultProbeTimeout,
		now:          time.Now,
		logger:       logger,
		baseCtx:      ctx,
		cancel:       cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Initialize runs the first probe round and enables background refreshes
func (m *Monitor) Initialize(ctx context.Context) error {
	if _, err := m.Refresh(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	m.initialized = true
	m.mu.Unlock()
	return nil
}

// Close stops background refreshes and waits for one in flight
func (m *Monitor) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.cancel()
	m.mu.Unlock()

	m.wg.Wait()
}

// GetSnapshot returns a copy of the cached snapshot. A stale snapshot is still
// returned, and a single background refresh is started.
func (m *Monitor) GetSnapshot() types.AvailabilitySnapshot {
	m.mu.RLock()
	snapshot := copySnapshot(m.snapshot)
	stale := m.initialized && snapshot.Age(m.now()) > SnapshotTTL
	m.mu.RUnlock()

	if stale {
		m.refreshInBackground()
	}
	return snapshot
}

// IsAvailable reports the cached belief for a provider hint. Image variants
// share their family's probe result.
func (m *Monitor) IsAvailable(provider string) bool {
	snapshot := m.GetSnapshot()
	if available, ok := snapshot.Providers[provider]; ok {
		return available
	}
	if available, ok := snapshot.Providers[registry.ProviderFamily(provider)]; ok {
		return available
	}
	return UnknownAvailabilityDefault
}

// Refresh probes every provider concurrently and replaces the cache.
// Concurrent callers share one probe round.
func (m *Monitor) Refresh(ctx context.Context) (types.AvailabilitySnapshot, error) {
	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return types.AvailabilitySnapshot{}, errors.New("availability monitor is closed")
	}

	v, err, shared := m.group.Do(refreshKey, func() (interface{}, error) {
		return m.probeAll(ctx)
	})
	if err != nil {
		return types.AvailabilitySnapshot{}, err
	}
	if shared {
		m.logger.Debug("Joined in-flight availability refresh")
	}
	return copySnapshot(v.(types.AvailabilitySnapshot)), nil
}

func (m *Monitor) refreshInBackground() {
	m.mu.Lock()
	if m.closed || m.refreshing {
		m.mu.Unlock()
		return
	}
	m.refreshing = true
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		defer func() {
			m.mu.Lock()
			m.refreshing = false
			m.mu.Unlock()
		}()

		if _, err := m.Refresh(m.baseCtx); err != nil {
			m.logger.WithError(err).Warn("Background availability refresh failed")
		}
	}()
}

func (m *Monitor) probeAll(ctx context.Context) (types.AvailabilitySnapshot, error) {
	probers := m.source.Probers()
	results := make([]bool, len(probers))

	var wg sync.WaitGroup
	for i, prober := range probers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
			defer cancel()

			start := time.Now()
			err := prober.Probe(probeCtx)
			results[i] = classifyProbe(err)

			entry := m.logger.WithFields(logrus.Fields{
				"provider":   prober.Name(),
				"available":  results[i],
				"latency_ms": time.Since(start).Milliseconds(),
			})
			if err != nil {
				entry = entry.WithError(err)
			}
			entry.Debug("Provider probed")
		}()
	}
	wg.Wait()

	snapshot := types.AvailabilitySnapshot{
		Providers: make(map[string]bool, len(probers)),
		Timestamp: m.now(),
	}
	for i, prober := range probers {
		snapshot.Providers[prober.Name()] = results[i]
		metrics.ProviderAvailable.WithLabelValues(prober.Name()).Set(metrics.BoolValue(results[i]))
	}

	m.mu.Lock()
	m.snapshot = snapshot
	m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{
		"providers":   len(probers),
		"unavailable": countUnavailable(snapshot),
	}).Info("Provider availability refreshed")

	return snapshot, nil
}

// classifyProbe treats only rejected credentials as unavailable
func classifyProbe(err error) bool {
	if err == nil {
		return true
	}
	var provErr *types.ProviderError
	if errors.As(err, &provErr) && provErr.IsAuthFailure() {
		return false
	}
	return UnknownAvailabilityDefault
}

func countUnavailable(s types.AvailabilitySnapshot) int {
	n := 0
	for _, ok := range s.Providers {
		if !ok {
			n++
		}
	}
	return n
}

func copySnapshot(s types.AvailabilitySnapshot) types.AvailabilitySnapshot {
	entries := make(map[string]bool, len(s.Providers))
	for k, v := range s.Providers {
		entries[k] = v
	}
	return types.AvailabilitySnapshot{Providers: entries, Timestamp: s.Timestamp}
}
