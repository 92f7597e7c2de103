package evaluation

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/beaconhq/beacon/internal/clock"
	"github.com/beaconhq/beacon/internal/config"
	"github.com/beaconhq/beacon/internal/observability/metrics"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
)

// Health describes the store's refresh state for readiness probes.
type Health struct {
	Ready         bool      `json:"ready"`
	BuiltAt       time.Time `json:"built_at,omitempty"`
	LastRefreshAt time.Time `json:"last_refresh_at,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
}

// Store owns the current snapshot set. Readers always see a complete,
// internally consistent set: refresh builds a whole new one off to the
// side and swaps a single pointer. A failed refresh keeps the previous
// set serving; only a process that has never loaded successfully is
// not ready.
type Store struct {
	log     *zap.Logger
	loader  *Loader
	clock   clock.Clock
	holder  *config.EngineConfigHolder
	metrics *metrics.Metrics

	current atomic.Pointer[snapshotSet]
	notify  chan struct{}

	mu            sync.Mutex
	lastRefreshAt time.Time
	lastErr       error
}

func NewStore(loader *Loader, clk clock.Clock, holder *config.EngineConfigHolder, m *metrics.Metrics, log *zap.Logger) *Store {
	return &Store{
		log:     log.Named("evaluation.store"),
		loader:  loader,
		clock:   clk,
		holder:  holder,
		metrics: m,
		notify:  make(chan struct{}, 1),
	}
}

// Refresh rebuilds the snapshot set. On failure the previous set stays
// in place and the error is retained for Health.
func (s *Store) Refresh(ctx context.Context) error {
	now := s.clock.Now()
	set, err := s.loader.load(ctx, now)

	s.mu.Lock()
	s.lastRefreshAt = now
	s.lastErr = err
	s.mu.Unlock()

	s.metrics.RecordSnapshotRefresh(ctx, err == nil)

	if err != nil {
		s.log.Warn("snapshot refresh failed, serving previous snapshot", zap.Error(err))
		return err
	}

	s.current.Store(set)
	s.log.Debug("snapshot refreshed",
		zap.Int("environments", len(set.environments)),
		zap.Time("built_at", set.builtAt),
	)
	return nil
}

// Notify kicks the refresh loop without waiting for the next tick.
// Never blocks; coalesces with a pending kick.
func (s *Store) Notify() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Ready reports whether at least one snapshot has ever been loaded.
func (s *Store) Ready() bool {
	return s.current.Load() != nil
}

// Health returns the refresh state for the readiness endpoint.
func (s *Store) Health() Health {
	s.mu.Lock()
	lastRefreshAt := s.lastRefreshAt
	lastErr := s.lastErr
	s.mu.Unlock()

	h := Health{
		Ready:         false,
		LastRefreshAt: lastRefreshAt,
	}
	if set := s.current.Load(); set != nil {
		h.Ready = true
		h.BuiltAt = set.builtAt
	}
	if lastErr != nil {
		h.LastError = lastErr.Error()
	}
	return h
}

// ByKeyHash resolves an environment snapshot from a hashed SDK key.
func (s *Store) ByKeyHash(keyHash string) (*EnvironmentSnapshot, bool) {
	set := s.current.Load()
	if set == nil {
		return nil, false
	}
	snapshot, ok := set.byKeyHash[keyHash]
	return snapshot, ok
}

// ByEnvironmentID resolves an environment snapshot by its ID.
func (s *Store) ByEnvironmentID(id snowflake.ID) (*EnvironmentSnapshot, bool) {
	set := s.current.Load()
	if set == nil {
		return nil, false
	}
	snapshot, ok := set.environments[id]
	return snapshot, ok
}

// run refreshes on the configured cadence until ctx is done. The
// interval is re-read every tick so engine.yml edits apply live.
func (s *Store) run(ctx context.Context) {
	for {
		cfg := s.holder.Get()
		timer := time.NewTimer(cfg.RefreshInterval)

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.notify:
			timer.Stop()
		case <-timer.C:
		}

		refreshCtx, cancel := context.WithTimeout(ctx, cfg.RefreshTimeout)
		_ = s.Refresh(refreshCtx)
		cancel()
	}
}
