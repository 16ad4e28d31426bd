package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/FrenchMajesty/hue-discovery/adapters"
	"github.com/FrenchMajesty/hue-discovery/internal/metrics"
	"github.com/FrenchMajesty/hue-discovery/pkg/cache"
	"github.com/FrenchMajesty/hue-discovery/pkg/types"
	"golang.org/x/sync/singleflight"
)

// Engine discovers the distinct labels a RemoteClassifier assigns across the
// hue circle for fixed saturation and lightness
type Engine struct {
	classifier    RemoteClassifier
	cache         Cache
	batchSize     int
	coarseStep    int
	params        ParamRange
	lookupTimeout time.Duration
	logger        *slog.Logger
	promMetrics   *metrics.Metrics
	inflight      singleflight.Group

	// Metrics tracking
	discoveries int
	cancelled   int
	failed      int
	remoteCalls int
	cacheHits   int
	metricsLock sync.RWMutex

	// In-flight discovery tracking for graceful shutdown
	activeDiscoveries sync.WaitGroup
	shutdownOnce      sync.Once
	closing           bool
	closeLock         sync.RWMutex
}

// strategy resolves points into the session
type strategy func(ctx context.Context, s *session) error

// NewEngine creates a new Engine with the given configuration
func NewEngine(cfg Config) (*Engine, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}

	var classifier RemoteClassifier
	if cfg.Classifier != nil {
		classifier = cfg.Classifier
	} else {
		client, err := adapters.NewColorAPIClassifier(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create default classifier: %w", err)
		}
		classifier = client
	}

	var lookupCache Cache
	if cfg.Cache != nil {
		lookupCache = cfg.Cache
	} else {
		lookupCache = cache.New()
	}

	var promMetrics *metrics.Metrics
	if cfg.Registerer != nil {
		promMetrics = metrics.New(cfg.Registerer)
	}

	return &Engine{
		classifier:    classifier,
		cache:         lookupCache,
		batchSize:     cfg.BatchSize,
		coarseStep:    cfg.CoarseStep,
		params:        cfg.ParamRange,
		lookupTimeout: cfg.LookupTimeout,
		logger:        cfg.Logger,
		promMetrics:   promMetrics,
	}, nil
}

// Discover returns one result per distinct named label found across the hue
// circle, ordered by ascending point. The first point holding a label is its
// representative. On cancellation it returns ErrCancelled and no results.
func (e *Engine) Discover(ctx context.Context, paramA, paramB int) ([]types.ClassificationResult, error) {
	report, err := e.DiscoverReport(ctx, paramA, paramB)
	if err != nil {
		return nil, err
	}
	return report.Results, nil
}

// DiscoverReport is Discover with sampling statistics
func (e *Engine) DiscoverReport(ctx context.Context, paramA, paramB int) (*Report, error) {
	return e.run(ctx, paramA, paramB, e.adaptive)
}

// DiscoverExhaustive classifies every point of the domain instead of refining
// only detected boundaries. It finds labels the adaptive search can miss at the
// cost of up to 360 remote calls.
func (e *Engine) DiscoverExhaustive(ctx context.Context, paramA, paramB int) (*Report, error) {
	return e.run(ctx, paramA, paramB, e.exhaustive)
}

// Boundaries runs coarse sampling and returns the ranges that would be refined
func (e *Engine) Boundaries(ctx context.Context, paramA, paramB int) ([]types.BoundaryRange, error) {
	report, err := e.run(ctx, paramA, paramB, e.coarse)
	if err != nil {
		return nil, err
	}
	return report.Boundaries, nil
}

func (e *Engine) run(ctx context.Context, paramA, paramB int, resolve strategy) (*Report, error) {
	if err := e.begin(); err != nil {
		return nil, err
	}
	defer e.activeDiscoveries.Done()

	start := time.Now()

	if !e.params.Contains(paramA) || !e.params.Contains(paramB) {
		e.observe(metrics.OutcomeInvalid, start)
		return nil, fmt.Errorf("%w: params (%d, %d) outside [%d, %d]", ErrInvalidInput, paramA, paramB, e.params.Min, e.params.Max)
	}

	s := newSession(paramA, paramB)
	logger := e.logger.With("session_id", s.id, "param_a", paramA, "param_b", paramB)

	err := ctx.Err()
	if err == nil {
		err = resolve(ctx, s)
	}
	// A cancelled caller has moved on; report cancellation even if a batch also failed
	if ctx.Err() != nil {
		err = cancelledError(ctx)
	}

	if err != nil {
		if IsCancelled(err) {
			e.recordCancelled()
			e.observe(metrics.OutcomeCancelled, start)
			logger.DebugContext(ctx, "discovery cancelled", "resolved_points", len(s.resolved))
		} else {
			e.recordFailed()
			e.observe(metrics.OutcomeFailed, start)
			logger.WarnContext(ctx, "discovery failed", "resolved_points", len(s.resolved), "error", err)
		}
		return nil, err
	}

	results := s.collect()
	report := &Report{
		SessionID:      s.id,
		Results:        results,
		Boundaries:     s.boundaries,
		CoarseLookups:  s.coarseLookups,
		RefineLookups:  s.refineLookups,
		RemoteCalls:    s.remoteCalls,
		CacheHits:      s.cacheHits,
		ResolvedPoints: len(s.resolved),
		Duration:       time.Since(start),
	}

	e.recordDiscovery()
	e.observe(metrics.OutcomeSuccess, start)
	logger.InfoContext(ctx, "discovery complete",
		"labels", len(results),
		"boundaries", len(s.boundaries),
		"remote_calls", s.remoteCalls,
		"cache_hits", s.cacheHits,
		"duration", report.Duration,
	)

	return report, nil
}

// adaptive runs coarse sampling, boundary detection and refinement
func (e *Engine) adaptive(ctx context.Context, s *session) error {
	if err := e.coarse(ctx, s); err != nil {
		return err
	}

	points := refinementPoints(s.boundaries, s.resolved)
	e.logger.DebugContext(ctx, "refining boundaries",
		"session_id", s.id,
		"boundaries", len(s.boundaries),
		"points", len(points),
	)

	dispatched, err := e.resolve(ctx, s, points, metrics.PhaseRefine)
	s.refineLookups += dispatched
	return err
}

// coarse runs Phase 1 and Phase 2
func (e *Engine) coarse(ctx context.Context, s *session) error {
	points := coarsePoints(e.coarseStep)

	dispatched, err := e.resolve(ctx, s, points, metrics.PhaseCoarse)
	s.coarseLookups += dispatched
	if err != nil {
		return err
	}

	s.boundaries = detectBoundaries(points, s.resolved)
	return nil
}

// exhaustive resolves every point in the domain
func (e *Engine) exhaustive(ctx context.Context, s *session) error {
	points := allPoints()

	dispatched, err := e.resolve(ctx, s, points, metrics.PhaseExhaustive)
	s.coarseLookups += dispatched
	if err != nil {
		return err
	}

	s.boundaries = detectBoundaries(coarsePoints(e.coarseStep), s.resolved)
	return nil
}

// ResetCache drops every cached lookup
func (e *Engine) ResetCache() {
	e.cache.Reset()
}

// Cache returns the engine's lookup cache
func (e *Engine) Cache() Cache {
	return e.cache
}

// begin registers a discovery unless the engine is closing
func (e *Engine) begin() error {
	e.closeLock.RLock()
	defer e.closeLock.RUnlock()

	if e.closing {
		return ErrClosed
	}
	e.activeDiscoveries.Add(1)
	return nil
}

// Close rejects new discoveries and waits for in-flight ones to return.
// It's safe to call Close multiple times.
func (e *Engine) Close() error {
	e.shutdownOnce.Do(func() {
		e.closeLock.Lock()
		e.closing = true
		e.closeLock.Unlock()

		e.activeDiscoveries.Wait()
	})
	return nil
}

// GetMetrics returns current engine metrics
func (e *Engine) GetMetrics() Metrics {
	e.metricsLock.RLock()
	defer e.metricsLock.RUnlock()

	var cacheHitRate float32
	if total := e.cacheHits + e.remoteCalls; total > 0 {
		cacheHitRate = float32(e.cacheHits) / float32(total) * 100
	}

	return Metrics{
		Discoveries:  e.discoveries,
		Cancelled:    e.cancelled,
		Failed:       e.failed,
		RemoteCalls:  e.remoteCalls,
		CacheHits:    e.cacheHits,
		CacheEntries: e.cache.Len(),
		CacheHitRate: cacheHitRate,
	}
}

func (e *Engine) observe(outcome string, start time.Time) {
	if e.promMetrics != nil {
		e.promMetrics.ObserveDiscovery(outcome, start)
	}
}

func (e *Engine) recordDiscovery() {
	e.metricsLock.Lock()
	defer e.metricsLock.Unlock()
	e.discoveries++
}

func (e *Engine) recordCancelled() {
	e.metricsLock.Lock()
	defer e.metricsLock.Unlock()
	e.cancelled++
}

func (e *Engine) recordFailed() {
	e.metricsLock.Lock()
	defer e.metricsLock.Unlock()
	e.failed++
}

func (e *Engine) recordRemoteCall() {
	e.metricsLock.Lock()
	defer e.metricsLock.Unlock()
	e.remoteCalls++
}

func (e *Engine) recordCacheHits(n int) {
	if n == 0 {
		return
	}

	e.metricsLock.Lock()
	e.cacheHits += n
	e.metricsLock.Unlock()

	if e.promMetrics != nil {
		e.promMetrics.AddCacheHits(n)
	}
}
