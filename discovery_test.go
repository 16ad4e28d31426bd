package discovery

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/FrenchMajesty/hue-discovery/internal/metrics"
	"github.com/FrenchMajesty/hue-discovery/pkg/cache"
	"github.com/FrenchMajesty/hue-discovery/pkg/testutil"
	"github.com/FrenchMajesty/hue-discovery/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, classifier RemoteClassifier, mutate ...func(cfg *Config)) *Engine {
	t.Helper()

	cfg := Config{
		Classifier: classifier,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, m := range mutate {
		m(&cfg)
	}

	engine, err := NewEngine(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })
	return engine
}

// redOrange labels 0-14 Red and 15-25 Orange, leaving the rest unnamed, so
// the only boundary is between coarse points 10 and 20
func redOrange() *testutil.MockClassifier {
	return testutil.NewBandClassifier(
		testutil.Band{From: 0, To: 14, Label: "Red"},
		testutil.Band{From: 15, To: 25, Label: "Orange"},
	)
}

func labels(results []types.ClassificationResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Label
	}
	return out
}

func points(results []types.ClassificationResult) []types.DomainPoint {
	out := make([]types.DomainPoint, len(results))
	for i, r := range results {
		out[i] = r.Key.Point
	}
	return out
}

func pointRange(from, to int) []types.DomainPoint {
	var out []types.DomainPoint
	for p := from; p <= to; p++ {
		out = append(out, types.DomainPoint(p))
	}
	return out
}

func TestDiscover_RefinesSingleBoundary(t *testing.T) {
	classifier := redOrange()
	engine := newTestEngine(t, classifier)

	report, err := engine.DiscoverReport(context.Background(), 50, 50)
	require.NoError(t, err)

	assert.Equal(t, []types.BoundaryRange{{Start: 10, End: 20}}, report.Boundaries)
	assert.Equal(t, []string{"Red", "Orange"}, labels(report.Results))
	assert.Equal(t, []types.DomainPoint{0, 15}, points(report.Results))

	assert.Equal(t, 36, report.CoarseLookups)
	assert.Equal(t, 9, report.RefineLookups)
	assert.Equal(t, 45, classifier.Count())

	// Only the interior of the boundary is refined
	calls := classifier.Points()
	assert.ElementsMatch(t, pointRange(11, 19), calls[36:])
}

func TestDiscover_UniformLabel(t *testing.T) {
	classifier := testutil.NewLabelClassifier(func(p types.DomainPoint) string { return "Blue" })
	engine := newTestEngine(t, classifier)

	report, err := engine.DiscoverReport(context.Background(), 50, 50)
	require.NoError(t, err)

	assert.Empty(t, report.Boundaries)
	require.Len(t, report.Results, 1)
	assert.Equal(t, "Blue", report.Results[0].Label)
	assert.Equal(t, types.DomainPoint(0), report.Results[0].Key.Point)
	assert.Equal(t, 36, classifier.Count())
}

func TestDiscover_AllUnnamed(t *testing.T) {
	engine := newTestEngine(t, &testutil.MockClassifier{})

	results, err := engine.Discover(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestDiscover_UniqueLabelsInAscendingOrder(t *testing.T) {
	// Alternating bands make every label reappear several times around the circle
	classifier := testutil.NewLabelClassifier(func(p types.DomainPoint) string {
		switch (int(p) / 45) % 3 {
		case 0:
			return "Red"
		case 1:
			return "Green"
		default:
			return "Blue"
		}
	})
	engine := newTestEngine(t, classifier)

	results, err := engine.Discover(context.Background(), 100, 50)
	require.NoError(t, err)

	assert.Equal(t, []string{"Red", "Green", "Blue"}, labels(results))
	assert.Equal(t, []types.DomainPoint{0, 45, 90}, points(results))
	for _, r := range results {
		assert.Equal(t, 100, r.Key.ParamA)
		assert.Equal(t, 50, r.Key.ParamB)
	}
}

func TestDiscover_LabelsComparedTrimmed(t *testing.T) {
	classifier := testutil.NewLabelClassifier(func(p types.DomainPoint) string {
		if p%20 == 0 {
			return "Teal "
		}
		return "Teal"
	})
	engine := newTestEngine(t, classifier)

	report, err := engine.DiscoverReport(context.Background(), 50, 50)
	require.NoError(t, err)
	assert.Empty(t, report.Boundaries)
	assert.Len(t, report.Results, 1)
}

func TestDiscover_Wraparound(t *testing.T) {
	classifier := testutil.NewBandClassifier(
		testutil.Band{From: 300, To: 354, Label: "Magenta"},
		testutil.Band{From: 355, To: 359, Label: "Red"},
		testutil.Band{From: 0, To: 5, Label: "Red"},
		testutil.Band{From: 6, To: 20, Label: "Orange"},
	)
	engine := newTestEngine(t, classifier)

	report, err := engine.DiscoverReport(context.Background(), 50, 50)
	require.NoError(t, err)

	assert.Contains(t, report.Boundaries, types.BoundaryRange{Start: 350, End: 0})
	assert.Contains(t, report.Boundaries, types.BoundaryRange{Start: 0, End: 10})

	refined := classifier.Points()[36:]
	assert.Subset(t, refined, pointRange(351, 359))
	assert.Subset(t, refined, pointRange(1, 9))

	assert.Equal(t, []string{"Red", "Orange", "Magenta"}, labels(report.Results))
	assert.Equal(t, []types.DomainPoint{0, 6, 300}, points(report.Results))
}

func TestDiscover_CacheAvoidsRepeatCalls(t *testing.T) {
	classifier := redOrange()
	engine := newTestEngine(t, classifier)
	ctx := context.Background()

	first, err := engine.Discover(ctx, 50, 50)
	require.NoError(t, err)
	calls := classifier.Count()

	report, err := engine.DiscoverReport(ctx, 50, 50)
	require.NoError(t, err)

	assert.Equal(t, calls, classifier.Count(), "second discovery should be served from cache")
	assert.Equal(t, first, report.Results)
	assert.Equal(t, 0, report.RemoteCalls)
	assert.Equal(t, 45, report.CacheHits)

	// Different params are different keys
	_, err = engine.Discover(ctx, 50, 60)
	require.NoError(t, err)
	assert.Equal(t, calls*2, classifier.Count())
}

func TestDiscover_SharedCacheAcrossEngines(t *testing.T) {
	shared := cache.New()
	classifier := redOrange()

	a := newTestEngine(t, classifier, func(cfg *Config) { cfg.Cache = shared })
	b := newTestEngine(t, classifier, func(cfg *Config) { cfg.Cache = shared })

	_, err := a.Discover(context.Background(), 40, 40)
	require.NoError(t, err)
	_, err = b.Discover(context.Background(), 40, 40)
	require.NoError(t, err)

	assert.Equal(t, 45, classifier.Count())
	assert.Equal(t, 45, shared.Len())
}

func TestDiscover_ResetCache(t *testing.T) {
	classifier := redOrange()
	engine := newTestEngine(t, classifier)
	ctx := context.Background()

	_, err := engine.Discover(ctx, 50, 50)
	require.NoError(t, err)

	engine.ResetCache()
	assert.Equal(t, 0, engine.Cache().Len())

	_, err = engine.Discover(ctx, 50, 50)
	require.NoError(t, err)
	assert.Equal(t, 90, classifier.Count())
}

func TestDiscover_InvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		paramA int
		paramB int
	}{
		{name: "negative paramA", paramA: -1, paramB: 50},
		{name: "paramA above range", paramA: 101, paramB: 50},
		{name: "paramB above range", paramA: 50, paramB: 250},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classifier := redOrange()
			engine := newTestEngine(t, classifier)

			results, err := engine.Discover(context.Background(), tt.paramA, tt.paramB)
			require.ErrorIs(t, err, ErrInvalidInput)
			assert.Nil(t, results)
			assert.Equal(t, 0, classifier.Count())
		})
	}
}

func TestDiscover_CustomParamRange(t *testing.T) {
	engine := newTestEngine(t, redOrange(), func(cfg *Config) {
		cfg.ParamRange = ParamRange{Min: 10, Max: 90}
	})

	_, err := engine.Discover(context.Background(), 5, 50)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = engine.Discover(context.Background(), 90, 10)
	assert.NoError(t, err)
}

func TestDiscover_AlreadyCancelled(t *testing.T) {
	classifier := redOrange()
	engine := newTestEngine(t, classifier)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := engine.Discover(ctx, 50, 50)
	require.ErrorIs(t, err, ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, results)
	assert.Equal(t, 0, classifier.Count())
	assert.Equal(t, 1, engine.GetMetrics().Cancelled)
}

func TestDiscover_CancelledDuringRefinement(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	base := redOrange()
	classifier := &testutil.MockClassifier{
		ClassifyFunc: func(c context.Context, key types.QueryKey) (types.ClassificationResult, error) {
			if key.Point == 13 {
				cancel()
			}
			// Lookups are detached from the caller's cancellation
			assert.NoError(t, c.Err())
			return base.ClassifyFunc(c, key)
		},
	}
	engine := newTestEngine(t, classifier, func(cfg *Config) { cfg.BatchSize = 5 })

	results, err := engine.Discover(ctx, 50, 50)
	require.ErrorIs(t, err, ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, IsCancelled(err))
	assert.Nil(t, results)

	// The batch holding point 13 settled and was cached, the next one never ran
	lookupCache := engine.Cache()
	for _, p := range pointRange(11, 15) {
		assert.True(t, lookupCache.Has(types.QueryKey{Point: p, ParamA: 50, ParamB: 50}), "point %d", p)
	}
	for _, p := range pointRange(16, 19) {
		assert.False(t, lookupCache.Has(types.QueryKey{Point: p, ParamA: 50, ParamB: 50}), "point %d", p)
	}
	assert.Equal(t, 41, classifier.Count())

	// A rerun only fetches what is missing
	report, err := engine.DiscoverReport(context.Background(), 50, 50)
	require.NoError(t, err)
	assert.Equal(t, 4, report.RemoteCalls)
	assert.Equal(t, []string{"Red", "Orange"}, labels(report.Results))
}

func TestDiscover_CancellationWinsOverRemoteError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	classifier := &testutil.MockClassifier{
		ClassifyFunc: func(c context.Context, key types.QueryKey) (types.ClassificationResult, error) {
			if key.Point == 0 {
				cancel()
				return types.ClassificationResult{}, errors.New("connection reset")
			}
			return types.ClassificationResult{Key: key, Label: "Red"}, nil
		},
	}
	engine := newTestEngine(t, classifier)

	_, err := engine.Discover(ctx, 50, 50)
	require.ErrorIs(t, err, ErrCancelled)
	_, isRemote := AsRemoteError(err)
	assert.False(t, isRemote)

	m := engine.GetMetrics()
	assert.Equal(t, 1, m.Cancelled)
	assert.Equal(t, 0, m.Failed)
}

func TestDiscover_RemoteErrorPropagates(t *testing.T) {
	statusErr := &types.RemoteError{Kind: types.RemoteErrorStatus, StatusCode: 503, Err: errors.New("unavailable")}

	base := redOrange()
	classifier := &testutil.MockClassifier{
		ClassifyFunc: func(ctx context.Context, key types.QueryKey) (types.ClassificationResult, error) {
			if key.Point == 20 {
				return types.ClassificationResult{}, statusErr
			}
			return base.ClassifyFunc(ctx, key)
		},
	}
	engine := newTestEngine(t, classifier, func(cfg *Config) { cfg.BatchSize = 36 })

	results, err := engine.Discover(context.Background(), 50, 50)
	require.Error(t, err)
	assert.Nil(t, results)
	assert.False(t, IsCancelled(err))

	remoteErr, ok := AsRemoteError(err)
	require.True(t, ok)
	assert.Equal(t, types.RemoteErrorStatus, remoteErr.Kind)
	assert.Equal(t, 503, remoteErr.StatusCode)
	assert.True(t, remoteErr.IsConnectivity())

	// Siblings in the failed batch were still cached
	assert.Equal(t, 35, engine.Cache().Len())
	assert.Equal(t, 1, engine.GetMetrics().Failed)
}

func TestDiscover_PlainErrorBecomesNetworkError(t *testing.T) {
	classifier := &testutil.MockClassifier{
		ClassifyFunc: func(ctx context.Context, key types.QueryKey) (types.ClassificationResult, error) {
			return types.ClassificationResult{}, io.ErrUnexpectedEOF
		},
	}
	engine := newTestEngine(t, classifier)

	_, err := engine.Discover(context.Background(), 50, 50)
	remoteErr, ok := AsRemoteError(err)
	require.True(t, ok)
	assert.Equal(t, types.RemoteErrorNetwork, remoteErr.Kind)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, 0, engine.Cache().Len())
}

func TestDiscover_BatchSizeBoundsConcurrency(t *testing.T) {
	base := redOrange()
	classifier := &testutil.MockClassifier{
		ClassifyFunc: func(ctx context.Context, key types.QueryKey) (types.ClassificationResult, error) {
			time.Sleep(2 * time.Millisecond)
			return base.ClassifyFunc(ctx, key)
		},
	}
	engine := newTestEngine(t, classifier, func(cfg *Config) { cfg.BatchSize = 3 })

	_, err := engine.Discover(context.Background(), 50, 50)
	require.NoError(t, err)

	assert.LessOrEqual(t, classifier.Peak(), 3)
	assert.Equal(t, 45, classifier.Count())
}

func TestDiscover_LookupTimeout(t *testing.T) {
	classifier := &testutil.MockClassifier{
		ClassifyFunc: func(ctx context.Context, key types.QueryKey) (types.ClassificationResult, error) {
			<-ctx.Done()
			return types.ClassificationResult{}, ctx.Err()
		},
	}
	engine := newTestEngine(t, classifier, func(cfg *Config) {
		cfg.LookupTimeout = 10 * time.Millisecond
		cfg.BatchSize = 36
	})

	_, err := engine.Discover(context.Background(), 50, 50)
	remoteErr, ok := AsRemoteError(err)
	require.True(t, ok)
	assert.ErrorIs(t, remoteErr, context.DeadlineExceeded)
}

func TestDiscover_ConcurrentCallsShareLookups(t *testing.T) {
	release := make(chan struct{})
	base := redOrange()
	classifier := &testutil.MockClassifier{
		ClassifyFunc: func(ctx context.Context, key types.QueryKey) (types.ClassificationResult, error) {
			<-release
			return base.ClassifyFunc(ctx, key)
		},
	}
	engine := newTestEngine(t, classifier)

	var wg sync.WaitGroup
	results := make([][]types.ClassificationResult, 4)
	errs := make([]error, 4)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = engine.Discover(context.Background(), 50, 50)
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i])
	}
	assert.Equal(t, 45, classifier.Count())
}

func TestDiscoverExhaustive(t *testing.T) {
	// Teal hides between coarse samples 20 and 30, both Orange
	classifier := testutil.NewBandClassifier(
		testutil.Band{From: 0, To: 14, Label: "Red"},
		testutil.Band{From: 22, To: 24, Label: "Teal"},
		testutil.Band{From: 15, To: 39, Label: "Orange"},
	)
	engine := newTestEngine(t, classifier)
	ctx := context.Background()

	adaptive, err := engine.Discover(ctx, 50, 50)
	require.NoError(t, err)
	assert.Equal(t, []string{"Red", "Orange"}, labels(adaptive))

	report, err := engine.DiscoverExhaustive(ctx, 50, 50)
	require.NoError(t, err)
	assert.Equal(t, []string{"Red", "Orange", "Teal"}, labels(report.Results))
	assert.Equal(t, []types.DomainPoint{0, 15, 22}, points(report.Results))
	assert.Equal(t, types.DomainSize, report.ResolvedPoints)
	assert.Equal(t, types.DomainSize, classifier.Count())
	assert.Equal(t, types.DomainSize-45, report.RemoteCalls)
}

func TestBoundaries(t *testing.T) {
	classifier := redOrange()
	engine := newTestEngine(t, classifier)

	ranges, err := engine.Boundaries(context.Background(), 50, 50)
	require.NoError(t, err)
	assert.Equal(t, []types.BoundaryRange{{Start: 10, End: 20}}, ranges)
	assert.Equal(t, 36, classifier.Count())
}

func TestCoarseStep(t *testing.T) {
	classifier := redOrange()
	engine := newTestEngine(t, classifier, func(cfg *Config) { cfg.CoarseStep = 20 })

	report, err := engine.DiscoverReport(context.Background(), 50, 50)
	require.NoError(t, err)

	assert.Equal(t, 18, report.CoarseLookups)
	assert.Equal(t, []types.BoundaryRange{{Start: 0, End: 20}}, report.Boundaries)
	assert.Equal(t, []string{"Red", "Orange"}, labels(report.Results))
}

func TestNewEngine_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "step does not divide domain", cfg: Config{CoarseStep: 7}},
		{name: "step of one", cfg: Config{CoarseStep: 1}},
		{name: "negative batch size", cfg: Config{BatchSize: -1}},
		{name: "inverted param range", cfg: Config{ParamRange: ParamRange{Min: 50, Max: 10}}},
		{name: "negative timeout", cfg: Config{LookupTimeout: -time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.Classifier = &testutil.MockClassifier{}
			_, err := NewEngine(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestClose(t *testing.T) {
	engine := newTestEngine(t, redOrange())

	require.NoError(t, engine.Close())
	require.NoError(t, engine.Close())

	_, err := engine.Discover(context.Background(), 50, 50)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestClose_WaitsForInFlight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once

	base := redOrange()
	classifier := &testutil.MockClassifier{
		ClassifyFunc: func(ctx context.Context, key types.QueryKey) (types.ClassificationResult, error) {
			once.Do(func() { close(started) })
			<-release
			return base.ClassifyFunc(ctx, key)
		},
	}
	engine := newTestEngine(t, classifier)

	done := make(chan error, 1)
	go func() {
		_, err := engine.Discover(context.Background(), 50, 50)
		done <- err
	}()
	<-started

	closed := make(chan struct{})
	go func() {
		engine.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned while a discovery was in flight")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	assert.NoError(t, <-done)
	<-closed
}

func TestGetMetrics(t *testing.T) {
	engine := newTestEngine(t, redOrange())
	ctx := context.Background()

	_, err := engine.Discover(ctx, 50, 50)
	require.NoError(t, err)
	_, err = engine.Discover(ctx, 50, 50)
	require.NoError(t, err)

	m := engine.GetMetrics()
	assert.Equal(t, 2, m.Discoveries)
	assert.Equal(t, 45, m.RemoteCalls)
	assert.Equal(t, 45, m.CacheHits)
	assert.Equal(t, 45, m.CacheEntries)
	assert.InDelta(t, 50.0, m.CacheHitRate, 0.01)
}

func TestPrometheusMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	engine := newTestEngine(t, redOrange(), func(cfg *Config) { cfg.Registerer = reg })
	ctx := context.Background()

	_, err := engine.Discover(ctx, 50, 50)
	require.NoError(t, err)
	_, err = engine.Discover(ctx, 50, 50)
	require.NoError(t, err)
	_, err = engine.Discover(ctx, 500, 50)
	require.ErrorIs(t, err, ErrInvalidInput)

	pm := engine.promMetrics
	assert.Equal(t, 2.0, promtestutil.ToFloat64(pm.Discoveries.WithLabelValues(metrics.OutcomeSuccess)))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(pm.Discoveries.WithLabelValues(metrics.OutcomeInvalid)))
	assert.Equal(t, 36.0, promtestutil.ToFloat64(pm.RemoteLookups.WithLabelValues(metrics.PhaseCoarse)))
	assert.Equal(t, 9.0, promtestutil.ToFloat64(pm.RemoteLookups.WithLabelValues(metrics.PhaseRefine)))
	assert.Equal(t, 45.0, promtestutil.ToFloat64(pm.CacheHits))

	count, err := promtestutil.GatherAndCount(reg, "hue_discovery_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
