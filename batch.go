package discovery

import (
	"context"

	"github.com/FrenchMajesty/hue-discovery/pkg/types"
	"golang.org/x/sync/errgroup"
)

// resolve classifies points into the session, cache first. Cache misses are
// dispatched in sequential batches of at most batchSize concurrent lookups.
// The context is checked before and after every batch. It returns the number
// of points dispatched to the classifier.
func (e *Engine) resolve(ctx context.Context, s *session, points []types.DomainPoint, phase string) (int, error) {
	var pending []types.DomainPoint
	hits := 0
	for _, p := range points {
		if _, done := s.resolved[p]; done {
			continue
		}
		if result, ok := e.cache.Get(s.key(p)); ok {
			s.resolved[p] = result
			hits++
			continue
		}
		pending = append(pending, p)
	}
	s.cacheHits += hits
	e.recordCacheHits(hits)

	dispatched := 0
	for start := 0; start < len(pending); start += e.batchSize {
		if ctx.Err() != nil {
			return dispatched, cancelledError(ctx)
		}

		end := min(start+e.batchSize, len(pending))
		batch := pending[start:end]
		dispatched += len(batch)
		s.remoteCalls += len(batch)
		if e.promMetrics != nil {
			e.promMetrics.AddRemoteLookups(phase, len(batch))
		}

		err := e.dispatchBatch(ctx, s, batch)
		if err != nil {
			return dispatched, err
		}

		if ctx.Err() != nil {
			return dispatched, cancelledError(ctx)
		}
	}

	return dispatched, nil
}

// dispatchBatch looks up every point of batch concurrently and waits for all
// of them to settle. Lookups run detached from the caller's cancellation so a
// dispatched call can finish and be cached. Successful results are stored in
// the session even when a sibling fails.
func (e *Engine) dispatchBatch(ctx context.Context, s *session, batch []types.DomainPoint) error {
	lookupCtx := context.WithoutCancel(ctx)
	results := make([]types.ClassificationResult, len(batch))
	ok := make([]bool, len(batch))

	var g errgroup.Group
	g.SetLimit(e.batchSize)
	for i, p := range batch {
		key := s.key(p)
		g.Go(func() error {
			result, err := e.lookup(lookupCtx, key)
			if err != nil {
				return err
			}
			results[i] = result
			ok[i] = true
			return nil
		})
	}
	err := g.Wait()

	for i, p := range batch {
		if ok[i] {
			s.resolved[p] = results[i]
		}
	}
	return err
}

// lookup returns the cached result for key or fetches and caches it.
// Concurrent lookups of the same key across discoveries share one remote call.
func (e *Engine) lookup(ctx context.Context, key types.QueryKey) (types.ClassificationResult, error) {
	if result, ok := e.cache.Get(key); ok {
		return result, nil
	}

	v, err, _ := e.inflight.Do(key.String(), func() (any, error) {
		if result, ok := e.cache.Get(key); ok {
			return result, nil
		}

		callCtx, cancel := context.WithTimeout(ctx, e.lookupTimeout)
		defer cancel()

		e.recordRemoteCall()
		result, err := e.classifier.Classify(callCtx, key)
		if err != nil {
			return nil, asRemoteError(key, err)
		}
		result.Key = key

		return e.cache.Put(key, result), nil
	})
	if err != nil {
		return types.ClassificationResult{}, err
	}
	return v.(types.ClassificationResult), nil
}
