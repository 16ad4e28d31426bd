package discovery

import (
	"context"

	"github.com/FrenchMajesty/hue-discovery/pkg/types"
)

// RemoteClassifier labels a single domain point. Failures should be returned
// as *types.RemoteError so callers can tell connectivity from data-shape
// problems; any other error is treated as a network failure.
type RemoteClassifier interface {
	Classify(ctx context.Context, key types.QueryKey) (types.ClassificationResult, error)
}

// Cache memoizes classification results. Put must be insert-if-absent and safe
// for concurrent use.
type Cache interface {
	Get(key types.QueryKey) (types.ClassificationResult, bool)
	Put(key types.QueryKey, result types.ClassificationResult) types.ClassificationResult
	Has(key types.QueryKey) bool
	Len() int
	Reset()
}
