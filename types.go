package discovery

import (
	"time"

	"github.com/FrenchMajesty/hue-discovery/pkg/types"
)

// Report is the full outcome of one discovery call
type Report struct {
	// SessionID identifies the discovery in logs
	SessionID string

	// Results holds one entry per distinct named label, ordered by ascending point
	Results []types.ClassificationResult

	// Boundaries are the coarse ranges whose end labels disagreed
	Boundaries []types.BoundaryRange

	// CoarseLookups and RefineLookups count points dispatched to the classifier in each phase
	CoarseLookups int
	RefineLookups int

	// RemoteCalls is the total number of points this call dispatched to the classifier
	RemoteCalls int

	// CacheHits is the number of points served from the cache without a remote call
	CacheHits int

	// ResolvedPoints is the number of distinct points classified in this call
	ResolvedPoints int

	// Duration is the wall time of the call
	Duration time.Duration
}

// Metrics provides statistics about the engine since it was created
type Metrics struct {
	// Discoveries is the number of discovery calls that returned results
	Discoveries int

	// Cancelled is the number of discovery calls that ended cancelled
	Cancelled int

	// Failed is the number of discovery calls that ended with a remote error
	Failed int

	// RemoteCalls is the number of classifier invocations
	RemoteCalls int

	// CacheHits is the number of points resolved from the cache
	CacheHits int

	// CacheEntries is the current size of the lookup cache
	CacheEntries int

	// CacheHitRate is the percentage of resolved points served from cache
	CacheHitRate float32
}
