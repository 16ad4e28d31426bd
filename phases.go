package discovery

import (
	"slices"
	"strings"

	"github.com/FrenchMajesty/hue-discovery/pkg/types"
)

// coarsePoints returns the Phase 1 sample points {0, step, 2*step, ...}
func coarsePoints(step int) []types.DomainPoint {
	points := make([]types.DomainPoint, 0, types.DomainSize/step)
	for p := 0; p < types.DomainSize; p += step {
		points = append(points, types.DomainPoint(p))
	}
	return points
}

// allPoints returns every point of the domain in ascending order
func allPoints() []types.DomainPoint {
	return coarsePoints(1)
}

// detectBoundaries pairs each coarse point with its cyclic successor and
// records a range wherever both labels are named and differ. The last point
// pairs with the first.
func detectBoundaries(coarse []types.DomainPoint, resolved map[types.DomainPoint]types.ClassificationResult) []types.BoundaryRange {
	var ranges []types.BoundaryRange
	if len(coarse) < 2 {
		return ranges
	}

	for i, start := range coarse {
		end := coarse[(i+1)%len(coarse)]

		a, okA := resolved[start]
		b, okB := resolved[end]
		if !okA || !okB || !a.Named() || !b.Named() {
			continue
		}

		if labelKey(a.Label) != labelKey(b.Label) {
			ranges = append(ranges, types.BoundaryRange{Start: start, End: end})
		}
	}
	return ranges
}

// refinementPoints lists the interior points of every range that are not yet
// resolved. Points shared between ranges appear once.
func refinementPoints(ranges []types.BoundaryRange, resolved map[types.DomainPoint]types.ClassificationResult) []types.DomainPoint {
	seen := make(map[types.DomainPoint]struct{})
	var points []types.DomainPoint

	for _, r := range ranges {
		for _, p := range r.Interior() {
			if _, done := resolved[p]; done {
				continue
			}
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			points = append(points, p)
		}
	}
	return points
}

// labelKey is the identity used to decide whether two labels are the same
func labelKey(label string) string {
	return strings.TrimSpace(label)
}

// sortedPoints returns the keys of resolved in ascending order
func sortedPoints(resolved map[types.DomainPoint]types.ClassificationResult) []types.DomainPoint {
	points := make([]types.DomainPoint, 0, len(resolved))
	for p := range resolved {
		points = append(points, p)
	}
	slices.Sort(points)
	return points
}
