package discovery

import (
	"github.com/FrenchMajesty/hue-discovery/pkg/types"
	"github.com/google/uuid"
)

// session is the private state of one discovery call
type session struct {
	id       string
	paramA   int
	paramB   int
	resolved map[types.DomainPoint]types.ClassificationResult
	seen     map[string]struct{}

	boundaries    []types.BoundaryRange
	coarseLookups int
	refineLookups int
	remoteCalls   int
	cacheHits     int
}

func newSession(paramA, paramB int) *session {
	return &session{
		id:       uuid.New().String(),
		paramA:   paramA,
		paramB:   paramB,
		resolved: make(map[types.DomainPoint]types.ClassificationResult),
		seen:     make(map[string]struct{}),
	}
}

func (s *session) key(p types.DomainPoint) types.QueryKey {
	return types.QueryKey{Point: p, ParamA: s.paramA, ParamB: s.paramB}
}

// collect walks resolved points in ascending order and keeps the first result
// for each distinct named label
func (s *session) collect() []types.ClassificationResult {
	results := make([]types.ClassificationResult, 0)
	for _, p := range sortedPoints(s.resolved) {
		result := s.resolved[p]
		if !result.Named() {
			continue
		}

		label := labelKey(result.Label)
		if _, dup := s.seen[label]; dup {
			continue
		}
		s.seen[label] = struct{}{}
		results = append(results, result)
	}
	return results
}
