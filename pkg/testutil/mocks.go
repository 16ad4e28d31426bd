package testutil

import (
	"context"
	"sync"

	"github.com/FrenchMajesty/hue-discovery/pkg/types"
)

// MockClassifier is a mock implementation of RemoteClassifier for testing
type MockClassifier struct {
	ClassifyFunc func(ctx context.Context, key types.QueryKey) (types.ClassificationResult, error)

	mu          sync.Mutex
	CallCount   int
	Calls       []types.QueryKey
	inFlight    int
	MaxInFlight int
}

// NewLabelClassifier returns a MockClassifier that labels each point with label(point)
func NewLabelClassifier(label func(p types.DomainPoint) string) *MockClassifier {
	return &MockClassifier{
		ClassifyFunc: func(ctx context.Context, key types.QueryKey) (types.ClassificationResult, error) {
			return types.ClassificationResult{
				Key:     key,
				Label:   label(key.Point),
				Payload: map[string]any{"point": int(key.Point)},
			}, nil
		},
	}
}

// Band labels the inclusive point range [From, To]
type Band struct {
	From  int
	To    int
	Label string
}

// NewBandClassifier returns a MockClassifier labelling points by the first
// band containing them. Points outside every band are unnamed.
func NewBandClassifier(bands ...Band) *MockClassifier {
	return NewLabelClassifier(func(p types.DomainPoint) string {
		for _, b := range bands {
			if int(p) >= b.From && int(p) <= b.To {
				return b.Label
			}
		}
		return types.UnnamedLabel
	})
}

func (m *MockClassifier) Classify(ctx context.Context, key types.QueryKey) (types.ClassificationResult, error) {
	m.mu.Lock()
	m.CallCount++
	m.Calls = append(m.Calls, key)
	m.inFlight++
	if m.inFlight > m.MaxInFlight {
		m.MaxInFlight = m.inFlight
	}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if m.ClassifyFunc != nil {
		return m.ClassifyFunc(ctx, key)
	}

	// Default: everything is unnamed
	return types.ClassificationResult{Key: key, Label: types.UnnamedLabel}, nil
}

// Count returns the number of Classify calls so far
func (m *MockClassifier) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// Peak returns the highest number of concurrent Classify calls observed
func (m *MockClassifier) Peak() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.MaxInFlight
}

// Points returns the points passed to Classify, in call order
func (m *MockClassifier) Points() []types.DomainPoint {
	m.mu.Lock()
	defer m.mu.Unlock()

	points := make([]types.DomainPoint, len(m.Calls))
	for i, k := range m.Calls {
		points[i] = k.Point
	}
	return points
}

// Reset clears recorded calls
func (m *MockClassifier) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallCount = 0
	m.Calls = nil
	m.MaxInFlight = 0
}
