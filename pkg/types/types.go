package types

import (
	"fmt"
	"strings"
)

// DomainSize is the number of points in the cyclic hue domain
const DomainSize = 360

// UnnamedLabel is the sentinel label for a point with no meaningful classification
const UnnamedLabel = "unnamed"

// DomainPoint is a hue in degrees, in [0, 360). Point 359's successor is 0.
type DomainPoint int

// Normalize reduces any integer into the cyclic domain
func Normalize(p int) DomainPoint {
	p %= DomainSize
	if p < 0 {
		p += DomainSize
	}
	return DomainPoint(p)
}

// Valid reports whether the point lies in [0, 360)
func (p DomainPoint) Valid() bool {
	return p >= 0 && p < DomainSize
}

// Next returns the cyclic successor of p
func (p DomainPoint) Next() DomainPoint {
	return Normalize(int(p) + 1)
}

// QueryKey uniquely identifies one remote lookup. It is comparable and used
// directly as a map key.
type QueryKey struct {
	Point  DomainPoint
	ParamA int
	ParamB int
}

func (k QueryKey) String() string {
	return fmt.Sprintf("%d/%d/%d", k.Point, k.ParamA, k.ParamB)
}

// ClassificationResult is what a RemoteClassifier returns for a QueryKey.
// Payload is opaque to the engine and must not be mutated after creation.
type ClassificationResult struct {
	Key     QueryKey
	Label   string
	Payload map[string]any
}

// Named reports whether the result carries a meaningful label
func (r ClassificationResult) Named() bool {
	return IsNamed(r.Label)
}

// IsNamed reports whether label is neither empty nor the unnamed sentinel
func IsNamed(label string) bool {
	label = strings.TrimSpace(label)
	return label != "" && !strings.EqualFold(label, UnnamedLabel)
}

// BoundaryRange is the cyclic span between two adjacent coarse samples whose
// labels differ. End may be less than Start when the range wraps past 359.
type BoundaryRange struct {
	Start DomainPoint
	End   DomainPoint
}

// Length returns the cyclic distance from Start to End
func (b BoundaryRange) Length() int {
	return int(Normalize(int(b.End) - int(b.Start)))
}

// Interior returns every point strictly between Start and End in cyclic order
func (b BoundaryRange) Interior() []DomainPoint {
	end := int(b.End)
	if end < int(b.Start) {
		end += DomainSize
	}

	if end-int(b.Start) <= 1 {
		return nil
	}

	points := make([]DomainPoint, 0, end-int(b.Start)-1)
	for p := int(b.Start) + 1; p < end; p++ {
		points = append(points, Normalize(p))
	}
	return points
}
