package discovery

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/FrenchMajesty/hue-discovery/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// DefaultBatchSize is the number of remote lookups dispatched concurrently per batch
	DefaultBatchSize = 20

	// DefaultCoarseStep is the spacing of Phase 1 samples, giving 36 coarse points
	DefaultCoarseStep = 10

	// DefaultLookupTimeout bounds a single remote lookup
	DefaultLookupTimeout = 15 * time.Second

	// DefaultParamMin and DefaultParamMax bound saturation and lightness percentages
	DefaultParamMin = 0
	DefaultParamMax = 100
)

// ParamRange is the inclusive range accepted for both auxiliary parameters
type ParamRange struct {
	Min int
	Max int
}

// Contains reports whether v lies within the range
func (r ParamRange) Contains(v int) bool {
	return v >= r.Min && v <= r.Max
}

// Config holds configuration for the Engine
type Config struct {
	// Classifier performs the remote point lookups. If nil, uses the default (The Color API).
	Classifier RemoteClassifier

	// Cache memoizes lookups across discoveries. If nil, a new in-memory cache is created.
	Cache Cache

	// BatchSize bounds concurrent lookups per batch. If 0, uses DefaultBatchSize.
	BatchSize int

	// CoarseStep is the Phase 1 sample spacing. Must divide 360. If 0, uses DefaultCoarseStep.
	CoarseStep int

	// ParamRange bounds paramA and paramB. The zero value means 0..100.
	ParamRange ParamRange

	// LookupTimeout bounds each remote call. If 0, uses DefaultLookupTimeout.
	LookupTimeout time.Duration

	// Logger receives structured discovery logs. If nil, uses slog.Default().
	Logger *slog.Logger

	// Registerer, if set, receives the engine's prometheus collectors
	Registerer prometheus.Registerer
}

// applyDefaults fills in default values for unset config fields
func (c *Config) applyDefaults() {
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}

	if c.CoarseStep == 0 {
		c.CoarseStep = DefaultCoarseStep
	}

	if c.ParamRange == (ParamRange{}) {
		c.ParamRange = ParamRange{Min: DefaultParamMin, Max: DefaultParamMax}
	}

	if c.LookupTimeout == 0 {
		c.LookupTimeout = DefaultLookupTimeout
	}

	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

func (c *Config) validate() error {
	if c.BatchSize < 1 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}

	if c.CoarseStep < 2 || c.CoarseStep >= types.DomainSize || types.DomainSize%c.CoarseStep != 0 {
		return fmt.Errorf("coarse step must divide %d and leave room for refinement, got %d", types.DomainSize, c.CoarseStep)
	}

	if c.ParamRange.Min > c.ParamRange.Max {
		return fmt.Errorf("param range min %d exceeds max %d", c.ParamRange.Min, c.ParamRange.Max)
	}

	if c.LookupTimeout < 0 {
		return fmt.Errorf("lookup timeout must not be negative")
	}

	return nil
}
