package discovery

import (
	"fmt"

	"github.com/FrenchMajesty/hue-discovery/adapters"
	"github.com/FrenchMajesty/hue-discovery/internal/config"
)

// LoadEngine builds an Engine from a config file at path (optional), a .env
// file and HUE_DISCOVERY_* environment variables. Fields set on base that the
// settings do not cover, such as Logger, Registerer and Cache, are kept. If
// base.Classifier is nil, the configured provider is constructed.
func LoadEngine(path string, base Config) (*Engine, error) {
	settings, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return newEngineFromSettings(settings, base)
}

func newEngineFromSettings(settings *config.Settings, base Config) (*Engine, error) {
	cfg := base
	cfg.BatchSize = settings.Engine.BatchSize
	cfg.CoarseStep = settings.Engine.CoarseStep
	cfg.LookupTimeout = settings.Engine.LookupTimeout
	cfg.ParamRange = ParamRange{Min: settings.Engine.ParamMin, Max: settings.Engine.ParamMax}

	if cfg.Classifier == nil {
		classifier, err := adapters.NewClassifier(settings.Classifier)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s classifier: %w", settings.Classifier.Provider, err)
		}
		cfg.Classifier = classifier
	}

	return NewEngine(cfg)
}
