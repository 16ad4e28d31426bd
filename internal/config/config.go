package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. HUE_DISCOVERY_ENGINE_BATCH_SIZE
const EnvPrefix = "HUE_DISCOVERY"

// Classifier providers
const (
	ProviderColorAPI = "colorapi"
	ProviderOpenAI   = "openai"
	ProviderPinecone = "pinecone"
)

// Settings is the deployment configuration for an engine and its classifier
type Settings struct {
	Engine     EngineSettings     `mapstructure:"engine"`
	Classifier ClassifierSettings `mapstructure:"classifier"`
}

// EngineSettings mirrors the tunables of discovery.Config
type EngineSettings struct {
	BatchSize     int           `mapstructure:"batch_size"`
	CoarseStep    int           `mapstructure:"coarse_step"`
	LookupTimeout time.Duration `mapstructure:"lookup_timeout"`
	ParamMin      int           `mapstructure:"param_min"`
	ParamMax      int           `mapstructure:"param_max"`
}

// ClassifierSettings selects and configures the remote classifier
type ClassifierSettings struct {
	Provider string           `mapstructure:"provider"`
	ColorAPI ColorAPISettings `mapstructure:"colorapi"`
	OpenAI   OpenAISettings   `mapstructure:"openai"`
	Pinecone PineconeSettings `mapstructure:"pinecone"`
}

// ColorAPISettings configures the HTTP color naming service
type ColorAPISettings struct {
	BaseURL           string  `mapstructure:"base_url"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
	MaxRetries        int     `mapstructure:"max_retries"`
}

// OpenAISettings configures the LLM classifier. The API key comes from OPENAI_API_KEY.
type OpenAISettings struct {
	Model       string   `mapstructure:"model"`
	BaseURL     string   `mapstructure:"base_url"`
	Temperature *float32 `mapstructure:"temperature"`
}

// PineconeSettings configures the palette index classifier. The API key comes from PINECONE_API_KEY.
type PineconeSettings struct {
	Host        string  `mapstructure:"host"`
	Namespace   string  `mapstructure:"namespace"`
	MaxDistance float64 `mapstructure:"max_distance"`
}

// Default returns the default settings
func Default() *Settings {
	return &Settings{
		Engine: EngineSettings{
			BatchSize:     20,
			CoarseStep:    10,
			LookupTimeout: 15 * time.Second,
			ParamMin:      0,
			ParamMax:      100,
		},
		Classifier: ClassifierSettings{
			Provider: ProviderColorAPI,
			ColorAPI: ColorAPISettings{
				BaseURL:           "https://www.thecolorapi.com",
				RequestsPerSecond: 0,
				Burst:             1,
				MaxRetries:        2,
			},
			OpenAI: OpenAISettings{
				Model: "gpt-4.1-mini",
			},
			Pinecone: PineconeSettings{
				Namespace: "palette",
			},
		},
	}
}

// setDefaults registers default values with v
func setDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("engine.batch_size", defaults.Engine.BatchSize)
	v.SetDefault("engine.coarse_step", defaults.Engine.CoarseStep)
	v.SetDefault("engine.lookup_timeout", defaults.Engine.LookupTimeout)
	v.SetDefault("engine.param_min", defaults.Engine.ParamMin)
	v.SetDefault("engine.param_max", defaults.Engine.ParamMax)

	v.SetDefault("classifier.provider", defaults.Classifier.Provider)
	v.SetDefault("classifier.colorapi.base_url", defaults.Classifier.ColorAPI.BaseURL)
	v.SetDefault("classifier.colorapi.requests_per_second", defaults.Classifier.ColorAPI.RequestsPerSecond)
	v.SetDefault("classifier.colorapi.burst", defaults.Classifier.ColorAPI.Burst)
	v.SetDefault("classifier.colorapi.max_retries", defaults.Classifier.ColorAPI.MaxRetries)
	v.SetDefault("classifier.openai.model", defaults.Classifier.OpenAI.Model)
	v.SetDefault("classifier.openai.base_url", defaults.Classifier.OpenAI.BaseURL)
	v.SetDefault("classifier.pinecone.host", defaults.Classifier.Pinecone.Host)
	v.SetDefault("classifier.pinecone.namespace", defaults.Classifier.Pinecone.Namespace)
	v.SetDefault("classifier.pinecone.max_distance", defaults.Classifier.Pinecone.MaxDistance)
}

// Load reads settings from defaults, an optional config file at path, and
// HUE_DISCOVERY_* environment variables, in increasing precedence. A .env file
// in the working directory is loaded first if present.
func Load(path string) (*Settings, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}

	return &settings, nil
}

// Validate checks settings for values the engine or adapters would reject
func (s *Settings) Validate() error {
	var errs []error

	if s.Engine.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("engine.batch_size must be positive"))
	}
	if s.Engine.CoarseStep < 2 || 360%s.Engine.CoarseStep != 0 {
		errs = append(errs, fmt.Errorf("engine.coarse_step must divide 360 and be at least 2"))
	}
	if s.Engine.ParamMin > s.Engine.ParamMax {
		errs = append(errs, fmt.Errorf("engine.param_min exceeds engine.param_max"))
	}

	switch s.Classifier.Provider {
	case ProviderColorAPI:
	case ProviderOpenAI:
		if s.Classifier.OpenAI.Model == "" {
			errs = append(errs, fmt.Errorf("classifier.openai.model is required"))
		}
	case ProviderPinecone:
		if s.Classifier.Pinecone.Host == "" {
			errs = append(errs, fmt.Errorf("classifier.pinecone.host is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown classifier.provider %q", s.Classifier.Provider))
	}

	return errors.Join(errs...)
}
