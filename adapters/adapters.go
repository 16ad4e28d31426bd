package adapters

import (
	"context"
	"fmt"
	"os"

	"github.com/FrenchMajesty/hue-discovery/adapters/colorapi"
	"github.com/FrenchMajesty/hue-discovery/adapters/pinecone"
	"github.com/FrenchMajesty/hue-discovery/internal/config"
	"github.com/FrenchMajesty/hue-discovery/pkg/types"
)

// Classifier labels a single hue point. It matches discovery.RemoteClassifier.
type Classifier interface {
	Classify(ctx context.Context, key types.QueryKey) (types.ClassificationResult, error)
}

// NewColorAPIClassifier creates a client for The Color API. If baseURL is nil,
// COLORAPI_BASE_URL is used when set, otherwise the public endpoint.
func NewColorAPIClassifier(baseURL *string) (*colorapi.Client, error) {
	url := os.Getenv("COLORAPI_BASE_URL")
	if baseURL != nil {
		url = *baseURL
	}
	return colorapi.NewClient(url), nil
}

// NewPaletteClassifier creates a nearest-named-color classifier over a Pinecone index
func NewPaletteClassifier(apiKey *string, host *string, namespace string, maxDistance float32) (*PaletteClassifier, error) {
	key, err := loadEnvVar(apiKey, "PINECONE_API_KEY")
	if err != nil {
		return nil, err
	}

	h, err := loadEnvVar(host, "PINECONE_HOST")
	if err != nil {
		return nil, err
	}

	service, err := pinecone.NewPineconeService(*key)
	if err != nil {
		return nil, fmt.Errorf("failed to create pinecone service: %w", err)
	}

	index, err := service.ForIndex(*h, namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to pinecone index: %w", err)
	}

	return &PaletteClassifier{
		index:       index,
		maxDistance: maxDistance,
	}, nil
}

// NewClassifier builds the classifier selected by settings
func NewClassifier(settings config.ClassifierSettings) (Classifier, error) {
	switch settings.Provider {
	case config.ProviderColorAPI, "":
		client, err := NewColorAPIClassifier(&settings.ColorAPI.BaseURL)
		if err != nil {
			return nil, err
		}
		client.RetryConfig.MaxRetries = settings.ColorAPI.MaxRetries
		client.SetRateLimit(settings.ColorAPI.RequestsPerSecond, settings.ColorAPI.Burst)
		return client, nil

	case config.ProviderOpenAI:
		client, err := NewLLMClassifier(nil, "", settings.OpenAI.Model, settings.OpenAI.BaseURL, settings.OpenAI.Temperature)
		if err != nil {
			return nil, err
		}
		return client, nil

	case config.ProviderPinecone:
		host := settings.Pinecone.Host
		client, err := NewPaletteClassifier(nil, &host, settings.Pinecone.Namespace, float32(settings.Pinecone.MaxDistance))
		if err != nil {
			return nil, err
		}
		return client, nil

	default:
		return nil, fmt.Errorf("unknown classifier provider %q", settings.Provider)
	}
}

// loadEnvVar loads an environment variable into a pointer if no value is provided
func loadEnvVar(target *string, envKey string) (*string, error) {
	if target == nil {
		envVar := os.Getenv(envKey)
		if envVar == "" {
			return nil, fmt.Errorf("%s environment variable not set and no value provided", envKey)
		}
		return &envVar, nil
	}
	return target, nil
}

var (
	_ Classifier = (*colorapi.Client)(nil)
	_ Classifier = (*LLMClassifier)(nil)
	_ Classifier = (*PaletteClassifier)(nil)
)
