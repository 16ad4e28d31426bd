package adapters

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/FrenchMajesty/hue-discovery/adapters/openai"
	"github.com/FrenchMajesty/hue-discovery/pkg/types"
	"github.com/lucasb-eyer/go-colorful"
)

// LLMClassifier names colors by asking an OpenAI-compatible chat model
type LLMClassifier struct {
	client       openai.LanguageModelClient
	systemPrompt string
	model        string
	temperature  *float32 // Optional temperature. If nil, omit from request.
}

const defaultModel = "gpt-4.1-mini"
const defaultSystemPrompt = `You are a color naming assistant. Given a color in HSL notation, reply with its most common English color name.

Rules:
- Return ONLY the color name, nothing else
- Use Title Case (e.g., "Red", "Sky Blue", "Dark Olive Green")
- Prefer short, widely recognized names (1-3 words)
- Be consistent: nearby colors with the same hue family should get the same name
- If the color has no meaningful name (e.g., it is pure black, white or gray and the hue is irrelevant), reply "unnamed"`

// NewLLMClassifier creates a new LLM color classifier with the API key from OPENAI_API_KEY if not provided
func NewLLMClassifier(apiKey *string, systemPrompt string, model string, baseUrl string, temperature *float32) (*LLMClassifier, error) {
	key, err := loadEnvVar(apiKey, "OPENAI_API_KEY")
	if err != nil {
		return nil, err
	}

	client := openai.NewClient(*key)
	if baseUrl != "" {
		client.SetBaseURL(baseUrl)
	}

	instance := LLMClassifier{
		client:       client,
		systemPrompt: defaultSystemPrompt,
		model:        defaultModel,
		temperature:  temperature,
	}

	if systemPrompt != "" {
		instance.systemPrompt = systemPrompt
	}

	if model != "" {
		instance.model = model
	}

	return &instance, nil
}

// Classify asks the model to name hsl(point, paramA%, paramB%)
func (c *LLMClassifier) Classify(ctx context.Context, key types.QueryKey) (types.ClassificationResult, error) {
	userPrompt := fmt.Sprintf("hsl(%d, %d%%, %d%%)", key.Point, key.ParamA, key.ParamB)

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatMessage{
			{
				Role:    openai.MessageRoleSystem,
				Content: &c.systemPrompt,
			},
			{
				Role:    openai.MessageRoleUser,
				Content: &userPrompt,
			},
		},
		MaxCompletionTokens: 20,
		Temperature:         c.temperature,
	}

	resp, err := c.client.ChatCompletion(ctx, req)
	if err != nil {
		return types.ClassificationResult{}, classifyLLMError(key, err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == nil {
		return types.ClassificationResult{}, &types.RemoteError{
			Kind: types.RemoteErrorMalformed,
			Key:  key,
			Err:  fmt.Errorf("no response from LLM"),
		}
	}

	label := cleanLabel(*resp.Choices[0].Message.Content)
	if label == "" {
		return types.ClassificationResult{}, &types.RemoteError{
			Kind: types.RemoteErrorMalformed,
			Key:  key,
			Err:  fmt.Errorf("LLM returned empty label"),
		}
	}

	color := hslColor(key)
	r, g, b := color.RGB255()

	return types.ClassificationResult{
		Key:   key,
		Label: label,
		Payload: map[string]any{
			"hex":    color.Hex(),
			"rgb":    map[string]any{"r": int64(r), "g": int64(g), "b": int64(b)},
			"source": "llm",
			"model":  c.model,
		},
	}, nil
}

// classifyLLMError maps chat client failures onto the remote error taxonomy
func classifyLLMError(key types.QueryKey, err error) error {
	remoteErr := &types.RemoteError{Kind: types.RemoteErrorNetwork, Key: key, Err: err}

	var chatErr *openai.ChatCompletionError
	if errors.As(err, &chatErr) {
		remoteErr.StatusCode = chatErr.StatusCode
		switch {
		case chatErr.Malformed:
			remoteErr.Kind = types.RemoteErrorMalformed
		case chatErr.StatusCode != 0:
			remoteErr.Kind = types.RemoteErrorStatus
		}
	}
	return remoteErr
}

// cleanLabel strips the quoting and punctuation models tend to add
func cleanLabel(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.Trim(s, "\"'`.* ")
	return strings.TrimSpace(s)
}

// hslColor converts a query key to a color, clamped to the RGB gamut
func hslColor(key types.QueryKey) colorful.Color {
	return colorful.Hsl(float64(key.Point), float64(key.ParamA)/100, float64(key.ParamB)/100).Clamped()
}
