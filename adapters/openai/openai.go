package openai

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/FrenchMajesty/hue-discovery/internal/retry"
)

const openaiBaseURL = "https://api.openai.com/v1"

// Creates a new OpenAIClient
func NewClient(apiKey string) *OpenAIClient {
	client := &OpenAIClient{
		APIKey:      apiKey,
		HTTPClient:  http.DefaultClient,
		RetryConfig: retry.DefaultConfig(),
		BaseURL:     openaiBaseURL,
	}

	return client
}

var _ LanguageModelClient = (*OpenAIClient)(nil)

// Sends a chat completion request with retry logic
func (c *OpenAIClient) ChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	url := c.BaseURL + "/chat/completions"

	bodyBytes, err := c.createAndRunRetryableRequest(ctx, url, req, "chat")
	if err != nil {
		return nil, err
	}

	var chatResp ChatCompletionResponse
	if err := json.Unmarshal(bodyBytes, &chatResp); err != nil {
		return nil, &ChatCompletionError{
			Message:    "failed to parse chat completion response",
			StatusCode: http.StatusOK,
			RawBody:    json.RawMessage(bodyBytes),
			Malformed:  true,
			Err:        err,
		}
	}

	return &chatResp, nil
}

// Sets the base URL for the client, e.g. to target an OpenAI-compatible provider
func (c *OpenAIClient) SetBaseURL(baseUrl string) {
	c.BaseURL = baseUrl
}
