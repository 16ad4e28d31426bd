package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/FrenchMajesty/hue-discovery/internal/retry"
)

// isRetryableError determines if an error should trigger a retry
func isRetryableError(err error, statusCode int, responseBody []byte) bool {
	if err != nil {
		var chatErr *ChatCompletionError
		if errors.As(err, &chatErr) && chatErr.StatusCode != 0 {
			return isRetryableStatus(chatErr.StatusCode, responseBody)
		}
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}

	return isRetryableStatus(statusCode, responseBody)
}

func isRetryableStatus(statusCode int, responseBody []byte) bool {
	if statusCode >= 500 || statusCode == http.StatusTooManyRequests {
		return true
	}

	// Some providers report a failed generation with 200 or 400
	if (statusCode == http.StatusOK || statusCode == http.StatusBadRequest) && responseBody != nil {
		var errorResp ChatCompletionResponseError
		if json.Unmarshal(responseBody, &errorResp) == nil && errorResp.Error.FailedGeneration != "" {
			return true
		}
		return strings.Contains(string(responseBody), "failed_generation")
	}

	return false
}

// createAndRunRetryableRequest executes an HTTP request with retry logic
func (c *OpenAIClient) createAndRunRetryableRequest(ctx context.Context, url string, requestBody any, apiName string) ([]byte, error) {
	opts := retry.Options{
		Config:       c.RetryConfig,
		ErrorChecker: isRetryableError,
		Logger:       c.Logger,
		APIName:      "OpenAI " + apiName,
	}

	out := retry.Execute(ctx, opts, c.buildRetryableFn(ctx, url, requestBody, apiName))
	if out.Err != nil {
		return nil, out.Err
	}

	return out.Result, nil
}

// buildRetryableFn builds a retryable function for the given request body
func (c *OpenAIClient) buildRetryableFn(ctx context.Context, url string, requestBody any, apiName string) func(attempt int) retry.Attempt[[]byte] {
	return func(attempt int) retry.Attempt[[]byte] {
		body, err := json.Marshal(requestBody)
		if err != nil {
			return retry.Attempt[[]byte]{Err: fmt.Errorf("failed to marshal %s request: %w", apiName, err)}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
		if err != nil {
			return retry.Attempt[[]byte]{Err: fmt.Errorf("failed to create HTTP request: %w", err)}
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.HTTPClient.Do(httpReq)
		if err != nil {
			return retry.Attempt[[]byte]{Err: err}
		}
		defer resp.Body.Close()

		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			return retry.Attempt[[]byte]{
				StatusCode: resp.StatusCode,
				Err:        fmt.Errorf("failed to read %s response body: %w", apiName, err),
			}
		}

		if resp.StatusCode != http.StatusOK {
			return retry.Attempt[[]byte]{
				StatusCode: resp.StatusCode,
				Body:       bodyBytes,
				Err: &ChatCompletionError{
					Message:    fmt.Sprintf("openai %s API error %d", apiName, resp.StatusCode),
					StatusCode: resp.StatusCode,
					RawBody:    json.RawMessage(bodyBytes),
				},
			}
		}

		return retry.Attempt[[]byte]{Result: bodyBytes, StatusCode: resp.StatusCode, Body: bodyBytes}
	}
}
