package colorapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/FrenchMajesty/hue-discovery/internal/retry"
	"github.com/FrenchMajesty/hue-discovery/pkg/types"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is The Color API endpoint
const DefaultBaseURL = "https://www.thecolorapi.com"

// Client names HSL colors through The Color API's /id endpoint
type Client struct {
	BaseURL     string
	HTTPClient  *http.Client
	RetryConfig retry.Config
	Limiter     *rate.Limiter
	Logger      *slog.Logger
}

// NewClient creates a Client against baseURL, or DefaultBaseURL if empty
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		HTTPClient:  http.DefaultClient,
		RetryConfig: retry.DefaultConfig(),
	}
}

// SetRateLimit caps outbound requests per second. A non-positive rps removes the limit.
func (c *Client) SetRateLimit(rps float64, burst int) {
	if rps <= 0 {
		c.Limiter = nil
		return
	}
	if burst < 1 {
		burst = 1
	}
	c.Limiter = rate.NewLimiter(rate.Limit(rps), burst)
}

// Classify returns the color name for hsl(point, paramA%, paramB%)
func (c *Client) Classify(ctx context.Context, key types.QueryKey) (types.ClassificationResult, error) {
	endpoint := c.BaseURL + "/id?" + url.Values{
		"hsl":    {fmt.Sprintf("%d,%d%%,%d%%", key.Point, key.ParamA, key.ParamB)},
		"format": {"json"},
	}.Encode()

	opts := retry.Options{
		Config:       c.RetryConfig,
		ErrorChecker: isRetryableError,
		Logger:       c.Logger,
		APIName:      "colorapi",
	}

	out := retry.Execute(ctx, opts, func(attempt int) retry.Attempt[[]byte] {
		return c.get(ctx, endpoint)
	})

	if out.Err != nil {
		return types.ClassificationResult{}, &types.RemoteError{
			Kind:       types.RemoteErrorNetwork,
			Key:        key,
			StatusCode: out.StatusCode,
			Err:        out.Err,
		}
	}

	if out.StatusCode != http.StatusOK {
		return types.ClassificationResult{}, &types.RemoteError{
			Kind:       types.RemoteErrorStatus,
			Key:        key,
			StatusCode: out.StatusCode,
			Err:        fmt.Errorf("unexpected response: %s", truncate(out.Body, 200)),
		}
	}

	result, err := parseResponse(out.Body)
	if err != nil {
		return types.ClassificationResult{}, &types.RemoteError{
			Kind:       types.RemoteErrorMalformed,
			Key:        key,
			StatusCode: out.StatusCode,
			Err:        err,
		}
	}
	result.Key = key

	return result, nil
}

// get performs one GET, honoring the rate limiter
func (c *Client) get(ctx context.Context, endpoint string) retry.Attempt[[]byte] {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return retry.Attempt[[]byte]{Err: fmt.Errorf("rate limiter: %w", err)}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return retry.Attempt[[]byte]{Err: fmt.Errorf("failed to create HTTP request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return retry.Attempt[[]byte]{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return retry.Attempt[[]byte]{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	return retry.Attempt[[]byte]{Result: body, StatusCode: resp.StatusCode, Body: body}
}

// isRetryableError retries transport failures, rate limiting and server errors
func isRetryableError(err error, statusCode int, _ []byte) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	return statusCode == http.StatusTooManyRequests || statusCode >= 500
}

// parseResponse extracts the label and passthrough payload from an /id response
func parseResponse(body []byte) (types.ClassificationResult, error) {
	if !gjson.ValidBytes(body) {
		return types.ClassificationResult{}, fmt.Errorf("response is not valid JSON")
	}

	doc := gjson.ParseBytes(body)

	name := doc.Get("name.value")
	if !name.Exists() || name.Type != gjson.String {
		return types.ClassificationResult{}, fmt.Errorf("response missing name.value")
	}

	hex := doc.Get("hex.value")
	if !hex.Exists() {
		return types.ClassificationResult{}, fmt.Errorf("response missing hex.value")
	}

	payload := map[string]any{
		"hex":    hex.String(),
		"source": "colorapi",
	}

	if rgb := doc.Get("rgb"); rgb.Exists() {
		payload["rgb"] = map[string]any{
			"r": rgb.Get("r").Int(),
			"g": rgb.Get("g").Int(),
			"b": rgb.Get("b").Int(),
		}
	}
	if closest := doc.Get("name.closest_named_hex"); closest.Exists() {
		payload["closest_named_hex"] = closest.String()
	}
	if exact := doc.Get("name.exact_match_name"); exact.Exists() {
		payload["exact_match"] = exact.Bool()
	}
	if distance := doc.Get("name.distance"); distance.Exists() {
		payload["distance"] = distance.Float()
	}

	return types.ClassificationResult{
		Label:   strings.TrimSpace(name.String()),
		Payload: payload,
	}, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
