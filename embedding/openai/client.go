// Package openai implements embedding.Gateway for OpenAI-compatible
// /embeddings endpoints, including SiliconFlow.
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hupe1980/vecrag/codec"
	"github.com/hupe1980/vecrag/embedding"
)

const (
	defaultBaseURL      = "https://api.openai.com/v1"
	embeddingsEndpoint  = "/embeddings"
	defaultHTTPClientTO = 30 * time.Second
	maxErrorBody        = 4 << 10
)

// SiliconFlowBaseURL is the SiliconFlow embeddings API root.
const SiliconFlowBaseURL = "https://api.siliconflow.cn/v1"

// Request represents the request structure for the embeddings API.
type Request struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// Client calls an OpenAI-compatible embeddings endpoint.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Codec      codec.Codec
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets the API root, or the full endpoint when it already ends in
// /embeddings.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.BaseURL = u
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.HTTPClient = hc }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.HTTPClient = &http.Client{Timeout: d}
		}
	}
}

// NewClient creates a client. An empty apiKey falls back to OPENAI_API_KEY.
func NewClient(apiKey string, optFns ...Option) *Client {
	c := &Client{
		BaseURL:    defaultBaseURL,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: defaultHTTPClientTO},
		Codec:      codec.Default,
	}
	for _, fn := range optFns {
		fn(c)
	}
	if c.APIKey == "" {
		c.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	return c
}

// Factory returns an embedding.Factory building clients rooted at baseURL
// unless the provider config overrides it.
func Factory(baseURL string) embedding.Factory {
	return func(cfg embedding.ProviderConfig) (embedding.Gateway, error) {
		if cfg.APIKey == "" {
			return nil, errors.New("openai: api key is required")
		}
		u := cfg.BaseURL
		if u == "" {
			u = baseURL
		}
		return NewClient(cfg.APIKey, WithBaseURL(u), WithTimeout(cfg.Timeout)), nil
	}
}

// NewRegistry returns the registry of built-in providers.
func NewRegistry() *embedding.Registry {
	return embedding.NewRegistry(map[string]embedding.Factory{
		"openai":      Factory(defaultBaseURL),
		"siliconflow": Factory(SiliconFlowBaseURL),
	})
}

func (c *Client) endpoint() string {
	u := strings.TrimSuffix(c.BaseURL, "/")
	if strings.HasSuffix(u, embeddingsEndpoint) {
		return u
	}
	return u + embeddingsEndpoint
}

// Embed creates embeddings for the given texts.
//
// HTTP 429, 5xx, transport failures and undecodable bodies are reported as
// *embedding.TransientError. Other non-2xx statuses return *APIError, which
// WithRetry does not retry.
func (c *Client) Embed(ctx context.Context, model string, inputs []string) (*embedding.Response, error) {
	body, err := c.Codec.Marshal(Request{Model: model, Input: inputs})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &embedding.TransientError{Err: fmt.Errorf("send request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := c.decodeError(resp)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, &embedding.TransientError{
				StatusCode: resp.StatusCode,
				RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
				Err:        apiErr,
			}
		}
		return nil, apiErr
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &embedding.TransientError{Err: fmt.Errorf("read response: %w", err)}
	}
	var out embedding.Response
	if err := c.Codec.Unmarshal(data, &out); err != nil {
		return nil, &embedding.TransientError{StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return &out, nil
}

// APIError is a non-2xx answer from the provider.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("API error %d (%s): %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Message)
}

func (c *Client) decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
		Message string `json:"message"`
	}
	_ = c.Codec.Unmarshal(raw, &errResp)

	apiErr := &APIError{StatusCode: resp.StatusCode, Type: errResp.Error.Type, Message: errResp.Error.Message}
	if apiErr.Message == "" {
		apiErr.Message = errResp.Message
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
