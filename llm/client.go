// Package llm provides a provider-agnostic LLM client with retry and fallback support.
// It integrates with the model.Registry for capability-based model selection.
package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/c360studio/crucible/model"
	"github.com/google/uuid"
)

// maxResponseSize limits the LLM response body to prevent memory exhaustion.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// Client is a provider-agnostic LLM client with retry and fallback support.
type Client struct {
	registry    *model.Registry
	httpClient  *http.Client
	retryConfig RetryConfig
	logger      *slog.Logger

	// recorder is nil when call recording is disabled.
	recorder CallRecorder
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`    // "system", "user", or "assistant"
	Content string `json:"content"` // Message content
}

// Request defines an LLM completion request.
type Request struct {
	// Capability specifies the semantic capability ("judging", "fast").
	Capability string

	// Messages is the chat history to send to the LLM.
	Messages []Message

	// Temperature controls randomness. nil uses endpoint default, 0 is deterministic.
	Temperature *float64

	// MaxTokens limits response length. 0 uses endpoint default.
	MaxTokens int

	// JSONMode requests a JSON object response where the provider supports it.
	JSONMode bool
}

// TokenUsage represents token consumption details for an LLM call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response contains the LLM completion result.
type Response struct {
	// RequestID uniquely identifies this call; set by Complete.
	RequestID string

	// Content is the generated text.
	Content string

	// Model is the actual model that was used.
	Model string

	// Usage contains token consumption metrics.
	Usage TokenUsage

	// FinishReason indicates why generation stopped.
	FinishReason string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(client *Client) {
		client.httpClient.Timeout = d
	}
}

// WithRetryConfig sets the retry configuration.
func WithRetryConfig(cfg RetryConfig) ClientOption {
	return func(client *Client) {
		client.retryConfig = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(client *Client) {
		client.logger = logger
	}
}

// WithRecorder records every call, successful or not.
func WithRecorder(r CallRecorder) ClientOption {
	return func(client *Client) {
		client.recorder = r
	}
}

// NewClient creates a new LLM client with the given model registry.
func NewClient(registry *model.Registry, opts ...ClientOption) *Client {
	c := &Client{
		registry:    registry,
		retryConfig: DefaultRetryConfig(),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Complete sends a completion request, handling retry and fallback logic.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	if req.Capability == "" {
		return nil, fmt.Errorf("capability is required")
	}
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("at least one message is required")
	}

	requestID := uuid.New().String()
	startedAt := time.Now()

	capVal := model.ParseCapability(req.Capability)
	if capVal == "" {
		capVal = model.CapabilityFast
	}
	chain := c.registry.GetAvailableFallbackChain(capVal)
	if len(chain) == 0 {
		return nil, fmt.Errorf("no models configured for capability %s", req.Capability)
	}

	record := &CallRecord{
		RequestID:  requestID,
		Capability: req.Capability,
		Messages:   req.Messages,
		StartedAt:  startedAt,
	}
	tc := GetTraceContext(ctx)
	record.TraceID, record.EvaluationID, record.Pass = tc.TraceID, tc.EvaluationID, tc.Pass

	var lastErr error
	for _, modelName := range chain {
		endpoint := c.registry.GetEndpoint(modelName)
		if endpoint == nil {
			c.logger.Debug("No endpoint for model, skipping", "model", modelName)
			continue
		}
		if !c.registry.IsEndpointAvailable(modelName) {
			c.logger.Debug("Endpoint circuit open, skipping", "model", modelName)
			continue
		}

		resp, attempts, err := c.tryEndpoint(ctx, endpoint, modelName, req)
		record.Retries += attempts - 1
		record.Provider = endpoint.Provider
		record.Model = modelName

		if err == nil {
			resp.RequestID = requestID
			record.Model = resp.Model
			record.Response = resp.Content
			record.PromptTokens = resp.Usage.PromptTokens
			record.CompletionTokens = resp.Usage.CompletionTokens
			record.TotalTokens = resp.Usage.TotalTokens
			record.FinishReason = resp.FinishReason
			c.recordCall(ctx, record)
			return resp, nil
		}

		record.FallbacksUsed = append(record.FallbacksUsed, modelName)
		lastErr = err

		if IsFatal(err) || ctx.Err() != nil {
			c.logger.Warn("Judge call failed, not trying fallbacks",
				"model", modelName,
				"provider", endpoint.Provider,
				"error", err)
			record.Error = err.Error()
			c.recordCall(ctx, record)
			return nil, err
		}

		c.logger.Warn("Endpoint failed, trying fallback",
			"model", modelName,
			"provider", endpoint.Provider,
			"error", err)
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no usable endpoint")
	}
	record.Error = fmt.Sprintf("all endpoints failed: %v", lastErr)
	c.recordCall(ctx, record)

	return nil, fmt.Errorf("all endpoints failed for capability %s: %w", req.Capability, lastErr)
}

// recordCall hands the record to the recorder. Failures are logged and
// never affect the call itself.
func (c *Client) recordCall(ctx context.Context, record *CallRecord) {
	if c.recorder == nil {
		return
	}
	record.CompletedAt = time.Now()
	record.DurationMs = record.CompletedAt.Sub(record.StartedAt).Milliseconds()

	if err := c.recorder.RecordCall(context.WithoutCancel(ctx), record); err != nil {
		c.logger.Warn("Failed to record judge call",
			"request_id", record.RequestID,
			"evaluation_id", record.EvaluationID,
			"error", err)
	}
}

// tryEndpoint attempts a request with retry logic and returns the attempt count.
func (c *Client) tryEndpoint(ctx context.Context, ep *model.EndpointConfig, modelName string, req Request) (*Response, int, error) {
	var lastErr error

	maxAttempts := c.retryConfig.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := c.doRequest(ctx, ep, req)
		if err == nil {
			c.registry.MarkEndpointSuccess(modelName)
			return resp, attempt, nil
		}

		lastErr = err

		// Auth and bad-request errors are config problems, not endpoint health.
		if IsFatal(err) {
			return nil, attempt, err
		}

		if attempt < maxAttempts {
			backoff := c.calculateBackoff(attempt)
			c.logger.Debug("Request failed, retrying",
				"attempt", attempt,
				"max_attempts", maxAttempts,
				"backoff", backoff,
				"error", err)

			select {
			case <-ctx.Done():
				return nil, attempt, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	c.registry.MarkEndpointFailure(modelName)

	return nil, maxAttempts, lastErr
}

// calculateBackoff computes exponential backoff duration with +/- 25% jitter.
func (c *Client) calculateBackoff(attempt int) time.Duration {
	multiplier := 1.0
	for i := 1; i < attempt; i++ {
		multiplier *= c.retryConfig.BackoffMultiplier
	}

	backoff := time.Duration(float64(c.retryConfig.BackoffBase) * multiplier)
	if backoff > c.retryConfig.MaxBackoff {
		backoff = c.retryConfig.MaxBackoff
	}

	jitter := float64(backoff) * 0.25 * (rand.Float64()*2 - 1)
	return backoff + time.Duration(jitter)
}

// doRequest executes a single HTTP request to the LLM endpoint.
func (c *Client) doRequest(ctx context.Context, ep *model.EndpointConfig, req Request) (*Response, error) {
	provider := GetProvider(ep.Provider)
	if provider == nil {
		return nil, NewFatalError(fmt.Errorf("unknown provider: %s", ep.Provider))
	}

	url := provider.BuildURL(ep.URL)

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = ep.MaxTokens
	}
	body, err := provider.BuildRequestBody(ep.Model, req.Messages, RequestOptions{
		Temperature: req.Temperature,
		MaxTokens:   maxTokens,
		JSONMode:    req.JSONMode,
	})
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("build request body: %w", err))
	}

	c.logger.Debug("Sending LLM request",
		"provider", ep.Provider,
		"model", ep.Model,
		"url", url,
		"messages", len(req.Messages))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("create HTTP request: %w", err))
	}

	httpReq.Header.Set("Content-Type", "application/json")
	provider.SetHeaders(httpReq, ep.ResolveAPIKey())
	for k, v := range ep.Headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("HTTP request failed: %w", err))
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("read response body: %w", err))
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, classifyHTTPError(httpResp.StatusCode, respBody)
	}

	resp, err := provider.ParseResponse(respBody, ep.Model)
	if err != nil {
		return nil, NewFatalError(err)
	}
	return resp, nil
}

// classifyHTTPError determines if an HTTP error is transient or fatal.
func classifyHTTPError(statusCode int, body []byte) error {
	bodyStr := string(body)
	if len(bodyStr) > 200 {
		bodyStr = bodyStr[:200] + "..."
	}

	err := fmt.Errorf("LLM API error (status %d): %s", statusCode, bodyStr)

	switch {
	case statusCode == http.StatusTooManyRequests,
		statusCode == http.StatusRequestTimeout:
		return NewTransientError(err)
	case statusCode >= 500:
		return NewTransientError(err)
	default:
		// 400, 401, 403 and anything unexpected.
		return NewFatalError(err)
	}
}
