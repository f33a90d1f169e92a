package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// ModelInvoker sends one chat prompt to one named model and returns its
// text. Implementations return *GatewayError for classified failures.
// Retry policy, if any, belongs to the caller: stages tolerate failure
// differently (Stage 1 records per-model failures, a chairman failure
// is fatal for the turn).
type ModelInvoker interface {
	Invoke(ctx context.Context, model string, messages []ChatMessage, timeout time.Duration) (string, error)
}

// Client is the ModelInvoker for an OpenRouter-compatible chat
// completions endpoint (OpenRouter itself, or a local routing proxy).
type Client struct {
	apiURL string
	apiKey string
}

// NewClient creates a gateway client for the given endpoint.
func NewClient(apiURL, apiKey string) *Client {
	return &Client{apiURL: apiURL, apiKey: apiKey}
}

// Invoke sends a single chat completion request and returns the model's
// text. Failures are classified as timeout, unreachable, upstream
// (non-2xx) or malformed (unparseable or empty reply).
func (c *Client) Invoke(ctx context.Context, model string, messages []ChatMessage, timeout time.Duration) (string, error) {
	client := &http.Client{
		Timeout: timeout,
	}

	payload := openRouterRequest{
		Model:    model,
		Messages: messages,
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", &GatewayError{Kind: ErrMalformed, Reason: fmt.Sprintf("failed to marshal request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.apiURL, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return "", &GatewayError{Kind: ErrUnreachable, Reason: fmt.Sprintf("failed to create request: %v", err)}
	}

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", &GatewayError{Kind: ErrUpstream, Status: resp.StatusCode, Body: string(bodyBytes)}
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", classifyTransportError(err)
	}

	var apiResponse openRouterResponse
	if err := json.Unmarshal(bodyBytes, &apiResponse); err != nil {
		return "", &GatewayError{Kind: ErrMalformed, Reason: fmt.Sprintf("failed to parse response: %v", err)}
	}

	if len(apiResponse.Choices) == 0 {
		return "", &GatewayError{Kind: ErrMalformed, Reason: "no choices in response"}
	}

	content := apiResponse.Choices[0].Message.Content
	if content == "" {
		return "", &GatewayError{Kind: ErrMalformed, Reason: "empty response text"}
	}

	return content, nil
}

// classifyTransportError maps a transport-level error to timeout or
// unreachable.
func classifyTransportError(err error) *GatewayError {
	var nerr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &nerr) && nerr.Timeout()) {
		return &GatewayError{Kind: ErrTimeout, Reason: err.Error()}
	}
	return &GatewayError{Kind: ErrUnreachable, Reason: err.Error()}
}

// asGatewayError coerces any invocation error into a *GatewayError so
// stage results carry a uniform failure shape even when the invoker is
// not the HTTP client.
func asGatewayError(err error) *GatewayError {
	var gerr *GatewayError
	if errors.As(err, &gerr) {
		return gerr
	}
	return classifyTransportError(err)
}
