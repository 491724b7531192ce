// Package httptool proxies tool invocations to a remote loom service
// over its HTTP JSON API. The remote error envelope is decoded back
// into a typed tool error so failure kinds survive the network hop.
package httptool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	lerrors "github.com/loomkit/loom/pkg/errors"
)

// ToolSummary is one entry of the remote tool listing.
type ToolSummary struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Schema      json.RawMessage `json:"schema,omitempty"`
}

// Client talks to a loom HTTP service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	headers    map[string]string
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithHeaders sets default headers for each request.
func WithHeaders(headers map[string]string) Option {
	return func(c *Client) {
		c.headers = cloneHeaders(headers)
	}
}

// New creates a client for the service rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errors.New("base URL is required")
	}
	client := &Client{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// Invoke runs the named remote tool with the given input.
func (c *Client) Invoke(ctx context.Context, tool string, input any) (any, error) {
	if strings.TrimSpace(tool) == "" {
		return nil, lerrors.New(lerrors.KindInvalidInput, "tool name is required", nil)
	}
	return c.doJSON(ctx, c.endpoint("/v1/tools/"+url.PathEscape(tool)), input, tool)
}

// Eval submits a program to the remote interpreter.
func (c *Client) Eval(ctx context.Context, program any) (any, error) {
	return c.doJSON(ctx, c.endpoint("/v1/eval"), program, "eval")
}

// ListTools fetches the remote tool listing.
func (c *Client) ListTools(ctx context.Context) ([]ToolSummary, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/v1/tools"), nil)
	if err != nil {
		return nil, lerrors.New(lerrors.KindInternal, "building list request", err)
	}
	c.applyHeaders(ctx, request)
	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, transportError(ctx, "tools", err)
	}
	defer response.Body.Close()
	payload, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, transportError(ctx, "tools", err)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, decodeError(payload, response.StatusCode, "tools")
	}
	var decoded struct {
		Tools []ToolSummary `json:"tools"`
	}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, lerrors.New(lerrors.KindTransportFailure, "malformed tool listing", err)
	}
	return decoded.Tools, nil
}

func (c *Client) doJSON(ctx context.Context, endpoint string, payload any, operation string) (any, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, lerrors.New(lerrors.KindInvalidInput, "input is not serializable", err).
			WithPayload("tool", operation)
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, lerrors.New(lerrors.KindInternal, "building request", err)
	}
	request.Header.Set("Content-Type", "application/json")
	c.applyHeaders(ctx, request)

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, transportError(ctx, operation, err)
	}
	defer response.Body.Close()
	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, transportError(ctx, operation, err)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, decodeError(body, response.StatusCode, operation)
	}
	var envelope struct {
		CallID string `json:"call_id"`
		Result any    `json:"result"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, lerrors.New(lerrors.KindTransportFailure, "malformed result envelope", err).
			WithPayload("tool", operation)
	}
	return envelope.Result, nil
}

func (c *Client) endpoint(path string) string {
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

func (c *Client) applyHeaders(ctx context.Context, request *http.Request) {
	for key, val := range c.headers {
		request.Header.Set(key, val)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(request.Header))
}

// transportError classifies connection-level failures, keeping caller
// aborts distinct from network trouble.
func transportError(ctx context.Context, operation string, err error) *lerrors.ToolError {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return lerrors.New(lerrors.KindCancelled, "remote call aborted", err).
			WithPayload("tool", operation)
	}
	return lerrors.New(lerrors.KindTransportFailure, "remote call failed", err).
		WithPayload("tool", operation)
}

// decodeError rebuilds the remote tool error from the error envelope.
// The wire kind wins; an unrecognized body degrades to a transport
// failure carrying the HTTP status.
func decodeError(body []byte, statusCode int, operation string) *lerrors.ToolError {
	var envelope struct {
		CallID string         `json:"call_id"`
		Error  map[string]any `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Error) == 0 {
		return lerrors.New(lerrors.KindTransportFailure, fmt.Sprintf("remote returned HTTP %d", statusCode), nil).
			WithPayload("tool", operation).
			WithPayload("status", statusCode)
	}
	kind := lerrors.KindInternal
	if raw, ok := envelope.Error["kind"].(string); ok && raw != "" {
		kind = lerrors.ErrorKind(raw)
	}
	message := "remote tool error"
	if raw, ok := envelope.Error["message"].(string); ok && raw != "" {
		message = raw
	}
	out := lerrors.New(kind, message, nil)
	out.StatusCode = statusCode
	for key, val := range envelope.Error {
		if key == "kind" || key == "message" {
			continue
		}
		out.WithPayload(key, val)
	}
	if envelope.CallID != "" {
		out.WithPayload("remote_call_id", envelope.CallID)
	}
	return out
}

func cloneHeaders(headers map[string]string) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(headers))
	for key, val := range headers {
		out[key] = val
	}
	return out
}
