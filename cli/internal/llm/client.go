// Package llm provides an HTTP client for OpenAI-compatible chat-completions
// endpoints (GitHub Models, OpenAI, and self-hosted gateways) plus a
// reachability check used by doctor.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"

	"commitmate/cli/internal/version"
)

// Default endpoints per provider.
const (
	GitHubEndpoint = "https://models.github.ai/inference/chat/completions"
	OpenAIEndpoint = "https://api.openai.com/v1/chat/completions"
)

const maxErrorBody = 4096

// ErrUnavailable marks any failure that means the endpoint produced no usable
// completion: transport errors, non-2xx responses, undecodable bodies, and
// empty content.
var ErrUnavailable = errors.New("text generation endpoint unavailable")

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the request body sent to the endpoint.
type ChatRequest struct {
	Model       string    `json:"model"`
	Temperature float64   `json:"temperature"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.Code)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

// Client calls a chat-completions endpoint. Zero value is not valid; use NewClient.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewClient builds a client for endpoint (the full chat-completions URL).
// apiKey is sent as a bearer token when non-empty. If httpClient is nil a
// client without a timeout is used; callers bound requests with ctx.
func NewClient(endpoint, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{endpoint: strings.TrimSpace(endpoint), apiKey: apiKey, httpClient: httpClient}
}

// Endpoint returns the chat-completions URL.
func (c *Client) Endpoint() string { return c.endpoint }

// Complete sends req and returns the trimmed content of the first choice.
// Every failure is marked with ErrUnavailable.
func (c *Client) Complete(ctx context.Context, req ChatRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", errors.Wrap(err, "encode chat request")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", errors.Mark(errors.Wrap(err, "build chat request"), ErrUnavailable)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", version.UserAgent())
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", errors.Mark(errors.Wrap(err, "chat completions"), ErrUnavailable)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		serr := &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(payload))}
		return "", errors.Mark(errors.Wrap(serr, "chat completions"), ErrUnavailable)
	}
	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errors.Mark(errors.Wrap(err, "chat completions: parse response"), ErrUnavailable)
	}
	if len(out.Choices) == 0 {
		return "", errors.Mark(errors.New("chat completions: no choices"), ErrUnavailable)
	}
	content := strings.TrimSpace(out.Choices[0].Message.Content)
	if content == "" {
		return "", errors.Mark(errors.New("chat completions: empty content"), ErrUnavailable)
	}
	return content, nil
}

// CheckResult is the result of a reachability check.
type CheckResult struct {
	Reachable  bool // The server answered with any HTTP response below 500.
	Authorized bool // The server did not answer 401 or 403.
	StatusCode int
}

// Check probes the models listing next to the chat-completions endpoint. Any
// HTTP answer below 500 counts as reachable; transport errors and 5xx return
// ErrUnavailable.
func (c *Client) Check(ctx context.Context) (*CheckResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, modelsURL(c.endpoint), nil)
	if err != nil {
		return nil, errors.Wrap(err, "models request")
	}
	req.Header.Set("User-Agent", version.UserAgent())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "models"), ErrUnavailable)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	if resp.StatusCode >= 500 {
		return nil, errors.Mark(errors.Wrap(&StatusError{Code: resp.StatusCode}, "models"), ErrUnavailable)
	}
	return &CheckResult{
		Reachable:  true,
		Authorized: resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusForbidden,
		StatusCode: resp.StatusCode,
	}, nil
}

// modelsURL maps .../chat/completions to .../models; other URLs are probed as is.
func modelsURL(endpoint string) string {
	if base, ok := strings.CutSuffix(strings.TrimSuffix(endpoint, "/"), "/chat/completions"); ok {
		return base + "/models"
	}
	return endpoint
}
