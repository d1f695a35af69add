// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jeranaias/freeroute/internal/catalog"
	"github.com/jeranaias/freeroute/internal/util"
)

// Configuration constants for the OpenRouter API.
const (
	// DefaultBaseURL is the base URL for the OpenRouter API.
	DefaultBaseURL = "https://openrouter.ai/api/v1"

	// DefaultModel lets OpenRouter route the request itself.
	DefaultModel = "openrouter/auto"

	// DefaultTimeout bounds every request, connect through body read.
	DefaultTimeout = 120 * time.Second

	// DefaultUserAgent is sent on every request.
	DefaultUserAgent = "freeroute/1.0"

	// MaxResponseSize is the maximum allowed response body size.
	MaxResponseSize = 10 * 1024 * 1024
)

// ChatMessage is a single message in a chat conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) ChatMessage {
	return ChatMessage{Role: "system", Content: content}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) ChatMessage {
	return ChatMessage{Role: "user", Content: content}
}

// ChatRequest is the body of a chat completion call. Temperature is sent
// only when set.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
}

// Usage is the token accounting OpenRouter reports with a completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is the decoded completion envelope. Message content is kept
// raw so a missing or non-string content can be told apart from "".
type ChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string          `json:"role"`
			Content json.RawMessage `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *Usage `json:"usage,omitempty"`
}

// Reply returns the trimmed content of the first choice.
func (r *ChatResponse) Reply() (string, error) {
	if len(r.Choices) == 0 {
		return "", &MalformedResponseError{What: "no choices in completion"}
	}
	raw := r.Choices[0].Message.Content
	if len(raw) == 0 || string(raw) == "null" {
		return "", &MalformedResponseError{What: "choices[0].message.content is missing"}
	}
	var content string
	if err := json.Unmarshal(raw, &content); err != nil {
		return "", &MalformedResponseError{What: "choices[0].message.content is not a string", Err: err}
	}
	return strings.TrimSpace(content), nil
}

// apiErrorResponse is the error envelope OpenRouter returns on failures.
type apiErrorResponse struct {
	Error struct {
		Code    json.RawMessage `json:"code"`
		Message string          `json:"message"`
	} `json:"error"`
}

// Options configures a Client. Zero fields fall back to the defaults above.
type Options struct {
	APIKey    string
	BaseURL   string
	SiteURL   string
	AppName   string
	UserAgent string
	Timeout   time.Duration
}

// Client talks to the OpenRouter chat completion and model catalog
// endpoints. It performs no retries; each call is exactly one request.
type Client struct {
	apiKey     string
	baseURL    string
	siteURL    string
	appName    string
	userAgent  string
	httpClient *http.Client
	logger     log.FieldLogger
}

// NewClient creates a client from opts.
func NewClient(opts Options) *Client {
	c := &Client{
		apiKey:    strings.TrimSpace(opts.APIKey),
		baseURL:   DefaultBaseURL,
		siteURL:   strings.TrimSpace(opts.SiteURL),
		appName:   strings.TrimSpace(opts.AppName),
		userAgent: DefaultUserAgent,
		logger:    log.StandardLogger(),
	}
	if opts.BaseURL != "" {
		c.baseURL = strings.TrimSuffix(opts.BaseURL, "/")
	}
	if opts.UserAgent != "" {
		c.userAgent = opts.UserAgent
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c.httpClient = &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DisableKeepAlives:   true,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
	return c
}

// WithLogger sets the diagnostic logger.
func (c *Client) WithLogger(logger log.FieldLogger) *Client {
	c.logger = logger
	return c
}

// HasCredential reports whether an API key is configured.
func (c *Client) HasCredential() bool {
	return c.apiKey != ""
}

// =============================================================================
// REQUEST / RESPONSE LOGGING
// =============================================================================

// logRequest never logs headers (they carry the key) or bodies (they carry
// the prompts).
func (c *Client) logRequest(req *http.Request) {
	c.logger.WithFields(log.Fields{
		"method": req.Method,
		"path":   req.URL.Path,
	}).Debug("API request")
}

func (c *Client) logResponse(req *http.Request, status int, duration time.Duration) {
	c.logger.WithFields(log.Fields{
		"method":   req.Method,
		"path":     req.URL.Path,
		"status":   status,
		"duration": duration.Round(time.Millisecond),
	}).Debug("API response")
}

// =============================================================================
// ENDPOINTS
// =============================================================================

// Chat performs one chat completion request. A missing API key fails with
// ErrMissingCredential before any network traffic.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if !c.HasCredential() {
		return nil, ErrMissingCredential
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	respBody, err := c.do(ctx, http.MethodPost, "/chat/completions", body)
	if err != nil {
		return nil, err
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, &MalformedResponseError{What: "completion body is not valid JSON", Err: err}
	}
	return &chatResp, nil
}

// ListModels fetches the raw model catalog. The endpoint is public, so a
// missing key is not an error here.
func (c *Client) ListModels(ctx context.Context) ([]byte, error) {
	return c.do(ctx, http.MethodGet, "/models", nil)
}

// FreeModels fetches the catalog and keeps the free, non-archived,
// non-disabled models in provider order.
func (c *Client) FreeModels(ctx context.Context) (catalog.Snapshot, error) {
	body, err := c.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	snapshot, err := catalog.Parse(body)
	if err != nil {
		return nil, &MalformedResponseError{What: "model catalog", Err: err}
	}
	return catalog.FilterFree(snapshot), nil
}

// do sends one request and returns the body of a 2xx response. Everything
// else becomes an *HTTPError.
func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	url := c.baseURL + path

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	c.logRequest(req)
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	req.Header.Del("Authorization")
	if err != nil {
		return nil, &HTTPError{Method: method, URL: url, Err: err}
	}
	defer resp.Body.Close()
	c.logResponse(req, resp.StatusCode, time.Since(start))

	respBody, err := readResponse(resp)
	if err != nil {
		return nil, &HTTPError{Method: method, URL: url, Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newStatusError(method, url, resp.StatusCode, respBody)
	}
	return respBody, nil
}

// setHeaders sets the headers shared by every OpenRouter request.
// Authorization is omitted when no key is configured.
func (c *Client) setHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	if c.siteURL != "" {
		req.Header.Set("HTTP-Referer", c.siteURL)
	}
	if c.appName != "" {
		req.Header.Set("X-Title", c.appName)
	}
}

// readResponse reads the response body with a size limit.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// newStatusError builds an HTTPError from a non-2xx response, pulling the
// message out of OpenRouter's error envelope when there is one.
func newStatusError(method, url string, status int, body []byte) *HTTPError {
	httpErr := &HTTPError{Status: status, Method: method, URL: url}

	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		httpErr.Message = apiErr.Error.Message
		if code := string(apiErr.Error.Code); code != "null" {
			httpErr.Code = strings.Trim(code, `"`)
		}
		return httpErr
	}

	httpErr.Message = util.TruncateRunes(util.SingleLine(string(body)), 200)
	return httpErr
}
