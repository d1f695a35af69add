// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "sk-or-test-abcdefghijklmnopqrstuvwxyz0123456789"

const okCompletion = `{
	"id": "gen-1",
	"model": "test/model",
	"choices": [{
		"message": {"role": "assistant", "content": "  hello there \n"},
		"finish_reason": "stop"
	}],
	"usage": {"prompt_tokens": 10, "completion_tokens": 20, "total_tokens": 30}
}`

func newTestClient(url string, opts Options) *Client {
	opts.BaseURL = url
	return NewClient(opts)
}

// =============================================================================
// CHAT TESTS
// =============================================================================

func TestChat_SendsRequest(t *testing.T) {
	var gotBody map[string]any
	var gotHeader http.Header
	var gotPath, gotMethod string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod, gotHeader = r.URL.Path, r.Method, r.Header.Clone()
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(okCompletion))
	}))
	defer server.Close()

	client := newTestClient(server.URL+"/", Options{
		APIKey:  testKey,
		SiteURL: "https://example.com",
		AppName: "freeroute-test",
	})

	resp, err := client.Chat(context.Background(), ChatRequest{
		Model:    "test/model",
		Messages: []ChatMessage{NewSystemMessage("be brief"), NewUserMessage("hi")},
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/chat/completions", gotPath)
	assert.Equal(t, "Bearer "+testKey, gotHeader.Get("Authorization"))
	assert.Equal(t, "application/json", gotHeader.Get("Content-Type"))
	assert.Equal(t, "https://example.com", gotHeader.Get("HTTP-Referer"))
	assert.Equal(t, "freeroute-test", gotHeader.Get("X-Title"))
	assert.Equal(t, DefaultUserAgent, gotHeader.Get("User-Agent"))

	assert.Equal(t, "test/model", gotBody["model"])
	_, hasTemp := gotBody["temperature"]
	assert.False(t, hasTemp, "temperature must be omitted when unset")
	messages, ok := gotBody["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "hi", messages[1].(map[string]any)["content"])

	reply, err := resp.Reply()
	require.NoError(t, err)
	assert.Equal(t, "hello there", reply)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 20, resp.Usage.CompletionTokens)
}

func TestChat_OptionalHeadersOmitted(t *testing.T) {
	var gotHeader http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Clone()
		_, _ = w.Write([]byte(okCompletion))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, Options{APIKey: testKey}).Chat(context.Background(), ChatRequest{Model: "m"})
	require.NoError(t, err)

	assert.Empty(t, gotHeader.Get("HTTP-Referer"))
	assert.Empty(t, gotHeader.Get("X-Title"))
}

func TestChat_Temperature(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		_, _ = w.Write([]byte(okCompletion))
	}))
	defer server.Close()

	temp := 0.0
	_, err := newTestClient(server.URL, Options{APIKey: testKey}).Chat(context.Background(), ChatRequest{
		Model:       "m",
		Temperature: &temp,
	})
	require.NoError(t, err)

	got, ok := gotBody["temperature"]
	require.True(t, ok, "an explicit zero temperature is still sent")
	assert.Equal(t, 0.0, got)
}

func TestChat_MissingCredential(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, Options{APIKey: "   "}).Chat(context.Background(), ChatRequest{Model: "m"})
	assert.ErrorIs(t, err, ErrMissingCredential)
	assert.Equal(t, int32(0), hits.Load())
}

func TestChat_PaymentRequired(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error": {"code": 402, "message": "Insufficient credits"}}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, Options{APIKey: testKey}).Chat(context.Background(), ChatRequest{Model: "m"})
	require.Error(t, err)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusPaymentRequired, httpErr.Status)
	assert.True(t, httpErr.IsPaymentRequired())
	assert.True(t, IsPaymentRequired(err))
	assert.Equal(t, "Insufficient credits", httpErr.Message)
	assert.Equal(t, "402", httpErr.Code)
}

func TestChat_ServerErrorPlainBody(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream\n  exploded"))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, Options{APIKey: testKey}).Chat(context.Background(), ChatRequest{Model: "m"})

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusBadGateway, httpErr.Status)
	assert.Equal(t, "upstream exploded", httpErr.Message)
	assert.False(t, httpErr.IsPaymentRequired())
	assert.Equal(t, int32(1), hits.Load(), "client must not retry")
}

func TestChat_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newTestClient(url, Options{APIKey: testKey}).Chat(context.Background(), ChatRequest{Model: "m"})

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, 0, httpErr.Status)
	assert.NotNil(t, httpErr.Err)
}

func TestChat_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := newTestClient(server.URL, Options{APIKey: testKey, Timeout: 50 * time.Millisecond})
	_, err := client.Chat(context.Background(), ChatRequest{Model: "m"})

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, 0, httpErr.Status)
}

func TestChat_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, Options{APIKey: testKey}).Chat(context.Background(), ChatRequest{Model: "m"})

	var malformed *MalformedResponseError
	assert.True(t, errors.As(err, &malformed))
}

// =============================================================================
// REPLY EXTRACTION TESTS
// =============================================================================

func TestChatResponse_Reply(t *testing.T) {
	testCases := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{"trimmed", `{"choices": [{"message": {"content": "\n answer \t"}}]}`, "answer", false},
		{"empty string", `{"choices": [{"message": {"content": ""}}]}`, "", false},
		{"no choices", `{"choices": []}`, "", true},
		{"missing choices", `{}`, "", true},
		{"missing content", `{"choices": [{"message": {"role": "assistant"}}]}`, "", true},
		{"null content", `{"choices": [{"message": {"content": null}}]}`, "", true},
		{"non-string content", `{"choices": [{"message": {"content": [{"type": "text"}]}}]}`, "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var resp ChatResponse
			require.NoError(t, json.Unmarshal([]byte(tc.body), &resp))

			got, err := resp.Reply()
			if tc.wantErr {
				var malformed *MalformedResponseError
				assert.True(t, errors.As(err, &malformed), "err = %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

// =============================================================================
// CATALOG TESTS
// =============================================================================

func TestListModels_NoCredential(t *testing.T) {
	var gotHeader http.Header
	var gotPath, gotMethod string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader, gotPath, gotMethod = r.Header.Clone(), r.URL.Path, r.Method
		_, _ = w.Write([]byte(`{"data": []}`))
	}))
	defer server.Close()

	body, err := newTestClient(server.URL, Options{}).ListModels(context.Background())
	require.NoError(t, err)

	assert.Equal(t, `{"data": []}`, string(body))
	assert.Equal(t, http.MethodGet, gotMethod)
	assert.Equal(t, "/models", gotPath)
	assert.Empty(t, gotHeader.Get("Authorization"))
}

func TestFreeModels(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"data": [
			{"id": "paid", "context_length": 200000, "pricing": {"prompt": "0.00001", "completion": "0.00003"}},
			{"id": "free/one", "context_length": 8192, "pricing": {"prompt": "0", "completion": "0"}},
			{"id": "free/archived", "archived": true, "pricing": {"prompt": "0", "completion": "0"}}
		]}`))
	}))
	defer server.Close()

	free, err := newTestClient(server.URL, Options{APIKey: testKey}).FreeModels(context.Background())
	require.NoError(t, err)
	require.Len(t, free, 1)
	assert.Equal(t, "free/one", free[0].ID)
	assert.Equal(t, int32(1), hits.Load())
}

func TestFreeModels_NotAnObject(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id": "x"}]`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, Options{}).FreeModels(context.Background())

	var malformed *MalformedResponseError
	assert.True(t, errors.As(err, &malformed))
}

func TestFreeModels_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, Options{}).FreeModels(context.Background())

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.Status)
	assert.Contains(t, httpErr.Error(), "Service Unavailable")
}
