// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/freeroute/internal/audit"
	"github.com/jeranaias/freeroute/internal/catalog"
	"github.com/jeranaias/freeroute/internal/cloud"
	"github.com/jeranaias/freeroute/internal/prompt"
)

// =============================================================================
// FAKES
// =============================================================================

type chatOutcome struct {
	content string
	err     error
}

type fakeChat struct {
	outcomes map[string]chatOutcome
	calls    []cloud.ChatRequest
}

func (f *fakeChat) Chat(_ context.Context, req cloud.ChatRequest) (*cloud.ChatResponse, error) {
	f.calls = append(f.calls, req)
	out, ok := f.outcomes[req.Model]
	if !ok {
		return nil, &cloud.HTTPError{Status: http.StatusNotFound, Method: http.MethodPost, URL: "fake"}
	}
	if out.err != nil {
		return nil, out.err
	}
	body, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"message": map[string]any{"content": out.content}}},
		"usage":   map[string]any{"prompt_tokens": 3, "completion_tokens": 5},
	})
	var resp cloud.ChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (f *fakeChat) models() []string {
	ids := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		ids = append(ids, c.Model)
	}
	return ids
}

type fakeCatalog struct {
	snapshot catalog.Snapshot
	err      error
	calls    int
}

func (f *fakeCatalog) FreeModels(context.Context) (catalog.Snapshot, error) {
	f.calls++
	return f.snapshot, f.err
}

type savedArtifact struct {
	text string
	at   time.Time
}

type fakeArtifacts struct {
	saved []savedArtifact
	err   error
}

func (f *fakeArtifacts) Save(text string, at time.Time) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.saved = append(f.saved, savedArtifact{text, at})
	return "generated_texts/" + at.Format("2006-01-02_15-04-05") + ".txt", nil
}

type memoryEvents struct {
	events []audit.Event
}

func (m *memoryEvents) Record(e audit.Event) {
	m.events = append(m.events, e)
}

func (m *memoryEvents) types() []audit.EventType {
	out := make([]audit.EventType, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Type)
	}
	return out
}

func free(id string, ctx float64) catalog.Descriptor {
	return catalog.Descriptor{
		ID:            id,
		ContextLength: catalog.Some(ctx),
		Pricing:       catalog.Pricing{Prompt: catalog.Some(0), Completion: catalog.Some(0)},
	}
}

func paymentRequired() error {
	return &cloud.HTTPError{Status: http.StatusPaymentRequired, Method: http.MethodPost, URL: "fake", Message: "Insufficient credits"}
}

var fixedNow = time.Date(2025, 5, 1, 9, 30, 0, 0, time.Local)

type harness struct {
	chat      *fakeChat
	catalog   *fakeCatalog
	artifacts *fakeArtifacts
	events    *memoryEvents
	orch      *Orchestrator
}

func newHarness(outcomes map[string]chatOutcome, snapshot catalog.Snapshot) *harness {
	h := &harness{
		chat:      &fakeChat{outcomes: outcomes},
		catalog:   &fakeCatalog{snapshot: snapshot},
		artifacts: &fakeArtifacts{},
		events:    &memoryEvents{},
	}
	h.orch = New(Deps{
		Chat:      h.chat,
		Catalog:   h.catalog,
		Artifacts: h.artifacts,
		Events:    h.events,
		Now:       func() time.Time { return fixedNow },
	})
	return h
}

var pair = prompt.Pair{System: "You are terse.", User: "Say hi."}

// =============================================================================
// HAPPY PATH
// =============================================================================

func TestComplete_Success(t *testing.T) {
	h := newHarness(map[string]chatOutcome{"paid/m": {content: "  Hello!  "}}, nil)

	result, err := h.orch.Complete(context.Background(), Request{Model: "paid/m", Prompt: pair})
	require.NoError(t, err)

	assert.Equal(t, "Hello!", result.Reply)
	assert.Equal(t, "paid/m", result.Model)
	assert.False(t, result.FellBack)
	assert.Equal(t, fixedNow, result.CompletedAt)
	require.NotNil(t, result.Usage)
	assert.Equal(t, 5, result.Usage.CompletionTokens)

	require.Len(t, h.artifacts.saved, 1)
	assert.Equal(t, result.Reply, h.artifacts.saved[0].text)
	assert.Equal(t, fixedNow, h.artifacts.saved[0].at)
	assert.Equal(t, "generated_texts/2025-05-01_09-30-00.txt", result.ArtifactPath)

	assert.Equal(t, 0, h.catalog.calls)
	assert.Empty(t, h.events.events)

	require.Len(t, h.chat.calls, 1)
	msgs := h.chat.calls[0].Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, cloud.NewSystemMessage(pair.System), msgs[0])
	assert.Equal(t, cloud.NewUserMessage(pair.User), msgs[1])
	assert.Nil(t, h.chat.calls[0].Temperature)
}

func TestComplete_DefaultModelAndTemperature(t *testing.T) {
	h := newHarness(map[string]chatOutcome{cloud.DefaultModel: {content: "ok"}}, nil)
	temp := 0.3

	_, err := h.orch.Complete(context.Background(), Request{Prompt: pair, Temperature: &temp})
	require.NoError(t, err)

	require.Len(t, h.chat.calls, 1)
	assert.Equal(t, cloud.DefaultModel, h.chat.calls[0].Model)
	require.NotNil(t, h.chat.calls[0].Temperature)
	assert.Equal(t, 0.3, *h.chat.calls[0].Temperature)
}

// =============================================================================
// FALLBACK
// =============================================================================

func TestComplete_FallbackAfterPaymentRequired(t *testing.T) {
	h := newHarness(
		map[string]chatOutcome{
			"paid/m": {err: paymentRequired()},
			"free/y": {content: "free reply"},
		},
		catalog.Snapshot{free("free/x", 8192), free("free/y", 32768)},
	)

	result, err := h.orch.Complete(context.Background(), Request{Model: "paid/m", Prompt: pair})
	require.NoError(t, err)

	assert.Equal(t, []string{"paid/m", "free/y"}, h.chat.models())
	assert.Equal(t, 1, h.catalog.calls)
	assert.True(t, result.FellBack)
	assert.Equal(t, "paid/m", result.FailedModel)
	assert.Equal(t, "free/y", result.Model)
	assert.Equal(t, "free reply", result.Reply)
	require.Len(t, h.artifacts.saved, 1)
	assert.Equal(t, "free reply", h.artifacts.saved[0].text)

	assert.Equal(t, []audit.EventType{audit.EventFallback, audit.EventRetry}, h.events.types())
	assert.Equal(t, "402 error with model paid/m, attempting free model fallback", h.events.events[0].Message)
	assert.Equal(t, "Retrying with free model: free/y", h.events.events[1].Message)
}

func TestComplete_FallbackRetryFailureIsFinal(t *testing.T) {
	h := newHarness(
		map[string]chatOutcome{
			"paid/m": {err: paymentRequired()},
			"free/y": {err: paymentRequired()},
		},
		catalog.Snapshot{free("free/y", 32768)},
	)

	_, err := h.orch.Complete(context.Background(), Request{Model: "paid/m", Prompt: pair})
	require.Error(t, err)
	assert.True(t, cloud.IsPaymentRequired(err))

	assert.Equal(t, []string{"paid/m", "free/y"}, h.chat.models(), "no second fallback")
	assert.Equal(t, 1, h.catalog.calls)
	assert.Empty(t, h.artifacts.saved)
	assert.Equal(t, []audit.EventType{audit.EventFallback, audit.EventRetry, audit.EventHTTPError}, h.events.types())
}

func TestComplete_FallbackRetryOtherError(t *testing.T) {
	serverErr := &cloud.HTTPError{Status: http.StatusInternalServerError, Method: http.MethodPost, URL: "fake"}
	h := newHarness(
		map[string]chatOutcome{
			"paid/m": {err: paymentRequired()},
			"free/y": {err: serverErr},
		},
		catalog.Snapshot{free("free/y", 1)},
	)

	_, err := h.orch.Complete(context.Background(), Request{Model: "paid/m", Prompt: pair})
	assert.Same(t, serverErr, err)
}

func TestComplete_FallbackSameModelAbandoned(t *testing.T) {
	original := paymentRequired()
	h := newHarness(
		map[string]chatOutcome{"free/y": {err: original}},
		catalog.Snapshot{free("free/y", 32768)},
	)

	_, err := h.orch.Complete(context.Background(), Request{Model: "free/y", Prompt: pair})
	assert.Same(t, original, err)

	assert.Equal(t, []string{"free/y"}, h.chat.models())
	assert.Equal(t, []audit.EventType{audit.EventFallback, audit.EventFallbackFailed}, h.events.types())
	assert.Equal(t, "Free model fallback failed: no suitable model found", h.events.events[1].Message)
}

func TestComplete_FallbackNoFreeModels(t *testing.T) {
	original := paymentRequired()
	h := newHarness(map[string]chatOutcome{"paid/m": {err: original}}, catalog.Snapshot{})

	_, err := h.orch.Complete(context.Background(), Request{Model: "paid/m", Prompt: pair})
	assert.Same(t, original, err)

	assert.Equal(t, 1, h.catalog.calls)
	assert.Len(t, h.chat.calls, 1)
	assert.Equal(t, []audit.EventType{audit.EventFallback, audit.EventFallbackFailed}, h.events.types())
}

func TestComplete_FallbackCatalogFailure(t *testing.T) {
	original := paymentRequired()
	h := newHarness(map[string]chatOutcome{"paid/m": {err: original}}, nil)
	h.catalog.err = &cloud.HTTPError{Status: http.StatusServiceUnavailable, Method: http.MethodGet, URL: "fake"}

	_, err := h.orch.Complete(context.Background(), Request{Model: "paid/m", Prompt: pair})
	assert.Same(t, original, err, "the original 402 is surfaced")

	require.Len(t, h.events.events, 2)
	assert.Equal(t, audit.EventFallbackFailed, h.events.events[1].Type)
	assert.Contains(t, h.events.events[1].Message, "could not fetch models")
}

func TestComplete_NonPaymentErrorNoFallback(t *testing.T) {
	serverErr := &cloud.HTTPError{Status: http.StatusBadGateway, Method: http.MethodPost, URL: "fake"}
	h := newHarness(map[string]chatOutcome{"paid/m": {err: serverErr}}, catalog.Snapshot{free("free/y", 1)})

	_, err := h.orch.Complete(context.Background(), Request{Model: "paid/m", Prompt: pair})
	assert.Same(t, serverErr, err)

	assert.Equal(t, 0, h.catalog.calls)
	assert.Len(t, h.chat.calls, 1)
	require.Len(t, h.events.events, 1)
	assert.Equal(t, audit.EventHTTPError, h.events.events[0].Type)
	assert.Equal(t, "502", h.events.events[0].Fields["status"])
}

func TestComplete_MissingCredentialNoFallback(t *testing.T) {
	h := newHarness(map[string]chatOutcome{"paid/m": {err: cloud.ErrMissingCredential}}, nil)

	_, err := h.orch.Complete(context.Background(), Request{Model: "paid/m", Prompt: pair})
	assert.ErrorIs(t, err, cloud.ErrMissingCredential)
	assert.Equal(t, []audit.EventType{audit.EventError}, h.events.types())
}

// =============================================================================
// FREE-ONLY MODE
// =============================================================================

func TestComplete_FreeOnlySelectsUpFront(t *testing.T) {
	h := newHarness(
		map[string]chatOutcome{"free/big": {content: "hi"}},
		catalog.Snapshot{free("free/small", 4096), free("free/big", 131072)},
	)

	result, err := h.orch.Complete(context.Background(), Request{Model: "paid/m", Prompt: pair, FreeOnly: true})
	require.NoError(t, err)

	assert.Equal(t, "free/big", result.Model)
	assert.False(t, result.FellBack)
	assert.Equal(t, []string{"free/big"}, h.chat.models())
	assert.Equal(t, 1, h.catalog.calls)
}

func TestComplete_FreeOnlyNoFallbackOn402(t *testing.T) {
	original := paymentRequired()
	h := newHarness(
		map[string]chatOutcome{"free/big": {err: original}},
		catalog.Snapshot{free("free/big", 131072), free("free/other", 1)},
	)

	_, err := h.orch.Complete(context.Background(), Request{Prompt: pair, FreeOnly: true})
	assert.Same(t, original, err)

	assert.Equal(t, 1, h.catalog.calls, "catalog is fetched once, for the up-front pick only")
	assert.Len(t, h.chat.calls, 1)
	assert.Equal(t, []audit.EventType{audit.EventHTTPError}, h.events.types())
}

func TestComplete_FreeOnlyNoModel(t *testing.T) {
	h := newHarness(nil, catalog.Snapshot{})

	_, err := h.orch.Complete(context.Background(), Request{Prompt: pair, FreeOnly: true})

	var noModel *NoModelAvailableError
	require.True(t, errors.As(err, &noModel))
	assert.ErrorIs(t, err, catalog.ErrNoModelAvailable)
	assert.Empty(t, h.chat.calls)
}

func TestComplete_FreeOnlyCatalogFailure(t *testing.T) {
	catErr := &cloud.HTTPError{Status: http.StatusServiceUnavailable, Method: http.MethodGet, URL: "fake"}
	h := newHarness(nil, nil)
	h.catalog.err = catErr

	_, err := h.orch.Complete(context.Background(), Request{Prompt: pair, FreeOnly: true})
	assert.Same(t, catErr, err)
	assert.Empty(t, h.chat.calls)
}

// =============================================================================
// RESPONSE AND PERSISTENCE FAILURES
// =============================================================================

type malformedChat struct{}

func (malformedChat) Chat(context.Context, cloud.ChatRequest) (*cloud.ChatResponse, error) {
	return &cloud.ChatResponse{}, nil
}

func TestComplete_MalformedResponse(t *testing.T) {
	artifacts := &fakeArtifacts{}
	events := &memoryEvents{}
	orch := New(Deps{Chat: malformedChat{}, Catalog: &fakeCatalog{}, Artifacts: artifacts, Events: events})

	_, err := orch.Complete(context.Background(), Request{Model: "m", Prompt: pair})

	var malformed *cloud.MalformedResponseError
	require.True(t, errors.As(err, &malformed))
	assert.Empty(t, artifacts.saved)
	assert.Equal(t, []audit.EventType{audit.EventError}, events.types())
}

func TestComplete_SaveFailure(t *testing.T) {
	h := newHarness(map[string]chatOutcome{"m": {content: "reply"}}, nil)
	h.artifacts.err = errors.New("disk full")

	_, err := h.orch.Complete(context.Background(), Request{Model: "m", Prompt: pair})
	assert.EqualError(t, err, "disk full")
}

func TestNew_NilEventsIsSafe(t *testing.T) {
	orch := New(Deps{
		Chat:      &fakeChat{outcomes: map[string]chatOutcome{"m": {err: errors.New("boom")}}},
		Catalog:   &fakeCatalog{},
		Artifacts: &fakeArtifacts{},
	})

	_, err := orch.Complete(context.Background(), Request{Model: "m", Prompt: pair})
	assert.EqualError(t, err, "boom")
}
