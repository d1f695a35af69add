// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jeranaias/freeroute/internal/audit"
	"github.com/jeranaias/freeroute/internal/catalog"
	"github.com/jeranaias/freeroute/internal/cloud"
	"github.com/jeranaias/freeroute/internal/prompt"
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// ChatClient sends one chat completion request.
type ChatClient interface {
	Chat(ctx context.Context, req cloud.ChatRequest) (*cloud.ChatResponse, error)
}

// CatalogClient fetches the free-model snapshot.
type CatalogClient interface {
	FreeModels(ctx context.Context) (catalog.Snapshot, error)
}

// ArtifactSaver persists a reply under its completion time.
type ArtifactSaver interface {
	Save(text string, at time.Time) (string, error)
}

// EventLog receives audit events. Implementations must not fail the caller.
type EventLog interface {
	Record(e audit.Event)
}

// Deps wires the orchestrator. Events, Selector and Now are optional.
type Deps struct {
	Chat      ChatClient
	Catalog   CatalogClient
	Artifacts ArtifactSaver
	Events    EventLog
	Selector  catalog.Selector
	Now       func() time.Time
}

// =============================================================================
// REQUEST / RESULT
// =============================================================================

// Request is one completion run.
type Request struct {
	// Model is the requested model; empty means cloud.DefaultModel.
	Model       string
	Prompt      prompt.Pair
	Temperature *float64
	// FreeOnly picks the best free model up front and disables the 402
	// fallback.
	FreeOnly bool
}

// Result describes a successful run.
type Result struct {
	Reply        string
	Model        string
	ArtifactPath string
	CompletedAt  time.Time
	// FellBack is set when the reply came from the free-model retry.
	FellBack bool
	// FailedModel is the model that answered 402 when FellBack is set.
	FailedModel string
	Usage       *cloud.Usage
}

// NoModelAvailableError means free-only mode found no eligible model.
type NoModelAvailableError struct {
	Reason string
}

// Error implements the error interface.
func (e *NoModelAvailableError) Error() string {
	if e.Reason == "" {
		return catalog.ErrNoModelAvailable.Error()
	}
	return catalog.ErrNoModelAvailable.Error() + ": " + e.Reason
}

// Is matches catalog.ErrNoModelAvailable.
func (e *NoModelAvailableError) Is(target error) bool {
	return target == catalog.ErrNoModelAvailable
}

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Orchestrator runs a completion with at most one free-model retry after an
// HTTP 402.
type Orchestrator struct {
	chat      ChatClient
	catalog   CatalogClient
	artifacts ArtifactSaver
	events    EventLog
	selector  catalog.Selector
	now       func() time.Time
}

// New creates an orchestrator from deps.
func New(deps Deps) *Orchestrator {
	o := &Orchestrator{
		chat:      deps.Chat,
		catalog:   deps.Catalog,
		artifacts: deps.Artifacts,
		events:    deps.Events,
		selector:  deps.Selector,
		now:       deps.Now,
	}
	if o.events == nil {
		o.events = audit.Nop{}
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// Complete runs req. In free-only mode the best free model replaces
// req.Model before the first attempt. Otherwise a 402 on the first attempt
// triggers exactly one retry with the best free model, unless no model is
// available or the best one is the model that just failed; in those cases
// the original error is returned. The retry's outcome is final.
func (o *Orchestrator) Complete(ctx context.Context, req Request) (*Result, error) {
	model := req.Model
	if model == "" {
		model = cloud.DefaultModel
	}

	if req.FreeOnly {
		chosen, err := o.bestFree(ctx)
		if err != nil {
			o.recordFailure(err)
			return nil, err
		}
		model = chosen
	}

	// First attempt.
	result, err := o.attempt(ctx, model, req)
	if err == nil {
		return result, nil
	}
	if req.FreeOnly || !cloud.IsPaymentRequired(err) {
		o.recordFailure(err)
		return nil, err
	}

	// Fallback: one retry with a different, free model.
	o.events.Record(audit.Event{
		Type:    audit.EventFallback,
		Message: fmt.Sprintf("402 error with model %s, attempting free model fallback", model),
		Fields:  map[string]string{"model": model},
	})

	candidate, selErr := o.bestFree(ctx)
	switch {
	case selErr != nil:
		var noModel *NoModelAvailableError
		reason := "no suitable model found"
		if !errors.As(selErr, &noModel) {
			reason = "could not fetch models: " + selErr.Error()
		}
		o.events.Record(audit.Event{
			Type:    audit.EventFallbackFailed,
			Message: "Free model fallback failed: " + reason,
		})
		return nil, err
	case candidate == model:
		o.events.Record(audit.Event{
			Type:    audit.EventFallbackFailed,
			Message: "Free model fallback failed: no suitable model found",
			Fields:  map[string]string{"candidate": candidate},
		})
		return nil, err
	}

	o.events.Record(audit.Event{
		Type:    audit.EventRetry,
		Message: "Retrying with free model: " + candidate,
		Fields:  map[string]string{"model": candidate},
	})

	result, retryErr := o.attempt(ctx, candidate, req)
	if retryErr != nil {
		o.recordFailure(retryErr)
		return nil, retryErr
	}
	result.FellBack = true
	result.FailedModel = model
	return result, nil
}

// attempt sends one chat request and persists the reply on success.
func (o *Orchestrator) attempt(ctx context.Context, model string, req Request) (*Result, error) {
	resp, err := o.chat.Chat(ctx, cloud.ChatRequest{
		Model: model,
		Messages: []cloud.ChatMessage{
			cloud.NewSystemMessage(req.Prompt.System),
			cloud.NewUserMessage(req.Prompt.User),
		},
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, err
	}

	reply, err := resp.Reply()
	if err != nil {
		return nil, err
	}

	completedAt := o.now()
	path, err := o.artifacts.Save(reply, completedAt)
	if err != nil {
		return nil, err
	}

	return &Result{
		Reply:        reply,
		Model:        model,
		ArtifactPath: path,
		CompletedAt:  completedAt,
		Usage:        resp.Usage,
	}, nil
}

// bestFree fetches a fresh snapshot and returns the top-ranked free model.
func (o *Orchestrator) bestFree(ctx context.Context) (string, error) {
	snapshot, err := o.catalog.FreeModels(ctx)
	if err != nil {
		return "", err
	}
	chosen, ok := o.selector.Best(snapshot)
	if !ok {
		return "", &NoModelAvailableError{Reason: "catalog has no free models"}
	}
	return chosen, nil
}

func (o *Orchestrator) recordFailure(err error) {
	var httpErr *cloud.HTTPError
	if errors.As(err, &httpErr) {
		fields := map[string]string{}
		if httpErr.Status != 0 {
			fields["status"] = fmt.Sprint(httpErr.Status)
		}
		o.events.Record(audit.Event{
			Type:    audit.EventHTTPError,
			Message: "HTTP error: " + httpErr.Error(),
			Fields:  fields,
		})
		return
	}
	o.events.Record(audit.Event{
		Type:    audit.EventError,
		Message: err.Error(),
	})
}
