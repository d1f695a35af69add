// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package catalog parses the OpenRouter model catalog, classifies free
// models and ranks them for selection.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNoModelAvailable is returned when a snapshot holds no selectable model.
var ErrNoModelAvailable = errors.New("no free models available to select")

// Pricing holds the per-token prices of a model.
type Pricing struct {
	Prompt     Number
	Completion Number
}

// Descriptor is one model entry from the catalog. Numeric fields keep
// their parse state so an unknown price is never mistaken for zero.
type Descriptor struct {
	ID            string
	Name          string
	ContextLength Number
	Quality       Number
	Pricing       Pricing
	Archived      bool
	Disabled      bool
}

// IsFree reports whether both prices parsed and equal exactly zero.
func (d Descriptor) IsFree() bool {
	p, c := d.Pricing.Prompt, d.Pricing.Completion
	return p.IsPresent() && c.IsPresent() && p.Value == 0 && c.Value == 0
}

// Eligible reports whether the model is free and neither archived nor disabled.
func (d Descriptor) Eligible() bool {
	return d.IsFree() && !d.Archived && !d.Disabled
}

// Snapshot is one fetch of the catalog in provider order. It is valid only
// for the request that fetched it.
type Snapshot []Descriptor

// rawDescriptor mirrors a catalog entry before classification.
type rawDescriptor struct {
	ID            json.RawMessage `json:"id"`
	Name          json.RawMessage `json:"name"`
	ContextLength json.RawMessage `json:"context_length"`
	Context       json.RawMessage `json:"context"`
	Quality       json.RawMessage `json:"quality"`
	Pricing       json.RawMessage `json:"pricing"`
	Archived      json.RawMessage `json:"archived"`
	Disabled      json.RawMessage `json:"disabled"`
}

type rawPricing struct {
	Prompt     json.RawMessage `json:"prompt"`
	Completion json.RawMessage `json:"completion"`
}

// Parse decodes a catalog payload. The model list may sit under "data" or
// "models"; "data" wins when it is a non-empty array. A missing list is an
// empty snapshot. Entries that are not objects or lack a string id are
// skipped. Parse fails only when the payload is not a JSON object.
func Parse(body []byte) (Snapshot, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("catalog payload is not a JSON object: %w", err)
	}

	entries := rawList(envelope["data"])
	if len(entries) == 0 {
		entries = rawList(envelope["models"])
	}

	snapshot := make(Snapshot, 0, len(entries))
	for _, entry := range entries {
		d, ok := parseDescriptor(entry)
		if !ok {
			continue
		}
		snapshot = append(snapshot, d)
	}
	return snapshot, nil
}

// FilterFree returns the eligible descriptors of s in their original order.
func FilterFree(s Snapshot) Snapshot {
	free := make(Snapshot, 0, len(s))
	for _, d := range s {
		if d.Eligible() {
			free = append(free, d)
		}
	}
	return free
}

func rawList(raw json.RawMessage) []json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil
	}
	return list
}

func parseDescriptor(entry json.RawMessage) (Descriptor, bool) {
	var raw rawDescriptor
	if err := json.Unmarshal(entry, &raw); err != nil {
		return Descriptor{}, false
	}

	var id string
	if err := json.Unmarshal(raw.ID, &id); err != nil || id == "" {
		return Descriptor{}, false
	}

	d := Descriptor{
		ID:            id,
		ContextLength: parseNumber(raw.ContextLength),
		Quality:       parseNumber(raw.Quality),
		Pricing:       parsePricing(raw.Pricing),
		Archived:      parseFlag(raw.Archived),
		Disabled:      parseFlag(raw.Disabled),
	}
	if d.ContextLength.Presence == Absent {
		d.ContextLength = parseNumber(raw.Context)
	}
	_ = json.Unmarshal(raw.Name, &d.Name)
	return d, true
}

// parsePricing classifies the pricing object. A missing or null object
// leaves both prices Absent; any other non-object shape makes both Invalid.
func parsePricing(raw json.RawMessage) Pricing {
	if len(raw) == 0 || string(raw) == "null" {
		return Pricing{}
	}
	var p rawPricing
	if err := json.Unmarshal(raw, &p); err != nil {
		return Pricing{
			Prompt:     Number{Presence: Invalid},
			Completion: Number{Presence: Invalid},
		}
	}
	return Pricing{
		Prompt:     ParsePrice(p.Prompt),
		Completion: ParsePrice(p.Completion),
	}
}
