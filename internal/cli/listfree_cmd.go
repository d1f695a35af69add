// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// listfree_cmd.go - The --list-free command.
package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jeranaias/freeroute/internal/catalog"
)

// noFreeModelsMessage is printed when the catalog has no free models. It is
// not an error.
const noFreeModelsMessage = "No free models found at this time. Try again later or fund your account."

// listFree prints the eligible free models, best first. The catalog
// endpoint does not need a key, so a missing credential is not checked.
func (a *app) listFree(ctx context.Context) (interface{}, error) {
	snapshot, err := a.newClient().FreeModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not fetch models: %w", err)
	}

	var selector catalog.Selector
	ranked := selector.Rank(snapshot)

	data := ListFreeData{Models: make([]FreeModelData, 0, len(ranked))}
	for _, d := range ranked {
		data.Models = append(data.Models, FreeModelData{
			ID:            d.ID,
			Name:          d.Name,
			ContextLength: numberPtr(d.ContextLength),
			Quality:       numberPtr(d.Quality),
		})
	}
	if len(ranked) > 0 {
		data.Best = ranked[0].ID
	}

	if a.args.JSON {
		return data, nil
	}

	if len(ranked) == 0 {
		fmt.Fprintln(a.stderr, RenderConditional(a.stderr, WarningStyle, noFreeModelsMessage))
		return data, nil
	}

	fmt.Fprintln(a.stdout, RenderConditional(a.stdout, TitleStyle, "Free models available:"))
	for _, d := range ranked {
		fmt.Fprintln(a.stdout, formatFreeModel(d))
	}
	fmt.Fprintln(a.stdout)
	fmt.Fprintln(a.stdout, RenderConditional(a.stdout, DimStyle, "Use one with: freeroute --model <model-id>"))
	return data, nil
}

// formatFreeModel renders "- id (ctx: N)", or "- id" without a known
// context length.
func formatFreeModel(d catalog.Descriptor) string {
	if !d.ContextLength.IsPresent() || d.ContextLength.Value <= 0 {
		return "- " + d.ID
	}
	return fmt.Sprintf("- %s (ctx: %s)", d.ID, strconv.FormatFloat(d.ContextLength.Value, 'f', -1, 64))
}

func numberPtr(n catalog.Number) *float64 {
	if !n.IsPresent() {
		return nil
	}
	v := n.Value
	return &v
}
