// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// history_cmd.go - The history and latest commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jeranaias/freeroute/internal/history"
	"github.com/jeranaias/freeroute/internal/storage"
	"github.com/jeranaias/freeroute/internal/util"
)

// Column widths for the history table.
const (
	colID      = 8
	colStarted = 19
	colStatus  = 6
	colModel   = 36
)

// =============================================================================
// HISTORY
// =============================================================================

// history lists recent runs from the ledger, newest first.
func (a *app) history(ctx context.Context) (interface{}, error) {
	store, err := history.Open(a.cfg.History.Path)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	runs, err := store.Recent(ctx, a.args.Limit)
	if err != nil {
		return nil, err
	}
	total, err := store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count runs: %w", err)
	}

	data := HistoryData{Path: store.Path(), Total: total, Runs: runs}
	if a.args.JSON {
		return data, nil
	}

	if len(runs) == 0 {
		fmt.Fprintln(a.stdout, "No runs recorded yet.")
		return data, nil
	}

	w := a.stdout
	header := strings.Join([]string{
		util.PadWidth("RUN", colID),
		util.PadWidth("STARTED", colStarted),
		util.PadWidth("STATUS", colStatus),
		util.PadWidth("MODEL", colModel),
		"REPLY",
	}, "  ")
	fmt.Fprintln(w, RenderConditional(w, TitleStyle, header))
	fmt.Fprintln(w, RenderSeparator(w, util.StringWidth(header)))

	for _, r := range runs {
		fmt.Fprintln(w, strings.Join([]string{
			util.PadWidth(util.TruncateWidth(r.ID, colID), colID),
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			statusCell(w, r.Status),
			util.PadWidth(util.TruncateWidth(modelCell(r), colModel), colModel),
			replyCell(r),
		}, "  "))
	}
	fmt.Fprintf(w, "\n%s\n", RenderConditional(w, DimStyle,
		fmt.Sprintf("Showing %d of %d runs from %s", len(runs), total, store.Path())))
	return data, nil
}

func statusCell(w io.Writer, status string) string {
	label := "ok"
	if status != history.StatusSuccess {
		label = "failed"
	}
	// Pad before styling so escape codes do not break alignment.
	padded := util.PadWidth(label, colStatus)
	if status == history.StatusSuccess {
		return RenderConditional(w, SuccessStyle, padded)
	}
	return RenderConditional(w, ErrorStyle, padded)
}

func modelCell(r history.Run) string {
	switch {
	case r.UsedModel == "":
		return r.RequestedModel
	case r.FellBack:
		return r.UsedModel + " (free)"
	default:
		return r.UsedModel
	}
}

func replyCell(r history.Run) string {
	if r.ArtifactPath != "" {
		return r.ArtifactPath
	}
	return util.TruncateWidth(util.SingleLine(r.Error), 60)
}

// =============================================================================
// LATEST
// =============================================================================

// latest finds the newest reply artifact and prints its path, or its
// content with --print.
func (a *app) latest() (interface{}, error) {
	store := storage.NewArtifactStore(a.cfg.Output.Dir)

	artifact, err := store.Latest()
	if err != nil {
		return nil, err
	}
	data := LatestData{
		Path:      artifact.Path,
		Timestamp: artifact.Timestamp.Format(storage.TimestampLayout),
	}

	if a.args.Print {
		text, err := store.ReadText(artifact)
		if err != nil {
			return data, err
		}
		data.Text = text
	}

	if a.args.JSON {
		return data, nil
	}
	if a.args.Print {
		fmt.Fprintln(a.stdout, renderReply(a.stdout, data.Text, a.args.Raw))
		return data, nil
	}
	fmt.Fprintln(a.stdout, artifact.Path)
	return data, nil
}
