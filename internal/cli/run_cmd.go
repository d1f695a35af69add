// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// run_cmd.go - The default command: one completion with free-model fallback.
package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jeranaias/freeroute/internal/audit"
	"github.com/jeranaias/freeroute/internal/cloud"
	"github.com/jeranaias/freeroute/internal/completion"
	"github.com/jeranaias/freeroute/internal/history"
	"github.com/jeranaias/freeroute/internal/prompt"
	"github.com/jeranaias/freeroute/internal/storage"
)

// newClient builds the OpenRouter client from the loaded configuration.
func (a *app) newClient() *cloud.Client {
	return cloud.NewClient(cloud.Options{
		APIKey:  a.cfg.API.APIKey,
		BaseURL: a.cfg.API.BaseURL,
		SiteURL: a.cfg.API.SiteURL,
		AppName: a.cfg.API.AppName,
		Timeout: a.cfg.Timeout(),
	}).WithLogger(a.logger)
}

// complete loads the prompts, runs the orchestrator and prints the reply.
// Prompt files are checked before the credential so a missing file is
// reported without touching the network.
func (a *app) complete(ctx context.Context) (interface{}, error) {
	cfg := a.cfg

	pair, err := prompt.Load(cfg.Prompts.Dir, cfg.Prompts.System, cfg.Prompts.User)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.API.APIKey) == "" {
		return nil, cloud.ErrMissingCredential
	}

	client := a.newClient()
	events := audit.NewLogger(cfg.Output.AuditLog)
	orchestrator := completion.New(completion.Deps{
		Chat:      client,
		Catalog:   client,
		Artifacts: storage.NewArtifactStore(cfg.Output.Dir),
		Events:    events,
	})

	run := history.NewRun(cfg.Model.Default, cfg.Model.FreeOnly, time.Now())
	a.logger.WithFields(log.Fields{
		"run_id":    run.ID,
		"model":     cfg.Model.Default,
		"free_only": cfg.Model.FreeOnly,
	}).Debug("starting completion")

	result, err := orchestrator.Complete(ctx, completion.Request{
		Model:       cfg.Model.Default,
		Prompt:      pair,
		Temperature: cfg.Model.Temperature,
		FreeOnly:    cfg.Model.FreeOnly,
	})
	run.FinishedAt = time.Now()
	a.recordRun(ctx, run, result, err)

	data := newRunData(run, result)
	if err != nil {
		return data, err
	}

	events.Record(audit.Event{
		Type:    audit.EventCompleted,
		Message: "Saved reply to " + result.ArtifactPath,
		Fields:  map[string]string{"model": result.Model},
	})

	if !a.args.JSON {
		a.printResult(result)
	}
	return data, nil
}

// printResult writes the reply to stdout and the run details to stderr so
// stdout stays pipeable.
func (a *app) printResult(result *completion.Result) {
	fmt.Fprintln(a.stdout, renderReply(a.stdout, result.Reply, a.args.Raw))

	if result.FellBack {
		fmt.Fprintf(a.stderr, "%s %s returned 402; used free model %s\n",
			RenderConditional(a.stderr, WarningStyle, "Note:"),
			result.FailedModel,
			RenderConditional(a.stderr, HighlightStyle, result.Model))
	}
	fmt.Fprintf(a.stderr, "%s %s\n",
		RenderConditional(a.stderr, DimStyle, "Saved to"),
		result.ArtifactPath)
}

// recordRun writes the run to the history ledger. Failures are logged and
// never change the exit code.
func (a *app) recordRun(ctx context.Context, run *history.Run, result *completion.Result, runErr error) {
	run.ExitCode = ExitCodeFor(runErr)
	if runErr != nil {
		run.Status = history.StatusFailed
		run.Error = runErr.Error()
	} else {
		run.Status = history.StatusSuccess
	}
	if result != nil {
		run.UsedModel = result.Model
		run.FellBack = result.FellBack
		run.ArtifactPath = result.ArtifactPath
		if result.Usage != nil {
			run.PromptTokens = result.Usage.PromptTokens
			run.CompletionTokens = result.Usage.CompletionTokens
		}
	}

	if !a.cfg.History.Enabled {
		return
	}
	store, err := history.Open(a.cfg.History.Path)
	if err != nil {
		a.logger.WithError(err).Warn("failed to open run history")
		return
	}
	defer store.Close()

	if err := store.Record(ctx, run); err != nil {
		a.logger.WithError(err).WithField("run_id", run.ID).Warn("failed to record run")
	}
}

func newRunData(run *history.Run, result *completion.Result) RunData {
	data := RunData{
		RunID:          run.ID,
		RequestedModel: run.RequestedModel,
		DurationMs:     run.Duration().Milliseconds(),
	}
	if result != nil {
		data.Model = result.Model
		data.FellBack = result.FellBack
		data.Reply = result.Reply
		data.ArtifactPath = result.ArtifactPath
		if result.Usage != nil {
			data.PromptTokens = result.Usage.PromptTokens
			data.OutputTokens = result.Usage.CompletionTokens
		}
	}
	return data
}
