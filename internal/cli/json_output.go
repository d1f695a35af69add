// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// json_output.go - Machine-readable output for --json.
//
// Every command prints the same envelope so scripts can check "success"
// before reading "data". Human-readable messages go to stderr in JSON mode.
package cli

import (
	"encoding/json"
	"io"
	"time"
)

// JSONResponse is the response envelope for all commands.
type JSONResponse struct {
	// Success indicates whether the command completed successfully
	Success bool `json:"success"`

	// Data contains the command-specific response data
	Data interface{} `json:"data"`

	// Error contains the error message if Success is false, null otherwise
	Error *string `json:"error"`

	// ExitCode is the process exit code that accompanies the response
	ExitCode int `json:"exit_code"`

	// Timestamp is the RFC 3339 time the response was generated
	Timestamp string `json:"timestamp"`

	// Command is the command that was executed
	Command string `json:"command,omitempty"`
}

// NewJSONResponse creates a new successful JSON response.
func NewJSONResponse(command string, data interface{}) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Error:     nil,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates an error response. data may carry partial
// results, such as the models tried before the failure.
func NewJSONErrorResponse(command string, err error, data interface{}) *JSONResponse {
	errStr := userMessage(err)
	return &JSONResponse{
		Success:   false,
		Data:      data,
		Error:     &errStr,
		ExitCode:  ExitCodeFor(err),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Print writes the response to w as indented JSON.
func (r *JSONResponse) Print(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// =============================================================================
// COMMAND-SPECIFIC DATA STRUCTURES
// =============================================================================

// RunData is returned by the default completion command.
type RunData struct {
	RunID          string `json:"run_id"`
	RequestedModel string `json:"requested_model"`
	Model          string `json:"model,omitempty"`
	FellBack       bool   `json:"fell_back"`
	Reply          string `json:"reply,omitempty"`
	ArtifactPath   string `json:"artifact_path,omitempty"`
	PromptTokens   int    `json:"prompt_tokens,omitempty"`
	OutputTokens   int    `json:"completion_tokens,omitempty"`
	DurationMs     int64  `json:"duration_ms"`
}

// FreeModelData is one entry of --list-free.
type FreeModelData struct {
	ID            string   `json:"id"`
	Name          string   `json:"name,omitempty"`
	ContextLength *float64 `json:"context_length,omitempty"`
	Quality       *float64 `json:"quality,omitempty"`
}

// ListFreeData is returned by --list-free.
type ListFreeData struct {
	Models []FreeModelData `json:"models"`
	Best   string          `json:"best,omitempty"`
}

// HistoryData is returned by the history command.
type HistoryData struct {
	Path  string      `json:"path"`
	Total int         `json:"total"`
	Runs  interface{} `json:"runs"`
}

// LatestData is returned by the latest command.
type LatestData struct {
	Path      string `json:"path"`
	Timestamp string `json:"timestamp"`
	Text      string `json:"text,omitempty"`
}

// VersionData represents the data returned by the version command.
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version,omitempty"`
}
