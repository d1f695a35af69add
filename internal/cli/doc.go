// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and execution for freeroute.
//
// # Key Types
//
//   - Command: the command to execute (run, list-free, history, latest, ...)
//   - Args: parsed command-line arguments
//   - ArgParser: flag and positional argument parsing
//   - JSONResponse: the envelope printed by --json
//
// # Usage
//
//	os.Exit(cli.Run(os.Args[1:], os.Stdout, os.Stderr))
//
// # Commands Overview
//
//   - (default): load the prompts and run one completion
//   - --list-free: list free models, best first
//   - history: recent runs from the local ledger
//   - latest: the newest saved reply
//   - version, help
//
// Exit codes are defined in errors.go: 0 success, 1 input or usage error,
// 2 unrecovered HTTP error, 3 anything else.
package cli
