// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small file and string helpers shared by freeroute packages.
//
// # Key Functions
//
// File Operations:
//   - CreateFileAtomic: Crash-safe create that refuses to overwrite
//
// String Utilities:
//   - TruncateRunes: UTF-8 safe string truncation with ellipsis
//   - TruncateWidth, PadWidth: Column-aware truncation for terminal tables
//   - SingleLine: Whitespace folding for one-line log records
//
// # Usage
//
//	// Persist a reply without ever clobbering an earlier one
//	err := util.CreateFileAtomic(path, []byte(reply), 0644)
//
//	// Align a model ID in a fixed-width column
//	cell := util.PadWidth(modelID, 48)
package util
