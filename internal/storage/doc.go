// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists completion replies as timestamped text files.
//
// Each successful reply is written once to
//
//	<dir>/YYYY-MM-DD_HH-MM-SS.txt
//
// named after its completion time. Downstream tools pick up the newest
// file, so names sort by time and are never overwritten.
//
// # Key Types
//
//   - ArtifactStore: writes artifacts and finds the newest one
//   - Artifact: a parsed artifact file name
//
// # Usage
//
//	store := storage.NewArtifactStore("generated_texts")
//	path, err := store.Save(reply, time.Now())
//
//	latest, err := store.Latest()
//	text, err := store.ReadText(latest)
package storage
