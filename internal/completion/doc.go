// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package completion runs a chat completion with a single free-model
// fallback.
//
// The flow has two stages. The first attempt uses the requested model (or,
// in free-only mode, the best free model). If it fails with HTTP 402 and
// free-only mode is off, the catalog is fetched again and the best free
// model gets exactly one more attempt. Whatever that attempt returns is
// final. Every successful reply is saved once before Complete returns.
package completion
