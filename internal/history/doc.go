// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history records completion runs in a local SQLite database.
//
// Each invocation that sends a prompt adds one row: which model was asked
// for, which one answered, whether the free-model fallback kicked in, the
// artifact path and token usage. The ledger is informational; failures to
// write it never change a run's outcome.
//
// The database lives at ~/.freeroute/history.db by default and uses the
// pure Go modernc.org/sqlite driver.
package history
