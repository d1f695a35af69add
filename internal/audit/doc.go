// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package audit keeps the append-only, human-readable log of fallback
// decisions and request failures.
//
// Each line has the form
//
//	[YYYY-MM-DD_HH-MM-SS] EVENT message key=value ...
//
// Messages and field values pass through secret redactors before they are
// written. Writes through Record never fail the caller.
package audit
