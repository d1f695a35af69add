// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading for freeroute.
//
// Configuration is TOML with built-in defaults, .env loading, environment
// variable overrides and validation.
//
// # Configuration Precedence
//
// Later sources win:
//   - Built-in defaults
//   - The first file found: --config PATH, ./freeroute.toml, ~/.freeroute/config.toml
//   - Environment variables (OPENROUTER_*, FREEROUTE_*), including a .env file
//   - Command-line flags (applied by the cli package)
//
// # Usage
//
//	_ = config.LoadDotEnv(".env")
//	cfg, path, err := config.Load(flagPath)
//	if err != nil {
//	    return err
//	}
//	timeout := cfg.Timeout()
package config
