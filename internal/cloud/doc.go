// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud is the OpenRouter transport.
//
// It sends chat completion requests and fetches the model catalog. Each
// method issues exactly one HTTP request; fallback and retry decisions
// belong to the caller.
//
// # Key Types
//
//   - Client: HTTP client for the OpenRouter API
//   - ChatRequest / ChatResponse: chat completion payloads
//   - HTTPError: transport failure or non-2xx status
//   - MalformedResponseError: a 2xx payload missing required fields
//
// # Usage
//
//	client := cloud.NewClient(cloud.Options{APIKey: key})
//	resp, err := client.Chat(ctx, cloud.ChatRequest{
//	    Model: "openrouter/auto",
//	    Messages: []cloud.ChatMessage{
//	        cloud.NewSystemMessage(system),
//	        cloud.NewUserMessage(user),
//	    },
//	})
//
// # Logging
//
// Requests are logged at debug level with method, path, status and
// duration. Headers and bodies are never logged.
package cloud
