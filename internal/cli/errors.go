// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Exit codes and error display for freeroute commands.
//
// Command handlers return errors; Run decides how to display them and
// which exit code to use.

package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/freeroute/internal/catalog"
	"github.com/jeranaias/freeroute/internal/cloud"
	"github.com/jeranaias/freeroute/internal/prompt"
	"github.com/jeranaias/freeroute/internal/storage"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitInputError covers missing prompt files, a missing credential,
	// no free model to pick and invalid command usage
	ExitInputError = 1
	// ExitHTTPError indicates an HTTP failure that was not recovered
	ExitHTTPError = 2
	// ExitGeneralError indicates any other failure
	ExitGeneralError = 3
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// UsageError reports invalid flags or arguments.
type UsageError struct {
	Reason string
}

func (e *UsageError) Error() string {
	return e.Reason
}

// NewUsageError creates a usage error from a format string.
func NewUsageError(format string, args ...any) error {
	return &UsageError{Reason: fmt.Sprintf(format, args...)}
}

// =============================================================================
// EXIT CODE MAPPING
// =============================================================================

// ExitCodeFor maps an error to the process exit code.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var (
		usageErr   *UsageError
		missingErr *prompt.MissingFileError
		emptyErr   *prompt.EmptyPromptError
		httpErr    *cloud.HTTPError
	)

	switch {
	case errors.As(err, &usageErr),
		errors.As(err, &missingErr),
		errors.As(err, &emptyErr),
		errors.Is(err, cloud.ErrMissingCredential),
		errors.Is(err, catalog.ErrNoModelAvailable),
		errors.Is(err, storage.ErrNoArtifacts):
		return ExitInputError
	case errors.As(err, &httpErr):
		return ExitHTTPError
	default:
		return ExitGeneralError
	}
}

// =============================================================================
// ERROR DISPLAY
// =============================================================================

// userMessage returns the text shown for err. A few errors carry fixed
// guidance instead of their raw text.
func userMessage(err error) string {
	var missingErr *prompt.MissingFileError
	switch {
	case errors.Is(err, cloud.ErrMissingCredential):
		return "OPENROUTER_API_KEY is not set. Please set it in your environment."
	case errors.Is(err, catalog.ErrNoModelAvailable):
		return "No free models available to select."
	case errors.As(err, &missingErr):
		return missingErr.Error()
	default:
		return err.Error()
	}
}

// DisplayError writes err to w in a consistent format.
func DisplayError(w io.Writer, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(w, "%s %s\n", RenderConditional(w, ErrorStyle, "Error:"), userMessage(err))
}

// paymentGuidance is printed after a 402 that the fallback did not recover.
const paymentGuidance = "Add funds or run with --free-only to auto-pick a free model."

// displayHints writes follow-up advice for err, if any.
func displayHints(w io.Writer, err error) {
	if cloud.IsPaymentRequired(err) {
		fmt.Fprintln(w, "Payment required (402).")
		fmt.Fprintln(w, RenderConditional(w, WarningStyle, paymentGuidance))
	}
}
