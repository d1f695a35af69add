// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// styles.go - Shared styling for freeroute commands.
//
// Color handling:
// - Colors are disabled for non-TTY output (piped, redirected, tests)
// - Respects NO_COLOR (https://no-color.org/) and FORCE_COLOR

package cli

import (
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

func init() {
	lipgloss.SetColorProfile(GetColorProfile())
}

// =============================================================================
// SHARED STYLES
// =============================================================================

var (
	// TitleStyle is used for command titles and headers
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")) // Cyan

	// SuccessStyle is used for success messages
	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")). // Green
			Bold(true)

	// ErrorStyle is used for error messages and failures
	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")). // Red
			Bold(true)

	// WarningStyle is used for warnings and guidance
	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // Yellow/Orange

	// DimStyle is used for secondary information and hints
	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242")) // Dim gray

	// SeparatorStyle is used for visual separators
	SeparatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // Dark gray

	// HighlightStyle is used for model IDs
	HighlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("82")) // Bright green
)

// =============================================================================
// HELPERS
// =============================================================================

// RenderConditional renders text with style if colors are enabled for w,
// otherwise returns the text unmodified.
func RenderConditional(w io.Writer, style lipgloss.Style, text string) string {
	if !ColorsEnabled(w) {
		return text
	}
	return style.Render(text)
}

// RenderSeparator renders a horizontal separator line for w.
func RenderSeparator(w io.Writer, width int) string {
	if width <= 0 {
		width = 70
	}
	return RenderConditional(w, SeparatorStyle, strings.Repeat("-", width))
}

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// renderMarkdown renders a reply for terminal display. The content is
// returned unchanged when rendering fails.
func renderMarkdown(content string, width int) string {
	if width > MaxRenderWidth {
		width = MaxRenderWidth
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content
	}
	rendered, err := renderer.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(rendered, "\n")
}

// renderReply prints the reply as Markdown on a terminal and verbatim
// otherwise.
func renderReply(w io.Writer, reply string, raw bool) string {
	if raw || !IsTerminal(w) {
		return reply
	}
	return renderMarkdown(reply, TerminalWidth(w))
}
