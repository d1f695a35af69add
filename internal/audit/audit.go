// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jeranaias/freeroute/internal/util"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// TimestampLayout is the bracketed timestamp at the start of every line.
// It matches the artifact filename layout.
const TimestampLayout = "2006-01-02_15-04-05"

// DefaultPath is the audit log location relative to the working directory.
const DefaultPath = "logs.txt"

// MaxMessageLength caps a single message before it is written.
const MaxMessageLength = 500

// =============================================================================
// AUDIT EVENT
// =============================================================================

// EventType names what happened.
type EventType string

// Event types written by the completion flow.
const (
	EventFallback       EventType = "FALLBACK"
	EventFallbackFailed EventType = "FALLBACK_FAILED"
	EventRetry          EventType = "RETRY"
	EventHTTPError      EventType = "HTTP_ERROR"
	EventError          EventType = "ERROR"
	EventCompleted      EventType = "COMPLETED"
)

// Event is a single audit log entry.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Message   string
	Fields    map[string]string
}

// ToLogLine formats the event as one line without the trailing newline:
//
//	[2025-01-31_14-03-22] FALLBACK 402 error with model x, attempting free model fallback model=x
//
// Field keys are sorted so lines are stable.
func (e Event) ToLogLine() string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(e.Timestamp.Format(TimestampLayout))
	b.WriteString("]")
	if e.Type != "" {
		b.WriteString(" ")
		b.WriteString(string(e.Type))
	}
	if e.Message != "" {
		b.WriteString(" ")
		b.WriteString(util.TruncateRunes(util.SingleLine(e.Message), MaxMessageLength))
	}

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := util.SingleLine(e.Fields[k])
		if strings.ContainsAny(v, " =\"") || v == "" {
			v = fmt.Sprintf("%q", v)
		}
		fmt.Fprintf(&b, " %s=%s", k, v)
	}
	return b.String()
}

// =============================================================================
// REDACTION
// =============================================================================

// Redactor defines the interface for secret redaction.
type Redactor interface {
	// Redact replaces sensitive data in the input string.
	Redact(input string) string
	// Name returns the name of this redactor.
	Name() string
}

// PatternRedactor redacts text matching a regex pattern.
type PatternRedactor struct {
	name    string
	pattern *regexp.Regexp
	replace string
}

// NewPatternRedactor creates a new pattern-based redactor.
func NewPatternRedactor(name string, pattern *regexp.Regexp, replace string) *PatternRedactor {
	return &PatternRedactor{name: name, pattern: pattern, replace: replace}
}

// Redact replaces matches with the replacement string.
func (r *PatternRedactor) Redact(input string) string {
	return r.pattern.ReplaceAllString(input, r.replace)
}

// Name returns the redactor name.
func (r *PatternRedactor) Name() string {
	return r.name
}

// secretPatterns are applied in order; OpenRouter keys come before the
// generic sk- pattern.
var secretPatterns = []struct {
	name    string
	pattern *regexp.Regexp
	replace string
}{
	{"OpenRouter", regexp.MustCompile(`sk-or-[a-zA-Z0-9\-]{20,}`), "[OPENROUTER_KEY_REDACTED]"},
	{"Anthropic", regexp.MustCompile(`sk-ant-[a-zA-Z0-9\-]{20,}`), "[ANTHROPIC_KEY_REDACTED]"},
	{"OpenAI", regexp.MustCompile(`sk-[a-zA-Z0-9]{20,}`), "[OPENAI_KEY_REDACTED]"},
	{"GitHub", regexp.MustCompile(`gh[pousr]_[a-zA-Z0-9]{36,}`), "[GITHUB_TOKEN_REDACTED]"},
	{"AWS", regexp.MustCompile(`AKIA[0-9A-Z]{16}`), "[AWS_KEY_REDACTED]"},
	{"Bearer", regexp.MustCompile(`Bearer\s+[a-zA-Z0-9\-_.]+`), "Bearer [TOKEN_REDACTED]"},
	{"Password", regexp.MustCompile(`(?i)(password|passwd|pwd)\s*[=:]\s*\S+`), "[PASSWORD_REDACTED]"},
	{"JWT", regexp.MustCompile(`eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`), "[JWT_REDACTED]"},
}

func defaultRedactors() []Redactor {
	redactors := make([]Redactor, 0, len(secretPatterns))
	for _, sp := range secretPatterns {
		redactors = append(redactors, NewPatternRedactor(sp.name, sp.pattern, sp.replace))
	}
	return redactors
}

// =============================================================================
// LOGGER
// =============================================================================

// Logger appends events to a plain-text file. The file is opened, appended
// and closed for every line so nothing stays open between events.
type Logger struct {
	path      string
	now       func() time.Time
	redactors []Redactor
	mu        sync.Mutex
}

// NewLogger creates a logger writing to path. The file and its directory
// are created on first write.
func NewLogger(path string) *Logger {
	if path == "" {
		path = DefaultPath
	}
	return &Logger{
		path:      path,
		now:       time.Now,
		redactors: defaultRedactors(),
	}
}

// WithClock overrides the timestamp source.
func (l *Logger) WithClock(now func() time.Time) *Logger {
	l.now = now
	return l
}

// Path returns the log file path.
func (l *Logger) Path() string {
	return l.path
}

// Record writes e and drops any error. Audit failures must never change the
// outcome of the operation being recorded.
func (l *Logger) Record(e Event) {
	if err := l.Write(e); err != nil {
		log.WithFields(log.Fields{
			"path":  l.path,
			"error": err,
		}).Debug("audit write failed")
	}
}

// Write redacts e, stamps it when Timestamp is zero and appends one line.
func (l *Logger) Write(e Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e.Timestamp.IsZero() {
		e.Timestamp = l.now()
	}
	e.Message = l.redactLocked(e.Message)
	if len(e.Fields) > 0 {
		fields := make(map[string]string, len(e.Fields))
		for k, v := range e.Fields {
			fields[k] = l.redactLocked(v)
		}
		e.Fields = fields
	}

	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create audit directory: %w", err)
		}
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	if _, err := f.WriteString(e.ToLogLine() + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return f.Close()
}

// Redact applies every redactor to input.
func (l *Logger) Redact(input string) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.redactLocked(input)
}

func (l *Logger) redactLocked(input string) string {
	for _, r := range l.redactors {
		input = r.Redact(input)
	}
	return input
}

// Nop discards every event.
type Nop struct{}

// Record implements the recorder contract by doing nothing.
func (Nop) Record(Event) {}
