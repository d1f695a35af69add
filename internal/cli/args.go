// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// args.go - Argument parsing shared by every freeroute command.

package cli

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// =============================================================================
// ARG PARSER
// =============================================================================

// ArgParser provides unified argument parsing for CLI commands.
// It handles multiple flag formats consistently:
//   - Long flags: --flag value or --flag=value
//   - Short flags: -f value
//   - Boolean flags: --flag (no value needed)
//   - Positional arguments: arguments without flags
//   - Subcommands: first positional argument
//   - "--" ends flag parsing
type ArgParser struct {
	subcommand string            // First positional arg (e.g., "history", "latest")
	flags      map[string]string // String flags (--key=value)
	boolFlags  map[string]bool   // Boolean flags (--json)
	known      map[string]bool   // Names declared boolean by the caller
	order      []string          // Flag names in the order they appeared
	positional []string          // All positional arguments including subcommand
}

// NewArgParser creates a new argument parser from raw arguments.
//
// Names passed in boolNames are always boolean and never consume the next
// argument, so "--free-only history" keeps "history" positional. Any other
// flag takes the next argument as its value unless that argument looks like
// another flag. Negative numbers ("-0.5") are accepted as values.
//
// Example:
//
//	args := NewArgParser([]string{"history", "--limit", "5", "--json"}, "json")
//	args.Subcommand()        // "history"
//	args.Flag("limit")       // "5"
//	args.BoolFlag("json")    // true
func NewArgParser(raw []string, boolNames ...string) *ArgParser {
	parser := &ArgParser{
		flags:      make(map[string]string),
		boolFlags:  make(map[string]bool),
		known:      make(map[string]bool, len(boolNames)),
		positional: make([]string, 0),
	}
	for _, name := range boolNames {
		parser.known[strings.TrimLeft(name, "-")] = true
	}

	i := 0
	for i < len(raw) {
		arg := raw[i]

		if arg == "--" {
			parser.positional = append(parser.positional, raw[i+1:]...)
			break
		}

		if !isFlag(arg) {
			parser.positional = append(parser.positional, arg)
			i++
			continue
		}

		// --flag=value
		if name, value, ok := strings.Cut(arg, "="); ok {
			flagName := strings.TrimLeft(name, "-")
			parser.note(flagName)
			if parser.known[flagName] {
				b, err := ParseBoolString(value)
				if err != nil {
					// Kept as a string so Parse can report it.
					parser.flags[flagName] = value
				} else {
					parser.boolFlags[flagName] = b
				}
			} else {
				parser.flags[flagName] = value
			}
			i++
			continue
		}

		flagName := strings.TrimLeft(arg, "-")
		parser.note(flagName)

		if !parser.known[flagName] && i+1 < len(raw) && !isFlag(raw[i+1]) {
			parser.flags[flagName] = raw[i+1]
			i += 2
			continue
		}

		parser.boolFlags[flagName] = true
		i++
	}

	if len(parser.positional) > 0 {
		parser.subcommand = parser.positional[0]
	}

	return parser
}

// isFlag reports whether arg starts a flag. A lone "-" and negative
// numbers are values.
func isFlag(arg string) bool {
	if len(arg) < 2 || arg[0] != '-' {
		return false
	}
	if _, err := strconv.ParseFloat(arg, 64); err == nil {
		return false
	}
	return true
}

func (p *ArgParser) note(name string) {
	if !slices.Contains(p.order, name) {
		p.order = append(p.order, name)
	}
}

// Subcommand returns the first positional argument (subcommand).
// Returns empty string if no positional arguments.
func (p *ArgParser) Subcommand() string {
	return p.subcommand
}

// Flag returns the value of a string flag, or "" if it was not given.
func (p *ArgParser) Flag(name string) string {
	return p.flags[strings.TrimLeft(name, "-")]
}

// FlagFloat returns a flag parsed as a float and whether it was given.
func (p *ArgParser) FlagFloat(name string) (float64, bool, error) {
	val := p.Flag(name)
	if val == "" {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, true, fmt.Errorf("--%s must be a number, got %q", strings.TrimLeft(name, "-"), val)
	}
	return f, true, nil
}

// BoolFlag returns whether a boolean flag is set.
func (p *ArgParser) BoolFlag(name string) bool {
	return p.boolFlags[strings.TrimLeft(name, "-")]
}

// HasFlag checks if a flag was provided (either string or boolean).
func (p *ArgParser) HasFlag(name string) bool {
	name = strings.TrimLeft(name, "-")
	_, isString := p.flags[name]
	_, isBool := p.boolFlags[name]
	return isString || isBool
}

// MissingValue reports whether a value flag appeared without a value,
// such as a trailing "--model".
func (p *ArgParser) MissingValue(name string) bool {
	name = strings.TrimLeft(name, "-")
	_, isString := p.flags[name]
	return !isString && p.boolFlags[name] && !p.known[name]
}

// Unknown returns the flags that are neither in allowed nor declared
// boolean, in the order they appeared.
func (p *ArgParser) Unknown(allowed ...string) []string {
	var unknown []string
	for _, name := range p.order {
		if p.known[name] || slices.Contains(allowed, name) {
			continue
		}
		unknown = append(unknown, name)
	}
	return unknown
}

// Positional returns the positional argument at the given index.
// Index 0 is the subcommand. Returns "" if out of range.
func (p *ArgParser) Positional(index int) string {
	if index < 0 || index >= len(p.positional) {
		return ""
	}
	return p.positional[index]
}

// PositionalCount returns the number of positional arguments.
func (p *ArgParser) PositionalCount() int {
	return len(p.positional)
}

// =============================================================================
// HELPER FUNCTIONS FOR COMMON ARG PATTERNS
// =============================================================================

// ParseIntWithValidation parses an integer from a string and validates it's positive.
func ParseIntWithValidation(s string, fieldName string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("%s is required", fieldName)
	}

	val, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", fieldName, err)
	}

	if val <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", fieldName, val)
	}

	return val, nil
}

// ParseBoolString parses a boolean from various string representations.
// Accepts: true/false, yes/no, y/n, 1/0, on/off (case-insensitive)
func ParseBoolString(s string) (bool, error) {
	s = strings.ToLower(strings.TrimSpace(s))

	switch s {
	case "true", "yes", "y", "1", "on":
		return true, nil
	case "false", "no", "n", "0", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean value: %s", s)
	}
}
