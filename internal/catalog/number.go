// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Presence classifies an optional numeric catalog field.
type Presence int

const (
	// Absent means the field was missing or JSON null.
	Absent Presence = iota
	// Present means the field parsed to a number.
	Present
	// Invalid means the field existed but could not be read as a number.
	Invalid
)

// String returns the lowercase name of the presence state.
func (p Presence) String() string {
	switch p {
	case Present:
		return "present"
	case Invalid:
		return "invalid"
	default:
		return "absent"
	}
}

// Number is a tagged numeric field. Value is meaningful only when
// Presence is Present.
type Number struct {
	Value    float64
	Presence Presence
}

// Some returns a present Number holding v.
func Some(v float64) Number {
	return Number{Value: v, Presence: Present}
}

// IsPresent reports whether the number parsed successfully.
func (n Number) IsPresent() bool {
	return n.Presence == Present
}

// OrZero returns the value when present and 0 otherwise. It is meant for
// ranking only; price classification must check IsPresent instead.
func (n Number) OrZero() float64 {
	if n.Presence != Present {
		return 0
	}
	return n.Value
}

// ParsePrice parses a price that may arrive as a JSON number or a numeric
// string. Missing or null input is Absent. Booleans, objects, arrays and
// strings that do not parse as a float are Invalid, never zero.
func ParsePrice(raw json.RawMessage) Number {
	return parseNumber(raw)
}

func parseNumber(raw json.RawMessage) Number {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Number{Presence: Absent}
	}

	switch c := raw[0]; {
	case c == '-' || (c >= '0' && c <= '9'):
		v, err := strconv.ParseFloat(string(raw), 64)
		if err != nil {
			return Number{Presence: Invalid}
		}
		return Some(v)

	case c == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Number{Presence: Invalid}
		}
		s = strings.TrimSpace(s)
		// ParseFloat also reads hex floats such as "0x0p0".
		if strings.ContainsAny(s, "xX") {
			return Number{Presence: Invalid}
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Number{Presence: Invalid}
		}
		return Some(v)

	default:
		// true, false, objects and arrays
		return Number{Presence: Invalid}
	}
}

// parseFlag reads an archived/disabled style marker. Any present value
// counts as set except null, false, a zero number, an empty string or a
// string strconv.ParseBool reads as false. Dates, reasons and objects all
// mark the model.
func parseFlag(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) || bytes.Equal(raw, []byte("false")) {
		return false
	}
	switch c := raw[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return true
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return false
		}
		b, err := strconv.ParseBool(s)
		return err != nil || b
	case c == '-' || (c >= '0' && c <= '9'):
		n := parseNumber(raw)
		return !n.IsPresent() || n.Value != 0
	default:
		// true, objects and arrays
		return true
	}
}
