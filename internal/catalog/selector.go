// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import (
	"cmp"
	"slices"
	"strings"
)

// CompareFunc orders two descriptors; a negative result ranks a first.
type CompareFunc func(a, b Descriptor) int

// DefaultCompare ranks by descending context length, then descending
// quality, then ascending ID. Missing or unparsable context and quality
// rank as zero.
func DefaultCompare(a, b Descriptor) int {
	if c := cmp.Compare(b.ContextLength.OrZero(), a.ContextLength.OrZero()); c != 0 {
		return c
	}
	if c := cmp.Compare(b.Quality.OrZero(), a.Quality.OrZero()); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

// Selector picks the best model from a snapshot. The zero value uses
// DefaultCompare.
type Selector struct {
	Compare CompareFunc
}

func (s Selector) compare() CompareFunc {
	if s.Compare != nil {
		return s.Compare
	}
	return DefaultCompare
}

// Rank returns a sorted copy of snapshot, best first.
func (s Selector) Rank(snapshot Snapshot) Snapshot {
	ranked := slices.Clone(snapshot)
	slices.SortStableFunc(ranked, s.compare())
	return ranked
}

// Best returns the ID of the top-ranked descriptor. It returns false for an
// empty snapshot.
func (s Selector) Best(snapshot Snapshot) (string, bool) {
	if len(snapshot) == 0 {
		return "", false
	}
	return slices.MinFunc(snapshot, s.compare()).ID, true
}
