// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jeranaias/freeroute/internal/util"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultDir is the artifact directory relative to the working directory.
	DefaultDir = "generated_texts"

	// TimestampLayout names each artifact after its completion time.
	TimestampLayout = "2006-01-02_15-04-05"

	// LegacyPrefix is accepted on older artifact names.
	LegacyPrefix = "Response_"

	extension = ".txt"

	// maxSameSecond bounds the _2, _3 ... suffixes tried for one timestamp.
	maxSameSecond = 1000
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrNoArtifacts is returned by Latest when the directory holds no artifact.
var ErrNoArtifacts = &ArtifactError{Message: "no reply artifacts found"}

// ErrEmptyArtifact is returned by ReadText when the artifact is blank.
var ErrEmptyArtifact = &ArtifactError{Message: "reply artifact is empty"}

// ArtifactError represents an artifact lookup error. It can be compared
// using errors.Is.
type ArtifactError struct {
	Message string
}

// Error implements the error interface.
func (e *ArtifactError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing artifact errors.
func (e *ArtifactError) Is(target error) bool {
	t, ok := target.(*ArtifactError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

// =============================================================================
// ARTIFACT
// =============================================================================

// Artifact is one persisted reply file.
type Artifact struct {
	Path      string
	Name      string
	Timestamp time.Time
	// Seq is 1 for the plain name and N for a "_N" same-second suffix.
	Seq int
}

// ArtifactName returns the file name for a reply completed at t. seq values
// above 1 add a "_seq" suffix.
func ArtifactName(t time.Time, seq int) string {
	name := t.Format(TimestampLayout)
	if seq > 1 {
		name += "_" + strconv.Itoa(seq)
	}
	return name + extension
}

// ParseArtifactName reads the timestamp and sequence out of an artifact file
// name. Names that do not follow the layout return false.
func ParseArtifactName(name string) (Artifact, bool) {
	stem, ok := strings.CutSuffix(name, extension)
	if !ok {
		return Artifact{}, false
	}
	stem = strings.TrimPrefix(stem, LegacyPrefix)

	seq := 1
	if len(stem) > len(TimestampLayout) {
		suffix, ok := strings.CutPrefix(stem[len(TimestampLayout):], "_")
		if !ok {
			return Artifact{}, false
		}
		n, err := strconv.Atoi(suffix)
		if err != nil || n < 2 {
			return Artifact{}, false
		}
		seq = n
		stem = stem[:len(TimestampLayout)]
	}

	ts, err := time.ParseInLocation(TimestampLayout, stem, time.Local)
	if err != nil {
		return Artifact{}, false
	}
	return Artifact{Name: name, Timestamp: ts, Seq: seq}, true
}

// =============================================================================
// ARTIFACT STORE
// =============================================================================

// ArtifactStore writes and finds reply artifacts in one directory.
type ArtifactStore struct {
	// BaseDir is the artifact directory.
	// Default: ./generated_texts
	BaseDir string
}

// NewArtifactStore creates a store rooted at dir. The directory is created
// on first save.
func NewArtifactStore(dir string) *ArtifactStore {
	if dir == "" {
		dir = DefaultDir
	}
	return &ArtifactStore{BaseDir: dir}
}

// Save persists text as the artifact for completion time at and returns its
// path. An existing artifact is never overwritten; a reply finishing in the
// same second as an earlier one gets the next "_N" suffix.
func (s *ArtifactStore) Save(text string, at time.Time) (string, error) {
	if err := os.MkdirAll(s.BaseDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	for seq := 1; seq <= maxSameSecond; seq++ {
		path := filepath.Join(s.BaseDir, ArtifactName(at, seq))
		err := util.CreateFileAtomic(path, []byte(text), 0644)
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("failed to save reply: %w", err)
		}
	}
	return "", fmt.Errorf("failed to save reply: too many artifacts for %s", at.Format(TimestampLayout))
}

// List returns every artifact in the directory, newest first. Files whose
// names do not parse are skipped. A missing directory is an empty list.
func (s *ArtifactStore) List() ([]Artifact, error) {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Artifact{}, nil
		}
		return nil, err
	}

	artifacts := make([]Artifact, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		a, ok := ParseArtifactName(entry.Name())
		if !ok {
			continue
		}
		a.Path = filepath.Join(s.BaseDir, entry.Name())
		artifacts = append(artifacts, a)
	}

	sort.SliceStable(artifacts, func(i, j int) bool {
		a, b := artifacts[i], artifacts[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.After(b.Timestamp)
		}
		if a.Seq != b.Seq {
			return a.Seq > b.Seq
		}
		return a.Name > b.Name
	})
	return artifacts, nil
}

// Latest returns the newest artifact by the timestamp in its name.
func (s *ArtifactStore) Latest() (Artifact, error) {
	artifacts, err := s.List()
	if err != nil {
		return Artifact{}, err
	}
	if len(artifacts) == 0 {
		return Artifact{}, fmt.Errorf("%w in %s", ErrNoArtifacts, s.BaseDir)
	}
	return artifacts[0], nil
}

// ReadText returns the trimmed content of a.
func (s *ArtifactStore) ReadText(a Artifact) (string, error) {
	data, err := os.ReadFile(a.Path)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptyArtifact, a.Path)
	}
	return text, nil
}
