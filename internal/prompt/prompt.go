// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package prompt loads the system and user prompt files for a completion run.
package prompt

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Default prompt file names, relative to the prompt directory.
const (
	DefaultSystemFile = "system_prompt.txt"
	DefaultUserFile   = "user_prompt.txt"
)

// Pair is the system/user prompt pair sent with one chat request.
// Both fields are trimmed and non-empty.
type Pair struct {
	System string
	User   string
}

// MissingFileError reports a prompt file that does not exist.
type MissingFileError struct {
	Path string
}

func (e *MissingFileError) Error() string {
	return fmt.Sprintf("file not found: %s", e.Path)
}

// EmptyPromptError reports a prompt file that holds only whitespace.
type EmptyPromptError struct {
	Path string
}

func (e *EmptyPromptError) Error() string {
	return fmt.Sprintf("prompt file is empty: %s", e.Path)
}

// Load reads systemFile and userFile from dir and returns the trimmed pair.
// The system file is checked first, so a missing system prompt is reported
// even when the user prompt is missing too.
func Load(dir, systemFile, userFile string) (Pair, error) {
	system, err := ReadFile(filepath.Join(dir, systemFile))
	if err != nil {
		return Pair{}, err
	}
	user, err := ReadFile(filepath.Join(dir, userFile))
	if err != nil {
		return Pair{}, err
	}
	return Pair{System: system, User: user}, nil
}

// ReadFile reads one prompt file and returns its trimmed text.
//
// A UTF-8 or UTF-16 byte order mark selects the decoding and is stripped;
// files without a BOM are read as UTF-8.
func ReadFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &MissingFileError{Path: path}
		}
		return "", fmt.Errorf("failed to open prompt file: %w", err)
	}
	defer f.Close()

	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	data, err := io.ReadAll(transform.NewReader(f, decoder))
	if err != nil {
		return "", fmt.Errorf("failed to read prompt file %s: %w", path, err)
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", &EmptyPromptError{Path: path}
	}
	return text, nil
}
