// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small file and string helpers shared by freeroute packages.
package util

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// linkFile is os.Link, replaceable in tests.
var linkFile = os.Link

// RELIABILITY: Atomic create with fsync prevents partially written artifacts.
//
// CreateFileAtomic writes data to path using the following pattern:
// 1. Write to a temporary file in the same directory
// 2. Sync the data to disk using fsync
// 3. Close the file
// 4. Hard-link the temp file to the target path
//
// An existing file at path is never replaced: a name collision returns an
// error satisfying errors.Is(err, os.ErrExist). On filesystems without hard
// links (FAT, exFAT, some network mounts) the data is written directly with
// O_EXCL instead.
func CreateFileAtomic(path string, data []byte, perm os.FileMode) error {
	absPath, tempPath, err := stageTemp(path, data, perm)
	if err != nil {
		return err
	}
	defer os.Remove(tempPath)

	err = linkFile(tempPath, absPath)
	if err == nil {
		return nil
	}
	if errors.Is(err, os.ErrExist) {
		return fmt.Errorf("failed to link temp file: %w", err)
	}
	return createExclusive(absPath, data, perm)
}

// createExclusive writes data to a new file at path, failing if it exists.
func createExclusive(path string, data []byte, perm os.FileMode) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, perm)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("failed to sync data to disk: %w", err)
	}
	return f.Close()
}

// stageTemp writes data to a synced temp file next to path and returns the
// absolute target path together with the temp file path.
func stageTemp(path string, data []byte, perm os.FileMode) (string, string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	dir := filepath.Dir(absPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", "", fmt.Errorf("failed to create parent directory: %w", err)
	}

	// Same directory keeps the link on one filesystem.
	f, err := os.CreateTemp(dir, ".tmp-")
	if err != nil {
		return "", "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := f.Name()

	success := false
	defer func() {
		if !success {
			f.Close()
			os.Remove(tempPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		return "", "", fmt.Errorf("failed to write data: %w", err)
	}

	// RELIABILITY: Sync to disk before the file becomes visible
	if err := f.Sync(); err != nil {
		return "", "", fmt.Errorf("failed to sync data to disk: %w", err)
	}

	// Close before linking - required on some systems (Windows)
	if err := f.Close(); err != nil {
		return "", "", fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Chmod(tempPath, perm); err != nil {
		return "", "", fmt.Errorf("failed to set file permissions: %w", err)
	}

	success = true
	return absPath, tempPath, nil
}
