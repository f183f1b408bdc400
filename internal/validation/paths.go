// Package validation provides input validation utilities for sftpc.
package validation

import (
	"fmt"
	"strings"
)

// ValidateFilePath validates a manifest-provided source or destination path
// for basic safety. This is lenient validation: manifests are trusted local
// input, so both absolute and relative paths (including ones with "..") are
// allowed.
//
// Returns an error if the path is empty or contains a null byte.
func ValidateFilePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if strings.ContainsRune(path, 0) {
		return fmt.Errorf("path contains null byte: %s", path)
	}
	return nil
}

// ValidateFilePaths validates multiple file paths, returning the first error
// encountered annotated with its index.
func ValidateFilePaths(paths []string) error {
	for i, path := range paths {
		if err := ValidateFilePath(path); err != nil {
			return fmt.Errorf("invalid path at index %d: %w", i, err)
		}
	}
	return nil
}
