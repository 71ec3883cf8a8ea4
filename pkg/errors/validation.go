package errors

import (
	"strings"
	"unicode"
)

// ValidateLayerName validates a placeholder name supplied by a caller.
//
// The validation rules are intentionally conservative:
//   - No empty names
//   - No control characters
//   - Maximum length of 255 characters (the longest name a layered template stores)
func ValidateLayerName(name string) error {
	if strings.TrimSpace(name) == "" {
		return New(ErrCodeInvalidInput, "layer name cannot be empty")
	}

	if len(name) > 255 {
		return New(ErrCodeInvalidInput, "layer name too long (max 255 characters)")
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "layer name contains invalid control characters")
		}
	}

	return nil
}

// ValidatePath validates an asset path inside a template bundle.
// It prevents path traversal out of the archive and ensures reasonable path length.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No absolute paths (must be relative)
//   - No path traversal sequences (..)
//   - No backslashes (Windows-style paths)
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	if strings.HasPrefix(path, "/") {
		return New(ErrCodeInvalidPath, "path must be relative (cannot start with /)")
	}

	for _, seg := range strings.Split(path, "/") {
		if seg == ".." {
			return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..)")
		}
	}

	if strings.Contains(path, "\\") {
		return New(ErrCodeInvalidPath, "path cannot contain backslashes")
	}

	return nil
}

// ValidateFilename validates an uploaded file name.
// It ensures the name is a simple basename without path components.
func ValidateFilename(filename string) error {
	if filename == "" {
		return New(ErrCodeInvalidInput, "filename cannot be empty")
	}

	if strings.ContainsAny(filename, "/\\") {
		return New(ErrCodeInvalidInput, "filename cannot contain path separators")
	}

	if strings.HasPrefix(filename, ".") {
		return New(ErrCodeInvalidInput, "filename cannot be a hidden file")
	}

	return nil
}
