// Package utils provides helpers for naming stored uploads and generating IDs.
//
// Functions:
//   - SanitizeFilename: Returns a safe base name for storage.
//   - StoredName: Returns a unique on-disk name for an upload.
//   - GenerateUUID: Returns a new UUID string.
package utils

import (
	"path/filepath"
	"regexp"

	"github.com/google/uuid"
)

const maxFilenameLen = 100

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// SanitizeFilename strips directories and replaces anything outside
// [a-zA-Z0-9._-]. Names that sanitize to nothing usable become "file".
func SanitizeFilename(name string) string {
	safe := unsafeChars.ReplaceAllString(filepath.Base(name), "_")
	if len(safe) > maxFilenameLen {
		safe = safe[:maxFilenameLen]
	}
	if safe == "" || safe == "." || safe == ".." {
		return "file"
	}
	return safe
}

// StoredName prefixes the sanitized name with kind and a UUID so uploads of
// the same file never collide.
func StoredName(kind, name string) string {
	return kind + "-" + GenerateUUID() + "-" + SanitizeFilename(name)
}

func GenerateUUID() string {
	return uuid.New().String()
}
