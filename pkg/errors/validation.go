package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// ValidatePackageName validates a package name for safety and correctness.
// Recipe names double as file names inside a repository directory, so the
// rules reject anything that could escape it:
//   - No empty names
//   - No control characters
//   - No path separators or traversal sequences
//   - Maximum length of 256 characters
//   - Lowercase letters, digits, '-', '_' and '.' only, starting with a letter or digit
func ValidatePackageName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidPackage, "package name cannot be empty")
	}

	if len(name) > 256 {
		return New(ErrCodeInvalidPackage, "package name too long (max 256 characters)")
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidPackage, "package name contains invalid control characters")
		}
	}

	for _, pattern := range []string{"..", "/", "\\"} {
		if strings.Contains(name, pattern) {
			return New(ErrCodeInvalidPackage, "package name contains invalid characters: %q", pattern)
		}
	}

	if !packageNameRegex.MatchString(name) {
		return New(ErrCodeInvalidPackage, "invalid package name: %q", name)
	}
	return nil
}

var packageNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// hashRegex matches a full or abbreviated concrete spec hash.
var hashRegex = regexp.MustCompile(`^[a-z2-7]{1,32}$`)

// ValidateHash validates a (possibly abbreviated) spec hash.
func ValidateHash(h string) error {
	if !hashRegex.MatchString(h) {
		return New(ErrCodeInvalidInput, "invalid spec hash: %q", h)
	}
	return nil
}
