package errors

import (
	"net/url"
	"path/filepath"
	"strings"
	"unicode"
)

const (
	// MaxNameLength bounds entity names. Names end up in node ids, cache
	// keys and SVG element ids.
	MaxNameLength = 256

	maxPathLength = 500
)

func hasControl(s string) bool {
	return strings.IndexFunc(s, unicode.IsControl) >= 0
}

// ValidateName checks a stream, tag or link name: not blank, at most
// MaxNameLength bytes, no control characters.
func ValidateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return New(ErrCodeInvalidName, "name cannot be empty")
	case len(name) > MaxNameLength:
		return New(ErrCodeInvalidName, "name too long (max %d characters)", MaxNameLength)
	case hasControl(name):
		return New(ErrCodeInvalidName, "name contains control characters")
	}
	return nil
}

// ValidatePath checks a table path inside a CSV spec directory. The path
// must be local to the directory (relative, no ".." element) and use
// forward slashes.
func ValidatePath(path string) error {
	switch {
	case path == "":
		return New(ErrCodeInvalidPath, "path cannot be empty")
	case len(path) > maxPathLength:
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	case hasControl(path):
		return New(ErrCodeInvalidPath, "path contains control characters")
	case strings.Contains(path, `\`):
		return New(ErrCodeInvalidPath, "path cannot contain backslashes")
	case !filepath.IsLocal(path):
		return New(ErrCodeInvalidPath, "path %q escapes the spec directory", path).On("path")
	}
	return nil
}

// ValidateURL accepts absolute http and https URLs with a host.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return Wrap(ErrCodeInvalidInput, err, "parse URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return New(ErrCodeInvalidInput, "URL scheme %q is not http or https", u.Scheme)
	}
	if u.Host == "" {
		return New(ErrCodeInvalidInput, "URL %q has no host", rawURL)
	}
	return nil
}
