// Package validation holds pure format checks used by handlers and the
// processing pipeline. No I/O happens here.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// Result carries a validation outcome with the sanitized value.
type Result struct {
	Valid     bool
	Sanitized string
	Err       string
}

func invalid(msg string) Result {
	return Result{Valid: false, Err: msg}
}

func valid(sanitized string) Result {
	return Result{Valid: true, Sanitized: sanitized}
}

var (
	uuidPattern       = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	databaseIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{32}$`)
	apiKeyCharset     = regexp.MustCompile(`^[A-Za-z0-9_\-]+$`)
	controlChars      = regexp.MustCompile(`[\x00-\x1f\x7f]`)
)

// AllowedFileTypes is the closed set of MIME types accepted for processing.
var AllowedFileTypes = []string{
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"image/jpeg",
	"image/png",
	"image/webp",
	"image/heic",
}

// apiKeyPrefixes are the accepted third-party key prefixes.
var apiKeyPrefixes = []string{"secret_", "ntn_"}

// UUID checks a UUID-format identifier.
func UUID(id string) Result {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return invalid("identifier is required")
	}
	if !uuidPattern.MatchString(trimmed) {
		return invalid("identifier must be a UUID")
	}
	return valid(strings.ToLower(trimmed))
}

// FileSize checks that a declared byte size is positive and under the ceiling.
func FileSize(sizeBytes int64, maxMB int) Result {
	if maxMB <= 0 {
		maxMB = 20
	}
	if sizeBytes <= 0 {
		return invalid("file size must be positive")
	}
	ceiling := int64(maxMB) << 20
	if sizeBytes > ceiling {
		return invalid(fmt.Sprintf("file size exceeds %dMB limit", maxMB))
	}
	return valid(fmt.Sprintf("%d", sizeBytes))
}

// FileType checks MIME type membership in the allow-list.
func FileType(mimeType string) Result {
	clean := strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	for _, allowed := range AllowedFileTypes {
		if clean == allowed {
			return valid(clean)
		}
	}
	return invalid("unsupported file type: " + clean)
}

// APIKey checks the stored third-party key format: known prefix,
// length 40-200, restricted charset.
func APIKey(key string) Result {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return invalid("api key is required")
	}
	hasPrefix := false
	for _, prefix := range apiKeyPrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			hasPrefix = true
			break
		}
	}
	if !hasPrefix {
		return invalid("api key has an unrecognized prefix")
	}
	if len(trimmed) < 40 || len(trimmed) > 200 {
		return invalid("api key length out of range")
	}
	if !apiKeyCharset.MatchString(trimmed) {
		return invalid("api key contains invalid characters")
	}
	return valid(trimmed)
}

// HasKnownKeyPrefix reports whether key looks like a legacy plaintext key
// rather than an encrypted blob.
func HasKnownKeyPrefix(key string) bool {
	for _, prefix := range apiKeyPrefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

// FileName strips control characters, rejects traversal, and caps length.
func FileName(name string) Result {
	if strings.Contains(name, "..") {
		return invalid("file name contains path traversal")
	}
	s := strings.TrimSpace(name)
	s = controlChars.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	if s == "" {
		return invalid("file name is empty")
	}
	if len(s) > 255 {
		s = s[:255]
	}
	return valid(s)
}

// DatabaseID checks an external database identifier: 32 hex characters,
// hyphens optional. The sanitized value has hyphens stripped.
func DatabaseID(id string) Result {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return invalid("database id is required")
	}
	compact := strings.ReplaceAll(trimmed, "-", "")
	if !databaseIDPattern.MatchString(compact) {
		return invalid("database id must be 32 hex characters")
	}
	return valid(strings.ToLower(compact))
}
