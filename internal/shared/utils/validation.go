package utils

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Header size limits (in bytes)
const (
	MaxHeaderValueSize = 4 * 1024 // largest CAT header value we will decode
	MaxHostLength      = 255
	MaxNameLength      = 255
)

// HeaderValidator bounds foreign header values before they are decoded
type HeaderValidator struct {
	maxSize int
}

// NewHeaderValidator creates a new validator with the specified max size
func NewHeaderValidator(maxSize int) *HeaderValidator {
	return &HeaderValidator{maxSize: maxSize}
}

// DefaultHeaderValidator returns a validator with the 4KB limit
func DefaultHeaderValidator() *HeaderValidator {
	return NewHeaderValidator(MaxHeaderValueSize)
}

// Validate checks size and content of a header value
func (v *HeaderValidator) Validate(name, value string) error {
	if value == "" {
		return fmt.Errorf("%s is empty", name)
	}
	if len(value) > v.maxSize {
		return fmt.Errorf("%s size %d bytes exceeds maximum %d bytes", name, len(value), v.maxSize)
	}
	if strings.ContainsAny(value, "\x00\r\n") {
		return fmt.Errorf("%s contains invalid characters", name)
	}
	return nil
}

// ValidateString validates a string field with length and content checks
func ValidateString(value, fieldName string, minLen, maxLen int, required bool) error {
	if required && value == "" {
		return fmt.Errorf("%s is required", fieldName)
	}

	if value == "" && !required {
		return nil
	}

	if !utf8.ValidString(value) {
		return fmt.Errorf("%s is not valid UTF-8", fieldName)
	}

	length := utf8.RuneCountInString(value)
	if length < minLen {
		return fmt.Errorf("%s must be at least %d characters", fieldName, minLen)
	}
	if length > maxLen {
		return fmt.Errorf("%s must not exceed %d characters", fieldName, maxLen)
	}

	if strings.Contains(value, "\x00") {
		return fmt.Errorf("%s contains invalid characters", fieldName)
	}

	return nil
}

// SanitizeSegment makes s safe to embed as one component of a slash-delimited
// metric name. Empty input becomes fallback.
func SanitizeSegment(s, fallback string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	return strings.ReplaceAll(s, "/", "_")
}
