package validation

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Length limits
const (
	MaxKeywordLength    = 100
	MaxExternalIDLength = 50
)

// ExternalIDPattern defines the valid listing id format: alphanumeric, hyphens, underscores.
var ExternalIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// NormalizeKeyword trims a keyword and collapses runs of whitespace so the
// same search phrase always maps to the same cache entry.
func NormalizeKeyword(keyword string) string {
	return strings.Join(strings.Fields(keyword), " ")
}

// ValidateKeyword checks a normalized search keyword.
func ValidateKeyword(keyword string) (bool, string) {
	if keyword == "" {
		return false, "Keyword is required"
	}
	if !utf8.ValidString(keyword) {
		return false, "Keyword contains invalid characters"
	}
	if utf8.RuneCountInString(keyword) > MaxKeywordLength {
		return false, "Keyword must be at most 100 characters"
	}
	for _, r := range keyword {
		if unicode.IsControl(r) {
			return false, "Keyword contains invalid characters"
		}
	}
	return true, ""
}

// NormalizeExternalID trims surrounding whitespace from a listing id.
func NormalizeExternalID(id string) string {
	return strings.TrimSpace(id)
}

// ValidateExternalID checks a normalized listing id.
func ValidateExternalID(id string) (bool, string) {
	if id == "" {
		return false, "Item ID is required"
	}
	if len(id) > MaxExternalIDLength {
		return false, "Item ID must be at most 50 characters"
	}
	if !ExternalIDPattern.MatchString(id) {
		return false, "Item ID may only contain letters, digits, hyphens and underscores"
	}
	return true, ""
}
