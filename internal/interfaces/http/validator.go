package http

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Input validation constants
const (
	MaxInstanceNameLength = 64
	MaxReplyLength        = 4096
	MaxUsernameLength     = 64
	MaxContactNameLength  = 255
	MaxPhoneLength        = 64
)

var instanceNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// ValidInstanceName checks a gateway instance name (alphanumeric, dot, underscore, hyphen)
func ValidInstanceName(s string) bool {
	return s != "" && len(s) <= MaxInstanceNameLength && instanceNamePattern.MatchString(s)
}

// ValidID checks that s is a row id.
func ValidID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// SanitizeString removes null bytes and invalid UTF-8
func SanitizeString(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")

	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for _, r := range s {
			if r != utf8.RuneError {
				v = append(v, r)
			}
		}
		s = string(v)
	}
	return s
}

// TruncateString cuts s to at most maxLen runes
func TruncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen])
}

// ValidateLength checks if string is within bounds
func ValidateLength(s string, min, max int) bool {
	l := utf8.RuneCountInString(s)
	return l >= min && l <= max
}
