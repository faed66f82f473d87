// Package validate contains simple input validation helpers.
package validate

import (
	"errors"
	"regexp"
	"strings"
)

// emailRe is deliberately loose; the allow-list is the real gate, this
// only rejects obviously malformed input before it reaches the store.
var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Email validates and normalizes an email address to lowercase.
func Email(s string) (string, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return "", errors.New("email is required")
	}
	if len(s) > 254 || !emailRe.MatchString(s) {
		return "", errors.New("invalid email")
	}
	return s, nil
}

// DisplayName validates an optional human-readable name.
func DisplayName(s string) (string, error) {
	s = strings.TrimSpace(s)
	if len(s) > 128 {
		return "", errors.New("name too long")
	}
	return s, nil
}

// JobType checks a solver job type against the hardware catalog.
func JobType(s string) error {
	switch s {
	case "3sat", "ldpc", "ksat":
		return nil
	}
	return errors.New("unknown job type")
}
