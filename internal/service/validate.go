package service

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

// ValidationError marks a user-correctable input failure. Callers render
// it inline; it never indicates an infrastructure fault.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ValidateAddress checks one email address and returns it normalized.
// Beyond RFC 5322 syntax the domain must contain a dot, so bare-label
// domains like "null@example" are rejected.
func ValidateAddress(field, addr string) (string, error) {
	trimmed := strings.TrimSpace(addr)
	if trimmed == "" {
		return "", &ValidationError{Field: field, Message: "This field is required."}
	}
	parsed, err := mail.ParseAddress(trimmed)
	if err != nil {
		return "", &ValidationError{Field: field, Message: fmt.Sprintf("Enter a valid email address: %q", trimmed)}
	}
	at := strings.LastIndex(parsed.Address, "@")
	if at < 0 || !strings.Contains(parsed.Address[at+1:], ".") {
		return "", &ValidationError{Field: field, Message: fmt.Sprintf("Enter a valid email address: %q", trimmed)}
	}
	return parsed.Address, nil
}

// ValidateAddressList validates every entry of a Cc list. Any invalid
// entry fails the whole list; empty entries are dropped. The returned
// addresses are normalized and deduplicated case-insensitively,
// preserving first-seen order.
func ValidateAddressList(field string, addrs []string) ([]string, error) {
	var out []string
	seen := make(map[string]struct{})
	for _, raw := range addrs {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		addr, err := ValidateAddress(field, trimmed)
		if err != nil {
			return nil, err
		}
		key := strings.ToLower(addr)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, addr)
	}
	return out, nil
}
