package validator

import (
	"fmt"
	"regexp"
	"strings"
)

// Length limits follow the column sizes in db/schema.go.
const (
	MaxIDLength     = 64
	MaxHolderLength = 128
	MaxReasonLength = 512
)

var (
	// IDPattern: letters, digits and . _ : - only, no whitespace
	IDPattern = regexp.MustCompile(`^[A-Za-z0-9._:\-]+$`)

	// HolderPattern allows anything printable except control characters
	HolderPattern = regexp.MustCompile(`^[^\x00-\x1f\x7f]+$`)
)

// IsValidID validates a venue, mapping, zone, seat or override identifier
func IsValidID(id string) bool {
	if id == "" || len(id) > MaxIDLength {
		return false
	}
	return IDPattern.MatchString(id)
}

// IsValidHolderID validates the opaque holder identity used by seat holds
func IsValidHolderID(holder string) bool {
	if holder == "" || len(holder) > MaxHolderLength {
		return false
	}
	return HolderPattern.MatchString(holder)
}

// GetIDError returns a message describing why id is not usable as field, or ""
func GetIDError(field, id string) string {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return fmt.Sprintf("%s is required", field)
	}
	if trimmed != id {
		return fmt.Sprintf("%s must not have leading or trailing spaces", field)
	}
	if len(id) > MaxIDLength {
		return fmt.Sprintf("%s must be at most %d characters", field, MaxIDLength)
	}
	if !IsValidID(id) {
		return fmt.Sprintf("%s may only contain letters, digits and . _ : -", field)
	}
	return ""
}

// GetHolderError returns a message describing why holder is rejected, or ""
func GetHolderError(holder string) string {
	if strings.TrimSpace(holder) == "" {
		return "holderId is required"
	}
	if len(holder) > MaxHolderLength {
		return fmt.Sprintf("holderId must be at most %d characters", MaxHolderLength)
	}
	if !IsValidHolderID(holder) {
		return "holderId must not contain control characters"
	}
	return ""
}

// GetReasonError limits the free text attached to an override
func GetReasonError(reason string) string {
	if len(reason) > MaxReasonLength {
		return fmt.Sprintf("reason must be at most %d characters", MaxReasonLength)
	}
	return ""
}
