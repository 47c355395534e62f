package availability

import (
	"errors"
	"strings"
)

var (
	// ErrNoQualifiedStaff means the branch has nobody who can perform the service.
	ErrNoQualifiedStaff = errors.New("no qualified staff available for this service at this location")
	// ErrProviderUnavailable means the staff lookup itself failed.
	ErrProviderUnavailable = errors.New("booking provider unavailable")
)

// ValidationError lists request fields that are missing or malformed.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid availability request: " + strings.Join(e.Fields, ", ")
}
