package booking

import (
	"fmt"
	"strings"
	"time"
)

// LocalTimeLayout is how business-local times are rendered back to callers.
const LocalTimeLayout = "2006-01-02T15:04:05"

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// LoadLocation resolves the business timezone. Perth has no DST, so a fixed
// +08:00 zone stands in when the tz database is unavailable.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		name = "Australia/Perth"
	}
	loc, err := time.LoadLocation(name)
	if err == nil {
		return loc, nil
	}
	if name == "Australia/Perth" {
		return time.FixedZone("AWST", 8*60*60), nil
	}
	return nil, fmt.Errorf("booking: load timezone %q: %w", name, err)
}

// ToProviderTime interprets value as a wall-clock time in loc and returns the
// same instant in UTC. Values carrying an explicit offset are honoured as-is.
func ToProviderTime(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("booking: start time required")
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t.UTC(), nil
		}
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("booking: unrecognised start time %q, expected YYYY-MM-DDTHH:MM[:SS]", value)
}

// FromProviderTime renders a provider UTC instant as business-local wall time.
func FromProviderTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(LocalTimeLayout)
}
