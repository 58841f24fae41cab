package shared

import "time"

const dayFormat = "2006-01-02"

// ParseDate accepts RFC3339 timestamps or bare YYYY-MM-DD days. An empty
// value parses to the zero time without error.
func ParseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed, nil
	}
	return time.Parse(dayFormat, value)
}
