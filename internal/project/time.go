package project

import "time"

// timeNow is a package-level variable for testability.
// Tests can replace this to control timestamps in assertions.
var timeNow = time.Now

// TimestampLayout is the on-disk timestamp format: RFC3339 in UTC with
// millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Now returns the current time formatted with TimestampLayout.
func Now() string {
	return timeNow().UTC().Format(TimestampLayout)
}

// ParseTimestamp parses a stored timestamp. It accepts any RFC3339 value as
// well as bare dates (YYYY-MM-DD), which due dates commonly use.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}
