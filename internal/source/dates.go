package source

import (
	"errors"
	"strings"
	"time"
)

// dateLayouts are the formats the upstream systems are known to emit:
// ISO dates (QuickBooks API, Mercury), US dates (QuickBooks CSV exports)
// and RFC 3339 timestamps.
var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	time.RFC3339,
}

var errUnknownDateFormat = errors.New("value is not a known date format")

// ParseDate parses a date string in any of the declared source formats and
// returns it in UTC.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)

	for _, layout := range dateLayouts {
		if date, err := time.Parse(layout, value); err == nil {
			return date.In(time.UTC), nil
		}
	}

	return time.Time{}, errUnknownDateFormat
}
