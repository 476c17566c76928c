package extract

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	printViewLayout = "Jan 2, 2006 at 3:04 PM"

	// ISOLayout is the millisecond-precision UTC layout used for every
	// timestamp the extractor emits.
	ISOLayout = "2006-01-02T15:04:05.000Z"
)

var weekdayPrefix = regexp.MustCompile(`^\w+,\s*`)

// FormatDate converts a print-view timestamp such as
// "Tue, Jun 3, 2025 at 10:12 AM", read in the local zone, to ISO-8601 UTC.
func FormatDate(text string) (string, error) {
	return FormatDateIn(text, time.Local)
}

// FormatDateIn is FormatDate with an explicit zone.
func FormatDateIn(text string, loc *time.Location) (string, error) {
	// Gmail separates the meridiem with a narrow no-break space.
	cleaned := strings.Join(strings.Fields(text), " ")
	cleaned = weekdayPrefix.ReplaceAllString(cleaned, "")

	t, err := time.ParseInLocation(printViewLayout, cleaned, loc)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrDateParse, text)
	}
	return t.UTC().Format(ISOLayout), nil
}
