package codec

import (
	"fmt"
	"time"
)

// dateLayout is the canonical on-disk form: RFC 1123 with a literal GMT
// zone, matching what established event-log writers emit.
const dateLayout = "Mon, 02 Jan 2006 15:04:05 GMT"

// dateParseLayouts are the variants an RFC-1123 printer might emit.
var dateParseLayouts = []string{
	time.RFC1123,  // "Mon, 02 Jan 2006 15:04:05 MST"
	time.RFC1123Z, // "Mon, 02 Jan 2006 15:04:05 -0700"
}

// FormatDate renders a timestamp in the canonical UTC form.
func FormatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

// ParseDate accepts any RFC-1123 variant and returns the instant in UTC.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range dateParseLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("not an RFC 1123 date: %q", s)
}
