package avail

import (
	"strings"
	"time"

	strftime "github.com/ncruces/go-strftime"
)

const defaultDisplayFormat = "%I:%M %p"

// formatClock renders t for humans in its own location. The default 12-hour
// clock drops the leading zero; custom strftime patterns are used verbatim.
func formatClock(t time.Time, pattern string) string {
	if strings.TrimSpace(pattern) == "" {
		return strings.TrimPrefix(strftime.Format(defaultDisplayFormat, t), "0")
	}
	return strings.TrimSpace(strftime.Format(pattern, t))
}

func weekdayName(t time.Time) string {
	return t.Format("Monday")
}

func dayHeader(t time.Time) string {
	return t.Format("Monday, Jan 2")
}
