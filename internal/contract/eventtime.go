package contract

import (
	"fmt"
	"strings"
	"time"
)

// EventTime mirrors the Google Calendar API's start/end shape: exactly one of
// DateTime (RFC3339) or Date (YYYY-MM-DD) is expected, with an optional IANA
// zone. Resolve maps the loose wire shape into a closed Instant value so that
// nothing downstream has to sniff which field was set.
type EventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

// Instant is the resolved form of an EventTime. An all-day value sits at
// local midnight of its date and spans one day for overlap purposes.
type Instant struct {
	At     time.Time
	AllDay bool
}

func NewDateTime(t time.Time) EventTime {
	return EventTime{DateTime: t.Format(time.RFC3339), TimeZone: t.Location().String()}
}

func NewDate(date string) EventTime {
	return EventTime{Date: date}
}

func (t EventTime) IsZero() bool {
	return strings.TrimSpace(t.DateTime) == "" && strings.TrimSpace(t.Date) == ""
}

// Resolve interprets the value in loc. The zone carried on the EventTime
// itself wins over loc for offset-less date-times.
func (t EventTime) Resolve(loc *time.Location) (Instant, error) {
	if loc == nil {
		loc = time.Local
	}
	if s := strings.TrimSpace(t.DateTime); s != "" {
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			return Instant{At: ts}, nil
		}
		zone := loc
		if tz := strings.TrimSpace(t.TimeZone); tz != "" {
			if parsed, err := time.LoadLocation(tz); err == nil {
				zone = parsed
			}
		}
		if ts, err := time.ParseInLocation("2006-01-02T15:04:05", s, zone); err == nil {
			return Instant{At: ts}, nil
		}
		return Instant{}, fmt.Errorf("unparsable dateTime: %q", s)
	}
	if s := strings.TrimSpace(t.Date); s != "" {
		ts, err := time.ParseInLocation("2006-01-02", s, loc)
		if err != nil {
			return Instant{}, fmt.Errorf("unparsable date: %q", s)
		}
		return Instant{At: ts, AllDay: true}, nil
	}
	return Instant{}, fmt.Errorf("event time has neither date nor dateTime")
}
