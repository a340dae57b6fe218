// Package source provides read-only calendar event sources behind one small
// interface: the live Google Calendar API, agent-fed JSON files, and local
// sqlite snapshots. Sources only fetch; all availability math happens in the
// avail package.
package source

import (
	"context"
	"strings"
	"time"

	"github.com/agis/avail/internal/contract"
)

type Filter struct {
	Calendars []string
	From      time.Time
	To        time.Time
	Query     string
	Limit     int
}

type Source interface {
	Doctor(context.Context) ([]contract.SourceCheck, error)
	ListCalendars(context.Context) ([]contract.Calendar, error)
	ListEvents(context.Context, Filter) ([]contract.Event, error)
}

// matchesFilter applies range/calendar/query narrowing locally, for sources
// that cannot push the filter down. Events whose times do not resolve are
// kept: dropping them is the availability engine's call, not the source's.
func matchesFilter(e contract.Event, f Filter, loc *time.Location) bool {
	if len(f.Calendars) > 0 && !containsFold(f.Calendars, e.CalendarID) {
		return false
	}
	if f.Query != "" && !matchesQuery(e, f.Query) {
		return false
	}
	if f.From.IsZero() && f.To.IsZero() {
		return true
	}
	start, err := e.Start.Resolve(loc)
	if err != nil {
		return true
	}
	end, err := e.End.Resolve(loc)
	if err != nil {
		return true
	}
	endAt := end.At
	if start.AllDay && !endAt.After(start.At) {
		endAt = start.At.AddDate(0, 0, 1)
	}
	if !f.From.IsZero() && !endAt.After(f.From) {
		return false
	}
	if !f.To.IsZero() && !start.At.Before(f.To) {
		return false
	}
	return true
}

func matchesQuery(e contract.Event, q string) bool {
	needle := strings.ToLower(strings.TrimSpace(q))
	for _, hay := range []string{e.Summary, e.Description, e.Location} {
		if strings.Contains(strings.ToLower(hay), needle) {
			return true
		}
	}
	return false
}

func containsFold(haystack []string, needle string) bool {
	for _, h := range haystack {
		if strings.EqualFold(strings.TrimSpace(h), strings.TrimSpace(needle)) {
			return true
		}
	}
	return false
}

func applyLimit(events []contract.Event, limit int) []contract.Event {
	if limit > 0 && len(events) > limit {
		return events[:limit]
	}
	return events
}
