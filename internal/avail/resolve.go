package avail

import (
	"fmt"
	"strings"
	"time"

	"github.com/agis/avail/internal/contract"
)

const noSlotsText = "No available time slots found in the specified range."

// ForConflictResolution answers a colliding proposal with a seven-day
// availability scan (weekends included, up to five slots per day), smart
// suggestions, and a prompt-ready text rendering of the first days. A
// proposal whose times do not parse degrades to a fixed fallback object
// instead of failing.
func ForConflictResolution(proposed contract.ProposedEvent, all []contract.Event, loc *time.Location, cfg Config) contract.ConflictAvailability {
	cfg = cfg.normalize()
	if loc == nil {
		loc = time.Local
	}

	start, err := proposed.Start.Resolve(loc)
	if err != nil {
		return invalidProposal()
	}
	end, err := proposed.End.Resolve(loc)
	if err != nil {
		return invalidProposal()
	}
	duration := end.At.Sub(start.At)
	if start.AllDay && duration <= 0 {
		duration = 24 * time.Hour
	}
	if duration <= 0 {
		return invalidProposal()
	}

	scanCfg := cfg
	scanCfg.SkipWeekends = false
	scanCfg.MaxSlotsPerDay = DefaultMaxSlotsPerDay

	days := FindSlotsAcrossDays(start.At.In(loc), defaultLookaheadDays, duration, all, loc, scanCfg)
	return contract.ConflictAvailability{
		AvailableSlots:   days,
		SmartSuggestions: SmartSuggestions(proposed, nil, all, loc, cfg),
		FormattedForLLM:  FormatForLLM(days, loc),
	}
}

// FormatForLLM renders day groupings as newline-separated lines of
// "Weekday, Mon D: time, time, ...", limited to the first three days.
func FormatForLLM(days []contract.DaySlots, loc *time.Location) string {
	if len(days) == 0 {
		return noSlotsText
	}
	if loc == nil {
		loc = time.Local
	}
	limit := len(days)
	if limit > defaultLLMDayLimit {
		limit = defaultLLMDayLimit
	}
	lines := make([]string, 0, limit)
	for _, day := range days[:limit] {
		header := day.Date
		if parsed, err := time.ParseInLocation("2006-01-02", day.Date, loc); err == nil {
			header = dayHeader(parsed)
		}
		times := make([]string, 0, len(day.Slots))
		for _, slot := range day.Slots {
			times = append(times, slot.Display)
		}
		lines = append(lines, fmt.Sprintf("%s: %s", header, strings.Join(times, ", ")))
	}
	return strings.Join(lines, "\n")
}

func invalidProposal() contract.ConflictAvailability {
	return contract.ConflictAvailability{
		AvailableSlots:   []contract.DaySlots{},
		SmartSuggestions: []string{"Please specify a valid time"},
		FormattedForLLM:  "Unable to determine availability - invalid time format.",
	}
}
