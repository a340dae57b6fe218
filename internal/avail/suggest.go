package avail

import (
	"fmt"
	"time"

	"github.com/agis/avail/internal/contract"
)

// SmartSuggestions turns a colliding proposal into a short prioritized list
// of reschedule phrases: up to three same-day alternatives, then up to two
// for the next calendar day, then a generic fallback pair when the calendar
// is packed. Never more than four entries, never zero.
//
// conflicting is accepted for call-site symmetry but not consulted; the
// search always runs against the full event list.
func SmartSuggestions(proposed contract.ProposedEvent, conflicting, all []contract.Event, loc *time.Location, cfg Config) []string {
	_ = conflicting
	cfg = cfg.normalize()
	if loc == nil {
		loc = time.Local
	}

	start, err := proposed.Start.Resolve(loc)
	if err != nil {
		return []string{"Please try a different time"}
	}
	end, err := proposed.End.Resolve(loc)
	if err != nil {
		return []string{"Please try a different time"}
	}
	duration := end.At.Sub(start.At)
	if start.AllDay && duration <= 0 {
		duration = 24 * time.Hour
	}
	if duration <= 0 {
		return []string{"Please try a different time"}
	}

	anchor := start.At.In(loc)
	originalTime := formatClock(anchor, cfg.DisplayFormat)
	suggestions := make([]string, 0, maxSmartSuggestions)

	sameDayCfg := cfg
	sameDayCfg.MaxSlots = defaultSameDayCap
	for _, slot := range FindSlots(anchor, duration, all, loc, sameDayCfg) {
		suggestions = append(suggestions, fmt.Sprintf("Try %s on %s", slot.Display, weekdayName(anchor)))
	}

	nextDay := anchor.AddDate(0, 0, 1)
	nextDayCfg := cfg
	nextDayCfg.MaxSlots = defaultNextDayCap
	nextSlots := FindSlots(nextDay, duration, all, loc, nextDayCfg)
	if len(nextSlots) > 0 {
		// The original time is offered for the next day whenever that day has
		// any opening, even if that exact time is taken.
		suggestions = append(suggestions, fmt.Sprintf("Schedule %s at %s", weekdayName(nextDay), originalTime))
		if nextSlots[0].Display != originalTime {
			suggestions = append(suggestions, fmt.Sprintf("Try %s at %s", weekdayName(nextDay), nextSlots[0].Display))
		}
	}

	if len(suggestions) == 0 {
		suggestions = append(suggestions,
			"Try scheduling for a different day",
			"Consider shortening the meeting duration",
		)
	}
	if len(suggestions) > maxSmartSuggestions {
		suggestions = suggestions[:maxSmartSuggestions]
	}
	return suggestions
}
