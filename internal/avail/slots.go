package avail

import (
	"time"

	"github.com/agis/avail/internal/contract"
)

// FindSlots enumerates free slots of exactly duration on the calendar day of
// day (its time of day is ignored), inside the configured working-hours
// window, in ascending start order. Candidates step by cfg.SlotInterval and a
// slot may end exactly at the window close. Returns at most cfg.MaxSlots
// slots and an empty slice when nothing fits.
func FindSlots(day time.Time, duration time.Duration, events []contract.Event, loc *time.Location, cfg Config) []contract.TimeSlot {
	cfg = cfg.normalize()
	if loc == nil {
		loc = time.Local
	}
	if duration <= 0 {
		return nil
	}

	y, m, d := day.In(loc).Date()
	windowStart := time.Date(y, m, d, cfg.WorkStartHour, 0, 0, 0, loc)
	windowEnd := time.Date(y, m, d, cfg.WorkEndHour, 0, 0, 0, loc)

	busy := busyIntervals(events, loc)
	slots := make([]contract.TimeSlot, 0, cfg.MaxSlots)
	for candidate := windowStart; !candidate.Add(duration).After(windowEnd); candidate = candidate.Add(cfg.SlotInterval) {
		end := candidate.Add(duration)
		if overlapsAny(candidate, end, busy) {
			continue
		}
		slots = append(slots, newSlot(candidate, end, cfg))
		if len(slots) >= cfg.MaxSlots {
			break
		}
	}
	return slots
}

// FindSlotsAcrossDays runs the single-day search over numberOfDays calendar
// days starting at startDay. Weekend days are dropped entirely when
// cfg.SkipWeekends is set, and days without a single free slot contribute no
// entry. Day order and per-day slot order are preserved.
func FindSlotsAcrossDays(startDay time.Time, numberOfDays int, duration time.Duration, events []contract.Event, loc *time.Location, cfg Config) []contract.DaySlots {
	cfg = cfg.normalize()
	if loc == nil {
		loc = time.Local
	}

	perDay := cfg
	perDay.MaxSlots = cfg.MaxSlotsPerDay

	y, m, d := startDay.In(loc).Date()
	first := time.Date(y, m, d, 0, 0, 0, 0, loc)

	out := make([]contract.DaySlots, 0, numberOfDays)
	for i := 0; i < numberOfDays; i++ {
		day := first.AddDate(0, 0, i)
		if cfg.SkipWeekends && isWeekend(day.Weekday()) {
			continue
		}
		slots := FindSlots(day, duration, events, loc, perDay)
		if len(slots) == 0 {
			continue
		}
		out = append(out, contract.DaySlots{Date: day.Format("2006-01-02"), Slots: slots})
	}
	return out
}

func newSlot(start, end time.Time, cfg Config) contract.TimeSlot {
	return contract.TimeSlot{
		Start:    start,
		End:      end,
		StartISO: start.Format(time.RFC3339),
		EndISO:   end.Format(time.RFC3339),
		Display:  formatClock(start, cfg.DisplayFormat),
	}
}

func isWeekend(w time.Weekday) bool {
	return w == time.Saturday || w == time.Sunday
}
