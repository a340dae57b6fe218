package source

import (
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/agis/avail/internal/contract"
)

// maxOccurrences bounds expansion of a single recurring event so a
// misconfigured rule cannot flood the range scan.
const maxOccurrences = 500

// ExpandRecurring replaces events carrying recurrence rules with their
// concrete occurrences inside [from, to). Non-recurring events pass through
// unchanged, as do recurring events whose rule or start cannot be parsed.
func ExpandRecurring(events []contract.Event, from, to time.Time, loc *time.Location) []contract.Event {
	out := make([]contract.Event, 0, len(events))
	for _, ev := range events {
		if len(ev.Recurrence) == 0 {
			out = append(out, ev)
			continue
		}
		occ := expandOne(ev, from, to, loc)
		if occ == nil {
			out = append(out, ev)
			continue
		}
		out = append(out, occ...)
	}
	return out
}

func expandOne(ev contract.Event, from, to time.Time, loc *time.Location) []contract.Event {
	start, err := ev.Start.Resolve(loc)
	if err != nil {
		return nil
	}
	end, err := ev.End.Resolve(loc)
	if err != nil {
		return nil
	}
	duration := end.At.Sub(start.At)
	if start.AllDay && duration <= 0 {
		duration = 24 * time.Hour
	}

	var set rrule.Set
	var haveRule bool
	for _, line := range ev.Recurrence {
		switch {
		case strings.HasPrefix(line, "RRULE:"):
			r, err := rrule.StrToRRule(strings.TrimPrefix(line, "RRULE:"))
			if err != nil {
				return nil
			}
			r.DTStart(start.At)
			set.RRule(r)
			haveRule = true
		case strings.HasPrefix(line, "EXDATE"):
			for _, t := range parseExDates(line, loc) {
				set.ExDate(t)
			}
		}
	}
	if !haveRule {
		return nil
	}

	times := set.Between(from, to, true)
	if len(times) > maxOccurrences {
		times = times[:maxOccurrences]
	}
	occ := make([]contract.Event, 0, len(times))
	for _, t := range times {
		inst := ev
		inst.Recurrence = nil
		if start.AllDay {
			inst.Start = contract.NewDate(t.In(loc).Format("2006-01-02"))
			inst.End = contract.NewDate(t.In(loc).Add(duration).Format("2006-01-02"))
		} else {
			inst.Start = contract.NewDateTime(t)
			inst.End = contract.NewDateTime(t.Add(duration))
		}
		occ = append(occ, inst)
	}
	return occ
}

// parseExDates handles the common wire shapes: a bare EXDATE: with UTC
// stamps, and EXDATE;TZID=Zone: with local stamps.
func parseExDates(line string, loc *time.Location) []time.Time {
	idx := strings.Index(line, ":")
	if idx < 0 {
		return nil
	}
	header, values := line[:idx], line[idx+1:]

	zone := loc
	if _, tzid, ok := strings.Cut(header, "TZID="); ok {
		if l, err := time.LoadLocation(strings.TrimSuffix(tzid, ";")); err == nil {
			zone = l
		}
	}

	var out []time.Time
	for _, v := range strings.Split(values, ",") {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if t, err := time.Parse("20060102T150405Z", v); err == nil {
			out = append(out, t)
			continue
		}
		if t, err := time.ParseInLocation("20060102T150405", v, zone); err == nil {
			out = append(out, t)
			continue
		}
		if t, err := time.ParseInLocation("20060102", v, zone); err == nil {
			out = append(out, t)
		}
	}
	return out
}
