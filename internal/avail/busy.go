package avail

import (
	"sort"
	"time"

	"github.com/agis/avail/internal/contract"
)

type busyInterval struct {
	start time.Time
	end   time.Time
}

// busyIntervals resolves events into concrete busy intervals in loc. An event
// whose start or end does not resolve is skipped rather than failing the
// whole computation: one bad upstream record must not blank out the entire
// availability picture. All-day events occupy whole local days, with the end
// date exclusive as the Calendar API defines it.
func busyIntervals(events []contract.Event, loc *time.Location) []busyInterval {
	out := make([]busyInterval, 0, len(events))
	for _, e := range events {
		start, err := e.Start.Resolve(loc)
		if err != nil {
			continue
		}
		end, err := e.End.Resolve(loc)
		if err != nil {
			continue
		}
		iv := busyInterval{start: start.At, end: end.At}
		if start.AllDay {
			if !end.AllDay || !end.At.After(start.At) {
				iv.end = start.At.AddDate(0, 0, 1)
			}
		}
		if !iv.end.After(iv.start) {
			continue
		}
		out = append(out, iv)
	}
	return out
}

// overlapsAny applies the strict half-open rule: [s,e) conflicts with a busy
// interval only when each starts before the other ends. Touching endpoints
// are not conflicts.
func overlapsAny(start, end time.Time, busy []busyInterval) bool {
	for _, b := range busy {
		if start.Before(b.end) && b.start.Before(end) {
			return true
		}
	}
	return false
}

// BusyBlock is one merged stretch of occupied time.
type BusyBlock struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Minutes int64     `json:"minutes"`
}

// MergeBusy collapses overlapping and adjacent event intervals into ordered
// disjoint blocks.
func MergeBusy(events []contract.Event, loc *time.Location) []BusyBlock {
	ranges := busyIntervals(events, loc)
	if len(ranges) == 0 {
		return nil
	}
	sort.Slice(ranges, func(i, j int) bool {
		if ranges[i].start.Equal(ranges[j].start) {
			return ranges[i].end.Before(ranges[j].end)
		}
		return ranges[i].start.Before(ranges[j].start)
	})
	merged := make([]BusyBlock, 0, len(ranges))
	curStart := ranges[0].start
	curEnd := ranges[0].end
	for i := 1; i < len(ranges); i++ {
		if !ranges[i].start.After(curEnd) {
			if ranges[i].end.After(curEnd) {
				curEnd = ranges[i].end
			}
			continue
		}
		merged = append(merged, BusyBlock{Start: curStart, End: curEnd, Minutes: int64(curEnd.Sub(curStart).Minutes())})
		curStart = ranges[i].start
		curEnd = ranges[i].end
	}
	merged = append(merged, BusyBlock{Start: curStart, End: curEnd, Minutes: int64(curEnd.Sub(curStart).Minutes())})
	return merged
}
