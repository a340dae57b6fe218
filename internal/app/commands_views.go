package app

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/agis/avail/internal/avail"
	"github.com/agis/avail/internal/contract"
)

type dayAvailability struct {
	Date        string              `json:"date"`
	Weekday     string              `json:"weekday"`
	FreeSlots   int                 `json:"free_slots"`
	BusyMinutes int64               `json:"busy_minutes"`
	FirstFree   string              `json:"first_free,omitempty"`
	Slots       []contract.TimeSlot `json:"slots,omitempty"`
}

func newTodayCmd(opts *globalOptions) *cobra.Command {
	return newAvailabilityViewCmd(opts, "today", "Show today's availability at a glance", 1, true)
}

func newWeekCmd(opts *globalOptions) *cobra.Command {
	return newAvailabilityViewCmd(opts, "week", "Show availability for the next seven days", 7, false)
}

func newAvailabilityViewCmd(opts *globalOptions, use, short string, numDays int, includeSlots bool) *cobra.Command {
	var calendars []string
	var durationS string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(c *cobra.Command, _ []string) error {
			p, src, ro, err := buildContext(c, opts, use)
			if err != nil {
				return err
			}
			loc := resolveLocation(ro.TZ)
			dur, err := parseSlotDuration(durationS)
			if err != nil {
				return failWithHint(p, contract.ErrInvalidUsage, err, "Use --duration like 30m or 1h", 2)
			}
			cfg, err := engineConfig(ro)
			if err != nil {
				return failWithHint(p, contract.ErrInvalidUsage, err, "Use --work-hours like 8-22", 2)
			}
			ctx, cancel := commandContext(ro)
			defer cancel()
			fromDay, _ := dayBounds(time.Now().In(loc))
			items, err := listEventsWithTimeout(ctx, src, sourceFilterForRange(fromDay, fromDay.AddDate(0, 0, numDays), calendars, 0))
			if err != nil {
				return failWithHint(p, contract.ErrSourceUnavailable, err, "Run `avail doctor` for remediation", 6)
			}
			rows := summarizeAvailability(fromDay, numDays, dur, items, loc, cfg, includeSlots)
			free := 0
			for _, r := range rows {
				free += r.FreeSlots
			}
			recordQuery(ro, use, map[string]any{"days": numDays, "free_slots": free})
			return successWithMeta(ctx, p, ro, rows, map[string]any{
				"days":           len(rows),
				"free_slots":     free,
				"events_scanned": len(items),
			}, nil)
		},
	}
	cmd.Flags().StringSliceVar(&calendars, "calendar", nil, "Calendar ID (repeatable)")
	cmd.Flags().StringVar(&durationS, "duration", "30m", "Slot duration used for the free count")
	return cmd
}

// summarizeAvailability builds one row per calendar day: free slot count,
// busy minutes clamped to that day, and the first free time. Views report
// every day in the range, weekends included.
func summarizeAvailability(from time.Time, numDays int, dur time.Duration, items []contract.Event, loc *time.Location, cfg avail.Config, includeSlots bool) []dayAvailability {
	blocks := avail.MergeBusy(items, loc)
	rows := make([]dayAvailability, 0, numDays)
	for offset := 0; offset < numDays; offset++ {
		day := from.AddDate(0, 0, offset)
		dayStart, _ := dayBounds(day)
		dayEnd := dayStart.AddDate(0, 0, 1)

		slots := avail.FindSlots(day, dur, items, loc, cfg)
		row := dayAvailability{
			Date:        dayStart.Format("2006-01-02"),
			Weekday:     dayStart.Format("Monday"),
			FreeSlots:   len(slots),
			BusyMinutes: busyMinutesWithin(blocks, dayStart, dayEnd),
		}
		if len(slots) > 0 {
			row.FirstFree = slots[0].Display
		}
		if includeSlots {
			row.Slots = slots
		}
		rows = append(rows, row)
	}
	return rows
}

func busyMinutesWithin(blocks []avail.BusyBlock, from, to time.Time) int64 {
	var total int64
	for _, b := range blocks {
		start := b.Start
		end := b.End
		if start.Before(from) {
			start = from
		}
		if end.After(to) {
			end = to
		}
		if end.After(start) {
			total += int64(end.Sub(start).Minutes())
		}
	}
	return total
}
