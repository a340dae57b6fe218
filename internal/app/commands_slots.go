package app

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/agis/avail/internal/avail"
	"github.com/agis/avail/internal/contract"
	"github.com/agis/avail/internal/timeparse"
)

func newSlotsCmd(opts *globalOptions) *cobra.Command {
	var calendars []string
	var dayS, durationS string
	var limit int
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Find free slots on a single day",
		RunE: func(c *cobra.Command, _ []string) error {
			p, src, ro, err := buildContext(c, opts, "slots")
			if err != nil {
				return err
			}
			loc := resolveLocation(ro.TZ)
			day, err := timeparse.ParseDateTime(dayS, time.Now(), loc)
			if err != nil {
				return failWithHint(p, contract.ErrInvalidUsage, err, "Use --day with YYYY-MM-DD or relative values like today, tomorrow, friday", 2)
			}
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
			dayStart, _ := dayBounds(day.In(loc))
			items, err := listEventsWithTimeout(ctx, src, sourceFilterForRange(dayStart, dayStart.AddDate(0, 0, 1), calendars, limit))
			if err != nil {
				return failWithHint(p, contract.ErrSourceUnavailable, err, "Run `avail doctor` for remediation", 6)
			}
			slots := avail.FindSlots(day, dur, items, loc, cfg)
			recordQuery(ro, "slots", map[string]any{"day": dayStart.Format("2006-01-02"), "duration": dur.String(), "count": len(slots)})
			return successWithMeta(ctx, p, ro, slots, map[string]any{
				"count":            len(slots),
				"date":             dayStart.Format("2006-01-02"),
				"duration_minutes": int64(dur.Minutes()),
				"events_scanned":   len(items),
			}, nil)
		},
	}
	cmd.Flags().StringSliceVar(&calendars, "calendar", nil, "Calendar ID (repeatable)")
	cmd.Flags().StringVar(&dayS, "day", "today", "Day to search")
	cmd.Flags().StringVar(&durationS, "duration", "30m", "Required slot duration")
	cmd.Flags().IntVar(&limit, "limit", 0, "Limit events scanned")
	return cmd
}

func newDaysCmd(opts *globalOptions) *cobra.Command {
	var calendars []string
	var fromS, durationS string
	var numberOfDays, limit int
	cmd := &cobra.Command{
		Use:   "days",
		Short: "Find free slots across several days",
		RunE: func(c *cobra.Command, _ []string) error {
			p, src, ro, err := buildContext(c, opts, "days")
			if err != nil {
				return err
			}
			if numberOfDays <= 0 {
				return failWithHint(p, contract.ErrInvalidUsage, fmt.Errorf("--days must be positive"), "Use --days 7", 2)
			}
			loc := resolveLocation(ro.TZ)
			from, err := timeparse.ParseDateTime(fromS, time.Now(), loc)
			if err != nil {
				return failWithHint(p, contract.ErrInvalidUsage, err, "Use --from with YYYY-MM-DD or relative values", 2)
			}
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
			fromDay, _ := dayBounds(from.In(loc))
			items, err := listEventsWithTimeout(ctx, src, sourceFilterForRange(fromDay, fromDay.AddDate(0, 0, numberOfDays), calendars, limit))
			if err != nil {
				return failWithHint(p, contract.ErrSourceUnavailable, err, "Run `avail doctor` for remediation", 6)
			}
			days := avail.FindSlotsAcrossDays(from, numberOfDays, dur, items, loc, cfg)
			total := 0
			for _, d := range days {
				total += len(d.Slots)
			}
			recordQuery(ro, "days", map[string]any{"from": fromDay.Format("2006-01-02"), "days": numberOfDays, "count": total})
			return successWithMeta(ctx, p, ro, days, map[string]any{
				"count":            total,
				"days_with_slots":  len(days),
				"days_scanned":     numberOfDays,
				"duration_minutes": int64(dur.Minutes()),
				"events_scanned":   len(items),
			}, nil)
		},
	}
	cmd.Flags().StringSliceVar(&calendars, "calendar", nil, "Calendar ID (repeatable)")
	cmd.Flags().StringVar(&fromS, "from", "today", "First day to search")
	cmd.Flags().IntVar(&numberOfDays, "days", 7, "Number of days to search")
	cmd.Flags().StringVar(&durationS, "duration", "30m", "Required slot duration")
	cmd.Flags().IntVar(&limit, "limit", 0, "Limit events scanned")
	return cmd
}

type nextSlotResult struct {
	Date     string            `json:"date"`
	Weekday  string            `json:"weekday"`
	Slot     contract.TimeSlot `json:"slot"`
	StartsIn string            `json:"starts_in"`
}

func newNextCmd(opts *globalOptions) *cobra.Command {
	var calendars []string
	var durationS string
	var within int
	cmd := &cobra.Command{
		Use:   "next",
		Short: "Find the next free slot from now",
		RunE: func(c *cobra.Command, _ []string) error {
			p, src, ro, err := buildContext(c, opts, "next")
			if err != nil {
				return err
			}
			if within <= 0 {
				return failWithHint(p, contract.ErrInvalidUsage, fmt.Errorf("--within must be positive"), "Use --within 14", 2)
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
			now := time.Now().In(loc)
			fromDay, _ := dayBounds(now)
			items, err := listEventsWithTimeout(ctx, src, sourceFilterForRange(fromDay, fromDay.AddDate(0, 0, within), calendars, 0))
			if err != nil {
				return failWithHint(p, contract.ErrSourceUnavailable, err, "Run `avail doctor` for remediation", 6)
			}
			slot, day, ok := firstSlotAfter(now, within, dur, items, loc, cfg)
			if !ok {
				return failWithHint(p, contract.ErrNotFound, fmt.Errorf("no free %s slot within %d days", dur, within), "Widen --within or shorten --duration", 4)
			}
			res := nextSlotResult{
				Date:     day.Format("2006-01-02"),
				Weekday:  day.Format("Monday"),
				Slot:     slot,
				StartsIn: humanize.Time(slot.Start),
			}
			recordQuery(ro, "next", map[string]any{"duration": dur.String(), "found": res.Slot.StartISO})
			return successWithMeta(ctx, p, ro, res, map[string]any{
				"events_scanned": len(items),
				"within_days":    within,
			}, nil)
		},
	}
	cmd.Flags().StringSliceVar(&calendars, "calendar", nil, "Calendar ID (repeatable)")
	cmd.Flags().StringVar(&durationS, "duration", "30m", "Required slot duration")
	cmd.Flags().IntVar(&within, "within", 14, "How many days ahead to search")
	return cmd
}

func firstSlotAfter(now time.Time, withinDays int, dur time.Duration, items []contract.Event, loc *time.Location, cfg avail.Config) (contract.TimeSlot, time.Time, bool) {
	for offset := 0; offset < withinDays; offset++ {
		day := now.AddDate(0, 0, offset)
		if cfg.SkipWeekends && isWeekendDay(day.Weekday()) {
			continue
		}
		for _, slot := range avail.FindSlots(day, dur, items, loc, cfg) {
			if !slot.Start.Before(now) {
				return slot, day, true
			}
		}
	}
	return contract.TimeSlot{}, time.Time{}, false
}

func isWeekendDay(w time.Weekday) bool {
	return w == time.Saturday || w == time.Sunday
}

func parseSlotDuration(v string) (time.Duration, error) {
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid --duration: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("--duration must be positive")
	}
	return d, nil
}
