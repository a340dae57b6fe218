package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/spf13/cobra"

	"github.com/agis/avail/internal/avail"
	"github.com/agis/avail/internal/contract"
	"github.com/agis/avail/internal/output"
	"github.com/agis/avail/internal/timeparse"
)

func newExportCmd(opts *globalOptions) *cobra.Command {
	var calendars []string
	var fromS, durationS, summary, outPath string
	var numberOfDays int
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export free slots as an ICS calendar",
		RunE: func(c *cobra.Command, _ []string) error {
			p, src, ro, err := buildContext(c, opts, "export")
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
			items, err := listEventsWithTimeout(ctx, src, sourceFilterForRange(fromDay, fromDay.AddDate(0, 0, numberOfDays), calendars, 0))
			if err != nil {
				return failWithHint(p, contract.ErrSourceUnavailable, err, "Run `avail doctor` for remediation", 6)
			}
			days := avail.FindSlotsAcrossDays(from, numberOfDays, dur, items, loc, cfg)
			ics, count := buildAvailabilityICS(days, summary)
			meta := map[string]any{"count": count, "days_scanned": numberOfDays}
			if strings.TrimSpace(outPath) != "" {
				if err := os.WriteFile(outPath, []byte(ics), 0o644); err != nil {
					return failWithHint(p, contract.ErrGeneric, err, "Check destination path permissions", 1)
				}
				return successWithMeta(ctx, p, ro, map[string]any{"path": outPath, "slots": count}, meta, nil)
			}
			if m := p.EffectiveSuccessMode(); m == output.ModeJSON || m == output.ModeJSONL {
				return successWithMeta(ctx, p, ro, map[string]any{"ics": ics, "slots": count}, meta, nil)
			}
			_, _ = fmt.Fprint(c.OutOrStdout(), ics)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&calendars, "calendar", nil, "Calendar ID (repeatable)")
	cmd.Flags().StringVar(&fromS, "from", "today", "First day to export")
	cmd.Flags().IntVar(&numberOfDays, "days", 7, "Number of days to export")
	cmd.Flags().StringVar(&durationS, "duration", "30m", "Required slot duration")
	cmd.Flags().StringVar(&summary, "summary", "Available", "Summary for exported slot events")
	cmd.Flags().StringVar(&outPath, "out", "", "Output file path (default stdout)")
	return cmd
}

// buildAvailabilityICS serializes free slots as transparent VEVENTs so they
// can be shared or overlaid on another calendar without blocking time.
func buildAvailabilityICS(days []contract.DaySlots, summary string) (string, int) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//avail//EN")
	now := time.Now().UTC()
	count := 0
	for _, day := range days {
		for i, slot := range day.Slots {
			ev := cal.AddEvent(fmt.Sprintf("avail-%s-%d", day.Date, i))
			ev.SetDtStampTime(now)
			ev.SetStartAt(slot.Start.UTC())
			ev.SetEndAt(slot.End.UTC())
			ev.SetSummary(summary)
			ev.SetTimeTransparency(ical.TransparencyTransparent)
			count++
		}
	}
	return cal.Serialize(), count
}
