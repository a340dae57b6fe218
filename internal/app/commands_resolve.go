package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/agis/avail/internal/avail"
	"github.com/agis/avail/internal/contract"
	"github.com/agis/avail/internal/source"
	"github.com/agis/avail/internal/timeparse"
)

// conflictLookaheadDays is the window of events fetched around a proposal:
// the engine scans 7 days, plus one day of padding for events that spill
// across midnight.
const conflictLookaheadDays = 8

func newResolveCmd(opts *globalOptions) *cobra.Command {
	var calendars []string
	var atText, startS, endS, durationS, summary string
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Check a proposed meeting and get alternatives if it conflicts",
		Long: `Resolve checks a proposed meeting against the calendar and, when it
collides, answers with free slots over the next week, short reschedule
phrases, and a text block ready to paste into a chat or prompt.`,
		RunE: func(c *cobra.Command, _ []string) error {
			p, src, ro, err := buildContext(c, opts, "resolve")
			if err != nil {
				return err
			}
			loc := resolveLocation(ro.TZ)
			cfg, err := engineConfig(ro)
			if err != nil {
				return failWithHint(p, contract.ErrInvalidUsage, err, "Use --work-hours like 8-22", 2)
			}
			proposed, err := buildProposal(atText, startS, endS, durationS, summary, loc)
			if err != nil {
				return failWithHint(p, contract.ErrInvalidUsage, err, `Use --at "tomorrow 14:00 1h" or --start/--end`, 2)
			}
			ctx, cancel := commandContext(ro)
			defer cancel()
			items, err := fetchProposalWindow(ctx, src, proposed, calendars, loc)
			if err != nil {
				return failWithHint(p, contract.ErrSourceUnavailable, err, "Run `avail doctor` for remediation", 6)
			}
			res := avail.ForConflictResolution(proposed, items, loc, cfg)
			total := 0
			for _, d := range res.AvailableSlots {
				total += len(d.Slots)
			}
			recordQuery(ro, "resolve", map[string]any{"summary": proposed.Summary, "slots": total})
			return successWithMeta(ctx, p, ro, res, map[string]any{
				"slot_count":       total,
				"suggestion_count": len(res.SmartSuggestions),
				"events_scanned":   len(items),
			}, nil)
		},
	}
	cmd.Flags().StringSliceVar(&calendars, "calendar", nil, "Calendar ID (repeatable)")
	cmd.Flags().StringVar(&atText, "at", "", `Proposal as natural text, e.g. "tomorrow 14:00 Team sync 45m"`)
	cmd.Flags().StringVar(&startS, "start", "", "Proposal start (RFC3339 or YYYY-MM-DDTHH:MM)")
	cmd.Flags().StringVar(&endS, "end", "", "Proposal end")
	cmd.Flags().StringVar(&durationS, "duration", "1h", "Proposal duration when --end is absent")
	cmd.Flags().StringVar(&summary, "summary", "", "Proposal summary")
	return cmd
}

func newSuggestCmd(opts *globalOptions) *cobra.Command {
	var calendars []string
	var atText, startS, endS, durationS, summary string
	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Suggest reschedule phrasings for a proposed meeting",
		RunE: func(c *cobra.Command, _ []string) error {
			p, src, ro, err := buildContext(c, opts, "suggest")
			if err != nil {
				return err
			}
			loc := resolveLocation(ro.TZ)
			cfg, err := engineConfig(ro)
			if err != nil {
				return failWithHint(p, contract.ErrInvalidUsage, err, "Use --work-hours like 8-22", 2)
			}
			proposed, err := buildProposal(atText, startS, endS, durationS, summary, loc)
			if err != nil {
				return failWithHint(p, contract.ErrInvalidUsage, err, `Use --at "tomorrow 14:00 1h" or --start/--end`, 2)
			}
			ctx, cancel := commandContext(ro)
			defer cancel()
			items, err := fetchProposalWindow(ctx, src, proposed, calendars, loc)
			if err != nil {
				return failWithHint(p, contract.ErrSourceUnavailable, err, "Run `avail doctor` for remediation", 6)
			}
			suggestions := avail.SmartSuggestions(proposed, nil, items, loc, cfg)
			recordQuery(ro, "suggest", map[string]any{"summary": proposed.Summary, "count": len(suggestions)})
			return successWithMeta(ctx, p, ro, suggestions, map[string]any{
				"count":          len(suggestions),
				"events_scanned": len(items),
			}, nil)
		},
	}
	cmd.Flags().StringSliceVar(&calendars, "calendar", nil, "Calendar ID (repeatable)")
	cmd.Flags().StringVar(&atText, "at", "", `Proposal as natural text, e.g. "tomorrow 14:00 Team sync 45m"`)
	cmd.Flags().StringVar(&startS, "start", "", "Proposal start (RFC3339 or YYYY-MM-DDTHH:MM)")
	cmd.Flags().StringVar(&endS, "end", "", "Proposal end")
	cmd.Flags().StringVar(&durationS, "duration", "1h", "Proposal duration when --end is absent")
	cmd.Flags().StringVar(&summary, "summary", "", "Proposal summary")
	return cmd
}

func newFreebusyCmd(opts *globalOptions) *cobra.Command {
	var calendars []string
	var fromS, toS string
	var limit int
	cmd := &cobra.Command{
		Use:   "freebusy",
		Short: "Show merged busy intervals for a range",
		RunE: func(c *cobra.Command, _ []string) error {
			p, src, ro, err := buildContext(c, opts, "freebusy")
			if err != nil {
				return err
			}
			f, loc, err := buildSourceFilter(fromS, toS, calendars, limit, ro.TZ)
			if err != nil {
				return failWithHint(p, contract.ErrInvalidUsage, err, "Use valid --from/--to values", 2)
			}
			ctx, cancel := commandContext(ro)
			defer cancel()
			items, err := listEventsWithTimeout(ctx, src, f)
			if err != nil {
				return failWithHint(p, contract.ErrSourceUnavailable, err, "Run `avail doctor` for remediation", 6)
			}
			blocks := avail.MergeBusy(items, loc)
			minutes := int64(0)
			for _, b := range blocks {
				minutes += b.Minutes
			}
			recordQuery(ro, "freebusy", map[string]any{"from": fromS, "to": toS, "blocks": len(blocks)})
			return successWithMeta(ctx, p, ro, blocks, map[string]any{
				"count":          len(blocks),
				"busy_minutes":   minutes,
				"events_scanned": len(items),
			}, nil)
		},
	}
	cmd.Flags().StringSliceVar(&calendars, "calendar", nil, "Calendar ID (repeatable)")
	cmd.Flags().StringVar(&fromS, "from", "today", "Range start")
	cmd.Flags().StringVar(&toS, "to", "+7d", "Range end")
	cmd.Flags().IntVar(&limit, "limit", 0, "Limit events scanned")
	return cmd
}

// buildProposal accepts either structured --start/--end flags or a natural
// text proposal. An unparsable --at text still yields a proposal carrying
// the raw text, so the resolution engine can answer with its fixed invalid
// proposal response instead of a usage error.
func buildProposal(atText, startS, endS, durationS, summary string, loc *time.Location) (contract.ProposedEvent, error) {
	if strings.TrimSpace(atText) != "" && strings.TrimSpace(startS) != "" {
		return contract.ProposedEvent{}, fmt.Errorf("use either --at or --start, not both")
	}
	duration := time.Hour
	if strings.TrimSpace(durationS) != "" {
		d, err := time.ParseDuration(durationS)
		if err != nil || d <= 0 {
			if err == nil {
				err = fmt.Errorf("--duration must be positive")
			}
			return contract.ProposedEvent{}, err
		}
		duration = d
	}

	if strings.TrimSpace(startS) != "" {
		start, err := timeparse.ParseDateTime(startS, time.Now(), loc)
		if err != nil {
			return contract.ProposedEvent{}, fmt.Errorf("invalid --start: %w", err)
		}
		end := start.Add(duration)
		if strings.TrimSpace(endS) != "" {
			end, err = timeparse.ParseDateTime(endS, time.Now(), loc)
			if err != nil {
				return contract.ProposedEvent{}, fmt.Errorf("invalid --end: %w", err)
			}
			if !end.After(start) {
				return contract.ProposedEvent{}, fmt.Errorf("--end must be after --start")
			}
		}
		return contract.ProposedEvent{
			Summary: summary,
			Start:   contract.NewDateTime(start),
			End:     contract.NewDateTime(end),
		}, nil
	}

	if strings.TrimSpace(atText) == "" {
		return contract.ProposedEvent{}, fmt.Errorf("provide a proposal with --at or --start")
	}
	proposed, err := parseProposalText(atText, time.Now(), loc, duration)
	if err != nil {
		// Let the engine classify the bad proposal.
		return contract.ProposedEvent{
			Summary: summary,
			Start:   contract.EventTime{DateTime: strings.TrimSpace(atText)},
			End:     contract.EventTime{DateTime: strings.TrimSpace(atText)},
		}, nil
	}
	if summary != "" {
		proposed.Summary = summary
	}
	return proposed, nil
}

func fetchProposalWindow(ctx context.Context, src source.Source, proposed contract.ProposedEvent, calendars []string, loc *time.Location) ([]contract.Event, error) {
	anchor := time.Now().In(loc)
	if inst, err := proposed.Start.Resolve(loc); err == nil {
		anchor = inst.At.In(loc)
	}
	fromDay, _ := dayBounds(anchor)
	return listEventsWithTimeout(ctx, src, sourceFilterForRange(fromDay, fromDay.AddDate(0, 0, conflictLookaheadDays), calendars, 0))
}
