package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agis/avail/internal/contract"
)

func newEventsCmd(opts *globalOptions) *cobra.Command {
	events := &cobra.Command{Use: "events", Short: "Event resources"}

	var listCalendars []string
	var listFrom, listTo string
	var listLimit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List events",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, src, ro, err := buildContext(cmd, opts, "events.list")
			if err != nil {
				return err
			}
			f, _, err := buildSourceFilter(listFrom, listTo, listCalendars, listLimit, ro.TZ)
			if err != nil {
				return failWithHint(p, contract.ErrInvalidUsage, err, "Use --from and --to with RFC3339, YYYY-MM-DD, or relative values", 2)
			}
			ctx, cancel := commandContext(ro)
			defer cancel()
			items, err := listEventsWithTimeout(ctx, src, f)
			if err != nil {
				return failWithHint(p, contract.ErrSourceUnavailable, err, "Run `avail doctor` for remediation", 6)
			}
			return successWithMeta(ctx, p, ro, items, map[string]any{"count": len(items)}, nil)
		},
	}
	list.Flags().StringSliceVar(&listCalendars, "calendar", nil, "Calendar ID (repeatable)")
	list.Flags().StringVar(&listFrom, "from", "today", "Range start")
	list.Flags().StringVar(&listTo, "to", "+7d", "Range end")
	list.Flags().IntVar(&listLimit, "limit", 0, "Limit results")

	var searchCalendars []string
	var searchFrom, searchTo string
	var searchLimit int
	search := &cobra.Command{
		Use:   "search <query>",
		Short: "Search events by text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, src, ro, err := buildContext(cmd, opts, "events.search")
			if err != nil {
				return err
			}
			f, _, err := buildSourceFilter(searchFrom, searchTo, searchCalendars, searchLimit, ro.TZ)
			if err != nil {
				return failWithHint(p, contract.ErrInvalidUsage, err, "Use valid --from/--to values", 2)
			}
			f.Query = args[0]
			ctx, cancel := commandContext(ro)
			defer cancel()
			items, err := listEventsWithTimeout(ctx, src, f)
			if err != nil {
				return failWithHint(p, contract.ErrSourceUnavailable, err, "Run `avail doctor` for remediation", 6)
			}
			return successWithMeta(ctx, p, ro, items, map[string]any{"count": len(items), "query": args[0]}, nil)
		},
	}
	search.Flags().StringSliceVar(&searchCalendars, "calendar", nil, "Calendar ID (repeatable)")
	search.Flags().StringVar(&searchFrom, "from", "today", "Range start")
	search.Flags().StringVar(&searchTo, "to", "+30d", "Range end")
	search.Flags().IntVar(&searchLimit, "limit", 0, "Limit results")

	var showFrom, showTo string
	show := &cobra.Command{
		Use:   "show <event-id>",
		Short: "Show one event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, src, ro, err := buildContext(cmd, opts, "events.show")
			if err != nil {
				return err
			}
			f, _, err := buildSourceFilter(showFrom, showTo, nil, 0, ro.TZ)
			if err != nil {
				return failWithHint(p, contract.ErrInvalidUsage, err, "Use valid --from/--to values", 2)
			}
			ctx, cancel := commandContext(ro)
			defer cancel()
			items, err := listEventsWithTimeout(ctx, src, f)
			if err != nil {
				return failWithHint(p, contract.ErrSourceUnavailable, err, "Run `avail doctor` for remediation", 6)
			}
			for _, item := range items {
				if item.ID == args[0] {
					return successWithMeta(ctx, p, ro, item, map[string]any{"count": 1}, nil)
				}
			}
			err = fmt.Errorf("event not found in range: %s", args[0])
			return failWithHint(p, contract.ErrNotFound, err, "Check the ID with `avail events list` or widen --from/--to", 4)
		},
	}
	show.Flags().StringVar(&showFrom, "from", "today", "Range start")
	show.Flags().StringVar(&showTo, "to", "+30d", "Range end")

	var queryCalendars, wheres []string
	var queryFrom, queryTo, sortField, order string
	var queryLimit int
	query := &cobra.Command{
		Use:   "query",
		Short: "Agent-focused deterministic query",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, src, ro, err := buildContext(cmd, opts, "events.query")
			if err != nil {
				return err
			}
			f, loc, err := buildSourceFilter(queryFrom, queryTo, queryCalendars, 0, ro.TZ)
			if err != nil {
				return failWithHint(p, contract.ErrInvalidUsage, err, "Use valid --from/--to values", 2)
			}
			preds, err := parsePredicates(wheres)
			if err != nil {
				return failWithHint(p, contract.ErrInvalidUsage, err, "Use clauses like summary~\"standup\" or calendar==\"work\"", 2)
			}
			ctx, cancel := commandContext(ro)
			defer cancel()
			items, err := listEventsWithTimeout(ctx, src, f)
			if err != nil {
				return failWithHint(p, contract.ErrSourceUnavailable, err, "Run `avail doctor` for remediation", 6)
			}
			items, err = applyPredicates(items, preds, loc)
			if err != nil {
				return failWithHint(p, contract.ErrInvalidUsage, err, "Check --where field/operator/value", 2)
			}
			sortEvents(items, sortField, order, loc)
			if queryLimit > 0 && len(items) > queryLimit {
				items = items[:queryLimit]
			}
			return successWithMeta(ctx, p, ro, items, map[string]any{"count": len(items)}, nil)
		},
	}
	query.Flags().StringSliceVar(&queryCalendars, "calendar", nil, "Calendar ID (repeatable)")
	query.Flags().StringVar(&queryFrom, "from", "today", "Range start")
	query.Flags().StringVar(&queryTo, "to", "+30d", "Range end")
	query.Flags().StringSliceVar(&wheres, "where", nil, "Predicate clause (repeatable)")
	query.Flags().StringVar(&sortField, "sort", "start", "Sort field: start|end|summary|updated_at|calendar")
	query.Flags().StringVar(&order, "order", "asc", "Sort order: asc|desc")
	query.Flags().IntVar(&queryLimit, "limit", 0, "Limit results")

	events.AddCommand(list, search, show, query)
	return events
}
