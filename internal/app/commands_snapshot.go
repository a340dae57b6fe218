package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agis/avail/internal/contract"
	"github.com/agis/avail/internal/source"
)

func newSnapshotCmd(opts *globalOptions) *cobra.Command {
	snapshot := &cobra.Command{Use: "snapshot", Short: "Offline event snapshots"}

	var saveCalendars []string
	var saveFrom, saveTo string
	save := &cobra.Command{
		Use:   "save",
		Short: "Capture the current event window into the snapshot store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, src, ro, err := buildContext(cmd, opts, "snapshot.save")
			if err != nil {
				return err
			}
			if ro.Source == "snapshot" {
				err = fmt.Errorf("cannot snapshot the snapshot source")
				return failWithHint(p, contract.ErrInvalidUsage, err, "Run with --source google or --source file", 2)
			}
			f, _, err := buildSourceFilter(saveFrom, saveTo, saveCalendars, 0, ro.TZ)
			if err != nil {
				return failWithHint(p, contract.ErrInvalidUsage, err, "Use valid --from/--to values", 2)
			}
			ctx, cancel := commandContext(ro)
			defer cancel()
			items, err := listEventsWithTimeout(ctx, src, f)
			if err != nil {
				return failWithHint(p, contract.ErrSourceUnavailable, err, "Run `avail doctor` for remediation", 6)
			}
			store, err := source.OpenSnapshotStore(snapshotDBPath(ro))
			if err != nil {
				return failWithHint(p, contract.ErrGeneric, err, "Check snapshot database path and permissions", 1)
			}
			defer store.Close()
			info, err := store.Save(ctx, ro.Source, items)
			if err != nil {
				return failWithHint(p, contract.ErrGeneric, err, "Unable to write snapshot", 1)
			}
			return successWithMeta(ctx, p, ro, info, map[string]any{
				"event_count": info.EventCount,
				"from":        f.From.Format("2006-01-02"),
				"to":          f.To.Format("2006-01-02"),
			}, nil)
		},
	}
	save.Flags().StringSliceVar(&saveCalendars, "calendar", nil, "Calendar ID (repeatable)")
	save.Flags().StringVar(&saveFrom, "from", "today", "Range start")
	save.Flags().StringVar(&saveTo, "to", "+30d", "Range end")

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored snapshots",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, _, ro, err := buildContextWithoutSource(cmd, opts, "snapshot.list")
			if err != nil {
				return err
			}
			store, err := source.OpenSnapshotStore(snapshotDBPath(ro))
			if err != nil {
				return failWithHint(p, contract.ErrGeneric, err, "Check snapshot database path and permissions", 1)
			}
			defer store.Close()
			ctx, cancel := commandContext(ro)
			defer cancel()
			infos, err := store.List(ctx)
			if err != nil {
				return failWithHint(p, contract.ErrGeneric, err, "Unable to read snapshot store", 1)
			}
			return successWithMeta(ctx, p, ro, infos, map[string]any{"count": len(infos)}, nil)
		},
	}

	show := &cobra.Command{
		Use:   "show [snapshot-id]",
		Short: "Show one snapshot and its events",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, ro, err := buildContextWithoutSource(cmd, opts, "snapshot.show")
			if err != nil {
				return err
			}
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			store, err := source.OpenSnapshotStore(snapshotDBPath(ro))
			if err != nil {
				return failWithHint(p, contract.ErrGeneric, err, "Check snapshot database path and permissions", 1)
			}
			defer store.Close()
			ctx, cancel := commandContext(ro)
			defer cancel()
			info, events, err := store.Load(ctx, id)
			if err != nil {
				return failWithHint(p, contract.ErrNotFound, err, "Run `avail snapshot list` to inspect IDs", 4)
			}
			data := map[string]any{"snapshot": info, "events": events}
			return successWithMeta(ctx, p, ro, data, map[string]any{"event_count": len(events)}, nil)
		},
	}

	var keep int
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the newest snapshots",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, _, ro, err := buildContextWithoutSource(cmd, opts, "snapshot.prune")
			if err != nil {
				return err
			}
			if keep < 0 {
				return failWithHint(p, contract.ErrInvalidUsage, fmt.Errorf("--keep must be >= 0"), "Use --keep 5", 2)
			}
			store, err := source.OpenSnapshotStore(snapshotDBPath(ro))
			if err != nil {
				return failWithHint(p, contract.ErrGeneric, err, "Check snapshot database path and permissions", 1)
			}
			defer store.Close()
			ctx, cancel := commandContext(ro)
			defer cancel()
			removed, err := store.Prune(ctx, keep)
			if err != nil {
				return failWithHint(p, contract.ErrGeneric, err, "Unable to prune snapshot store", 1)
			}
			return successWithMeta(ctx, p, ro, map[string]any{"removed": removed, "kept": keep}, map[string]any{"removed": removed}, nil)
		},
	}
	prune.Flags().IntVar(&keep, "keep", 5, "Snapshots to retain")

	snapshot.AddCommand(save, list, show, prune)
	return snapshot
}
