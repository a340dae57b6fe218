package app

import (
	"github.com/spf13/cobra"

	"github.com/agis/avail/internal/contract"
)

func newHistoryCmd(opts *globalOptions) *cobra.Command {
	history := &cobra.Command{Use: "history", Short: "Inspect the local query log"}

	var limit, offset int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent availability queries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, _, _, err := buildContextWithoutSource(cmd, opts, "history.list")
			if err != nil {
				return err
			}
			entries, hasMore, err := readQueryHistoryPage(limit, offset)
			if err != nil {
				return failWithHint(p, contract.ErrGeneric, err, "Check history file permissions", 1)
			}
			return p.Success(entries, map[string]any{
				"count":    len(entries),
				"offset":   offset,
				"has_more": hasMore,
			}, nil)
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "Maximum entries")
	list.Flags().IntVar(&offset, "offset", 0, "Entries to skip from the newest")

	clear := &cobra.Command{
		Use:   "clear",
		Short: "Delete the query log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, _, _, err := buildContextWithoutSource(cmd, opts, "history.clear")
			if err != nil {
				return err
			}
			if err := clearQueryHistory(); err != nil {
				return failWithHint(p, contract.ErrGeneric, err, "Check history file permissions", 1)
			}
			return p.Success(map[string]any{"cleared": true}, nil, nil)
		},
	}

	history.AddCommand(list, clear)
	return history
}
