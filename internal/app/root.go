package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/agis/avail/internal/avail"
	"github.com/agis/avail/internal/contract"
	"github.com/agis/avail/internal/output"
	"github.com/agis/avail/internal/source"
	"github.com/agis/avail/internal/timeparse"
)

var sourceFactory = selectSource

type globalOptions struct {
	JSON           bool
	JSONL          bool
	Plain          bool
	Fields         string
	Quiet          bool
	Verbose        bool
	NoColor        bool
	FailOnDegraded bool
	Profile        string
	Config         string
	Source         string
	EventsFile     string
	SnapshotID     string
	SnapshotDB     string
	TZ             string
	Timeout        time.Duration
	SchemaVersion  string

	WorkHours       string
	Interval        time.Duration
	MaxSlots        int
	MaxPerDay       int
	IncludeWeekends bool
	DisplayFormat   string
	NoCache         bool
	CacheTTL        time.Duration
}

func Execute() int {
	cmd := NewRootCommand()
	err := cmd.Execute()
	if err != nil {
		renderTopLevelError(cmd, err)
	}
	return ExitCode(err)
}

func NewRootCommand() *cobra.Command {
	opts := &globalOptions{
		Profile:       "default",
		Source:        "google",
		Timeout:       15 * time.Second,
		SchemaVersion: contract.SchemaVersion,
		Interval:      avail.DefaultSlotInterval,
		MaxSlots:      avail.DefaultMaxSlots,
		MaxPerDay:     avail.DefaultMaxSlotsPerDay,
		WorkHours:     fmt.Sprintf("%d-%d", avail.DefaultWorkStartHour, avail.DefaultWorkEndHour),
		CacheTTL:      5 * time.Minute,
	}

	root := &cobra.Command{
		Use:           "avail",
		Short:         "Find free calendar slots and resolve scheduling conflicts from terminal workflows and agents",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       BuildVersionString(),
	}
	root.SetVersionTemplate("avail {{.Version}}\n")

	root.PersistentFlags().BoolVar(&opts.JSON, "json", false, "Output structured JSON")
	root.PersistentFlags().BoolVar(&opts.JSONL, "jsonl", false, "Output newline-delimited JSON")
	root.PersistentFlags().BoolVar(&opts.Plain, "plain", false, "Output stable plain text")
	root.PersistentFlags().StringVar(&opts.Fields, "fields", "", "Projected fields, comma-separated")
	root.PersistentFlags().BoolVarP(&opts.Quiet, "quiet", "q", false, "Reduce success output")
	root.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Verbose diagnostics")
	root.PersistentFlags().BoolVar(&opts.NoColor, "no-color", false, "Disable color output")
	root.PersistentFlags().BoolVar(&opts.FailOnDegraded, "fail-on-degraded", false, "Fail if source health is degraded")
	root.PersistentFlags().StringVar(&opts.Profile, "profile", "default", "Config profile")
	root.PersistentFlags().StringVar(&opts.Config, "config", "", "Config file path")
	root.PersistentFlags().StringVar(&opts.Source, "source", "google", "Event source: google|file|snapshot")
	root.PersistentFlags().StringVar(&opts.EventsFile, "events-file", "", "JSON events file for --source file (- for stdin)")
	root.PersistentFlags().StringVar(&opts.SnapshotID, "snapshot-id", "", "Snapshot to read for --source snapshot (default latest)")
	root.PersistentFlags().StringVar(&opts.SnapshotDB, "snapshot-db", "", "Snapshot database path")
	root.PersistentFlags().StringVar(&opts.TZ, "tz", "", "IANA timezone for calculations and output")
	root.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 15*time.Second, "Source call timeout (e.g. 10s, 1m, 0 to disable)")
	root.PersistentFlags().StringVar(&opts.SchemaVersion, "schema-version", contract.SchemaVersion, "Output schema version")

	root.PersistentFlags().StringVar(&opts.WorkHours, "work-hours", opts.WorkHours, "Daily working window as start-end hours, e.g. 8-22")
	root.PersistentFlags().DurationVar(&opts.Interval, "interval", opts.Interval, "Candidate slot alignment step")
	root.PersistentFlags().IntVar(&opts.MaxSlots, "max-slots", opts.MaxSlots, "Maximum slots per single-day search")
	root.PersistentFlags().IntVar(&opts.MaxPerDay, "max-per-day", opts.MaxPerDay, "Maximum slots per day in multi-day searches")
	root.PersistentFlags().BoolVar(&opts.IncludeWeekends, "include-weekends", false, "Include Saturday and Sunday in multi-day searches")
	root.PersistentFlags().StringVar(&opts.DisplayFormat, "display-format", "", "strftime pattern for slot display times")
	root.PersistentFlags().BoolVar(&opts.NoCache, "no-cache", false, "Bypass the in-process event cache")
	root.PersistentFlags().DurationVar(&opts.CacheTTL, "cache-ttl", opts.CacheTTL, "Event cache entry lifetime")

	root.AddCommand(newSetupCmd(opts))
	root.AddCommand(newStatusCmd(opts))
	root.AddCommand(newVersionCmd())
	root.AddCommand(newDoctorCmd(opts))
	root.AddCommand(newCalendarsCmd(opts))
	root.AddCommand(newEventsCmd(opts))
	root.AddCommand(newSlotsCmd(opts))
	root.AddCommand(newDaysCmd(opts))
	root.AddCommand(newNextCmd(opts))
	root.AddCommand(newTodayCmd(opts))
	root.AddCommand(newWeekCmd(opts))
	root.AddCommand(newFreebusyCmd(opts))
	root.AddCommand(newSuggestCmd(opts))
	root.AddCommand(newResolveCmd(opts))
	root.AddCommand(newQueriesCmd(opts))
	root.AddCommand(newSnapshotCmd(opts))
	root.AddCommand(newHistoryCmd(opts))
	root.AddCommand(newExportCmd(opts))
	root.AddCommand(newCompletionCmd(root))

	return root
}

func buildContext(cmd *cobra.Command, opts *globalOptions, command string) (output.Printer, source.Source, *globalOptions, error) {
	resolved, err := resolveGlobalOptions(cmd, opts)
	if err != nil {
		return output.Printer{}, nil, nil, Wrap(2, err)
	}
	if conflictCount(resolved.JSON, resolved.JSONL, resolved.Plain) > 1 {
		return output.Printer{}, nil, nil, Wrap(2, errors.New("--json, --jsonl, and --plain are mutually exclusive"))
	}
	mode := output.ModeAuto
	if resolved.JSON {
		mode = output.ModeJSON
	} else if resolved.JSONL {
		mode = output.ModeJSONL
	} else if resolved.Plain {
		mode = output.ModePlain
	}

	printer := output.Printer{
		Mode:          mode,
		Command:       command,
		Fields:        splitCSV(resolved.Fields),
		Quiet:         resolved.Quiet,
		NoColor:       resolved.NoColor,
		SchemaVersion: resolved.SchemaVersion,
		Out:           cmd.OutOrStdout(),
		Err:           cmd.ErrOrStderr(),
	}

	src, err := sourceFactory(resolved, resolveLocation(resolved.TZ))
	if err != nil {
		_ = printer.Error(contract.ErrInvalidUsage, err.Error(), "Use --source google, file, or snapshot")
		return printer, nil, nil, WrapPrinted(2, err)
	}
	if resolved.FailOnDegraded && !isHealthCommand(command) {
		ctx, cancel := commandContext(resolved)
		defer cancel()
		checks, derr := doctorWithTimeout(ctx, src)
		setup := buildSetupResult(checks, derr, resolved.Source)
		if !setup.Ready {
			reasons := deriveFailureReasonCodes(checks, derr)
			err = fmt.Errorf("degraded environment: %s", strings.Join(reasons, ","))
			_ = printer.Error(contract.ErrSourceUnavailable, err.Error(), "Run `avail status` and address next steps, or disable --fail-on-degraded")
			return printer, nil, nil, WrapPrinted(6, err)
		}
	}
	if resolved.Verbose {
		_, _ = fmt.Fprintf(printer.Err, "avail: command=%s source=%s mode=%s tz=%s profile=%s timeout=%s\n", command, resolved.Source, mode, resolved.TZ, resolved.Profile, resolved.Timeout)
	}
	return printer, src, resolved, nil
}

func commandContext(ro *globalOptions) (context.Context, context.CancelFunc) {
	timing := &timingRecorder{calls: map[string]time.Duration{}}
	base := context.WithValue(context.Background(), timingContextKey{}, timing)
	if ro == nil || ro.Timeout <= 0 {
		return context.WithCancel(base)
	}
	return context.WithTimeout(base, ro.Timeout)
}

type timeoutResult[T any] struct {
	val T
	err error
}

type timingContextKey struct{}

type timingRecorder struct {
	mu    sync.Mutex
	calls map[string]time.Duration
}

func (r *timingRecorder) add(name string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[name] += d
}

func sourceTimings(ctx context.Context) map[string]string {
	rec, _ := ctx.Value(timingContextKey{}).(*timingRecorder)
	if rec == nil {
		return nil
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.calls) == 0 {
		return nil
	}
	keys := make([]string, 0, len(rec.calls))
	for k := range rec.calls {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		out[k] = rec.calls[k].String()
	}
	return out
}

func withTimeout[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	ch := make(chan timeoutResult[T], 1)
	go func() {
		v, err := fn()
		ch <- timeoutResult[T]{val: v, err: err}
	}()
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case res := <-ch:
		return res.val, res.err
	}
}

func doctorWithTimeout(ctx context.Context, src source.Source) ([]contract.SourceCheck, error) {
	start := time.Now()
	v, err := withTimeout(ctx, func() ([]contract.SourceCheck, error) {
		return src.Doctor(ctx)
	})
	err = annotateSourceError(ctx, "source.doctor", err)
	recordTiming(ctx, "source.doctor", time.Since(start))
	return v, err
}

func listCalendarsWithTimeout(ctx context.Context, src source.Source) ([]contract.Calendar, error) {
	start := time.Now()
	v, err := withTimeout(ctx, func() ([]contract.Calendar, error) {
		return src.ListCalendars(ctx)
	})
	err = annotateSourceError(ctx, "source.list_calendars", err)
	recordTiming(ctx, "source.list_calendars", time.Since(start))
	return v, err
}

func listEventsWithTimeout(ctx context.Context, src source.Source, f source.Filter) ([]contract.Event, error) {
	start := time.Now()
	v, err := withTimeout(ctx, func() ([]contract.Event, error) {
		return src.ListEvents(ctx, f)
	})
	err = annotateSourceError(ctx, "source.list_events", err)
	recordTiming(ctx, "source.list_events", time.Since(start))
	return v, err
}

func recordTiming(ctx context.Context, name string, d time.Duration) {
	rec, _ := ctx.Value(timingContextKey{}).(*timingRecorder)
	if rec == nil {
		return
	}
	rec.add(name, d)
}

func successWithMeta(ctx context.Context, p output.Printer, ro *globalOptions, data any, meta map[string]any, warnings []string) error {
	if ro != nil && ro.Verbose {
		timings := sourceTimings(ctx)
		if len(timings) > 0 {
			if meta == nil {
				meta = map[string]any{}
			}
			meta["timings"] = timings
			_, _ = fmt.Fprintf(p.Err, "avail: timings=%v\n", timings)
		}
	}
	return p.Success(data, meta, warnings)
}

func isHealthCommand(command string) bool {
	return strings.HasPrefix(command, "doctor") ||
		strings.HasPrefix(command, "status") ||
		strings.HasPrefix(command, "setup")
}

func renderTopLevelError(cmd *cobra.Command, err error) {
	var appErr AppError
	if errors.As(err, &appErr) && appErr.Printed {
		return
	}
	if wantsStructuredErrorOutput(os.Args[1:]) {
		printer := output.Printer{
			Mode:          output.ModeJSON,
			SchemaVersion: contract.SchemaVersion,
			Err:           cmd.ErrOrStderr(),
		}
		_ = printer.Error(errorCodeForExit(ExitCode(err)), err.Error(), "")
		return
	}
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "error: %s\n", err.Error())
}

func wantsStructuredErrorOutput(args []string) bool {
	for _, arg := range args {
		switch {
		case arg == "--":
			return false
		case arg == "--json", arg == "--jsonl":
			return true
		case strings.HasPrefix(arg, "--json="), strings.HasPrefix(arg, "--jsonl="):
			return true
		}
	}
	return false
}

func selectSource(ro *globalOptions, loc *time.Location) (source.Source, error) {
	switch strings.ToLower(strings.TrimSpace(ro.Source)) {
	case "", "google":
		src, err := source.NewGoogleSource(context.Background(), loc)
		if err != nil {
			return nil, err
		}
		if ro.NoCache {
			return src, nil
		}
		return source.NewCachedSource(src, 0, ro.CacheTTL)
	case "file":
		if strings.TrimSpace(ro.EventsFile) == "" {
			return nil, fmt.Errorf("--source file requires --events-file")
		}
		return source.NewFileSource(ro.EventsFile, loc), nil
	case "snapshot":
		store, err := source.OpenSnapshotStore(snapshotDBPath(ro))
		if err != nil {
			return nil, err
		}
		return &source.SnapshotSource{Store: store, ID: ro.SnapshotID, Loc: loc}, nil
	default:
		return nil, fmt.Errorf("unknown source: %s", ro.Source)
	}
}

func snapshotDBPath(ro *globalOptions) string {
	if strings.TrimSpace(ro.SnapshotDB) != "" {
		return ro.SnapshotDB
	}
	base := defaultUserConfigPath()
	if base == "" {
		return "avail-snapshots.db"
	}
	return filepath.Join(filepath.Dir(base), "snapshots.db")
}

func engineConfig(ro *globalOptions) (avail.Config, error) {
	startHour, endHour, err := parseWorkHours(ro.WorkHours)
	if err != nil {
		return avail.Config{}, err
	}
	if ro.Interval < 0 {
		return avail.Config{}, fmt.Errorf("--interval must not be negative")
	}
	return avail.Config{
		WorkStartHour:  startHour,
		WorkEndHour:    endHour,
		SlotInterval:   ro.Interval,
		MaxSlots:       ro.MaxSlots,
		MaxSlotsPerDay: ro.MaxPerDay,
		SkipWeekends:   !ro.IncludeWeekends,
		DisplayFormat:  ro.DisplayFormat,
	}, nil
}

func parseWorkHours(v string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(v), "-")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid --work-hours: %s", v)
	}
	startHour, err := parseHour(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid --work-hours start: %w", err)
	}
	endHour, err := parseHour(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid --work-hours end: %w", err)
	}
	if endHour <= startHour {
		return 0, 0, fmt.Errorf("--work-hours end must be after start")
	}
	return startHour, endHour, nil
}

func parseHour(v string) (int, error) {
	s := strings.TrimSpace(v)
	if !strings.Contains(s, ":") {
		s += ":00"
	}
	h, m, err := timeparse.ParseClock(s)
	if err != nil {
		return 0, err
	}
	if m != 0 {
		return 0, fmt.Errorf("work hours must fall on a whole hour: %s", v)
	}
	return h, nil
}

func buildSourceFilter(fromS, toS string, calendars []string, limit int, tz string) (source.Filter, *time.Location, error) {
	loc := resolveLocation(tz)
	from, err := timeparse.ParseDateTime(fromS, time.Now(), loc)
	if err != nil {
		return source.Filter{}, loc, fmt.Errorf("invalid --from: %w", err)
	}
	to, err := timeparse.ParseDateTime(toS, time.Now(), loc)
	if err != nil {
		return source.Filter{}, loc, fmt.Errorf("invalid --to: %w", err)
	}
	if to.Before(from) {
		return source.Filter{}, loc, fmt.Errorf("--to must not be earlier than --from")
	}
	if to.Hour() == 0 && to.Minute() == 0 && to.Second() == 0 {
		to = to.Add(24*time.Hour - time.Second)
	}
	return source.Filter{From: from, To: to, Calendars: calendars, Limit: limit}, loc, nil
}

func sourceFilterForRange(from, to time.Time, calendars []string, limit int) source.Filter {
	return source.Filter{From: from, To: to, Calendars: calendars, Limit: limit}
}

func resolveLocation(tz string) *time.Location {
	if strings.TrimSpace(tz) != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			return loc
		}
	}
	return time.Local
}

func dayBounds(anchor time.Time) (time.Time, time.Time) {
	y, m, d := anchor.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, anchor.Location())
	end := start.AddDate(0, 0, 1).Add(-time.Second)
	return start, end
}

func failWithHint(printer output.Printer, code contract.ErrorCode, err error, hint string, exitCode int) error {
	if err == nil {
		err = errors.New("unknown error")
	}
	_ = printer.Error(code, err.Error(), hint)
	return Wrap(exitCode, err)
}

func conflictCount(vals ...bool) int {
	total := 0
	for _, v := range vals {
		if v {
			total++
		}
	}
	return total
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		v := strings.TrimSpace(p)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
