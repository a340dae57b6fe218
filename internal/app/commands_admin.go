package app

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agis/avail/internal/contract"
	"github.com/agis/avail/internal/output"
)

type statusResult struct {
	Ready         bool                   `json:"ready"`
	Source        string                 `json:"source"`
	Profile       string                 `json:"profile"`
	TZ            string                 `json:"tz,omitempty"`
	WorkHours     string                 `json:"work_hours"`
	OutputMode    string                 `json:"output_mode"`
	SchemaVersion string                 `json:"schema_version"`
	Checks        []contract.SourceCheck `json:"checks"`
	NextSteps     []string               `json:"next_steps,omitempty"`
	ReasonCodes   []string               `json:"failure_reason_codes,omitempty"`
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "avail %s\n", BuildVersionString())
		},
	}
}

func newDoctorCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run preflight checks against the active source",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, src, ro, err := buildContext(cmd, opts, "doctor")
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(ro)
			defer cancel()
			checks, derr := doctorWithTimeout(ctx, src)
			setup := buildSetupResult(checks, derr, ro.Source)
			reasonCodes := deriveFailureReasonCodes(checks, derr)
			meta := map[string]any{
				"count":                len(checks),
				"ready":                setup.Ready,
				"failure_reason_codes": reasonCodes,
			}
			if p.EffectiveSuccessMode() == output.ModePlain {
				return printDoctorPlain(cmd.OutOrStdout(), checks, setup, reasonCodes)
			}
			_ = successWithMeta(ctx, p, ro, checks, meta, setup.Notes)
			if !setup.Ready && derr != nil {
				return WrapPrinted(6, derr)
			}
			if !setup.Ready {
				return Wrap(6, fmt.Errorf("doctor checks not ready"))
			}
			return nil
		},
	}
}

func newStatusCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show source health and active runtime configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, src, ro, err := buildContext(cmd, opts, "status")
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(ro)
			defer cancel()
			checks, derr := doctorWithTimeout(ctx, src)
			setup := buildSetupResult(checks, derr, ro.Source)
			reasonCodes := deriveFailureReasonCodes(checks, derr)
			res := statusResult{
				Ready:         setup.Ready,
				Source:        ro.Source,
				Profile:       ro.Profile,
				TZ:            ro.TZ,
				WorkHours:     ro.WorkHours,
				OutputMode:    string(p.EffectiveSuccessMode()),
				SchemaVersion: ro.SchemaVersion,
				Checks:        checks,
				NextSteps:     setup.NextSteps,
				ReasonCodes:   reasonCodes,
			}
			meta := map[string]any{
				"ready":                res.Ready,
				"checks":               len(res.Checks),
				"failure_reason_codes": reasonCodes,
			}
			if p.EffectiveSuccessMode() == output.ModePlain {
				_ = printStatusPlain(cmd.OutOrStdout(), res)
			} else {
				_ = successWithMeta(ctx, p, ro, res, meta, nil)
			}
			if !setup.Ready {
				if derr != nil {
					_ = p.Error(contract.ErrSourceUnavailable, derr.Error(), "Run `avail setup` for remediation")
					return WrapPrinted(6, derr)
				}
				return Wrap(6, fmt.Errorf("status not ready"))
			}
			return nil
		},
	}
}

func newCalendarsCmd(opts *globalOptions) *cobra.Command {
	calendars := &cobra.Command{Use: "calendars", Short: "Calendar resources"}
	list := &cobra.Command{
		Use:   "list",
		Short: "List calendars",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, src, ro, err := buildContext(cmd, opts, "calendars.list")
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(ro)
			defer cancel()
			items, err := listCalendarsWithTimeout(ctx, src)
			if err != nil {
				_ = p.Error(contract.ErrSourceUnavailable, err.Error(), "Run `avail doctor` for remediation")
				return WrapPrinted(6, err)
			}
			return successWithMeta(ctx, p, ro, items, map[string]any{"count": len(items)}, nil)
		},
	}
	calendars.AddCommand(list)
	return calendars
}

func newCompletionCmd(root *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:   "completion <bash|zsh|fish|powershell>",
		Short: "Generate shell completion scripts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			shell := strings.ToLower(args[0])
			switch shell {
			case "bash":
				return root.GenBashCompletion(cmd.OutOrStdout())
			case "zsh":
				return root.GenZshCompletion(cmd.OutOrStdout())
			case "fish":
				return root.GenFishCompletion(cmd.OutOrStdout(), true)
			case "powershell":
				return root.GenPowerShellCompletion(cmd.OutOrStdout())
			default:
				return Wrap(2, fmt.Errorf("unsupported shell: %s", shell))
			}
		},
	}
}

func deriveFailureReasonCodes(checks []contract.SourceCheck, derr error) []string {
	codeSet := map[string]struct{}{}
	for _, c := range checks {
		status := strings.ToLower(strings.TrimSpace(c.Status))
		if status == "" || status == "ok" || status == "pass" {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(c.Name))
		name = strings.ReplaceAll(name, " ", "_")
		name = strings.ReplaceAll(name, "-", "_")
		if name == "" {
			name = "unknown_check"
		}
		codeSet[name+"_fail"] = struct{}{}
	}
	if derr != nil {
		codeSet["doctor_error"] = struct{}{}
	}
	if len(codeSet) == 0 {
		return nil
	}
	out := make([]string, 0, len(codeSet))
	for code := range codeSet {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

func printDoctorPlain(out io.Writer, checks []contract.SourceCheck, setup setupResult, reasonCodes []string) error {
	_, _ = fmt.Fprintf(out, "ready=%t checks=%d\n", setup.Ready, len(checks))
	if len(reasonCodes) > 0 {
		_, _ = fmt.Fprintf(out, "reasons=%s\n", strings.Join(reasonCodes, ","))
	}
	for _, c := range checks {
		_, _ = fmt.Fprintf(out, "[%s] %s: %s\n", c.Status, c.Name, c.Message)
	}
	for _, step := range setup.NextSteps {
		_, _ = fmt.Fprintf(out, "next: %s\n", step)
	}
	return nil
}

func printStatusPlain(out io.Writer, res statusResult) error {
	_, _ = fmt.Fprintf(out, "ready=%t source=%s profile=%s work_hours=%s output_mode=%s checks=%d\n", res.Ready, res.Source, res.Profile, res.WorkHours, res.OutputMode, len(res.Checks))
	if len(res.ReasonCodes) > 0 {
		_, _ = fmt.Fprintf(out, "reasons=%s\n", strings.Join(res.ReasonCodes, ","))
	}
	for _, c := range res.Checks {
		_, _ = fmt.Fprintf(out, "[%s] %s: %s\n", c.Status, c.Name, c.Message)
	}
	return nil
}
