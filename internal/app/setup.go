package app

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agis/avail/internal/contract"
	"github.com/agis/avail/internal/output"
	"github.com/agis/avail/internal/source"
)

var errSetupNotReady = errors.New("setup checks not ready")

type setupResult struct {
	Ready     bool                   `json:"ready"`
	Source    string                 `json:"source"`
	Checks    []contract.SourceCheck `json:"checks"`
	NextSteps []string               `json:"next_steps,omitempty"`
	Notes     []string               `json:"notes,omitempty"`
	AuthURL   string                 `json:"auth_url,omitempty"`
}

func newSetupCmd(opts *globalOptions) *cobra.Command {
	var authCode string
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Run first-time setup and OAuth authorization",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, src, ro, err := buildContextWithoutSource(cmd, opts, "setup")
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(ro)
			defer cancel()

			if strings.TrimSpace(authCode) != "" {
				if err := source.SaveAuthCode(ctx, authCode); err != nil {
					return failWithHint(p, contract.ErrPermissionDenied, err, "Re-run `avail setup` and paste a fresh authorization code", 5)
				}
				if src == nil {
					if s, serr := sourceFactory(ro, resolveLocation(ro.TZ)); serr == nil {
						src = s
					}
				}
			}

			var checks []contract.SourceCheck
			var derr error
			if src != nil {
				checks, derr = doctorWithTimeout(ctx, src)
			}
			res := buildSetupResult(checks, derr, ro.Source)
			if !res.Ready && strings.EqualFold(ro.Source, "google") && !source.HasToken() {
				if url, uerr := source.AuthURL(); uerr == nil {
					res.AuthURL = url
				}
			}
			_ = p.Success(res, map[string]any{
				"ready": res.Ready,
				"count": len(res.Checks),
			}, nil)
			if res.Ready {
				return nil
			}
			if derr != nil {
				_ = p.Error(contract.ErrSourceUnavailable, derr.Error(), "Run `avail setup` again after applying next_steps")
				return WrapPrinted(6, derr)
			}
			return Wrap(6, errSetupNotReady)
		},
	}
	cmd.Flags().StringVar(&authCode, "auth-code", "", "OAuth authorization code from the consent page")
	return cmd
}

// buildContextWithoutSource is buildContext minus the hard source
// requirement: setup must run before any source can be constructed, so a
// failed source build leaves src nil instead of failing the command.
func buildContextWithoutSource(cmd *cobra.Command, opts *globalOptions, command string) (output.Printer, source.Source, *globalOptions, error) {
	resolved, err := resolveGlobalOptions(cmd, opts)
	if err != nil {
		return output.Printer{}, nil, nil, Wrap(2, err)
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
	src, serr := sourceFactory(resolved, resolveLocation(resolved.TZ))
	if serr != nil {
		src = nil
	}
	return printer, src, resolved, nil
}

func buildSetupResult(checks []contract.SourceCheck, derr error, sourceName string) setupResult {
	res := setupResult{
		Ready:  len(checks) > 0,
		Source: strings.TrimSpace(sourceName),
		Checks: checks,
	}
	for _, c := range checks {
		if !strings.EqualFold(strings.TrimSpace(c.Status), "ok") {
			res.Ready = false
		}
	}
	if derr != nil {
		res.Ready = false
		res.Notes = append(res.Notes, derr.Error())
	}

	if !res.Ready {
		switch strings.ToLower(strings.TrimSpace(sourceName)) {
		case "", "google":
			if !source.HasToken() {
				res.NextSteps = append(res.NextSteps,
					"Place your OAuth client file at the config dir as credentials.json (Google Cloud console > Credentials).",
					"Visit auth_url, approve read-only calendar access, then run `avail setup --auth-code <code>`.")
			} else {
				res.NextSteps = append(res.NextSteps, "Stored token failed; re-authorize with `avail setup --auth-code <code>`.")
			}
		case "file":
			res.NextSteps = append(res.NextSteps, "Point --events-file at a readable JSON events document, or pipe it with --events-file -.")
		case "snapshot":
			res.NextSteps = append(res.NextSteps, "Create a snapshot first: `avail snapshot save --from today --to +7d`.")
		}
		return res
	}

	res.NextSteps = append(res.NextSteps,
		"Verify read access with: `avail days --json`",
		"Check a proposal with: `avail resolve --at \"tomorrow 14:00\" --duration 1h --json`")
	return res
}
