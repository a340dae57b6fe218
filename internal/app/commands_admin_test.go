package app

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/agis/avail/internal/contract"
	"github.com/agis/avail/internal/source"
)

func TestDoctorReadyExitsZero(t *testing.T) {
	isolateHome(t)
	fb := &fakeEventSource{}
	origFactory := sourceFactory
	sourceFactory = func(*globalOptions, *time.Location) (source.Source, error) { return fb, nil }
	t.Cleanup(func() { sourceFactory = origFactory })

	stdout, err := runCommand(t, "doctor", "--json")
	if err != nil {
		t.Fatalf("doctor failed: %v", err)
	}
	var got struct {
		Data []contract.SourceCheck `json:"data"`
		Meta map[string]any         `json:"meta"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(got.Data) != 1 || got.Data[0].Status != "ok" {
		t.Fatalf("unexpected checks: %+v", got.Data)
	}
	if got.Meta["ready"] != true {
		t.Fatalf("expected ready meta, got %v", got.Meta["ready"])
	}
}

func TestDoctorFailingCheckExitCode(t *testing.T) {
	isolateHome(t)
	fb := &fakeEventSource{checks: []contract.SourceCheck{
		{Name: "stored token", Status: "fail", Message: "no token"},
	}}
	origFactory := sourceFactory
	sourceFactory = func(*globalOptions, *time.Location) (source.Source, error) { return fb, nil }
	t.Cleanup(func() { sourceFactory = origFactory })

	stdout, err := runCommand(t, "doctor", "--json")
	if got := ExitCode(err); got != 6 {
		t.Fatalf("expected exit code 6, got %d", got)
	}
	var got struct {
		Meta map[string]any `json:"meta"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	codes, _ := got.Meta["failure_reason_codes"].([]any)
	if len(codes) != 1 || codes[0] != "stored_token_fail" {
		t.Fatalf("unexpected reason codes: %v", codes)
	}
}

func TestStatusReportsConfiguration(t *testing.T) {
	isolateHome(t)
	fb := &fakeEventSource{}
	origFactory := sourceFactory
	sourceFactory = func(*globalOptions, *time.Location) (source.Source, error) { return fb, nil }
	t.Cleanup(func() { sourceFactory = origFactory })

	stdout, err := runCommand(t, "status", "--work-hours", "9-17", "--json")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	var got struct {
		Data statusResult `json:"data"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if !got.Data.Ready {
		t.Fatalf("expected ready status")
	}
	if got.Data.WorkHours != "9-17" {
		t.Fatalf("unexpected work hours: %q", got.Data.WorkHours)
	}
	if got.Data.SchemaVersion != contract.SchemaVersion {
		t.Fatalf("unexpected schema version: %q", got.Data.SchemaVersion)
	}
}

func TestFailOnDegradedGatesCommands(t *testing.T) {
	isolateHome(t)
	fb := &fakeEventSource{checks: []contract.SourceCheck{
		{Name: "stored token", Status: "fail", Message: "no token"},
	}}
	origFactory := sourceFactory
	sourceFactory = func(*globalOptions, *time.Location) (source.Source, error) { return fb, nil }
	t.Cleanup(func() { sourceFactory = origFactory })

	_, err := runCommand(t, "slots", "--day", "2026-03-02", "--fail-on-degraded", "--json")
	if got := ExitCode(err); got != 6 {
		t.Fatalf("expected exit code 6, got %d", got)
	}
	if fb.listCalls != 0 {
		t.Fatalf("expected no event fetch after degraded gate, got %d calls", fb.listCalls)
	}
}

func TestCalendarsListCommand(t *testing.T) {
	isolateHome(t)
	fb := &fakeEventSource{calendars: []contract.Calendar{
		{ID: "primary", Summary: "Personal", Primary: true},
		{ID: "work", Summary: "Work"},
	}}
	origFactory := sourceFactory
	sourceFactory = func(*globalOptions, *time.Location) (source.Source, error) { return fb, nil }
	t.Cleanup(func() { sourceFactory = origFactory })

	stdout, err := runCommand(t, "calendars", "list", "--json")
	if err != nil {
		t.Fatalf("calendars list failed: %v", err)
	}
	var got struct {
		Data []contract.Calendar `json:"data"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(got.Data) != 2 || !got.Data[0].Primary {
		t.Fatalf("unexpected calendars: %+v", got.Data)
	}
}

func TestVersionCommand(t *testing.T) {
	stdout, err := runCommand(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.HasPrefix(stdout.String(), "avail ") {
		t.Fatalf("unexpected version output: %q", stdout.String())
	}
}

func TestCompletionGeneratesScript(t *testing.T) {
	stdout, err := runCommand(t, "completion", "bash")
	if err != nil {
		t.Fatalf("completion failed: %v", err)
	}
	if stdout.Len() == 0 {
		t.Fatalf("expected completion script output")
	}
	_, err = runCommand(t, "completion", "tcsh")
	if got := ExitCode(err); got != 2 {
		t.Fatalf("expected exit code 2 for unsupported shell, got %d", got)
	}
}

func TestDeriveFailureReasonCodes(t *testing.T) {
	checks := []contract.SourceCheck{
		{Name: "stored token", Status: "fail"},
		{Name: "api reachability", Status: "fail"},
		{Name: "events file", Status: "ok"},
	}
	codes := deriveFailureReasonCodes(checks, nil)
	if len(codes) != 2 {
		t.Fatalf("expected 2 codes, got %v", codes)
	}
	if codes[0] != "api_reachability_fail" || codes[1] != "stored_token_fail" {
		t.Fatalf("expected sorted codes, got %v", codes)
	}
	if got := deriveFailureReasonCodes(nil, nil); got != nil {
		t.Fatalf("expected nil for healthy checks, got %v", got)
	}
}
