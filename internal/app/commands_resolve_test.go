package app

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/agis/avail/internal/avail"
	"github.com/agis/avail/internal/contract"
	"github.com/agis/avail/internal/source"
)

func TestResolveCommandOffersAlternatives(t *testing.T) {
	isolateHome(t)
	fb := &fakeEventSource{events: []contract.Event{
		timedEvent("e1", "Planning", time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), time.Hour),
	}}
	origFactory := sourceFactory
	sourceFactory = func(*globalOptions, *time.Location) (source.Source, error) { return fb, nil }
	t.Cleanup(func() { sourceFactory = origFactory })

	cmd := NewRootCommand()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"resolve", "--start", "2026-03-02T10:30", "--duration", "30m", "--tz", "UTC", "--json"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	var got struct {
		Data contract.ConflictAvailability `json:"data"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(got.Data.AvailableSlots) == 0 {
		t.Fatalf("expected alternative slots")
	}
	if got.Data.AvailableSlots[0].Date != "2026-03-02" {
		t.Fatalf("expected scan to start on the proposal day, got %s", got.Data.AvailableSlots[0].Date)
	}
	if n := len(got.Data.SmartSuggestions); n == 0 || n > 4 {
		t.Fatalf("expected 1-4 suggestions, got %d", n)
	}
	for _, s := range got.Data.SmartSuggestions {
		if !strings.HasPrefix(s, "Try ") && !strings.HasPrefix(s, "Schedule ") {
			t.Fatalf("unexpected suggestion phrasing: %q", s)
		}
	}
	if got.Data.FormattedForLLM == "" {
		t.Fatalf("expected formatted text block")
	}
	if lines := strings.Split(got.Data.FormattedForLLM, "\n"); len(lines) > 3 {
		t.Fatalf("expected at most three formatted days, got %d", len(lines))
	}
}

func TestResolveCommandInvalidProposalFallback(t *testing.T) {
	isolateHome(t)
	fb := &fakeEventSource{}
	origFactory := sourceFactory
	sourceFactory = func(*globalOptions, *time.Location) (source.Source, error) { return fb, nil }
	t.Cleanup(func() { sourceFactory = origFactory })

	cmd := NewRootCommand()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"resolve", "--at", "whenever works", "--tz", "UTC", "--json"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	var got struct {
		Data contract.ConflictAvailability `json:"data"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(got.Data.AvailableSlots) != 0 {
		t.Fatalf("expected no slots for an unparsable proposal")
	}
	if len(got.Data.SmartSuggestions) != 1 || got.Data.SmartSuggestions[0] != "Please specify a valid time" {
		t.Fatalf("unexpected suggestions: %v", got.Data.SmartSuggestions)
	}
	if got.Data.FormattedForLLM != "Unable to determine availability - invalid time format." {
		t.Fatalf("unexpected formatted text: %q", got.Data.FormattedForLLM)
	}
}

func TestResolveCommandRejectsConflictingInputs(t *testing.T) {
	isolateHome(t)
	fb := &fakeEventSource{}
	origFactory := sourceFactory
	sourceFactory = func(*globalOptions, *time.Location) (source.Source, error) { return fb, nil }
	t.Cleanup(func() { sourceFactory = origFactory })

	cmd := NewRootCommand()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"resolve", "--at", "tomorrow 14:00", "--start", "2026-03-02T10:00", "--json"})
	err := cmd.Execute()
	if got := ExitCode(err); got != 2 {
		t.Fatalf("expected exit code 2, got %d", got)
	}
}

func TestSuggestCommandPhrases(t *testing.T) {
	isolateHome(t)
	fb := &fakeEventSource{events: []contract.Event{
		timedEvent("e1", "Planning", time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), time.Hour),
	}}
	origFactory := sourceFactory
	sourceFactory = func(*globalOptions, *time.Location) (source.Source, error) { return fb, nil }
	t.Cleanup(func() { sourceFactory = origFactory })

	cmd := NewRootCommand()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"suggest", "--start", "2026-03-02T10:30", "--duration", "30m", "--tz", "UTC", "--json"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	var got struct {
		Data []string `json:"data"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if n := len(got.Data); n == 0 || n > 4 {
		t.Fatalf("expected 1-4 suggestions, got %d", n)
	}
	if !strings.HasPrefix(got.Data[0], "Try ") {
		t.Fatalf("expected same-day suggestion first, got %q", got.Data[0])
	}
	if !strings.Contains(got.Data[0], "Monday") {
		t.Fatalf("expected the proposal weekday in the suggestion, got %q", got.Data[0])
	}
}

func TestFreebusyCommandMergesOverlaps(t *testing.T) {
	isolateHome(t)
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	fb := &fakeEventSource{events: []contract.Event{
		timedEvent("e1", "Standup", base, 45*time.Minute),
		timedEvent("e2", "Review", base.Add(30*time.Minute), time.Hour),
	}}
	origFactory := sourceFactory
	sourceFactory = func(*globalOptions, *time.Location) (source.Source, error) { return fb, nil }
	t.Cleanup(func() { sourceFactory = origFactory })

	cmd := NewRootCommand()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"freebusy", "--from", "2026-03-02", "--to", "2026-03-03", "--tz", "UTC", "--json"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	var got struct {
		Data []avail.BusyBlock `json:"data"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(got.Data) != 1 {
		t.Fatalf("expected one merged block, got %d", len(got.Data))
	}
	if got.Data[0].Minutes != 90 {
		t.Fatalf("expected 90 merged minutes, got %d", got.Data[0].Minutes)
	}
}
