package avail

import (
	"strings"
	"testing"
	"time"

	"github.com/agis/avail/internal/contract"
)

func TestForConflictResolutionLookahead(t *testing.T) {
	events := []contract.Event{
		timedEvent(monday.Add(10*time.Hour), monday.Add(11*time.Hour)),
	}
	res := ForConflictResolution(proposal(monday.Add(10*time.Hour), monday.Add(11*time.Hour)), events, time.UTC, Config{})
	if len(res.AvailableSlots) != 7 {
		t.Fatalf("expected 7 days of availability, got %d", len(res.AvailableSlots))
	}
	if res.AvailableSlots[0].Date != "2026-03-02" {
		t.Fatalf("lookahead must start on the proposal's day, got %s", res.AvailableSlots[0].Date)
	}
	for _, day := range res.AvailableSlots {
		if len(day.Slots) > DefaultMaxSlotsPerDay {
			t.Fatalf("per-day cap exceeded on %s: %d", day.Date, len(day.Slots))
		}
	}
	if len(res.SmartSuggestions) == 0 {
		t.Fatalf("expected smart suggestions")
	}
}

func TestForConflictResolutionIncludesWeekends(t *testing.T) {
	res := ForConflictResolution(proposal(monday.Add(10*time.Hour), monday.Add(11*time.Hour)), nil, time.UTC, Config{SkipWeekends: true})
	sawWeekend := false
	for _, day := range res.AvailableSlots {
		parsed, err := time.Parse("2006-01-02", day.Date)
		if err != nil {
			t.Fatalf("bad date %q: %v", day.Date, err)
		}
		if isWeekend(parsed.Weekday()) {
			sawWeekend = true
		}
	}
	if !sawWeekend {
		t.Fatalf("conflict resolution scans weekends regardless of SkipWeekends")
	}
}

func TestFormatForLLMThreeDayLimit(t *testing.T) {
	res := ForConflictResolution(proposal(monday.Add(10*time.Hour), monday.Add(11*time.Hour)), nil, time.UTC, Config{})
	lines := strings.Split(res.FormattedForLLM, "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 rendered days, got %d:\n%s", len(lines), res.FormattedForLLM)
	}
	if !strings.HasPrefix(lines[0], "Monday, Mar 2: ") {
		t.Fatalf("unexpected first line: %q", lines[0])
	}
	if !strings.Contains(lines[0], "8:00 AM, 8:30 AM") {
		t.Fatalf("expected comma-joined display times, got %q", lines[0])
	}
}

func TestForConflictResolutionFullyBooked(t *testing.T) {
	events := make([]contract.Event, 0, 8)
	for i := 0; i < 8; i++ {
		day := monday.AddDate(0, 0, i)
		events = append(events, busyWorkingDay(day))
	}
	res := ForConflictResolution(proposal(monday.Add(10*time.Hour), monday.Add(11*time.Hour)), events, time.UTC, Config{})
	if len(res.AvailableSlots) != 0 {
		t.Fatalf("expected no availability, got %d days", len(res.AvailableSlots))
	}
	if res.FormattedForLLM != noSlotsText {
		t.Fatalf("unexpected LLM text: %q", res.FormattedForLLM)
	}
	if len(res.SmartSuggestions) != 2 {
		t.Fatalf("expected the generic fallback pair, got %v", res.SmartSuggestions)
	}
}

func TestForConflictResolutionInvalidProposal(t *testing.T) {
	bad := contract.ProposedEvent{
		Start: contract.EventTime{DateTime: "soon"},
		End:   contract.EventTime{DateTime: "eventually"},
	}
	res := ForConflictResolution(bad, nil, time.UTC, Config{})
	if len(res.AvailableSlots) != 0 {
		t.Fatalf("expected empty slots for invalid proposal")
	}
	if len(res.SmartSuggestions) != 1 || res.SmartSuggestions[0] != "Please specify a valid time" {
		t.Fatalf("unexpected suggestions: %v", res.SmartSuggestions)
	}
	if res.FormattedForLLM != "Unable to determine availability - invalid time format." {
		t.Fatalf("unexpected LLM text: %q", res.FormattedForLLM)
	}
}
