package avail

import (
	"testing"
	"time"

	"github.com/agis/avail/internal/contract"
)

func proposal(start, end time.Time) contract.ProposedEvent {
	return contract.ProposedEvent{Start: contract.NewDateTime(start), End: contract.NewDateTime(end)}
}

func busyWorkingDay(day time.Time) contract.Event {
	return timedEvent(day.Add(8*time.Hour), day.Add(22*time.Hour))
}

func TestSmartSuggestionsSameDayFirst(t *testing.T) {
	events := []contract.Event{
		timedEvent(monday.Add(10*time.Hour), monday.Add(11*time.Hour)),
	}
	got := SmartSuggestions(proposal(monday.Add(10*time.Hour), monday.Add(11*time.Hour)), nil, events, time.UTC, Config{})
	if len(got) != 4 {
		t.Fatalf("expected 4 suggestions, got %d: %v", len(got), got)
	}
	if got[0] != "Try 8:00 AM on Monday" {
		t.Fatalf("unexpected first suggestion: %q", got[0])
	}
	if got[1] != "Try 8:30 AM on Monday" || got[2] != "Try 9:00 AM on Monday" {
		t.Fatalf("unexpected same-day suggestions: %v", got[:3])
	}
	if got[3] != "Schedule Tuesday at 10:00 AM" {
		t.Fatalf("unexpected next-day suggestion: %q", got[3])
	}
}

func TestSmartSuggestionsNextDayAlternative(t *testing.T) {
	tuesday := monday.AddDate(0, 0, 1)
	events := []contract.Event{
		busyWorkingDay(monday),
		timedEvent(tuesday.Add(8*time.Hour), tuesday.Add(12*time.Hour)),
	}
	got := SmartSuggestions(proposal(monday.Add(10*time.Hour), monday.Add(11*time.Hour)), nil, events, time.UTC, Config{})
	if len(got) != 2 {
		t.Fatalf("expected 2 suggestions, got %d: %v", len(got), got)
	}
	if got[0] != "Schedule Tuesday at 10:00 AM" {
		t.Fatalf("unexpected first suggestion: %q", got[0])
	}
	if got[1] != "Try Tuesday at 12:00 PM" {
		t.Fatalf("unexpected second suggestion: %q", got[1])
	}
}

func TestSmartSuggestionsFallbackWhenPacked(t *testing.T) {
	events := []contract.Event{
		busyWorkingDay(monday),
		busyWorkingDay(monday.AddDate(0, 0, 1)),
	}
	got := SmartSuggestions(proposal(monday.Add(10*time.Hour), monday.Add(11*time.Hour)), nil, events, time.UTC, Config{})
	want := []string{"Try scheduling for a different day", "Consider shortening the meeting duration"}
	if len(got) != len(want) {
		t.Fatalf("expected fallback pair, got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("fallback mismatch at %d: %q", i, got[i])
		}
	}
}

func TestSmartSuggestionsUnparsableProposal(t *testing.T) {
	bad := contract.ProposedEvent{
		Start: contract.EventTime{DateTime: "when I feel like it"},
		End:   contract.EventTime{DateTime: "later"},
	}
	got := SmartSuggestions(bad, nil, nil, time.UTC, Config{})
	if len(got) != 1 || got[0] != "Please try a different time" {
		t.Fatalf("expected the fixed invalid-time reply, got %v", got)
	}
}

func TestSmartSuggestionsIgnoresConflictingParameter(t *testing.T) {
	decoys := []contract.Event{busyWorkingDay(monday)}
	withDecoys := SmartSuggestions(proposal(monday.Add(10*time.Hour), monday.Add(11*time.Hour)), decoys, nil, time.UTC, Config{})
	without := SmartSuggestions(proposal(monday.Add(10*time.Hour), monday.Add(11*time.Hour)), nil, nil, time.UTC, Config{})
	if len(withDecoys) != len(without) {
		t.Fatalf("conflicting-events parameter must not influence the search")
	}
	for i := range without {
		if withDecoys[i] != without[i] {
			t.Fatalf("suggestion %d differs: %q vs %q", i, withDecoys[i], without[i])
		}
	}
}

func TestSmartSuggestionsCap(t *testing.T) {
	got := SmartSuggestions(proposal(monday.Add(10*time.Hour), monday.Add(11*time.Hour)), nil, nil, time.UTC, Config{})
	if len(got) > 4 {
		t.Fatalf("suggestion cap exceeded: %d", len(got))
	}
}
